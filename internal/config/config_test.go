package config

import (
	"os"
	"path/filepath"
	"testing"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{
		"QDRANT_VECTOR_SIZE",
		"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL",
		"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
		"DB_PATH", "QDRANT_URL", "QDRANT_COLLECTION", "API_PORT", "API_KEY",
		"RETRIEVAL_K", "RETRIEVAL_FETCH_K", "PER_SOURCE_LIMIT",
		"MAX_CONTEXT_CHARS", "SCORE_FLOOR", "ANCHOR_BONUS",
		"GUARDRAIL_TERMS", "GUARDRAIL_MIN_SURVIVORS",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with required fields",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.QdrantVectorSize == 768 &&
					cfg.RetrievalK == 12 &&
					cfg.RetrievalFetchK == 48 &&
					cfg.ScoreFloor == 0.30 &&
					cfg.QdrantCollection == "documents"
			},
		},
		{
			name:     "missing QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {},
			wantErr:  true,
		},
		{
			name: "invalid QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "not-a-number")
			},
			wantErr: true,
		},
		{
			name: "zero QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "0")
			},
			wantErr: true,
		},
		{
			name: "pipeline tuning overrides",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
				setEnv("RETRIEVAL_K", "6")
				setEnv("SCORE_FLOOR", "0.5")
				setEnv("GUARDRAIL_TERMS", "Speed Die, mr. monopoly ,")
				setEnv("GUARDRAIL_MIN_SURVIVORS", "4")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.RetrievalK == 6 &&
					cfg.ScoreFloor == 0.5 &&
					cfg.GuardrailMinSurvivors == 4 &&
					len(cfg.GuardrailTerms) == 2 &&
					cfg.GuardrailTerms[0] == "speed die" &&
					cfg.GuardrailTerms[1] == "mr. monopoly"
			},
		},
		{
			name: "invalid RETRIEVAL_K",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("RETRIEVAL_K", "many")
			},
			wantErr: true,
		},
		{
			name: "invalid SCORE_FLOOR",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("SCORE_FLOOR", "low")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envVars {
				unsetEnv(key)
			}
			tt.setupEnv(t)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config check failed: %+v", cfg)
			}
		})
	}
}

func TestConfig_QueryConfig(t *testing.T) {
	cfg := &Config{
		LLMModelName:          "test-model",
		RetrievalK:            6,
		RetrievalFetchK:       24,
		PerSourceLimit:        3,
		MaxContextChars:       8000,
		ScoreFloor:            0.4,
		AnchorBonus:           0.1,
		GuardrailTerms:        []string{"speed die"},
		GuardrailMinSurvivors: 4,
	}

	qc := cfg.QueryConfig()
	if qc.K != 6 || qc.FetchK != 24 || qc.PerSourceLimit != 3 {
		t.Errorf("retrieval tuning not carried over: %+v", qc)
	}
	if qc.ScoreFloor != 0.4 || qc.AnchorBonus != 0.1 {
		t.Errorf("scoring tuning not carried over: %+v", qc)
	}
	if qc.Model != "test-model" {
		t.Errorf("Model = %q", qc.Model)
	}
	if len(qc.GuardrailTerms) != 1 || qc.GuardrailMinSurvivors != 4 {
		t.Errorf("guardrail tuning not carried over: %+v", qc)
	}
	if qc.SnippetChars == 0 {
		t.Error("SnippetChars should keep its default")
	}
}
