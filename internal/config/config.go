package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"opal-rag/internal/query"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	DBPath             string
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	APIPort            string
	// APIKey, when set, is required in the X-API-Key header of API requests.
	APIKey string

	// Retrieval pipeline tuning.
	RetrievalK            int
	RetrievalFetchK       int
	PerSourceLimit        int
	MaxContextChars       int
	ScoreFloor            float64
	AnchorBonus           float64
	GuardrailTerms        []string
	GuardrailMinSurvivors int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	// Try to find project root by looking for a .env file
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	defaults := query.DefaultConfig()

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		DBPath:             getEnv("DB_PATH", "./data/opal-rag.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "documents"),
		APIPort:            getEnv("API_PORT", "9000"),
		APIKey:             getEnv("API_KEY", ""),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	// Parse QDRANT_VECTOR_SIZE
	// This must match the output vector size of the embeddings model. If the
	// vector size changes, the Qdrant collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	cfg.RetrievalK, err = getEnvInt("RETRIEVAL_K", defaults.K)
	if err != nil {
		return nil, err
	}
	cfg.RetrievalFetchK, err = getEnvInt("RETRIEVAL_FETCH_K", defaults.FetchK)
	if err != nil {
		return nil, err
	}
	cfg.PerSourceLimit, err = getEnvInt("PER_SOURCE_LIMIT", defaults.PerSourceLimit)
	if err != nil {
		return nil, err
	}
	cfg.MaxContextChars, err = getEnvInt("MAX_CONTEXT_CHARS", defaults.MaxContextChars)
	if err != nil {
		return nil, err
	}
	cfg.ScoreFloor, err = getEnvFloat("SCORE_FLOOR", defaults.ScoreFloor)
	if err != nil {
		return nil, err
	}
	cfg.AnchorBonus, err = getEnvFloat("ANCHOR_BONUS", defaults.AnchorBonus)
	if err != nil {
		return nil, err
	}
	cfg.GuardrailMinSurvivors, err = getEnvInt("GUARDRAIL_MIN_SURVIVORS", defaults.GuardrailMinSurvivors)
	if err != nil {
		return nil, err
	}
	cfg.GuardrailTerms = splitTerms(getEnv("GUARDRAIL_TERMS", ""))

	// Create ./data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// QueryConfig maps the loaded configuration onto the query engine's tuning.
func (c *Config) QueryConfig() query.Config {
	cfg := query.DefaultConfig()
	cfg.K = c.RetrievalK
	cfg.FetchK = c.RetrievalFetchK
	cfg.PerSourceLimit = c.PerSourceLimit
	cfg.MaxContextChars = c.MaxContextChars
	cfg.ScoreFloor = c.ScoreFloor
	cfg.AnchorBonus = c.AnchorBonus
	cfg.GuardrailTerms = c.GuardrailTerms
	cfg.GuardrailMinSurvivors = c.GuardrailMinSurvivors
	cfg.Model = c.LLMModelName
	return cfg
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer environment variable or returns a default.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

// getEnvFloat parses a float environment variable or returns a default.
func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}

// splitTerms parses a comma-separated term list, trimming and lowercasing.
func splitTerms(raw string) []string {
	if raw == "" {
		return nil
	}
	var terms []string
	for _, part := range strings.Split(raw, ",") {
		term := strings.ToLower(strings.TrimSpace(part))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
