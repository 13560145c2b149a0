package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"opal-rag/internal/config"
	"opal-rag/internal/http"
	"opal-rag/internal/llm"
	"opal-rag/internal/query"
	"opal-rag/internal/search"
	"opal-rag/internal/service"
	"opal-rag/internal/storage"
	"opal-rag/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	chatRepo := storage.NewChatRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Wire the query pipeline
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	searcher := search.NewVectorSearcher(embedder, vectorStore, cfg.QdrantCollection)
	engine := query.NewEngine(searcher, llmClient, cfg.QueryConfig())
	slog.Info("Query engine ready",
		"k", cfg.RetrievalK,
		"fetch_k", cfg.RetrievalFetchK,
		"score_floor", cfg.ScoreFloor,
		"guardrail_terms", len(cfg.GuardrailTerms),
	)

	// Service layer
	queryService := service.NewQueryService(engine, chatRepo)
	chatService := service.NewChatService(chatRepo)

	// HTTP router
	router := http.NewRouter(&http.Deps{
		QueryService:   queryService,
		ChatService:    chatService,
		VectorStore:    vectorStore,
		CollectionName: cfg.QdrantCollection,
		APIKey:         cfg.APIKey,
	})

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr, "auth_enabled", cfg.APIKey != "")
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// parseLogLevel maps the configured level name to a slog level, defaulting
// to info.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
