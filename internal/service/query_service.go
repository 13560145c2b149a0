package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_query_service.go -package=mocks -mock_names=QueryService=MockQueryService opal-rag/internal/service QueryService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opal-rag/internal/contextutil"
	"opal-rag/internal/query"
	"opal-rag/internal/storage"
)

// QueryRequest represents a query request in the domain layer.
type QueryRequest struct {
	Question        string `validate:"required"`
	File            string
	Type            string
	K               int
	FetchK          int
	PerSourceLimit  int
	MaxContextChars int
	ScoreFloor      *float64
	Model           string
	ShowSnippets    bool
	// ChatID, when set, appends the exchange to an existing chat.
	ChatID string
}

// QueryResponse represents a query response in the domain layer.
type QueryResponse struct {
	Answer   string
	Sources  []query.Source
	Snippets []string
	ChatID   string
}

// QueryService answers questions against the indexed corpus.
type QueryService interface {
	// ProcessQuery runs the retrieval pipeline and, when a chat is named,
	// persists both sides of the exchange.
	ProcessQuery(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

// queryService implements QueryService.
type queryService struct {
	engine query.Engine
	chats  storage.ChatStore
}

// NewQueryService creates a new QueryService. The chat store may be nil when
// persistence is not configured.
func NewQueryService(engine query.Engine, chats storage.ChatStore) QueryService {
	return &queryService{
		engine: engine,
		chats:  chats,
	}
}

// ProcessQuery processes a query request.
func (s *queryService) ProcessQuery(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	// Business validation
	if strings.TrimSpace(req.Question) == "" {
		logger.WarnContext(ctx, "empty question in query request")
		return QueryResponse{}, &ValidationError{
			Field:   "question",
			Message: "cannot be empty",
		}
	}

	if req.ChatID != "" {
		if s.chats == nil {
			return QueryResponse{}, &ValidationError{
				Field:   "chat_id",
				Message: "chat persistence is not configured",
			}
		}
		if _, err := s.chats.GetByID(ctx, req.ChatID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return QueryResponse{}, fmt.Errorf("chat %s: %w", req.ChatID, ErrNotFound)
			}
			return QueryResponse{}, WrapError(err, "failed to load chat")
		}
	}

	result, err := s.engine.Answer(ctx, query.Request{
		Question:        req.Question,
		File:            req.File,
		Type:            req.Type,
		K:               req.K,
		FetchK:          req.FetchK,
		PerSourceLimit:  req.PerSourceLimit,
		MaxContextChars: req.MaxContextChars,
		ScoreFloor:      req.ScoreFloor,
		Model:           req.Model,
		ShowSnippets:    req.ShowSnippets,
	})
	if err != nil {
		logger.ErrorContext(ctx, "query engine rejected request", "error", err)
		return QueryResponse{}, WrapError(err, "failed to answer query")
	}

	if req.ChatID != "" {
		if err := s.persistExchange(ctx, req, result); err != nil {
			// The answer is already computed; losing history is not worth
			// failing the request over.
			logger.ErrorContext(ctx, "failed to persist chat exchange",
				"chat_id", req.ChatID, "error", err)
		}
	}

	logger.InfoContext(ctx, "query request processed successfully",
		"question_length", len(req.Question),
		"sources", len(result.Sources),
	)
	return QueryResponse{
		Answer:   result.Answer,
		Sources:  result.Sources,
		Snippets: result.Snippets,
		ChatID:   req.ChatID,
	}, nil
}

// persistExchange appends the user question and the assistant answer, with
// its cited source lines, to the chat.
func (s *queryService) persistExchange(ctx context.Context, req QueryRequest, result query.Result) error {
	userMsg := &storage.MessageRecord{
		ChatID:  req.ChatID,
		Role:    "user",
		Content: strings.TrimSpace(req.Question),
	}
	if err := s.chats.AppendMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("failed to store user message: %w", err)
	}

	assistantMsg := &storage.MessageRecord{
		ChatID:  req.ChatID,
		Role:    "assistant",
		Content: result.Answer,
		Sources: formatSourceLines(result.Sources),
	}
	if err := s.chats.AppendMessage(ctx, assistantMsg); err != nil {
		return fmt.Errorf("failed to store assistant message: %w", err)
	}
	return nil
}

// formatSourceLines renders cited sources as display lines, one per source.
func formatSourceLines(sources []query.Source) []string {
	if len(sources) == 0 {
		return nil
	}
	lines := make([]string, len(sources))
	for i, src := range sources {
		line := fmt.Sprintf("%s (%s)", src.Name, src.Type)
		if src.Locator != "" {
			line += " — " + src.Locator
		}
		lines[i] = line
	}
	return lines
}
