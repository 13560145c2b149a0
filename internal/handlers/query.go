package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"opal-rag/internal/contextutil"
	"opal-rag/internal/query"
	"opal-rag/internal/service"
)

// allowedTypeTags are the document type tags accepted by the type filter.
var allowedTypeTags = map[string]bool{
	"pdf":   true,
	"docx":  true,
	"doc":   true,
	"image": true,
	"video": true,
	"html":  true,
	"csv":   true,
	"md":    true,
	"txt":   true,
	"rtf":   true,
	"eml":   true,
	"excel": true,
}

// QueryHandler handles HTTP requests for corpus queries.
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// QueryRequest represents the HTTP request payload for queries.
// This mirrors the service.QueryRequest but is defined here for HTTP layer
// separation.
type QueryRequest struct {
	Question        string   `json:"question"`
	File            string   `json:"file,omitempty"`
	Type            string   `json:"type,omitempty"`
	K               int      `json:"k,omitempty"`
	FetchK          int      `json:"fetch_k,omitempty"`
	PerSourceLimit  int      `json:"per_source_limit,omitempty"`
	MaxContextChars int      `json:"max_context_chars,omitempty"`
	ScoreFloor      *float64 `json:"score_floor,omitempty"`
	Model           string   `json:"model,omitempty"`
	ShowSnippets    bool     `json:"show_snippets,omitempty"`
	ChatID          string   `json:"chat_id,omitempty"`
}

// SourceResponse represents a cited source in the HTTP response.
type SourceResponse struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Locator string `json:"locator,omitempty"`
}

// QueryResponse represents the HTTP response payload for queries.
type QueryResponse struct {
	Answer   string           `json:"answer"`
	Sources  []SourceResponse `json:"sources"`
	Snippets []string         `json:"snippets,omitempty"`
	ChatID   string           `json:"chat_id,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for corpus queries.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	typeTag := strings.ToLower(strings.TrimSpace(req.Type))
	if typeTag != "" && !allowedTypeTags[typeTag] {
		logger.WarnContext(ctx, "invalid type tag", "type", req.Type)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid type: %s", req.Type))
		return
	}

	// Zero means "use the configured default". MaxContextChars stays
	// negative-capable; a negative budget disables context truncation.
	if req.K < 0 {
		req.K = 0
	}
	if req.FetchK < 0 {
		req.FetchK = 0
	}
	if req.PerSourceLimit < 0 {
		req.PerSourceLimit = 0
	}

	svcResp, err := h.queryService.ProcessQuery(ctx, service.QueryRequest{
		Question:        req.Question,
		File:            req.File,
		Type:            typeTag,
		K:               req.K,
		FetchK:          req.FetchK,
		PerSourceLimit:  req.PerSourceLimit,
		MaxContextChars: req.MaxContextChars,
		ScoreFloor:      req.ScoreFloor,
		Model:           req.Model,
		ShowSnippets:    req.ShowSnippets,
		ChatID:          req.ChatID,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process query")
		return
	}

	resp := QueryResponse{
		Answer:   svcResp.Answer,
		Sources:  toSourceResponses(svcResp.Sources),
		Snippets: svcResp.Snippets,
		ChatID:   svcResp.ChatID,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
}

// toSourceResponses converts domain sources to their HTTP representation.
func toSourceResponses(sources []query.Source) []SourceResponse {
	out := make([]SourceResponse, len(sources))
	for i, src := range sources {
		out[i] = SourceResponse{
			Name:    src.Name,
			Type:    src.Type,
			Locator: src.Locator,
		}
	}
	return out
}

// handleServiceError maps service errors to appropriate HTTP status codes.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "service error", "error", err)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error()))
		return
	}

	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	if errors.Is(err, service.ErrExternalService) {
		writeError(w, http.StatusBadGateway, "External service error")
		return
	}

	writeError(w, http.StatusInternalServerError, defaultMsg)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
