package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opal-rag/internal/contextutil"
	"opal-rag/internal/service"
	"opal-rag/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghhtml "github.com/yuin/goldmark/renderer/html"
)

// ChatsHandler handles HTTP requests for chat management.
type ChatsHandler struct {
	chatService service.ChatService
	markdown    goldmark.Markdown
}

// NewChatsHandler creates a new ChatsHandler.
func NewChatsHandler(chatService service.ChatService) *ChatsHandler {
	return &ChatsHandler{
		chatService: chatService,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Table,
				extension.Strikethrough,
				extension.Linkify,
			),
			goldmark.WithRendererOptions(
				ghhtml.WithHardWraps(),
			),
		),
	}
}

// ChatResponse represents a chat in HTTP responses.
type ChatResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Archived  bool   `json:"archived"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageResponse represents a chat message in HTTP responses. Assistant
// messages carry their markdown rendered as HTML alongside the raw content.
type MessageResponse struct {
	ID          int64    `json:"id"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	ContentHTML string   `json:"content_html,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// CreateChatRequest represents the payload for creating a chat.
type CreateChatRequest struct {
	Title string `json:"title,omitempty"`
}

// UpdateChatRequest represents the payload for renaming or archiving a chat.
// Absent fields are left unchanged.
type UpdateChatRequest struct {
	Title    *string `json:"title,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

// List handles GET /chats.
func (h *ChatsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	archived := false
	if v := r.URL.Query().Get("archived"); v != "" {
		archived = v == "true" || v == "1"
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	chats, err := h.chatService.ListChats(ctx, r.URL.Query().Get("q"), archived, limit)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list chats")
		return
	}

	resp := make([]ChatResponse, len(chats))
	for i, chat := range chats {
		resp[i] = toChatResponse(&chat)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Create handles POST /chats.
func (h *ChatsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateChatRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WarnContext(ctx, "invalid request body", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	chat, err := h.chatService.CreateChat(ctx, req.Title)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create chat")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toChatResponse(chat)); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Get handles GET /chats/{chatID}.
func (h *ChatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	chat, err := h.chatService.GetChat(ctx, chi.URLParam(r, "chatID"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get chat")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toChatResponse(chat)); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Update handles PATCH /chats/{chatID}.
func (h *ChatsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	chatID := chi.URLParam(r, "chatID")

	var req UpdateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == nil && req.Archived == nil {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	if req.Title != nil {
		if err := h.chatService.RenameChat(ctx, chatID, *req.Title); err != nil {
			handleServiceError(w, ctx, err, "Failed to rename chat")
			return
		}
	}
	if req.Archived != nil {
		if err := h.chatService.SetChatArchived(ctx, chatID, *req.Archived); err != nil {
			handleServiceError(w, ctx, err, "Failed to update chat")
			return
		}
	}

	chat, err := h.chatService.GetChat(ctx, chatID)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get chat")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toChatResponse(chat)); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Delete handles DELETE /chats/{chatID}.
func (h *ChatsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.chatService.DeleteChat(ctx, chi.URLParam(r, "chatID")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AppendMessageRequest represents the payload for adding a message.
type AppendMessageRequest struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Sources []string `json:"sources,omitempty"`
}

// AppendMessage handles POST /chats/{chatID}/messages.
func (h *ChatsHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.chatService.AppendMessage(ctx, chi.URLParam(r, "chatID"), req.Role, req.Content, req.Sources)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to store message")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(h.toMessageResponse(msg)); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Messages handles GET /chats/{chatID}/messages.
func (h *ChatsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	messages, err := h.chatService.ListMessages(ctx, chi.URLParam(r, "chatID"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list messages")
		return
	}

	resp := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		resp[i] = h.toMessageResponse(&msg)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// toMessageResponse converts a stored message, rendering assistant markdown
// to HTML. A render failure falls back to raw content only.
func (h *ChatsHandler) toMessageResponse(msg *storage.MessageRecord) MessageResponse {
	resp := MessageResponse{
		ID:        msg.ID,
		Role:      msg.Role,
		Content:   msg.Content,
		Sources:   msg.Sources,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
	}
	if msg.Role == "assistant" {
		var buf bytes.Buffer
		if err := h.markdown.Convert([]byte(msg.Content), &buf); err == nil {
			resp.ContentHTML = strings.TrimSpace(buf.String())
		}
	}
	return resp
}

func toChatResponse(chat *storage.ChatRecord) ChatResponse {
	return ChatResponse{
		ID:        chat.ID,
		Title:     chat.Title,
		Archived:  chat.Archived,
		CreatedAt: chat.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: chat.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
