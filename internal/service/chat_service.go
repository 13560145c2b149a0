package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService opal-rag/internal/service ChatService

import (
	"context"
	"errors"
	"strings"

	"opal-rag/internal/contextutil"
	"opal-rag/internal/storage"
)

// ChatService manages chat conversations and their message history.
type ChatService interface {
	// CreateChat creates a new chat. An empty title gets a default.
	CreateChat(ctx context.Context, title string) (*storage.ChatRecord, error)
	// GetChat returns a chat by id.
	GetChat(ctx context.Context, id string) (*storage.ChatRecord, error)
	// ListChats returns chats filtered by archived state and an optional
	// title substring, most recently updated first.
	ListChats(ctx context.Context, titleQuery string, archived bool, limit int) ([]storage.ChatRecord, error)
	// RenameChat updates a chat's title.
	RenameChat(ctx context.Context, id, title string) error
	// SetChatArchived flips a chat's archived flag.
	SetChatArchived(ctx context.Context, id string, archived bool) error
	// DeleteChat removes a chat and its messages.
	DeleteChat(ctx context.Context, id string) error
	// ListMessages returns a chat's messages in creation order.
	ListMessages(ctx context.Context, chatID string) ([]storage.MessageRecord, error)
	// AppendMessage stores a message in a chat.
	AppendMessage(ctx context.Context, chatID, role, content string, sources []string) (*storage.MessageRecord, error)
}

// chatService implements ChatService over a ChatStore.
type chatService struct {
	chats storage.ChatStore
}

// NewChatService creates a new ChatService.
func NewChatService(chats storage.ChatStore) ChatService {
	return &chatService{chats: chats}
}

func (s *chatService) CreateChat(ctx context.Context, title string) (*storage.ChatRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	chat, err := s.chats.Create(ctx, strings.TrimSpace(title))
	if err != nil {
		logger.ErrorContext(ctx, "failed to create chat", "error", err)
		return nil, WrapError(err, "failed to create chat")
	}
	logger.InfoContext(ctx, "chat created", "chat_id", chat.ID)
	return chat, nil
}

func (s *chatService) GetChat(ctx context.Context, id string) (*storage.ChatRecord, error) {
	chat, err := s.chats.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "failed to get chat")
	}
	return chat, nil
}

func (s *chatService) ListChats(ctx context.Context, titleQuery string, archived bool, limit int) ([]storage.ChatRecord, error) {
	chats, err := s.chats.List(ctx, strings.TrimSpace(titleQuery), archived, limit)
	if err != nil {
		return nil, WrapError(err, "failed to list chats")
	}
	return chats, nil
}

func (s *chatService) RenameChat(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "cannot be empty"}
	}
	if err := s.chats.Rename(ctx, id, title); err != nil {
		return mapStoreError(err, "failed to rename chat")
	}
	return nil
}

func (s *chatService) SetChatArchived(ctx context.Context, id string, archived bool) error {
	if err := s.chats.SetArchived(ctx, id, archived); err != nil {
		return mapStoreError(err, "failed to update chat")
	}
	return nil
}

func (s *chatService) DeleteChat(ctx context.Context, id string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := s.chats.Delete(ctx, id); err != nil {
		return mapStoreError(err, "failed to delete chat")
	}
	logger.InfoContext(ctx, "chat deleted", "chat_id", id)
	return nil
}

func (s *chatService) ListMessages(ctx context.Context, chatID string) ([]storage.MessageRecord, error) {
	// Distinguish a missing chat from an empty one.
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, mapStoreError(err, "failed to get chat")
	}
	messages, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, WrapError(err, "failed to list messages")
	}
	return messages, nil
}

func (s *chatService) AppendMessage(ctx context.Context, chatID, role, content string, sources []string) (*storage.MessageRecord, error) {
	if role != "user" && role != "assistant" {
		return nil, &ValidationError{Field: "role", Message: "must be user or assistant"}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Message: "cannot be empty"}
	}
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, mapStoreError(err, "failed to get chat")
	}

	msg := &storage.MessageRecord{
		ChatID:  chatID,
		Role:    role,
		Content: content,
		Sources: sources,
	}
	if err := s.chats.AppendMessage(ctx, msg); err != nil {
		return nil, WrapError(err, "failed to store message")
	}
	return msg, nil
}

// mapStoreError lifts storage-layer sentinel errors into the service error
// vocabulary, wrapping everything else.
func mapStoreError(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return WrapError(err, msg)
}
