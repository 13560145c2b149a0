package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_store.go -package=mocks opal-rag/internal/storage ChatStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatStore defines the interface for chat persistence.
type ChatStore interface {
	// Create creates a new chat with the given title and returns it.
	Create(ctx context.Context, title string) (*ChatRecord, error)
	// GetByID returns a chat by id. Returns ErrNotFound when missing.
	GetByID(ctx context.Context, id string) (*ChatRecord, error)
	// List returns chats filtered by archived state and an optional title
	// substring, most recently updated first, capped at limit.
	List(ctx context.Context, titleQuery string, archived bool, limit int) ([]ChatRecord, error)
	// Rename updates a chat's title. Returns ErrNotFound when missing.
	Rename(ctx context.Context, id, title string) error
	// SetArchived flips a chat's archived flag. Returns ErrNotFound when missing.
	SetArchived(ctx context.Context, id string, archived bool) error
	// Delete removes a chat and, via cascade, its messages.
	Delete(ctx context.Context, id string) error
	// AppendMessage stores a message and bumps the chat's updated_at.
	AppendMessage(ctx context.Context, msg *MessageRecord) error
	// ListMessages returns a chat's messages in creation order.
	ListMessages(ctx context.Context, chatID string) ([]MessageRecord, error)
}

// ChatRepo provides chat persistence over SQLite. It implements ChatStore.
type ChatRepo struct {
	db *sql.DB
}

// NewChatRepo creates a new ChatRepo.
func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// Create creates a new chat with the given title and returns it.
func (r *ChatRepo) Create(ctx context.Context, title string) (*ChatRecord, error) {
	if title == "" {
		title = "New chat"
	}
	chat := &ChatRecord{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chats (id, title, archived, created_at, updated_at) VALUES (?, ?, 0, ?, ?)",
		chat.ID, chat.Title, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}
	return chat, nil
}

// GetByID returns a chat by id. Returns ErrNotFound when missing.
func (r *ChatRepo) GetByID(ctx context.Context, id string) (*ChatRecord, error) {
	var chat ChatRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, archived, created_at, updated_at FROM chats WHERE id = ?",
		id,
	).Scan(&chat.ID, &chat.Title, &chat.Archived, &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

// List returns chats filtered by archived state and an optional title
// substring, most recently updated first, capped at limit.
func (r *ChatRepo) List(ctx context.Context, titleQuery string, archived bool, limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	q := "SELECT id, title, archived, created_at, updated_at FROM chats WHERE archived = ?"
	args := []any{archived}
	if titleQuery != "" {
		q += " AND title LIKE ?"
		args = append(args, "%"+titleQuery+"%")
	}
	q += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chats := make([]ChatRecord, 0)
	for rows.Next() {
		var chat ChatRecord
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.Archived, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chats, nil
}

// Rename updates a chat's title. Returns ErrNotFound when missing.
func (r *ChatRepo) Rename(ctx context.Context, id, title string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE chats SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename chat: %w", err)
	}
	return requireRow(res)
}

// SetArchived flips a chat's archived flag. Returns ErrNotFound when missing.
func (r *ChatRepo) SetArchived(ctx context.Context, id string, archived bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE chats SET archived = ?, updated_at = ? WHERE id = ?",
		archived, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	return requireRow(res)
}

// Delete removes a chat and, via cascade, its messages.
func (r *ChatRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return requireRow(res)
}

// AppendMessage stores a message and bumps the chat's updated_at.
func (r *ChatRepo) AppendMessage(ctx context.Context, msg *MessageRecord) error {
	var sources any
	if len(msg.Sources) > 0 {
		encoded, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		sources = string(encoded)
	}

	msg.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO messages (chat_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ChatID, msg.Role, msg.Content, sources, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE chats SET updated_at = ? WHERE id = ?",
		msg.CreatedAt, msg.ChatID,
	); err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return nil
}

// ListMessages returns a chat's messages in creation order.
func (r *ChatRepo) ListMessages(ctx context.Context, chatID string) ([]MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, chat_id, role, content, sources, created_at FROM messages WHERE chat_id = ? ORDER BY id",
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	messages := make([]MessageRecord, 0)
	for rows.Next() {
		var msg MessageRecord
		var sources sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &sources, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return messages, nil
}

// requireRow converts a no-op update/delete into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
