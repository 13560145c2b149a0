package storage

import "time"

// ChatRecord represents a chat conversation.
type ChatRecord struct {
	ID        string // UUID
	Title     string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRecord represents a single message within a chat. Assistant
// messages carry the sources their answer cited.
type MessageRecord struct {
	ID        int64
	ChatID    string
	Role      string // "user" | "assistant"
	Content   string
	Sources   []string // cited source lines, assistant messages only
	CreatedAt time.Time
}
