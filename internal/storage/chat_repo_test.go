package storage

import (
	"context"
	"errors"
	"testing"
)

func newTestRepo(t *testing.T) *ChatRepo {
	t.Helper()
	dbPath := t.TempDir() + "/test.db"

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewChatRepo(db)
}

func TestChatRepo_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	chat, err := repo.Create(ctx, "Board game questions")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if chat.ID == "" {
		t.Fatal("Create() returned chat with empty ID")
	}

	got, err := repo.GetByID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Board game questions" {
		t.Errorf("Title = %q, want %q", got.Title, "Board game questions")
	}
	if got.Archived {
		t.Error("new chat should not be archived")
	}
}

func TestChatRepo_CreateDefaultTitle(t *testing.T) {
	repo := newTestRepo(t)

	chat, err := repo.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if chat.Title != "New chat" {
		t.Errorf("Title = %q, want default title", chat.Title)
	}
}

func TestChatRepo_GetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestChatRepo_List(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, "Monopoly rules")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Create(ctx, "Catan setup"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.SetArchived(ctx, first.ID, true); err != nil {
		t.Fatalf("SetArchived() error = %v", err)
	}

	active, err := repo.List(ctx, "", false, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(active) != 1 || active[0].Title != "Catan setup" {
		t.Errorf("List(active) = %v, want only the Catan chat", active)
	}

	archived, err := repo.List(ctx, "", true, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(archived) != 1 || archived[0].ID != first.ID {
		t.Errorf("List(archived) = %v, want only the archived chat", archived)
	}

	matched, err := repo.List(ctx, "catan", false, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(matched) != 1 {
		t.Errorf("List(title match) returned %d chats, want 1", len(matched))
	}
}

func TestChatRepo_Rename(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	chat, err := repo.Create(ctx, "old")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Rename(ctx, chat.ID, "new"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	got, err := repo.GetByID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "new" {
		t.Errorf("Title = %q, want %q", got.Title, "new")
	}

	if err := repo.Rename(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename(missing) error = %v, want ErrNotFound", err)
	}
}

func TestChatRepo_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	chat, err := repo.Create(ctx, "temp")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.AppendMessage(ctx, &MessageRecord{ChatID: chat.ID, Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	if err := repo.Delete(ctx, chat.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, chat.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	msgs, err := repo.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages should cascade on delete, got %d", len(msgs))
	}

	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestChatRepo_Messages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	chat, err := repo.Create(ctx, "chat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	user := &MessageRecord{ChatID: chat.ID, Role: "user", Content: "How do auctions work?"}
	if err := repo.AppendMessage(ctx, user); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	assistant := &MessageRecord{
		ChatID:  chat.ID,
		Role:    "assistant",
		Content: "Auctions start when a purchase is declined.",
		Sources: []string{"monopoly.pdf (pdf) — page=7"},
	}
	if err := repo.AppendMessage(ctx, assistant); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	msgs, err := repo.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ListMessages() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("messages out of order: %v", msgs)
	}
	if len(msgs[0].Sources) != 0 {
		t.Errorf("user message should have no sources, got %v", msgs[0].Sources)
	}
	if len(msgs[1].Sources) != 1 || msgs[1].Sources[0] != "monopoly.pdf (pdf) — page=7" {
		t.Errorf("assistant sources = %v, want the cited line round-tripped", msgs[1].Sources)
	}
}
