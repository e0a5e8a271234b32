package port

import (
	"context"

	"github.com/aithernet/airelay/internal/domain"
)

// Store is the durable history/persistence collaborator. Message ordering in
// a room is defined by the store's commit order, not by relay scheduling.
type Store interface {
	GetRoom(ctx context.Context, name string) (*domain.Room, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUserMessage(ctx context.Context, roomID, userID int64, content string) (*domain.ChatMessage, error)
	CreateAssistantMessage(ctx context.Context, roomID, assistantID int64, content string) (*domain.ChatMessage, error)
	RecentMessages(ctx context.Context, roomID int64, limit int) ([]domain.ChatMessage, error)
	CountAssistantMessages(ctx context.Context, roomID int64) (int64, error)
}

// Completer is the external LLM completion call: prompt in, text out, or failure.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, turns []domain.Turn) (string, error)
}
