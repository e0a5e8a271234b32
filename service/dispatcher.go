package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aithernet/airelay/config"
	"github.com/aithernet/airelay/internal/domain"
	"github.com/aithernet/airelay/internal/port"
	"github.com/aithernet/airelay/pkg/logger"
)

// ChatExchange is the result of one successful chat turn.
type ChatExchange struct {
	UserMessage domain.ChatMessage
	AIMessage   domain.ChatMessage
	Assistant   domain.Assistant
	Username    string
}

// ChatDispatcher orchestrates one chat turn: validate, persist the user
// message, build the assistant's context, invoke the completion collaborator,
// persist the reply.
type ChatDispatcher interface {
	HandleChat(ctx context.Context, roomName string, userID int64, content string) (*ChatExchange, error)
}

type chatDispatcher struct {
	store      port.Store
	completer  port.Completer
	maxContent int
	historyLim int
	logger     logger.Logger
}

func NewChatDispatcher(store port.Store, completer port.Completer, cfg config.ChatConfig, logg logger.Logger) ChatDispatcher {
	return &chatDispatcher{
		store:      store,
		completer:  completer,
		maxContent: cfg.MaxContentLength,
		historyLim: cfg.HistoryLimit,
		logger:     logg,
	}
}

// HandleChat runs the turn state machine. The user message insert is the
// durability boundary: once it commits, a completion failure still leaves it
// in history with no fabricated reply.
func (d *chatDispatcher) HandleChat(ctx context.Context, roomName string, userID int64, content string) (*ChatExchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewValidationError("message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > d.maxContent {
		return nil, domain.NewValidationError("message content exceeds %d characters", d.maxContent)
	}

	room, err := d.store.GetRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if len(room.Assistants) == 0 {
		return nil, domain.ErrAssistantNotBound
	}

	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	userMsg, err := d.store.CreateUserMessage(ctx, room.ID, user.ID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	history, err := d.store.RecentMessages(ctx, room.ID, d.historyLim)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	// Rotation is keyed by the store-wide AI reply count, not the bounded
	// window, so truncated history cannot make it drift.
	aiReplies, err := d.store.CountAssistantMessages(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count assistant replies: %w", err)
	}

	assistant, err := SelectAssistant(room.Assistants, aiReplies, content)
	if err != nil {
		return nil, err
	}

	turns := buildTurns(history, userMsg.ID)
	turns = append(turns, domain.Turn{Role: domain.RoleUser, Content: content})

	reply, err := d.completer.Complete(ctx, buildSystemPrompt(assistant, room.Assistants), turns)
	if err != nil {
		d.logger.Errorf("completion failed for room %s: %v", roomName, err)
		return nil, err
	}

	aiMsg, err := d.store.CreateAssistantMessage(ctx, room.ID, assistant.ID, reply)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	return &ChatExchange{
		UserMessage: *userMsg,
		AIMessage:   *aiMsg,
		Assistant:   assistant,
		Username:    user.Username,
	}, nil
}

// buildTurns maps persisted history onto completion roles, skipping the
// just-inserted user message so it appears exactly once as the final turn.
func buildTurns(history []domain.ChatMessage, newMessageID int64) []domain.Turn {
	turns := make([]domain.Turn, 0, len(history)+1)
	for _, msg := range history {
		if msg.ID == newMessageID {
			continue
		}
		role := domain.RoleUser
		if msg.Sender == domain.SenderAI {
			role = domain.RoleAssistant
		}
		turns = append(turns, domain.Turn{Role: role, Content: msg.Content})
	}
	return turns
}

func buildSystemPrompt(responding domain.Assistant, bound []domain.Assistant) string {
	var b strings.Builder

	if len(bound) > 1 {
		fmt.Fprintf(&b, "You are %q in a room shared with these assistants:\n", responding.Name)
		for _, a := range bound {
			fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
		}
		b.WriteString("If a question belongs to another assistant's domain, suggest asking them by name.\n\n")
	}

	fmt.Fprintf(&b,
		`You are a helpful assistant with the following description: %q. `+
			`You are only allowed to answer questions based on your description. `+
			`If a question is outside of your knowledge domain, respond with `+
			`"Sorry, I can only answer questions related to [your description]".`,
		responding.Description)

	return b.String()
}
