package domain

import "time"

type SenderKind string

const (
	SenderUser SenderKind = "USER"
	SenderAI   SenderKind = "AI"
)

// Assistant is an AI persona bound to a room. The relay never mutates
// assistants; they are owned by the external store.
type Assistant struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

type Room struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Assistants []Assistant `json:"assistants"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type ChatMessage struct {
	ID          int64      `json:"id"`
	RoomID      int64      `json:"roomId"`
	Sender      SenderKind `json:"sender"`
	Content     string     `json:"content"`
	UserID      *int64     `json:"userId,omitempty"`
	AssistantID *int64     `json:"assistantId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TypingEntry records one user currently typing in a room.
type TypingEntry struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Turn is one prior exchange handed to the completion collaborator.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
