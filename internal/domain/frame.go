package domain

import "time"

type FrameType string

const (
	FrameTypeJoin       FrameType = "join"
	FrameTypeTyping     FrameType = "typing"
	FrameTypeChat       FrameType = "chat"
	FrameTypeJoined     FrameType = "joined"
	FrameTypeUserJoined FrameType = "user-joined"
	FrameTypeError      FrameType = "error"
)

// ClientFrame is any message a client sends over the socket. The relevant
// fields depend on Type; unknown types are rejected with an error frame.
type ClientFrame struct {
	Type     FrameType `json:"type"`
	RoomName string    `json:"roomName,omitempty"`
	UserID   int64     `json:"userId,omitempty"`
	IsTyping bool      `json:"isTyping,omitempty"`
	Content  string    `json:"content,omitempty"`
}

// JoinedFrame is unicast to the joining connection.
type JoinedFrame struct {
	Type        FrameType `json:"type"`
	RoomName    string    `json:"roomName"`
	MemberCount int       `json:"memberCount"`
}

// UserJoinedFrame is broadcast to the room when a user joins.
type UserJoinedFrame struct {
	Type        FrameType `json:"type"`
	Username    string    `json:"username"`
	UserID      int64     `json:"userId"`
	MemberCount int       `json:"memberCount"`
}

// TypingFrame is broadcast to room peers, never echoed to the sender.
type TypingFrame struct {
	Type     FrameType `json:"type"`
	Username string    `json:"username"`
	UserID   int64     `json:"userId"`
	IsTyping bool      `json:"isTyping"`
}

// MessagePayload is one half of a chat exchange as seen on the wire.
type MessagePayload struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Username  string    `json:"username,omitempty"`
	UserID    int64     `json:"userId,omitempty"`
	AIName    string    `json:"aiName,omitempty"`
	AIIcon    string    `json:"aiIcon,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatFrame carries a completed chat turn to every room member.
type ChatFrame struct {
	Type        FrameType      `json:"type"`
	UserMessage MessagePayload `json:"userMessage"`
	AIMessage   MessagePayload `json:"aiMessage"`
}

// ErrorFrame is unicast to the connection whose request failed.
type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
}

func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameTypeError, Message: message}
}
