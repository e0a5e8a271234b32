package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/aithernet/airelay/internal/domain"
)

// Store persists rooms, users and chat messages in Postgres. It is the
// durability boundary for chat turns: a user message committed here survives
// any later completion failure.
type Store struct {
	db *sql.DB
}

func Connect(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	var room domain.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM rooms WHERE name = $1`, name,
	).Scan(&room.ID, &room.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.description, COALESCE(a.icon, '')
		FROM assistants a
		JOIN room_assistants ra ON ra.assistant_id = a.id
		WHERE ra.room_id = $1
		ORDER BY ra.position ASC
	`, room.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Assistant
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Icon); err != nil {
			return nil, err
		}
		room.Assistants = append(room.Assistants, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &room, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUserMessage(ctx context.Context, roomID, userID int64, content string) (*domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		RoomID:  roomID,
		Sender:  domain.SenderUser,
		Content: content,
		UserID:  &userID,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (room_id, sender, content, user_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, created_at
	`, roomID, domain.SenderUser, content, userID).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user message: %w", err)
	}
	return &msg, nil
}

func (s *Store) CreateAssistantMessage(ctx context.Context, roomID, assistantID int64, content string) (*domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		RoomID:      roomID,
		Sender:      domain.SenderAI,
		Content:     content,
		AssistantID: &assistantID,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (room_id, sender, content, assistant_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, created_at
	`, roomID, domain.SenderAI, content, assistantID).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert assistant message: %w", err)
	}
	return &msg, nil
}

// RecentMessages returns the newest messages in a room, oldest first.
func (s *Store) RecentMessages(ctx context.Context, roomID int64, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender, content, user_id, assistant_id, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.Sender,
			&msg.Content,
			&msg.UserID,
			&msg.AssistantID,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (s *Store) CountAssistantMessages(ctx context.Context, roomID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE room_id = $1 AND sender = $2
	`, roomID, domain.SenderAI).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
