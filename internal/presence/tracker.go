package presence

import (
	"context"
	"sync"
	"time"

	"github.com/aithernet/airelay/internal/domain"
)

type entry struct {
	username string
	deadline time.Time
}

// Tracker keeps the short-lived per-room set of currently-typing users. It is
// advisory only and never blocks or reorders chat delivery. A server-side TTL
// tolerates clients whose stop signal gets lost.
type Tracker struct {
	mu    sync.Mutex
	rooms map[string]map[int64]entry
	ttl   time.Duration
	now   func() time.Time
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		rooms: make(map[string]map[int64]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetTyping upserts or removes the typing entry for (room, userID) and
// returns the room's new typing set.
func (t *Tracker) SetTyping(room string, userID int64, username string, isTyping bool) []domain.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		if t.rooms[room] == nil {
			t.rooms[room] = make(map[int64]entry)
		}
		t.rooms[room][userID] = entry{username: username, deadline: t.now().Add(t.ttl)}
	} else {
		t.removeLocked(room, userID)
	}
	return t.typingLocked(room)
}

// ClearUser drops the user's typing entry, reporting whether one existed.
// Called when the user's connection closes or moves to another room.
func (t *Tracker) ClearUser(room string, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rooms[room][userID]; !ok {
		return false
	}
	t.removeLocked(room, userID)
	return true
}

// Typing returns the current typing set for a room.
func (t *Tracker) Typing(room string) []domain.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typingLocked(room)
}

// Run expires stale entries until ctx is done, invoking onExpire for each
// expired entry so peers can be told typing stopped.
func (t *Tracker) Run(ctx context.Context, onExpire func(room string, e domain.TypingEntry)) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, expired := range t.expire() {
				onExpire(expired.room, expired.entry)
			}
		}
	}
}

type expiredEntry struct {
	room  string
	entry domain.TypingEntry
}

func (t *Tracker) expire() []expiredEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var out []expiredEntry
	for room, users := range t.rooms {
		for userID, e := range users {
			if now.After(e.deadline) {
				out = append(out, expiredEntry{
					room:  room,
					entry: domain.TypingEntry{UserID: userID, Username: e.username},
				})
				t.removeLocked(room, userID)
			}
		}
	}
	return out
}

func (t *Tracker) removeLocked(room string, userID int64) {
	delete(t.rooms[room], userID)
	if len(t.rooms[room]) == 0 {
		delete(t.rooms, room)
	}
}

func (t *Tracker) typingLocked(room string) []domain.TypingEntry {
	users := t.rooms[room]
	out := make([]domain.TypingEntry, 0, len(users))
	for userID, e := range users {
		out = append(out, domain.TypingEntry{UserID: userID, Username: e.username})
	}
	return out
}
