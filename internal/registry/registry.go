package registry

import "sync"

// Conn is the slice of connection behavior the registry and the broadcast
// engine need. Send must not block; it reports false once the peer is gone
// so dead connections can be pruned lazily.
type Conn interface {
	ID() string
	Alive() bool
	Send(v interface{}) bool
}

// Registry tracks which live connections belong to which room. State is
// process-local and in-memory only; clients re-join after a reconnect.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string][]Conn
	byConn map[string]string // connection ID -> current room
}

func New() *Registry {
	return &Registry{
		rooms:  make(map[string][]Conn),
		byConn: make(map[string]string),
	}
}

// Join adds the connection to a room and returns the new member count along
// with the room the connection previously occupied (empty if none). A
// connection belongs to at most one room, so joining moves it.
func (r *Registry) Join(room string, c Conn) (count int, prev string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byConn[c.ID()]
	if ok {
		if prev == room {
			return len(r.rooms[room]), ""
		}
		r.rooms[prev] = removeConn(r.rooms[prev], c.ID())
		if len(r.rooms[prev]) == 0 {
			delete(r.rooms, prev)
		}
	}

	r.rooms[room] = append(r.rooms[room], c)
	r.byConn[c.ID()] = room
	return len(r.rooms[room]), prev
}

// Leave removes the connection from the room if present; no-op otherwise.
func (r *Registry) Leave(room string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[c.ID()] != room {
		return
	}
	r.removeLocked(room, c.ID())
}

// Remove drops the connection from whichever room holds it, returning that
// room's name (empty if the connection was not registered).
func (r *Registry) Remove(c Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.byConn[c.ID()]
	if !ok {
		return ""
	}
	r.removeLocked(room, c.ID())
	return room
}

func (r *Registry) removeLocked(room, connID string) {
	r.rooms[room] = removeConn(r.rooms[room], connID)
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}
	delete(r.byConn, connID)
}

// MembersOf returns a snapshot of the room's connections, filtering out any
// observed closed at snapshot time.
func (r *Registry) MembersOf(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		if c.Alive() {
			out = append(out, c)
		}
	}
	return out
}

// RoomOf reports the room currently holding the connection.
func (r *Registry) RoomOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.byConn[c.ID()]
	return room, ok
}

func removeConn(conns []Conn, id string) []Conn {
	for i, c := range conns {
		if c.ID() == id {
			return append(conns[:i], conns[i+1:]...)
		}
	}
	return conns
}
