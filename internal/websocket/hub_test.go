package websocket_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aithernet/airelay/internal/registry"
	"github.com/aithernet/airelay/internal/websocket"
	"github.com/aithernet/airelay/pkg/logger"
)

type fakeConn struct {
	id     string
	alive  bool
	accept bool
	got    []interface{}
}

func (f *fakeConn) ID() string  { return f.id }
func (f *fakeConn) Alive() bool { return f.alive }
func (f *fakeConn) Send(v interface{}) bool {
	if !f.accept {
		return false
	}
	f.got = append(f.got, v)
	return true
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, alive: true, accept: true}
}

func setupHub() (*websocket.Hub, *registry.Registry) {
	reg := registry.New()
	return websocket.NewHub(reg, nil, logger.NewLogger("error")), reg
}

func TestBroadcastReachesEveryRoomMember(t *testing.T) {
	hub, _ := setupHub()

	conns := []*fakeConn{newFakeConn("a"), newFakeConn("b"), newFakeConn("c")}
	for _, c := range conns {
		hub.Join("roomA", c)
	}
	outsider := newFakeConn("x")
	hub.Join("roomB", outsider)

	hub.Broadcast("roomA", "payload")

	for _, c := range conns {
		assert.Equal(t, []interface{}{"payload"}, c.got, "conn %s", c.id)
	}
	assert.Empty(t, outsider.got)
}

func TestBroadcastSkipsClosedConnections(t *testing.T) {
	hub, _ := setupHub()

	open := newFakeConn("open")
	closed := newFakeConn("closed")
	hub.Join("roomA", open)
	hub.Join("roomA", closed)

	closed.alive = false
	hub.Broadcast("roomA", "payload")

	assert.Len(t, open.got, 1)
	assert.Empty(t, closed.got)
}

func TestBroadcastPrunesDeadConnections(t *testing.T) {
	hub, reg := setupHub()

	healthy := newFakeConn("healthy")
	stuck := newFakeConn("stuck")
	stuck.accept = false // alive but refusing writes, e.g. full buffer

	hub.Join("roomA", healthy)
	hub.Join("roomA", stuck)

	hub.Broadcast("roomA", "payload")

	members := reg.MembersOf("roomA")
	require.Len(t, members, 1)
	assert.Equal(t, "healthy", members[0].ID())
	assert.Len(t, healthy.got, 1)
}

func TestBroadcastExceptExcludesSender(t *testing.T) {
	hub, _ := setupHub()

	sender := newFakeConn("sender")
	peer := newFakeConn("peer")
	hub.Join("roomA", sender)
	hub.Join("roomA", peer)

	hub.BroadcastExcept("roomA", "sender", "typing")

	assert.Empty(t, sender.got)
	assert.Equal(t, []interface{}{"typing"}, peer.got)
}

func TestJoinMovesConnectionAcrossRooms(t *testing.T) {
	hub, reg := setupHub()

	conn := newFakeConn("c1")
	count, prev := hub.Join("roomA", conn)
	assert.Equal(t, 1, count)
	assert.Empty(t, prev)

	count, prev = hub.Join("roomB", conn)
	assert.Equal(t, 1, count)
	assert.Equal(t, "roomA", prev)

	assert.Empty(t, reg.MembersOf("roomA"))

	hub.Broadcast("roomA", "for A")
	hub.Broadcast("roomB", "for B")
	assert.Equal(t, []interface{}{"for B"}, conn.got)
}

func TestRemoveStopsDelivery(t *testing.T) {
	hub, _ := setupHub()

	conn := newFakeConn("c1")
	hub.Join("roomA", conn)

	assert.Equal(t, "roomA", hub.Remove(conn))
	hub.Broadcast("roomA", "payload")
	assert.Empty(t, conn.got)
}
