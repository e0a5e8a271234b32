package ws_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aithernet/airelay/api/ws"
	"github.com/aithernet/airelay/config"
	"github.com/aithernet/airelay/internal/domain"
	"github.com/aithernet/airelay/internal/presence"
	"github.com/aithernet/airelay/internal/registry"
	"github.com/aithernet/airelay/internal/websocket"
	"github.com/aithernet/airelay/pkg/logger"
	"github.com/aithernet/airelay/service"
)

type fakeStore struct {
	rooms    map[string]*domain.Room
	users    map[int64]*domain.User
	messages []domain.ChatMessage
	nextID   int64
}

func newFakeStore() *fakeStore {
	devGPT := domain.Assistant{ID: 1, Name: "DevGPT", Description: "software development help", Icon: "dev.png"}
	return &fakeStore{
		rooms: map[string]*domain.Room{
			"room-DevGPT": {ID: 1, Name: "room-DevGPT", Assistants: []domain.Assistant{devGPT}},
		},
		users: map[int64]*domain.User{
			7: {ID: 7, Username: "harsh"},
			8: {ID: 8, Username: "mira"},
		},
	}
}

func (s *fakeStore) GetRoom(_ context.Context, name string) (*domain.Room, error) {
	room, ok := s.rooms[name]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *fakeStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeStore) CreateUserMessage(_ context.Context, roomID, userID int64, content string) (*domain.ChatMessage, error) {
	s.nextID++
	msg := domain.ChatMessage{
		ID: s.nextID, RoomID: roomID, Sender: domain.SenderUser,
		Content: content, UserID: &userID, CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *fakeStore) CreateAssistantMessage(_ context.Context, roomID, assistantID int64, content string) (*domain.ChatMessage, error) {
	s.nextID++
	msg := domain.ChatMessage{
		ID: s.nextID, RoomID: roomID, Sender: domain.SenderAI,
		Content: content, AssistantID: &assistantID, CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *fakeStore) RecentMessages(_ context.Context, roomID int64, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	for _, msg := range s.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) CountAssistantMessages(_ context.Context, roomID int64) (int64, error) {
	var count int64
	for _, msg := range s.messages {
		if msg.RoomID == roomID && msg.Sender == domain.SenderAI {
			count++
		}
	}
	return count, nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (c *fakeCompleter) Complete(context.Context, string, []domain.Turn) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

// recvFrame covers every server-to-client frame shape for decoding.
type recvFrame struct {
	Type        string                 `json:"type"`
	RoomName    string                 `json:"roomName"`
	MemberCount int                    `json:"memberCount"`
	Username    string                 `json:"username"`
	UserID      int64                  `json:"userId"`
	IsTyping    bool                   `json:"isTyping"`
	Message     string                 `json:"message"`
	UserMessage *domain.MessagePayload `json:"userMessage"`
	AIMessage   *domain.MessagePayload `json:"aiMessage"`
}

type testClient struct {
	conn *gws.Conn
	t    *testing.T
}

func setupServer(t *testing.T, store *fakeStore, completer *fakeCompleter) *httptest.Server {
	baseLogger := logger.NewLogger("error")
	ctx := logger.NewContext(context.Background(), baseLogger)

	reg := registry.New()
	hub := websocket.NewHub(reg, nil, baseLogger)
	tracker := presence.NewTracker(5 * time.Second)
	cfg := config.ChatConfig{MaxContentLength: 4000, HistoryLimit: 50, TypingTTLSeconds: 5}
	dispatcher := service.NewChatDispatcher(store, completer, cfg, baseLogger)

	server := httptest.NewServer(ws.SetupWebSocketRoutes(ws.WSConfig{
		Hub:        hub,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Store:      store,
		RootCtx:    ctx,
	}))
	t.Cleanup(server.Close)
	return server
}

func connectClient(t *testing.T, server *httptest.Server) *testClient {
	wsURL := "ws" + server.URL[4:] + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, t: t}
}

func (c *testClient) send(frame domain.ClientFrame) {
	require.NoError(c.t, c.conn.WriteJSON(frame))
}

func (c *testClient) receive() recvFrame {
	var frame recvFrame
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(c.t, c.conn.ReadJSON(&frame))
	return frame
}

func (c *testClient) expectSilence() {
	c.conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := c.conn.ReadMessage()
	require.Error(c.t, err, "expected no frame to arrive")
}

func (c *testClient) join(room string, userID int64) {
	c.send(domain.ClientFrame{Type: domain.FrameTypeJoin, RoomName: room, UserID: userID})
}

func TestJoinAnnouncements(t *testing.T) {
	server := setupServer(t, newFakeStore(), &fakeCompleter{reply: "hi"})

	client1 := connectClient(t, server)
	client1.join("room-DevGPT", 7)

	joined := client1.receive()
	assert.Equal(t, "joined", joined.Type)
	assert.Equal(t, "room-DevGPT", joined.RoomName)
	assert.Equal(t, 1, joined.MemberCount)

	announce := client1.receive()
	assert.Equal(t, "user-joined", announce.Type)
	assert.Equal(t, "harsh", announce.Username)
	assert.Equal(t, int64(7), announce.UserID)

	client2 := connectClient(t, server)
	client2.join("room-DevGPT", 8)

	joined2 := client2.receive()
	assert.Equal(t, "joined", joined2.Type)
	assert.Equal(t, 2, joined2.MemberCount)

	announce2 := client1.receive()
	assert.Equal(t, "user-joined", announce2.Type)
	assert.Equal(t, "mira", announce2.Username)
	assert.Equal(t, 2, announce2.MemberCount)
}

func TestTypingExcludesSender(t *testing.T) {
	server := setupServer(t, newFakeStore(), &fakeCompleter{reply: "hi"})

	client1 := connectClient(t, server)
	client1.join("room-DevGPT", 7)
	_ = client1.receive() // joined
	_ = client1.receive() // own user-joined

	client2 := connectClient(t, server)
	client2.join("room-DevGPT", 8)
	_ = client2.receive() // joined
	_ = client2.receive() // own user-joined
	_ = client1.receive() // client2's user-joined

	client1.send(domain.ClientFrame{
		Type: domain.FrameTypeTyping, RoomName: "room-DevGPT", UserID: 7, IsTyping: true,
	})

	typing := client2.receive()
	assert.Equal(t, "typing", typing.Type)
	assert.Equal(t, "harsh", typing.Username)
	assert.True(t, typing.IsTyping)

	client1.expectSilence()
}

func TestChatBroadcastReachesRoom(t *testing.T) {
	store := newFakeStore()
	server := setupServer(t, store, &fakeCompleter{reply: "try a range loop"})

	client1 := connectClient(t, server)
	client1.join("room-DevGPT", 7)
	_ = client1.receive()
	_ = client1.receive()

	client2 := connectClient(t, server)
	client2.join("room-DevGPT", 8)
	_ = client2.receive()
	_ = client2.receive()
	_ = client1.receive()

	client1.send(domain.ClientFrame{
		Type: domain.FrameTypeChat, RoomName: "room-DevGPT", UserID: 7, Content: "fix my loop",
	})

	for _, client := range []*testClient{client1, client2} {
		frame := client.receive()
		require.Equal(t, "chat", frame.Type)
		require.NotNil(t, frame.UserMessage)
		require.NotNil(t, frame.AIMessage)
		assert.Equal(t, "fix my loop", frame.UserMessage.Content)
		assert.Equal(t, "user", frame.UserMessage.Sender)
		assert.Equal(t, "harsh", frame.UserMessage.Username)
		assert.Equal(t, "try a range loop", frame.AIMessage.Content)
		assert.Equal(t, "ai", frame.AIMessage.Sender)
		assert.Equal(t, "DevGPT", frame.AIMessage.AIName)
	}

	require.Len(t, store.messages, 2)
	assert.Equal(t, domain.SenderUser, store.messages[0].Sender)
	assert.Equal(t, domain.SenderAI, store.messages[1].Sender)
}

func TestChatOutsideRoomNotDelivered(t *testing.T) {
	store := newFakeStore()
	store.rooms["other"] = &domain.Room{ID: 2, Name: "other", Assistants: store.rooms["room-DevGPT"].Assistants}
	server := setupServer(t, store, &fakeCompleter{reply: "hello"})

	member := connectClient(t, server)
	member.join("room-DevGPT", 7)
	_ = member.receive()
	_ = member.receive()

	outsider := connectClient(t, server)
	outsider.join("other", 8)
	_ = outsider.receive()
	_ = outsider.receive()

	member.send(domain.ClientFrame{
		Type: domain.FrameTypeChat, RoomName: "room-DevGPT", UserID: 7, Content: "private to room",
	})

	frame := member.receive()
	assert.Equal(t, "chat", frame.Type)
	outsider.expectSilence()
}

func TestCompletionFailureIsUnicast(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{err: &domain.UpstreamError{Timeout: true, Err: errors.New("deadline exceeded")}}
	server := setupServer(t, store, completer)

	client1 := connectClient(t, server)
	client1.join("room-DevGPT", 7)
	_ = client1.receive()
	_ = client1.receive()

	client2 := connectClient(t, server)
	client2.join("room-DevGPT", 8)
	_ = client2.receive()
	_ = client2.receive()
	_ = client1.receive()

	client1.send(domain.ClientFrame{
		Type: domain.FrameTypeChat, RoomName: "room-DevGPT", UserID: 7, Content: "fix my loop",
	})

	errFrame := client1.receive()
	assert.Equal(t, "error", errFrame.Type)
	assert.Contains(t, errFrame.Message, "too long")

	// User message persisted, no fabricated reply, peers see nothing.
	require.Len(t, store.messages, 1)
	assert.Equal(t, domain.SenderUser, store.messages[0].Sender)
	client2.expectSilence()
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	server := setupServer(t, newFakeStore(), &fakeCompleter{reply: "hi"})

	client := connectClient(t, server)
	require.NoError(t, client.conn.WriteMessage(gws.TextMessage, []byte("not json")))

	errFrame := client.receive()
	assert.Equal(t, "error", errFrame.Type)
	assert.Equal(t, "invalid message format", errFrame.Message)

	// Connection survives; a join still works.
	client.join("room-DevGPT", 7)
	joined := client.receive()
	assert.Equal(t, "joined", joined.Type)
}

func TestValidationErrorIsUnicastWithoutPersistence(t *testing.T) {
	store := newFakeStore()
	server := setupServer(t, store, &fakeCompleter{reply: "hi"})

	client := connectClient(t, server)
	client.join("room-DevGPT", 7)
	_ = client.receive()
	_ = client.receive()

	client.send(domain.ClientFrame{
		Type: domain.FrameTypeChat, RoomName: "room-DevGPT", UserID: 7, Content: "   ",
	})

	errFrame := client.receive()
	assert.Equal(t, "error", errFrame.Type)
	assert.Empty(t, store.messages)
}
