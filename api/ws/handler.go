package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	gws "github.com/gorilla/websocket"

	"github.com/aithernet/airelay/internal/domain"
	"github.com/aithernet/airelay/internal/port"
	"github.com/aithernet/airelay/internal/presence"
	"github.com/aithernet/airelay/internal/redis"
	"github.com/aithernet/airelay/internal/websocket"
	"github.com/aithernet/airelay/pkg/logger"
	"github.com/aithernet/airelay/service"
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for testing; restrict in production.
	},
}

type wsHandler struct {
	hub        *websocket.Hub
	tracker    *presence.Tracker
	dispatcher service.ChatDispatcher
	store      port.Store
	redis      *redis.RedisClient // optional, nil disables the active-user set
	rootCtx    context.Context
	logger     logger.Logger
}

// HandleWebSocket upgrades the HTTP connection and runs its frame loop until
// the peer goes away.
func HandleWebSocket(
	hub *websocket.Hub,
	tracker *presence.Tracker,
	dispatcher service.ChatDispatcher,
	store port.Store,
	redisClient *redis.RedisClient,
	rootCtx context.Context,
	logg logger.Logger,
) http.HandlerFunc {
	h := &wsHandler{
		hub:        hub,
		tracker:    tracker,
		dispatcher: dispatcher,
		store:      store,
		redis:      redisClient,
		rootCtx:    rootCtx,
		logger:     logg,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Errorf("upgrade error: %v", err)
			return
		}

		conn := websocket.NewConnection(raw)
		h.logger.Infof("new connection %s from %s", conn.ID(), raw.RemoteAddr())

		go conn.WritePump()
		conn.ReadPump(
			func(frame []byte) { h.handleFrame(conn, frame) },
			func() { h.handleClose(conn) },
		)
	}
}

func (h *wsHandler) handleFrame(conn *websocket.Connection, raw []byte) {
	var frame domain.ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		conn.Send(domain.NewErrorFrame("invalid message format"))
		return
	}

	switch frame.Type {
	case domain.FrameTypeJoin:
		h.handleJoin(conn, frame)
	case domain.FrameTypeTyping:
		h.handleTyping(conn, frame)
	case domain.FrameTypeChat:
		h.handleChat(conn, frame)
	default:
		conn.Send(domain.NewErrorFrame("unknown message type"))
	}
}

func (h *wsHandler) handleJoin(conn *websocket.Connection, frame domain.ClientFrame) {
	if frame.RoomName == "" {
		conn.Send(domain.NewErrorFrame("roomName is required"))
		return
	}

	count, prev := h.hub.Join(frame.RoomName, conn)
	if prev != "" && conn.UserID != 0 {
		// Joining a new room implies leaving the old one.
		if h.tracker.ClearUser(prev, conn.UserID) {
			h.hub.BroadcastExcept(prev, conn.ID(), domain.TypingFrame{
				Type:     domain.FrameTypeTyping,
				Username: conn.Username,
				UserID:   conn.UserID,
				IsTyping: false,
			})
		}
	}

	if frame.UserID != 0 {
		conn.UserID = frame.UserID
		if user, err := h.store.GetUser(h.rootCtx, frame.UserID); err != nil {
			h.logger.Warnf("join: unknown user %d: %v", frame.UserID, err)
		} else {
			conn.Username = user.Username
			h.markActive(conn.Username)
		}
	}

	conn.Send(domain.JoinedFrame{
		Type:        domain.FrameTypeJoined,
		RoomName:    frame.RoomName,
		MemberCount: count,
	})

	h.hub.Broadcast(frame.RoomName, domain.UserJoinedFrame{
		Type:        domain.FrameTypeUserJoined,
		Username:    conn.Username,
		UserID:      conn.UserID,
		MemberCount: count,
	})

	h.logger.Infof("connection %s joined room %s (%d members)", conn.ID(), frame.RoomName, count)
}

func (h *wsHandler) handleTyping(conn *websocket.Connection, frame domain.ClientFrame) {
	if frame.RoomName == "" || frame.UserID == 0 {
		conn.Send(domain.NewErrorFrame("roomName and userId are required"))
		return
	}

	username := conn.Username
	if username == "" || conn.UserID != frame.UserID {
		if user, err := h.store.GetUser(h.rootCtx, frame.UserID); err == nil {
			username = user.Username
		}
	}

	h.tracker.SetTyping(frame.RoomName, frame.UserID, username, frame.IsTyping)
	h.hub.BroadcastExcept(frame.RoomName, conn.ID(), domain.TypingFrame{
		Type:     domain.FrameTypeTyping,
		Username: username,
		UserID:   frame.UserID,
		IsTyping: frame.IsTyping,
	})
}

func (h *wsHandler) handleChat(conn *websocket.Connection, frame domain.ClientFrame) {
	if frame.RoomName == "" || frame.UserID == 0 {
		conn.Send(domain.NewErrorFrame("roomName and userId are required"))
		return
	}

	// The turn runs against the server's context, not the connection's: a
	// disconnect mid-turn must not abort persistence of the exchange.
	exchange, err := h.dispatcher.HandleChat(h.rootCtx, frame.RoomName, frame.UserID, frame.Content)
	if err != nil {
		conn.Send(domain.NewErrorFrame(errorMessage(err)))
		return
	}

	h.hub.Broadcast(frame.RoomName, domain.ChatFrame{
		Type: domain.FrameTypeChat,
		UserMessage: domain.MessagePayload{
			Content:   exchange.UserMessage.Content,
			Sender:    "user",
			Username:  exchange.Username,
			UserID:    frame.UserID,
			CreatedAt: exchange.UserMessage.CreatedAt,
		},
		AIMessage: domain.MessagePayload{
			Content:   exchange.AIMessage.Content,
			Sender:    "ai",
			AIName:    exchange.Assistant.Name,
			AIIcon:    exchange.Assistant.Icon,
			CreatedAt: exchange.AIMessage.CreatedAt,
		},
	})
}

func (h *wsHandler) handleClose(conn *websocket.Connection) {
	room := h.hub.Remove(conn)
	if room != "" && conn.UserID != 0 && h.tracker.ClearUser(room, conn.UserID) {
		h.hub.BroadcastExcept(room, conn.ID(), domain.TypingFrame{
			Type:     domain.FrameTypeTyping,
			Username: conn.Username,
			UserID:   conn.UserID,
			IsTyping: false,
		})
	}
	if conn.Username != "" {
		h.markInactive(conn.Username)
	}
	h.logger.Infof("connection %s closed (room %q)", conn.ID(), room)
}

func (h *wsHandler) markActive(username string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.AddActiveUser(h.rootCtx, username); err != nil {
		h.logger.Warnf("failed to mark %s active: %v", username, err)
	}
}

func (h *wsHandler) markInactive(username string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.RemoveActiveUser(h.rootCtx, username); err != nil {
		h.logger.Warnf("failed to mark %s inactive: %v", username, err)
	}
}

// errorMessage maps dispatcher errors onto the unicast error frame text.
// Everything is handled here; dispatcher failures never take the relay down.
func errorMessage(err error) string {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return validation.Reason
	}

	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Timeout {
			return "the assistant took too long to respond"
		}
		return "the assistant could not respond, please try again"
	}

	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, domain.ErrAssistantNotBound):
		return "room has no assistant configured"
	default:
		return "internal server error"
	}
}
