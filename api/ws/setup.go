package ws

import (
	"context"
	"net/http"

	"github.com/aithernet/airelay/internal/port"
	"github.com/aithernet/airelay/internal/presence"
	"github.com/aithernet/airelay/internal/redis"
	"github.com/aithernet/airelay/internal/websocket"
	"github.com/aithernet/airelay/pkg/logger"
	"github.com/aithernet/airelay/service"
)

type WSConfig struct {
	Hub        *websocket.Hub
	Tracker    *presence.Tracker
	Dispatcher service.ChatDispatcher
	Store      port.Store
	Redis      *redis.RedisClient // optional
	RootCtx    context.Context
}

func SetupWebSocketRoutes(cfg WSConfig) http.Handler {
	mux := http.NewServeMux()
	log := logger.FromContext(cfg.RootCtx).WithModule("websocket")
	mux.HandleFunc("/ws", HandleWebSocket(
		cfg.Hub, cfg.Tracker, cfg.Dispatcher, cfg.Store, cfg.Redis, cfg.RootCtx, log,
	))
	return mux
}
