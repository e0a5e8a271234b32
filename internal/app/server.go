package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aithernet/airelay/api/ws"
	"github.com/aithernet/airelay/config"
	"github.com/aithernet/airelay/internal/cache"
	"github.com/aithernet/airelay/internal/completion"
	"github.com/aithernet/airelay/internal/domain"
	"github.com/aithernet/airelay/internal/nats"
	"github.com/aithernet/airelay/internal/port"
	"github.com/aithernet/airelay/internal/postgres"
	"github.com/aithernet/airelay/internal/presence"
	rediscli "github.com/aithernet/airelay/internal/redis"
	"github.com/aithernet/airelay/internal/registry"
	"github.com/aithernet/airelay/internal/websocket"
	"github.com/aithernet/airelay/pkg/logger"
	"github.com/aithernet/airelay/service"
)

const userCacheTTL = 30 * time.Second

// App holds every component of the relay process.
type App struct {
	cfg         config.Config
	logger      logger.Logger
	natsClient  *nats.NATSClient
	redisClient *rediscli.RedisClient
	db          *sql.DB
	hub         *websocket.Hub
	tracker     *presence.Tracker
	httpServer  *http.Server
	rootCtx     context.Context
	cancel      context.CancelFunc
}

// NewApp initializes and connects all application dependencies.
func NewApp(cfg config.Config) (*App, error) {
	baseLogger := logger.NewLogger(cfg.LogLevel)
	rootCtx := logger.NewContext(context.Background(), baseLogger)
	rootCtx, rootCancel := context.WithCancel(rootCtx)

	log := baseLogger.WithModule("app")
	log.Infof("initializing relay components")

	db, err := postgres.Connect(rootCtx, cfg.DatabaseURL)
	if err != nil {
		rootCancel()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	var store port.Store = postgres.NewStore(db)

	var redisClient *rediscli.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = rediscli.NewRedisClient(rootCtx, cfg.RedisURL)
		if err != nil {
			rootCancel()
			db.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		store = cache.NewCachingStore(store, redisClient, userCacheTTL, baseLogger.WithModule("cache"))
	}

	var natsClient *nats.NATSClient
	if cfg.NATSURL != "" {
		natsClient, err = nats.NewNATSClient(cfg.NATSURL, uuid.NewString())
		if err != nil {
			rootCancel()
			db.Close()
			if redisClient != nil {
				redisClient.Close()
			}
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
	}

	reg := registry.New()
	tracker := presence.NewTracker(cfg.Chat.TypingTTL())

	var bus websocket.RoomBus
	if natsClient != nil {
		bus = natsClient
	}
	hub := websocket.NewHub(reg, bus, baseLogger.WithModule("hub"))

	completer := completion.NewClient(cfg.Completion)
	dispatcher := service.NewChatDispatcher(store, completer, cfg.Chat, baseLogger.WithModule("dispatcher"))

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: ws.SetupWebSocketRoutes(ws.WSConfig{
			Hub:        hub,
			Tracker:    tracker,
			Dispatcher: dispatcher,
			Store:      store,
			Redis:      redisClient,
			RootCtx:    rootCtx,
		}),
	}

	app := &App{
		cfg:         cfg,
		logger:      log,
		natsClient:  natsClient,
		redisClient: redisClient,
		db:          db,
		hub:         hub,
		tracker:     tracker,
		httpServer:  httpServer,
		rootCtx:     rootCtx,
		cancel:      rootCancel,
	}

	log.Infof("relay initialized")
	return app, nil
}

// Start runs the relay and blocks until a shutdown signal arrives.
func (a *App) Start() error {
	log := a.logger.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
	})
	log.Infof("starting relay server")

	g, ctx := errgroup.WithContext(a.rootCtx)

	g.Go(func() error {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Expired typing entries are announced as an explicit stop so peers
		// do not show a stale indicator when a stop signal was dropped.
		a.tracker.Run(ctx, func(room string, e domain.TypingEntry) {
			a.hub.Broadcast(room, domain.TypingFrame{
				Type:     domain.FrameTypeTyping,
				Username: e.Username,
				UserID:   e.UserID,
				IsTyping: false,
			})
		})
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Warnf("received shutdown signal %s", sig)
	case <-ctx.Done():
		log.Warnf("component failure, shutting down")
	}

	stopErr := a.Stop()
	if err := g.Wait(); err != nil {
		return err
	}
	return stopErr
}

// Stop gracefully shuts down the server and closes all connections.
func (a *App) Stop() error {
	a.logger.Infof("initiating graceful shutdown")

	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Errorf("http server shutdown error: %v", err)
	}

	if a.natsClient != nil {
		a.logger.Infof("closing NATS connection")
		a.natsClient.Close()
	}

	if a.redisClient != nil {
		a.logger.Infof("closing Redis connection")
		a.redisClient.Close()
	}

	a.logger.Infof("closing database connection")
	a.db.Close()

	a.logger.Infof("shutdown completed")
	return nil
}
