package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gsmtrack/internal/cache"
	"gsmtrack/internal/config"
	"gsmtrack/internal/db"
	httpserver "gsmtrack/internal/http"
	"gsmtrack/internal/http/handlers"
	"gsmtrack/internal/http/middleware"
	"gsmtrack/internal/modem"
	"gsmtrack/internal/redis"
	"gsmtrack/internal/service"
	"gsmtrack/internal/store"
	"gsmtrack/internal/ws"
)

const latestCacheTTL = 24 * time.Hour

// App wires the tracking service dependencies.
type App struct {
	server   *httpserver.Server
	hub      *ws.Hub
	session  *modem.Session
	listener *modem.Listener
	tracker  *service.Tracker
	db       *sql.DB
	redis    *goredis.Client
	logger   *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	st := store.New(pool, logger)
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{db: pool, logger: logger}

	var (
		latest    *cache.Latest
		positions handlers.PositionCache
	)
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		latest = cache.NewLatest(client, latestCacheTTL)
		positions = latest
	}

	a.hub = ws.NewHub(logger)

	if cfg.Serial.Device != "" {
		port, err := modem.Open(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.session = modem.NewSession(port, logger)
		if err := a.session.Configure(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.listener = modem.NewListener(a.session, cfg.Serial.PollInterval, logger)
		var latestCache service.LatestCache
		if latest != nil {
			latestCache = latest
		}
		a.tracker = service.NewTracker(st, latestCache, a.hub, logger)
	} else {
		logger.Info("no serial device configured, running query-only")
	}

	var auth func(http.Handler) http.Handler
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.AuthMiddleware(cfg.Auth.JWTSecret)
	}

	routes := httpserver.Routes{
		Origins: handlers.NewOriginsHandler(st, logger),
		Dates:   handlers.NewDatesHandler(st, logger),
		Route:   handlers.NewRouteHandler(st, logger),
		Latest:  handlers.NewLatestHandler(st, positions, logger),
		Export:  handlers.NewExportHandler(st, logger),
		Live:    a.hub.HandleLive,
		Health:  handlers.NewHealthHandler(),
	}
	router := httpserver.NewRouter(routes, auth)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return a, nil
}

// Run starts the listener, the ingest pipeline, and the HTTP server, and
// blocks until the context ends or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.listener != nil {
		go func() {
			err := a.listener.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("sms listener stopped", zap.Error(err))
			}
		}()
		go a.tracker.Run(ctx, a.listener.Messages())
	}
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Warn("failed to close modem session", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
