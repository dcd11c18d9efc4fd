// Package app wires the chord server runtime: config, logging, HTTP routes,
// and the realtime gateway.
//
// It is intentionally small and deterministic to keep CI gates strict and behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chord/cmd/identity"
	authapi "chord/cmd/internal/auth/api"
	"chord/cmd/internal/auth/session"
	chatapi "chord/cmd/internal/chat/api"
	"chord/cmd/internal/realtime"
)

// closer is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type closer interface {
	Close(ctx context.Context) error
}

// nopCloser is used for in-memory store mode.
type nopCloser struct{}

func (nopCloser) Close(_ context.Context) error { return nil }

// App is the chord server runtime: it owns HTTP server wiring and realtime
// gateway dependencies.
type App struct {
	cfg Config
	log Logger

	resources closer

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws   *realtime.Gateway
	auth *authapi.Handler
	chat *chatapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	res, dbPool, dbEnabled, stores, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		_ = res.Close(context.Background())
		return nil, err
	}
	sessionSvc := session.NewService(sessCfg, stores.sessions)

	authHandler := authapi.NewHandler(log, authapi.Config{CookieSecure: cfg.CookieSecure}, stores.users, sessionSvc)
	chatHandler := chatapi.NewHandler(log, chatapi.Config{}, stores.messages, sessionSvc)

	hub := realtime.NewHub(log)
	presence := realtime.NewPresence()
	pipeline := realtime.NewPipeline(log, stores.messages, hub)
	ws := realtime.NewGateway(log, hub, presence, pipeline, sessionSvc)

	return &App{
		cfg:       cfg,
		log:       log,
		resources: res,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
		auth:      authHandler,
		chat:      chatHandler,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.auth, a.chat)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.resources.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// storeSet groups the per-domain stores so wiring stays explicit.
type storeSet struct {
	messages realtime.Store
	sessions session.Store
	users    identity.UserStore
}

// newStores decides between Postgres-backed persistence and in-memory dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (closer, *pgxpool.Pool, bool, storeSet, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_stores")
		return nopCloser{}, nil, false, storeSet{
			messages: realtime.NewInMemoryStore(),
			sessions: session.NewInMemoryStore(),
			users:    identity.NewInMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, storeSet{}, err
	}

	if cfg.DBBootstrap {
		if err := EnsureSchema(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, false, storeSet{}, err
		}
	}

	log.Info("db.enabled.postgres_stores")

	// Ownership model:
	// - app owns pool lifecycle
	// - the store Close methods are no-ops
	msgStore, err := realtime.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, storeSet{}, err
	}
	userStore, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, storeSet{}, err
	}

	stores := storeSet{
		messages: msgStore,
		sessions: session.NewPostgresStore(pool),
		users:    userStore,
	}

	return dbResources{pool: pool, msgStore: msgStore}, pool, true, stores, nil
}

type dbResources struct {
	pool     *pgxpool.Pool
	msgStore realtime.Store
}

func (s dbResources) Close(_ context.Context) error {
	if s.msgStore != nil {
		_ = s.msgStore.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
