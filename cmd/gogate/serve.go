package main

import (
	"context"
	"errors"
	"flag"
	"html/template"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/credentials"
	"github.com/MrEthical07/goGate/metrics/export/prometheus"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := configFlag(fs)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := goGate.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, nil)

	rdb, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := goGate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithLogger(logger).
		WithAuditSink(goGate.NewLoggerSink(logger.With().Str("component", "audit").Logger())).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if cfg.Cookie.HashKey == "" {
		logger.Warn().Msg("cookie.hash_key not set; sessions will not survive a restart")
	}
	handler, err := newRouter(engine, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", *addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRedis dials cfg.Addr, or starts an in-process miniredis when
// Embedded is set.
func openRedis(cfg goGate.RedisConfig, logger zerolog.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Addr
	var mr *miniredis.Miniredis
	if cfg.Embedded {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, err
		}
		addr = mr.Addr()
		logger.Warn().Msg("using embedded redis; sessions are lost on exit")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return client, func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

// openStore connects the Postgres credential store. With no database
// configured it falls back to an empty in-memory store.
func openStore(ctx context.Context, cfg goGate.DatabaseConfig, logger zerolog.Logger) (goGate.CredentialStore, func(), error) {
	dsn := cfg.DSN()
	if dsn == "" {
		logger.Warn().Msg("no database configured; credential store is empty")
		return credentials.NewMemoryStore(), func() {}, nil
	}

	db, err := credentials.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.Migrate {
		if err := credentials.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	store, err := credentials.NewPostgresStore(db, cfg.Credentials)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}

func newRouter(engine *goGate.Engine, logger zerolog.Logger) (http.Handler, error) {
	cfg := engine.Config()

	cookies, err := middleware.NewCookieCodec(cfg.Cookie)
	if err != nil {
		return nil, err
	}
	login, err := middleware.NewLoginHandler(engine, cookies, nil)
	if err != nil {
		return nil, err
	}
	pages, err := template.New("page").Funcs(middleware.ViewFuncs(engine)).Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	logout := middleware.LogoutHandler(engine, cookies)
	guard := func(resource string) func(http.Handler) http.Handler {
		return middleware.Guard(engine, cookies, resource)
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog())

	r.Get("/healthz", healthz(engine))
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", prometheus.Handler(engine))
	}

	r.Get(cfg.Login.Path, login.ServeHTTP)
	post := r.With()
	if n := cfg.Security.LoginRequestsPerMinute; n > 0 {
		post = r.With(httprate.LimitByIP(n, time.Minute))
	}
	post.Post(cfg.Login.Path, login.ServeHTTP)

	r.With(guard(permission.ResourceLogout)).Get(cfg.Login.LogoutPath, logout.ServeHTTP)
	r.With(guard(permission.ResourceLogout)).Post(cfg.Login.LogoutPath, logout.ServeHTTP)
	r.With(guard(permission.ResourceHome)).Get("/", pageHandler(pages, "Home", cfg.Login.LogoutPath))
	r.With(guard(permission.ResourceAdmin)).Get("/admin", pageHandler(pages, "Admin", cfg.Login.LogoutPath))

	return r, nil
}

func healthz(engine *goGate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := engine.Ping(ctx); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
