// Package app wires configuration, logging, Redis, the user store and the
// engine into a runnable HTTP service.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/internal/httpapi"
	"github.com/MrEthical07/shelfauth/internal/slogx"
	"github.com/MrEthical07/shelfauth/internal/store/postgres"
	"github.com/MrEthical07/shelfauth/internal/store/sqlite"
	"github.com/MrEthical07/shelfauth/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at link time.
var BuildVersion = "v0.1.0"

type userStore interface {
	shelfauth.UserProvider
	Close() error
}

type Application struct {
	cfg    Config
	logger *slog.Logger

	mini   *miniredis.Miniredis
	redis  redis.UniversalClient
	users  userStore
	engine *shelfauth.Engine

	server *http.Server
}

// New builds every dependency. On error anything already opened is closed.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "shelfauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *Application) init(ctx context.Context) error {
	engineCfg, err := app.engineConfig()
	if err != nil {
		return err
	}
	if err := app.initRedis(ctx); err != nil {
		return err
	}
	if err := app.initUsers(ctx); err != nil {
		return err
	}

	builder := shelfauth.New().
		WithConfig(engineCfg).
		WithRedis(app.redis).
		WithUserProvider(app.users).
		WithLogger(app.logger)
	if app.cfg.AuditEnabled {
		builder = builder.WithAuditSink(shelfauth.NewSlogSink(app.logger.With("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	app.engine = engine

	app.server = &http.Server{
		Addr: app.cfg.Addr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Engine:  engine,
			Logger:  app.logger,
			Metrics: prometheus.NewExporter(engine).Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (app *Application) engineConfig() (shelfauth.Config, error) {
	cfg := shelfauth.DefaultConfig()
	cfg.JWT.ValidityWindow = app.cfg.TokenValidity
	cfg.JWT.RenewalThreshold = app.cfg.RenewalThreshold
	cfg.JWT.Issuer = app.cfg.JWTIssuer
	cfg.Cache.TTL = app.cfg.CacheTTL
	cfg.Account.AutoLogin = app.cfg.AutoLogin
	cfg.Audit.Enabled = app.cfg.AuditEnabled

	policy, err := shelfauth.ParseStorePolicy(app.cfg.StorePolicy)
	if err != nil {
		return shelfauth.Config{}, err
	}
	cfg.Store.Policy = policy

	switch {
	case app.cfg.JWTSecret != "":
		cfg.JWT.PrivateKey = []byte(app.cfg.JWTSecret)
	case app.cfg.Env == "dev":
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return shelfauth.Config{}, err
		}
		cfg.JWT.PrivateKey = secret
		app.logger.Warn("JWT_SECRET not set, using an ephemeral signing secret")
	default:
		return shelfauth.Config{}, errors.New("JWT_SECRET is required outside dev")
	}

	return cfg, cfg.Validate()
}

func (app *Application) initRedis(ctx context.Context) error {
	addr := app.cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start in-process redis: %w", err)
		}
		app.mini = mr
		addr = mr.Addr()
		app.logger.Warn("REDIS_ADDR not set, using in-process miniredis", "addr", addr)
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (app *Application) initUsers(ctx context.Context) error {
	switch app.cfg.DatabaseDriver {
	case "sqlite":
		s, err := sqlite.NewStore(app.cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		app.users = s
	case "postgres":
		s, err := postgres.NewStore(ctx, app.cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		app.users = s
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", app.cfg.DatabaseDriver)
	}
	return nil
}

// Handler exposes the route table.
func (app *Application) Handler() http.Handler {
	return app.server.Handler
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (app *Application) Run() error {
	app.logger.Info("shelfauth starting", "addr", app.cfg.Addr, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig.String())
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, then releases the engine and stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down shelfauth")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	var err error
	if app.server != nil {
		if err = app.server.Shutdown(ctx); err != nil {
			app.logger.Error("graceful server shutdown failed", "error", err)
			_ = app.server.Close()
		}
	}

	app.close()
	app.logger.Info("shelfauth stopped")
	return err
}

func (app *Application) close() {
	if app.engine != nil {
		app.engine.Close()
	}
	if app.users != nil {
		if err := app.users.Close(); err != nil {
			app.logger.Error("close user store", "error", err)
		}
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.mini != nil {
		app.mini.Close()
	}
}
