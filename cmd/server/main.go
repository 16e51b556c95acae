package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notevault-server/internal/config"
	"notevault-server/internal/handler"
	"notevault-server/internal/metrics"
	"notevault-server/internal/middleware"
	"notevault-server/internal/ratelimit"
	"notevault-server/internal/repository"
	"notevault-server/internal/service"
	"notevault-server/internal/session"
	"notevault-server/internal/websocket"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	sugar := logger.Sugar()
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Fatalw("Server failed", "error", err)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	health := map[string]handler.HealthCheck{}

	var (
		noteRepo repository.NoteRepository
		userRepo repository.UserRepository
	)
	switch cfg.Database.Driver {
	case "couch":
		client, err := repository.OpenCouch(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		noteRepo = repository.NewNoteRepository(client, cfg.Database.Name)
		userRepo = repository.NewUserRepository(client, cfg.Database.Name)
		health["couchdb"] = func(ctx context.Context) error {
			ok, err := client.Ping(ctx)
			if err == nil && !ok {
				err = errors.New("couchdb not ready")
			}
			return err
		}
		logger.Infow("Connected to CouchDB", "host", cfg.Database.Host, "port", cfg.Database.Port, "db", cfg.Database.Name)
	default:
		store := repository.NewMemoryStore()
		noteRepo = store.Notes()
		userRepo = store.Users()
		logger.Warnw("Using in-memory storage, data will not survive a restart")
	}

	var rdb *redis.Client
	if cfg.Session.Store == "redis" || (cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis") {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		health["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	var sessions session.Store
	if cfg.Session.Store == "redis" {
		sessions = session.NewRedisStore(rdb)
	} else {
		mem := session.NewMemoryStore()
		go mem.Sweep(ctx, sweepInterval)
		sessions = mem
	}

	var (
		policy  *ratelimit.Policy
		limiter ratelimit.Limiter
		proxies *middleware.TrustedProxies
	)
	if cfg.RateLimit.Enabled {
		var err error
		policy, err = ratelimit.LoadPolicy(cfg.RateLimit.PolicyFile)
		if err != nil {
			return err
		}
		proxies, err = middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			return err
		}
		if cfg.RateLimit.Backend == "redis" {
			limiter = ratelimit.NewRedisLimiter(rdb)
		} else {
			mem := ratelimit.NewMemoryLimiter()
			go mem.Sweep(ctx, sweepInterval)
			limiter = mem
		}
	}

	m := metrics.New()

	hub := websocket.NewManager(websocket.Options{
		MaxConnPerUser: cfg.WebSocket.MaxConnPerUser,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
	}, logger, m)
	go hub.Run(ctx)

	noteService := service.NewNoteService(noteRepo, hub, logger, cfg.Notes.UpdateRetries)
	userService := service.NewUserService(userRepo, noteService, logger)
	authService := service.NewAuthService(userService, sessions, cfg.JWT.Secret, cfg.JWT.Expiration, logger)

	router, err := handler.NewRouter(handler.Dependencies{
		Notes:          noteService,
		Users:          userService,
		Auth:           authService,
		Hub:            hub,
		ReadBuffer:     cfg.WebSocket.ReadBufferSize,
		WriteBuffer:    cfg.WebSocket.WriteBufferSize,
		Policy:         policy,
		Limiter:        limiter,
		TrustedProxies: proxies,
		Metrics:        m,
		APIVersion:     cfg.Server.APIVersion,
		Cookie: handler.CookieOptions{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		},
		Health: health,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("Starting notevault server",
			"addr", srv.Addr,
			"env", cfg.Server.Env,
			"api_version", cfg.Server.APIVersion,
			"db_driver", cfg.Database.Driver,
			"session_store", cfg.Session.Store,
			"rate_limit", cfg.RateLimit.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infow("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	<-hub.Done()
	logger.Infow("Server stopped gracefully")
	return nil
}
