// Package main is the entrypoint for the Vestibule API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vestibule/vestibule/internal/auth"
	"github.com/vestibule/vestibule/internal/cache"
	"github.com/vestibule/vestibule/internal/config"
	"github.com/vestibule/vestibule/internal/events"
	"github.com/vestibule/vestibule/internal/handler"
	"github.com/vestibule/vestibule/internal/metrics"
	"github.com/vestibule/vestibule/internal/middleware"
	"github.com/vestibule/vestibule/internal/repository"
	"github.com/vestibule/vestibule/internal/server"
	"github.com/vestibule/vestibule/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Optional user cache. Readiness checks Redis only when it is configured.
	var users repository.UserStore = store
	var cacheCheck handler.HealthChecker
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cfg.UserCacheTTL)
		if err != nil {
			_ = closeStore(ctx)
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return fmt.Errorf("connect to redis: %s", sanitizeError(err, cfg.RedisURL))
		}
		users = cache.NewCachedStore(store, cacheClient, logger)
		cacheCheck = cacheClient
		logger.Info("connected to Redis", "user_cache_ttl", cfg.UserCacheTTL)
	}

	hasher, err := auth.NewArgon2Hasher(auth.Argon2Params{
		Time:    cfg.Argon2Iterations,
		Memory:  cfg.Argon2MemoryKiB,
		Threads: cfg.Argon2Parallelism,
	})
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    []byte(cfg.JWTSecret),
		Algorithm: cfg.JWTAlgorithm,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		TTL:       cfg.TokenTTL(),
	})
	if err != nil {
		return fmt.Errorf("init token manager: %w", err)
	}

	recorder := metrics.NewInMemory()

	var serviceOpts []service.Option
	var publisher *events.Publisher
	if cfg.AuthEventsEnabled && cacheClient != nil {
		publisher = events.NewPublisher(cacheClient.Client(), logger, recorder)
		serviceOpts = append(serviceOpts, service.WithEventSink(publisher))
		logger.Info("publishing auth events", "stream", events.StreamKey)
	}
	authService := service.NewAuthService(users, hasher, tokens, recorder, logger, serviceOpts...)

	r := setupRouter(routerDeps{
		authService:   authService,
		healthHandler: handler.NewHealthHandler(store, cacheCheck),
		metrics:       recorder,
		cfg:           cfg,
		logger:        logger,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)
	srv.OnShutdown(cfg.DatabaseDriver, closeStore)
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}
	if publisher != nil {
		// Registered last so it drains before Redis closes.
		srv.OnShutdown("auth-events", publisher.Wait)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"driver", cfg.DatabaseDriver,
		"jwt_algorithm", cfg.JWTAlgorithm,
		"token_ttl", cfg.TokenTTL(),
	)

	return srv.Run(ctx)
}

// openStore builds the credential store selected by DATABASE_DRIVER.
// The returned func releases it on shutdown.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.UserStore, server.ShutdownFunc, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		dsn := cfg.DatabaseDSN()
		if cfg.AutoMigrate {
			if err := migratePostgres(ctx, dsn, logger); err != nil {
				return nil, nil, fmt.Errorf("migrate postgres: %s", sanitizeError(err, dsn))
			}
		}

		repo, err := repository.New(ctx, dsn)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, dsn)),
				slog.String("database_url", redactURL(dsn)),
			)
			return nil, nil, fmt.Errorf("connect to postgres: %s", sanitizeError(err, dsn))
		}
		logger.Info("connected to database", "database_url", redactURL(dsn))
		return repo, func(context.Context) error { repo.Close(); return nil }, nil

	case config.DriverSQLite:
		repo, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("opened sqlite database", "path", cfg.SQLitePath)
		return repo, func(context.Context) error { return repo.Close() }, nil

	case config.DriverMemory:
		logger.Warn("using in-memory credential store; users are lost on restart")
		return repository.NewMemory(), func(context.Context) error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.DatabaseDriver)
	}
}

func migratePostgres(ctx context.Context, dsn string, logger *slog.Logger) error {
	migrator, err := repository.NewPostgresMigrator(dsn)
	if err != nil {
		return err
	}
	defer migrator.Close()

	version, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", version)
	return nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "vestibule")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	authService   *service.AuthService
	healthHandler *handler.HealthHandler
	metrics       metrics.Snapshotter
	cfg           *config.Config
	logger        *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	cfg, logger := deps.cfg, deps.logger

	h := handler.New()
	authHandler := handler.NewAuthHandler(deps.authService, logger, cfg.IsDevelopment())
	metricsHandler := handler.NewMetricsHandler(deps.metrics)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := chi.NewRouter()

	// Global middleware. CORS sits outside routing so OPTIONS on any
	// path is answered before chi's 404/405 handling.
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, "/healthz", "/readyz", "/metrics"))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Operational endpoints
	r.Get("/healthz", deps.healthHandler.Healthz)
	r.Get("/readyz", deps.healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.With(middleware.RequireToken(deps.authService, logger)).Get("/profile", authHandler.Profile)
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
