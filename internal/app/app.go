package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhvlabs/identity/internal/auth"
	"github.com/rhvlabs/identity/internal/cache"
	"github.com/rhvlabs/identity/internal/config"
	"github.com/rhvlabs/identity/internal/event"
	handler "github.com/rhvlabs/identity/internal/handler/http"
	"github.com/rhvlabs/identity/internal/repository"
	"github.com/rhvlabs/identity/internal/repository/cached"
	"github.com/rhvlabs/identity/internal/repository/postgres"
	"github.com/rhvlabs/identity/internal/service"
	"github.com/rhvlabs/identity/migrations"
	"github.com/rhvlabs/identity/pkg/database"
	"github.com/rhvlabs/identity/pkg/health"
	pkgkafka "github.com/rhvlabs/identity/pkg/kafka"
	pkgmiddleware "github.com/rhvlabs/identity/pkg/middleware"
)

// App wires together all dependencies and runs the identity service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	store      cache.Store
	producer   *pkgkafka.Producer
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	// Database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Cache backend. Redis is shared state across replicas; the in-memory
	// store only suits a single instance.
	var store cache.Store
	switch cfg.CacheDriver {
	case "redis":
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = cache.NewRedisStore(client)
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr()))
	default:
		store = cache.NewMemoryStore()
		logger.Info("using in-memory cache")
	}

	// Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	var userRepo repository.UserRepository = postgres.NewUserRepository(pool)
	userRepo = cached.NewUserRepository(userRepo, store, cfg.CacheTTL, logger)
	sessionRepo := postgres.NewSessionTokenRepository(pool)
	codeRepo := postgres.NewOneTimeCodeRepository(pool)
	orgRepo := postgres.NewOrganizationRepository(pool)

	eventProducer := event.NewProducer(producer, logger)
	tokenService := service.NewTokenService(sessionRepo, userRepo, tokenManager, logger)
	authService := service.NewAuthService(userRepo, codeRepo, tokenService, store, eventProducer, service.AuthConfig{
		LoginThreshold: cfg.LoginThreshold,
		LoginWindow:    cfg.LoginWindow,
		VerifyCodeTTL:  cfg.VerifyCodeTTL,
		ResetCodeTTL:   cfg.ResetCodeTTL,
	}, logger)

	cookies := handler.NewCookieManager(handler.CookieConfig{
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		TTL:      cfg.TokenTTL,
	})

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("cache", func(ctx context.Context) error {
		return store.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(
		authService,
		tokenService,
		userRepo,
		orgRepo,
		cookies,
		healthHandler,
		logger,
		handler.RouterConfig{
			CORS: pkgmiddleware.CORSConfig{
				AllowedOrigins: cfg.CORSAllowedOrigins,
				Environment:    cfg.Environment,
			},
			RateRPS:           cfg.RateRPS,
			RateBurst:         cfg.RateBurst,
			PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		store:      store,
		producer:   producer,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Kafka producer
// 3. Cache backend
// 4. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("cache close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
