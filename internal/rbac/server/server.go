package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/expenseflow-go/internal/rbac/policy"
	"github.com/expenseflow-go/internal/rbac/refresh"
	"github.com/expenseflow-go/internal/rbac/source"
	"github.com/expenseflow-go/internal/rbac/store"
	"github.com/expenseflow-go/pkg/config"
	"github.com/expenseflow-go/pkg/database"
	"github.com/expenseflow-go/pkg/events"
	"github.com/expenseflow-go/pkg/logger"
	"github.com/expenseflow-go/pkg/ratelimit"
	"github.com/expenseflow-go/pkg/storage"
	"github.com/expenseflow-go/pkg/telemetry"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *http.Server
	router     *gin.Engine
	telemetry  *telemetry.Telemetry
	redis      *redis.Client
	db         *database.DB
	eventBus   events.EventBus
	store      *store.Store
	refresher  *refresh.Scheduler
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: log,
	}

	tel, err := telemetry.New(cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetry = tel

	kv, err := s.newStorage()
	if err != nil {
		s.closeResources(context.Background())
		return nil, err
	}

	bus, err := s.newEventBus()
	if err != nil {
		s.closeResources(context.Background())
		return nil, err
	}
	s.eventBus = bus

	evaluator, err := policy.NewEvaluator(log)
	if err != nil {
		s.closeResources(context.Background())
		return nil, fmt.Errorf("failed to build policy evaluator: %w", err)
	}

	src := source.NewHTTPSource(source.Config{
		BaseURL: cfg.Source.BaseURL,
		Path:    cfg.Source.Path,
		Timeout: cfg.Source.Timeout,
		Retry:   cfg.Source.Retry.ToRetryConfig(),
		Breaker: cfg.Source.Breaker.ToBreakerConfig("role-source"),
	}, nil, log.Named("source"))

	s.store = store.NewStore(store.Config{
		RoleKey:      cfg.Roles.RoleKey,
		TokenKey:     cfg.Roles.TokenKey,
		FetchTimeout: cfg.Roles.FetchTimeout,
		ReloadRate:   cfg.Roles.ReloadRate,
		ReloadBurst:  cfg.Roles.ReloadBurst,
	}, kv, src, evaluator, log.Named("store"), store.WithTracer(tel.Tracer()))

	if spec := cfg.Roles.RefreshSchedule; spec != "" {
		s.refresher, err = refresh.New(spec, s.store, cfg.Roles.FetchTimeout, log.Named("refresh"))
		if err != nil {
			s.closeResources(context.Background())
			return nil, err
		}
	}

	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = NewRouter(NewHandlers(s.store, bus, log), log, tel, s.newLimiter())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return s, nil
}

func (s *Server) redisClient() (*redis.Client, error) {
	if s.redis != nil {
		return s.redis, nil
	}

	client := redis.NewClient(s.config.Storage.Redis.ToRedisOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s.redis = client
	return client, nil
}

func (s *Server) newStorage() (storage.KeyValue, error) {
	switch driver := s.config.Storage.Driver; driver {
	case "redis":
		client, err := s.redisClient()
		if err != nil {
			return nil, err
		}
		opts := storage.DefaultRedisOptions()
		if ns := s.config.Storage.Redis.Namespace; ns != "" {
			opts.Namespace = ns
		}
		s.logger.Info("Using redis storage", "addr", s.config.Storage.Redis.Addr())
		return storage.NewRedisStore(client, opts), nil

	case "sqlite", "postgres":
		db, err := database.New(s.config.Storage.Database.ToDatabaseConfig(driver))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		kv, err := storage.NewDBStore(db)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare database storage: %w", err)
		}
		s.logger.Info("Using database storage", "driver", driver)
		return kv, nil

	case "memory":
		s.logger.Warn("Using in-memory storage, role will not survive restarts")
		return storage.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func (s *Server) newEventBus() (events.EventBus, error) {
	switch driver := s.config.Events.Driver; driver {
	case "redis":
		client, err := s.redisClient()
		if err != nil {
			return nil, err
		}
		return events.NewRedisEventBus(client, s.config.Events.Prefix, s.logger), nil

	case "kafka":
		bus, err := events.NewKafkaEventBus(s.config.Events.ToKafkaConfig(), s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka event bus: %w", err)
		}
		return bus, nil

	case "local", "":
		return events.NewLocalEventBus(s.logger), nil

	default:
		return nil, fmt.Errorf("unsupported events driver %q", driver)
	}
}

// newLimiter shares the budget through Redis when the agent already talks to
// one, and keeps it in process otherwise.
func (s *Server) newLimiter() ratelimit.RateLimiter {
	rps, burst := s.config.Server.RateLimit, s.config.Server.RateBurst
	if rps <= 0 {
		return nil
	}
	if s.redis != nil {
		return ratelimit.NewRedisRateLimiter(s.redis, s.config.Storage.Redis.Namespace, burst, time.Duration(float64(burst)/rps*float64(time.Second)))
	}
	return ratelimit.NewTokenBucketLimiter(rps, burst)
}

// Store returns the role store served by this instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// Router returns the HTTP handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start loads the role, subscribes to invalidations and serves HTTP until
// Shutdown is called.
func (s *Server) Start() error {
	state := s.store.Load(context.Background())
	s.logger.Info("Role loaded", "role", state.Role.String())

	if err := s.store.Watch(s.eventBus); err != nil {
		return fmt.Errorf("failed to watch role invalidations: %w", err)
	}

	if s.refresher != nil {
		s.refresher.Start()
	}

	s.logger.Info("Starting HTTP server", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown HTTP server", "error", err)
	}

	if s.refresher != nil {
		if err := s.refresher.Stop(ctx); err != nil {
			s.logger.Error("Failed to stop role refresh", "error", err)
		}
	}

	if err := s.store.Close(ctx); err != nil {
		s.logger.Error("Failed to close role store", "error", err)
	}

	s.closeResources(ctx)
	return nil
}

func (s *Server) closeResources(ctx context.Context) {
	if s.eventBus != nil {
		if err := s.eventBus.Close(); err != nil {
			s.logger.Error("Failed to close event bus", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", "error", err)
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Close(ctx); err != nil {
			s.logger.Error("Failed to close telemetry", "error", err)
		}
	}
}
