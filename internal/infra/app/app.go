package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/infra/config"
	"github.com/busline/backoffice-iam/internal/infra/database"
	kafkainfra "github.com/busline/backoffice-iam/internal/infra/kafka"
	"github.com/busline/backoffice-iam/internal/infra/logger"
	redisinfra "github.com/busline/backoffice-iam/internal/infra/redis"
	"github.com/busline/backoffice-iam/internal/infra/security"
	"github.com/busline/backoffice-iam/internal/infra/telemetry"
	postgresrepo "github.com/busline/backoffice-iam/internal/repository/postgres"
	redisrepo "github.com/busline/backoffice-iam/internal/repository/redis"
	"github.com/busline/backoffice-iam/internal/transport/http/handlers"
	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
	"github.com/busline/backoffice-iam/internal/transport/http/routes"
	"github.com/busline/backoffice-iam/internal/usecase"
)

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	store      *postgresrepo.Store
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	dispatcher *usecase.AuditDispatcher
}

func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.store = postgresrepo.NewStore(pool, log)
	repos, err := a.store.Repositories()
	if err != nil {
		return nil, fmt.Errorf("init repositories: %w", err)
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	denylist := redisrepo.NewDenylistRepository(a.redis.Client(), cfg.Redis.KeyPrefix)
	notBefore := redisrepo.NewNotBeforeRepository(a.redis.Client(), cfg.Redis.KeyPrefix)
	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), cfg.Redis.KeyPrefix)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	signer, err := security.NewHMACSigner([]byte(cfg.Session.SigningSecret), cfg.Session.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	metrics, err := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	catalog := domain.DefaultCatalog()
	roleService := usecase.NewRoleService(catalog, repos.Roles, eventPublisher, log)
	adminOverrides := usecase.NewOverrideService(catalog, repos.AdminOverrides, eventPublisher, log)
	vendorOverrides := usecase.NewOverrideService(catalog, repos.VendorOverrides, eventPublisher, log)
	resolver := usecase.NewResolver(roleService, map[domain.OverrideNamespace]usecase.OverrideLister{
		domain.NamespaceAdmin:      adminOverrides,
		domain.NamespaceVendorUser: vendorOverrides,
	}, log, usecase.WithDecisionRecorder(metrics))

	sessionOpts := []usecase.SessionManagerOption{
		usecase.WithSessionRegistry(repos.Sessions),
		usecase.WithSessionEvents(eventPublisher),
	}
	if cfg.Session.RefreshRole {
		sessionOpts = append(sessionOpts, usecase.WithRoleRefresh(repos.Principals))
	}
	sessionManager := usecase.NewSessionManager(signer, denylist, notBefore, usecase.SessionPolicy{
		AccessTTL:          cfg.Session.AccessTTL,
		RefreshGrace:       cfg.Session.RefreshGrace,
		MaxSessionLifetime: cfg.Session.MaxLifetime,
		RotationRaceWindow: cfg.Session.RotationRaceWindow,
	}, log, sessionOpts...)

	authService := usecase.NewAuthService(repos.Principals, hasher, sessionManager, log)
	auditService := usecase.NewAuditService(repos.Audit, eventPublisher, log)
	a.dispatcher = usecase.NewAuditDispatcher(auditService, usecase.DispatcherConfig{
		QueueSize:    cfg.Audit.QueueSize,
		Workers:      cfg.Audit.Workers,
		WriteTimeout: cfg.Audit.WriteTimeout,
	}, metrics, log)

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Catalog:     catalog,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		HTTPMetrics: httpMetrics,
		Services: routes.ServiceSet{
			Auth:            authService,
			Sessions:        sessionManager,
			Resolver:        resolver,
			Roles:           roleService,
			AdminOverrides:  adminOverrides,
			VendorOverrides: vendorOverrides,
			Audit:           auditService,
			AuditQueue:      a.dispatcher,
		},
		Checks: map[string]handlers.HealthChecker{
			"postgres": handlers.HealthCheckFunc(a.store.Ping),
			"redis":    a.redis,
		},
	})

	return a, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting back-office IAM API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	}

	timeout := a.cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	a.release(shutdownCtx)
	return runErr
}

// release stops background work in dependency order. The audit queue drains before the
// stores and the producer it writes through are closed.
func (a *Application) release(ctx context.Context) {
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			a.logger.Warn("audit queue did not drain", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
