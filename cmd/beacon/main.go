package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/beaconhq/beacon/internal/access"
	"github.com/beaconhq/beacon/internal/app"
	"github.com/beaconhq/beacon/internal/auth"
	"github.com/beaconhq/beacon/internal/events"
	"github.com/beaconhq/beacon/internal/feature"
	"github.com/beaconhq/beacon/internal/observability"
	"github.com/beaconhq/beacon/internal/platform/cache"
	"github.com/beaconhq/beacon/internal/platform/db"
	"github.com/beaconhq/beacon/internal/project"
	"github.com/beaconhq/beacon/internal/shared"
	"github.com/beaconhq/beacon/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "beacon_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	eventStore := events.NewStore(dbpool, asynqClient, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)
	identity := auth.Identity{Service: authService, Logger: logger}

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	featureRepo := feature.NewRepository(dbpool)
	featureService := feature.NewService(featureRepo)

	accessStore := access.NewPGStore(dbpool)
	accessService := access.NewService(accessStore, usersService, logger)
	gate := access.Middleware{
		Enabled:  cfg.RBACEnabled,
		Service:  accessService,
		Features: featureService,
		Logger:   logger,
		Metrics:  metrics,
	}
	if cfg.RBACEnabled {
		logger.Info("rbac enforcement enabled")
	}

	projectRepo := project.NewRepository(dbpool)
	projectService := project.NewService(projectRepo, accessService, featureService, eventStore, logger, cfg.RBACEnabled)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Identity:       identity,
		Gate:           gate,
		AuthHandler:    authHandler,
		AccessHandler:  access.NewHandler(logger, accessService, gate),
		ProjectHandler: project.NewHandler(logger, projectService, gate),
		FeatureHandler: feature.NewHandler(logger, featureService, gate),
		UsersHandler:   users.NewHandler(logger, usersService, gate),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
