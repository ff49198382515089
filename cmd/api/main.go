package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/metricas-service/internal/api/http"
	"github.com/spec-kit/metricas-service/internal/api/http/handlers"
	"github.com/spec-kit/metricas-service/internal/auth"
	"github.com/spec-kit/metricas-service/internal/config"
	"github.com/spec-kit/metricas-service/internal/observability"
	"github.com/spec-kit/metricas-service/internal/persistence"
	"github.com/spec-kit/metricas-service/internal/repository"
	"github.com/spec-kit/metricas-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	metricRepo := repository.NewMetricRepository(pool)
	aggregateCache := persistence.NewAggregateCache(redis, logger)

	tokenMgr := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	userService := service.NewUserService(userRepo, metricRepo, aggregateCache, cfg.Directory, cfg.Auth.BcryptCost, logger)
	metricService := service.NewMetricService(metricRepo, userRepo, aggregateCache)
	authService := service.NewAuthService(userRepo, userService, tokenMgr)

	if err := userService.EnsureDefaultSupervisor(ctx); err != nil {
		logger.Fatal("failed to seed default supervisor", zap.Error(err))
	}

	authMiddleware := auth.NewMiddleware(tokenMgr)
	metricsCounters := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metricsCounters, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService, metricService),
		Metrics:        handlers.NewMetricsHandler(metricService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
