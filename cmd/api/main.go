package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/member-session/internal/api/http"
	"github.com/spec-kit/member-session/internal/api/http/handlers"
	"github.com/spec-kit/member-session/internal/auth"
	"github.com/spec-kit/member-session/internal/config"
	"github.com/spec-kit/member-session/internal/events"
	"github.com/spec-kit/member-session/internal/observability"
	"github.com/spec-kit/member-session/internal/persistence"
	"github.com/spec-kit/member-session/internal/repository"
	"github.com/spec-kit/member-session/internal/service"
	"github.com/spec-kit/member-session/internal/worker"
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

	tokens := auth.NewTokenManager(cfg.Auth)
	if err := tokens.Ready(); err != nil {
		logger.Fatal("invalid signing key", zap.Error(err))
	}

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

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	memberRepo := repository.NewMemberRepository(pg.PoolHandle())
	sessionRepo := repository.NewSessionRepository(redis.Client, cfg.Auth.SessionRetention())

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService := service.NewAuthService(service.AuthDependencies{
		MemberRepo:  memberRepo,
		SessionRepo: sessionRepo,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
	})
	success := auth.NewLoginSuccessHandler(cfg.Auth, auth.LoginSuccessDependencies{
		Tokens:     tokens,
		Sessions:   sessionRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, cfg.Auth.AccessTokenHeader, cfg.Auth.TokenPrefix, dispatcher, metrics, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, time.Duration(cfg.App.RequestTimeoutSeconds)*time.Second)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, tokens),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(cfg.Auth, authService, success),
		Members:        handlers.NewMembersHandler(authService),
		Social:         handlers.NewSocialHandler(authService, success),
		// No provider exchange ships; set SocialProfiles to mount /oauth2/callback/:provider.
		SocialProfiles: nil,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
