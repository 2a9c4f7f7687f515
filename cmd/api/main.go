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

	httptransport "github.com/spec-kit/helpdesk-router/internal/api/http"
	"github.com/spec-kit/helpdesk-router/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-router/internal/app"
	"github.com/spec-kit/helpdesk-router/internal/auth"
	"github.com/spec-kit/helpdesk-router/internal/config"
	"github.com/spec-kit/helpdesk-router/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	botUserID, err := router.Slack.BotUserID(ctx)
	if err != nil {
		logger.Warn("unable to resolve bot user id; own events are filtered by bot id only", zap.Error(err))
	}

	fiberApp := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(fiberApp, logger, router.Metrics, cfg.App.RequestTimeout())

	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, router.Postgres, router.Redis, router.Metrics),
		Slack: handlers.NewSlackHandler(handlers.SlackDependencies{
			Tickets:        router.Tickets,
			Roster:         router.Roster,
			Help:           router.Help,
			Steps:          router.Steps,
			Chat:           router.Slack,
			Runner:         router.Pool,
			Dedupe:         router.Redis,
			DedupeTTL:      cfg.Redis.EventTTL(),
			BotUserID:      botUserID,
			SupportChannel: cfg.Slack.SupportChannel,
			Logger:         logger,
		}),
		Admin:          handlers.NewAdminHandler(router.Directory, router.Tickets, router.Roster, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		SigningSecret:  cfg.Slack.SigningSecret,
	})

	go func() {
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	router.Close(shutdownCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
