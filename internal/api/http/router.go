package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-router/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-router/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Slack          *handlers.SlackHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	SigningSecret  string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	slackGroup := app.Group("/slack", auth.SlackSignature(cfg.SigningSecret))
	slackGroup.Post("/commands", cfg.Slack.Commands)
	slackGroup.Post("/interactions", cfg.Slack.Interactions)
	slackGroup.Post("/events", cfg.Slack.Events)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Post("/directory/refresh", auth.RequireScope(auth.ScopeDirectoryWrite), cfg.Admin.RefreshDirectory)
	admin.Get("/tickets/:id", auth.RequireScope(auth.ScopeTicketsRead), cfg.Admin.GetTicket)
	admin.Get("/oncall", auth.RequireScope(auth.ScopeOnCallRead), cfg.Admin.OnCallOverview)
	admin.Get("/teams/:id/oncall", auth.RequireScope(auth.ScopeOnCallRead), cfg.Admin.TeamOnCall)
}
