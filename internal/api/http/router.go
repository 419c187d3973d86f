package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/member-session/internal/api/http/handlers"
	"github.com/spec-kit/member-session/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Members        *handlers.MembersHandler
	Social         *handlers.SocialHandler
	SocialProfiles handlers.ProfileResolver
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Get)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)

	members := app.Group("/members", cfg.AuthMiddleware.Handle)
	members.Get("/me", cfg.Members.Me)

	if cfg.Social != nil && cfg.SocialProfiles != nil {
		app.Get("/oauth2/callback/:provider", cfg.Social.Callback(cfg.SocialProfiles))
	}
}
