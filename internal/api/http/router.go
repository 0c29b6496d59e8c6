package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/user-service/internal/api/http/handlers"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	ResetGate      auth.ResetStatusReader
	Metrics        *observability.Metrics
	// AdminFQN is the fully-qualified name of the built-in administrator.
	AdminFQN string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")
	api.Post("/auth/login", cfg.Auth.Login)

	// The administrator may only see itself and complete the reset until the
	// gate is cleared.
	resetDone := auth.RequireResetCompleted(cfg.ResetGate, cfg.AdminFQN)

	users := api.Group("/user-management", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	users.Get("/user", cfg.Users.Current)
	users.Get("/password/reset", cfg.Users.ResetStatus)
	users.Post("/password/reset", auth.RequireAdmin(cfg.AdminFQN), cfg.Users.ResetAdminCreds)

	users.Get("/users", resetDone, cfg.Users.List)
	users.Post("/users", resetDone, cfg.Users.Create)
	users.Put("/users", resetDone, cfg.Users.Update)
	users.Delete("/users", resetDone, cfg.Users.Delete)
}
