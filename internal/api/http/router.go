package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/metricas-service/internal/api/http/handlers"
	"github.com/spec-kit/metricas-service/internal/auth"
	"github.com/spec-kit/metricas-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. Authentication and role gates are
// composed per route group; role checks always run after the
// authentication handler.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/registrar", cfg.Auth.Register)

	authenticated := cfg.AuthMiddleware.Authenticate
	supervisorOnly := auth.RequireRole(domain.RoleSupervisor)

	metricas := app.Group("/metricas", authenticated)
	metricas.Get("/global", cfg.Metrics.GlobalAverage)
	metricas.Post("/global", supervisorOnly, cfg.Metrics.ApplyGlobalValues)
	metricas.Get("/", cfg.Metrics.List)
	metricas.Post("/", supervisorOnly, cfg.Metrics.Create)
	metricas.Put("/:id", supervisorOnly, cfg.Metrics.Update)
	metricas.Delete("/:id", supervisorOnly, cfg.Metrics.Delete)

	usuarios := app.Group("/usuarios", authenticated)
	usuarios.Get("/", supervisorOnly, cfg.Users.List)
	usuarios.Get("/agentes", cfg.Users.ListAgents)
	usuarios.Post("/agentes", supervisorOnly, cfg.Users.SaveAgentMetrics)
	usuarios.Get("/:id", cfg.Users.Get)
	usuarios.Post("/", supervisorOnly, cfg.Users.Create)
	usuarios.Put("/:id", supervisorOnly, cfg.Users.Update)
	usuarios.Delete("/:id", supervisorOnly, cfg.Users.Delete)
}
