package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/secureflow/vulnticket/internal/api/http/handlers"
	"github.com/secureflow/vulnticket/internal/auth"
	"github.com/secureflow/vulnticket/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Sites          *handlers.SitesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/closed", cfg.Tickets.ListClosedTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Delete("/:id", auth.RequireRole(domain.UserRoleAdmin), cfg.Tickets.DeleteTicket)

	users := protected.Group("/users")
	users.Get("", cfg.Users.ListUsers)
	users.Get("/:id/tickets", cfg.Users.ListUserTickets)

	sites := protected.Group("/sites")
	sites.Get("/info", cfg.Sites.SiteInfo)
	sites.Get("/:siteId/tickets", cfg.Sites.SiteTickets)

	reconcile := protected.Group("/reconcile", auth.RequireRole(domain.UserRoleAdmin))
	reconcile.Post("/document", cfg.Sites.ReconcileDocument)
	reconcile.Post("/sites/:siteId", cfg.Sites.ReconcileSite)
	reconcile.Post("/all", cfg.Sites.ReconcileAll)
}
