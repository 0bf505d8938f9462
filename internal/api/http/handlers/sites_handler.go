package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/secureflow/vulnticket/internal/api/dto"
	"github.com/secureflow/vulnticket/internal/scanner"
	"github.com/secureflow/vulnticket/internal/service"
	"github.com/secureflow/vulnticket/pkg/util"
)

// SitesHandler exposes the external source's site view and reconciliation
// triggers.
type SitesHandler struct {
	reconcile *service.ReconcileService
}

// NewSitesHandler constructs handler.
func NewSitesHandler(reconcileService *service.ReconcileService) *SitesHandler {
	return &SitesHandler{reconcile: reconcileService}
}

// SiteInfo GET /sites/info.
func (h *SitesHandler) SiteInfo(c *fiber.Ctx) error {
	sites, err := h.reconcile.SiteInfo(c.UserContext())
	if err != nil {
		return util.NewUpstreamFailure("failed to list sites", err)
	}
	return c.JSON(fiber.Map{"data": dto.NewSiteListResponse(sites)})
}

// SiteTickets GET /sites/:siteId/tickets.
func (h *SitesHandler) SiteTickets(c *fiber.Ctx) error {
	tickets, err := h.reconcile.TicketsForSite(c.UserContext(), c.Params("siteId"))
	if err != nil {
		return util.NewUpstreamFailure("failed to resolve site tickets", err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}

// ReconcileDocument POST /reconcile/document.
func (h *SitesHandler) ReconcileDocument(c *fiber.Ctx) error {
	var doc scanner.BatchDocument
	if err := c.BodyParser(&doc); err != nil {
		return util.NewValidationError("invalid scan document", nil)
	}

	created, err := h.reconcile.ReconcileDocument(c.UserContext(), &doc)
	if err != nil {
		return util.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.ReconcileResponse{TicketsOpened: created}})
}

// ReconcileSite POST /reconcile/sites/:siteId.
func (h *SitesHandler) ReconcileSite(c *fiber.Ctx) error {
	created, err := h.reconcile.ReconcileSite(c.UserContext(), c.Params("siteId"))
	if err != nil {
		if errors.Is(err, service.ErrSiteAlreadyProcessed) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"data": dto.ReconcileResponse{
				TicketsOpened: 0,
				Detail:        "site already processed",
			}})
		}
		return util.NewUpstreamFailure("site reconciliation failed", err)
	}
	return c.JSON(fiber.Map{"data": dto.ReconcileResponse{TicketsOpened: created}})
}

// ReconcileAll POST /reconcile/all.
func (h *SitesHandler) ReconcileAll(c *fiber.Ctx) error {
	if err := h.reconcile.ReconcileAllSites(c.UserContext()); err != nil {
		return util.NewUpstreamFailure("reconciliation run failed", err)
	}
	return c.SendStatus(http.StatusAccepted)
}
