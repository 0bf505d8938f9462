package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/secureflow/vulnticket/internal/api/dto"
	"github.com/secureflow/vulnticket/internal/service"
	"github.com/secureflow/vulnticket/pkg/util"
)

// UsersHandler manages account and per-user ticket endpoints.
type UsersHandler struct {
	authService   *service.AuthService
	ticketService *service.TicketService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, ticketService *service.TicketService) *UsersHandler {
	return &UsersHandler{authService: authService, ticketService: ticketService}
}

// Register POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return util.NewValidationError("name, email, password required", nil)
	}

	user, token, exp, err := h.authService.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      dto.NewUserResponse(user),
	}})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return util.NewValidationError("email and password required", nil)
	}

	user, token, exp, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      dto.NewUserResponse(user),
	}})
}

// ListUsers GET /users.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.ticketService.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserListResponse(users)})
}

// ListUserTickets GET /users/:id/tickets.
func (h *UsersHandler) ListUserTickets(c *fiber.Ctx) error {
	tickets, err := h.ticketService.ListTicketsForUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}
