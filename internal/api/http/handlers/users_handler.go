package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/api/dto"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/domain"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// UserManager is the user lifecycle surface the handler drives.
type UserManager interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, candidate domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, candidate domain.User) (*domain.User, error)
	GetCurrentUser(ctx context.Context) (*domain.User, error)
	DeleteUsers(ctx context.Context, usernames []string) error
}

// AdminResetter runs the administrator's first-login credential reset.
type AdminResetter interface {
	ResetAdminCredsForFirstLogin(ctx context.Context, candidate domain.User) error
}

// UsersHandler exposes user management and the admin reset gate.
type UsersHandler struct {
	users  UserManager
	gate   auth.ResetStatusReader
	resets AdminResetter
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users UserManager, gate auth.ResetStatusReader, resets AdminResetter) *UsersHandler {
	return &UsersHandler{users: users, gate: gate, resets: resets}
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.UserRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	user, err := h.users.CreateUser(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(*user)})
}

// Update handles PUT /users.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UserRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateUser(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(*user)})
}

// Delete handles DELETE /users?usernames=a,b.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("usernames"))
	if raw == "" {
		return apperrors.NewValidationError("usernames query parameter is required", map[string]any{"field": "usernames"})
	}
	usernames := strings.Split(raw, ",")
	if err := h.users.DeleteUsers(c.UserContext(), usernames); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": usernames}})
}

// Current handles GET /user.
func (h *UsersHandler) Current(c *fiber.Ctx) error {
	user, err := h.users.GetCurrentUser(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(*user)})
}

// ResetAdminCreds handles POST /password/reset.
func (h *UsersHandler) ResetAdminCreds(c *fiber.Ctx) error {
	var req dto.AdminResetRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := h.resets.ResetAdminCredsForFirstLogin(c.UserContext(), req.ToDomain()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": true})
}

// ResetStatus handles GET /password/reset.
func (h *UsersHandler) ResetStatus(c *fiber.Ctx) error {
	needsReset, err := h.gate.ReadResetStatus(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": needsReset})
}
