package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// ResetStatusReader reports whether the administrator still owes a first-login reset.
type ResetStatusReader interface {
	ReadResetStatus(ctx context.Context) (bool, error)
}

// RequireAuthenticated ensures a principal was attached by AuthMiddleware.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller is the built-in administrator account.
func RequireAdmin(adminFQN string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.Username != adminFQN {
			return apperrors.NewForbidden("administrator account required")
		}
		return c.Next()
	}
}

// RequireResetCompleted blocks the administrator from routes behind it until the
// first-login reset has been done. Other principals pass through.
func RequireResetCompleted(gate ResetStatusReader, adminFQN string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Username != adminFQN {
			return c.Next()
		}
		needsReset, err := gate.ReadResetStatus(c.UserContext())
		if err != nil {
			return err
		}
		if needsReset {
			return apperrors.NewPasswordResetRequired()
		}
		return c.Next()
	}
}
