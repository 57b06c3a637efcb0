package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/phoneauth/internal/session"
)

const principalContextKey = "principal"

// AuthMiddleware validates the bearer session and loads the principal into context.
func AuthMiddleware(validator *session.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := validator.Validate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		c.Locals(principalContextKey, principal)
		return c.Next()
	}
}

// RequireAdmin rejects principals that are not admin identities.
// It must run after AuthMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := GetPrincipal(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, session.MsgUnauthorized)
		}
		if !principal.IsAdmin() {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// GetPrincipal extracts the authenticated principal from context.
func GetPrincipal(c *fiber.Ctx) (*session.Principal, bool) {
	principal, ok := c.Locals(principalContextKey).(*session.Principal)
	return principal, ok && principal != nil
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	principal, ok := GetPrincipal(c)
	if !ok {
		return uuid.Nil, false
	}
	return principal.UserID, true
}
