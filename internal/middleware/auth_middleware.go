package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"go-proposal-review/internal/authz"
	"go-proposal-review/internal/session"
)

// Authenticator resolves a bearer token to a session.
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*session.Session, error)
}

// RequireAuth validates the bearer token and installs the caller's session in
// the request context. It panics when auth is nil so a miswired router fails
// at startup instead of on the first request.
func RequireAuth(auth Authenticator) fiber.Handler {
	if auth == nil {
		panic("middleware.RequireAuth: Authenticator is nil; pass the auth service when building routes")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		sess, err := auth.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		c.SetUserContext(session.WithSession(c.UserContext(), sess))
		c.Locals("user_id", sess.UserID.String())
		c.Locals("user_role", string(sess.Role))

		return c.Next()
	}
}

// RequirePermission lets the request through when the caller's role may
// perform action on object.
func RequirePermission(authorizer *authz.Authorizer, object, action string) fiber.Handler {
	if authorizer == nil {
		panic("middleware.RequirePermission: Authorizer is nil")
	}

	return func(c *fiber.Ctx) error {
		sess, err := session.FromContext(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		if err := authorizer.Authorize(c.UserContext(), sess.Role, object, action); err != nil {
			if errors.Is(err, authz.ErrForbidden) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Forbidden: requires '" + object + ":" + action + "' permission",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check permissions"})
		}

		return c.Next()
	}
}
