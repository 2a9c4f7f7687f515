package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireScope ensures the admin principal holds one of the allowed scopes.
func RequireScope(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Claims == nil {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		for _, scope := range allowed {
			if principal.Claims.HasScope(scope) {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "insufficient scope")
	}
}
