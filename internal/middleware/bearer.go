package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/authfront/authfront/internal/auth"
)

// TokenVerifier resolves a bearer token to the username it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// BearerAuth guards a route with an Authorization: Bearer token. A missing
// header is 401 with a Bearer challenge; a token that does not verify is 403.
func BearerAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		scheme, token, ok := strings.Cut(authz, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(http.StatusUnauthorized, "Not authenticated")
		}

		username, err := verifier.VerifyToken(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			return fiber.NewError(http.StatusForbidden, "Invalid token")
		}

		c.Locals(auth.LocalsUsername, username)
		return c.Next()
	}
}
