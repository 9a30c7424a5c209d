package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/authfront/authfront/internal/auth"
	"github.com/authfront/authfront/internal/middleware"
)

// RegisterAuthRoutes wires the public auth endpoints and the bearer-protected
// profile echo. idempotency may be nil; it only guards /register so issued
// tokens are never written to the cache.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, verifier middleware.TokenVerifier, idempotency fiber.Handler) {
	if idempotency != nil {
		r.Post("/register", idempotency, h.Register)
	} else {
		r.Post("/register", h.Register)
	}
	r.Post("/token", h.Token)
	r.Get("/verify_token/:token", h.VerifyToken)

	r.Get("/users/me", middleware.BearerAuth(verifier), h.Me)
}
