package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dmsd/dmsd/internal/auth"
)

// RegisterAuthRoutes wires the public wallet sign-in endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/challenge", h.Challenge)
	if rateLimiter != nil {
		group.Post("/signin", rateLimiter, h.SignIn)
	} else {
		group.Post("/signin", h.SignIn)
	}
}

// RegisterSignOutRoute wires sign-out on a router that requires a session.
func RegisterSignOutRoute(r fiber.Router, h *auth.Handler) {
	r.Post("/auth/signout", h.SignOut)
}
