package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dmsd/dmsd/internal/identity"
)

// RegisterIdentityRoutes wires the account endpoint of the signed-in wallet.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/me", h.Me)
}
