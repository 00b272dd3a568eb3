package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dmsd/dmsd/internal/dashboard"
)

// RegisterDashboardRoutes wires the dashboard, its panels and the journal.
// Contract writes go through idempotency when it is configured.
func RegisterDashboardRoutes(r fiber.Router, h *dashboard.Handler, idempotency fiber.Handler) {
	r.Get("/dashboard", h.Show)
	r.Post("/dashboard/nav", h.Navigate)
	r.Get("/transactions", h.Transactions)

	panels := r.Group("/panels")
	panels.Get("/home", h.Home)
	panels.Get("/subscription", h.Subscription)
	panels.Get("/vault", h.Vault)
	panels.Get("/vault/multisig", h.Multisig)
	panels.Get("/approve", h.Approval)

	writes := panels.Group("")
	if idempotency != nil {
		writes = panels.Group("", idempotency)
	}
	writes.Post("/subscription/register", h.Register)
	writes.Post("/subscription/subscribe", h.Subscribe)
	writes.Post("/subscription/multisig", h.CreateMultisig)
	writes.Post("/vault/validate", h.ValidateApproval)
	writes.Post("/vault/transfer", h.Transfer)
	writes.Post("/approve", h.Approve)
}
