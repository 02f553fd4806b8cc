package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nestegg-app/nestegg/internal/savings"
)

// RegisterSavingsRoutes wires the savings endpoints. Every route requires an
// authenticated account on a verified device.
func RegisterSavingsRoutes(r fiber.Router, h *savings.Handler, jwtmw, deviceGate, idempotency fiber.Handler) {
	group := r.Group("/savings", jwtmw, deviceGate)
	group.Post("/deposit", idempotency, h.Deposit)
	group.Post("/withdraw", idempotency, h.Withdraw)
	group.Get("/balance", h.Balance)
	group.Get("/transactions", h.Transactions)
}
