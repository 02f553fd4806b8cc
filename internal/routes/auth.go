package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nestegg-app/nestegg/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, jwtmw, deviceGate fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	group.Post("/login", rateLimiter, h.Login)
	group.Get("/profile", jwtmw, deviceGate, h.Profile)
	group.Post("/logout", jwtmw, h.Logout)
}
