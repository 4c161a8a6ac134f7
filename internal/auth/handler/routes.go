package handler

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the auth endpoints under /api/v1.
func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	v1 := app.Group("/api/v1")
	v1.Post("/login", h.Login)
	v1.Post("/refresh", h.Refresh)
	v1.Post("/logout", h.Logout)
	v1.Post("/password-reset/request", h.RequestPasswordReset)
	v1.Post("/password-reset/verify", h.VerifyPasswordReset)
}
