// Package handler exposes the auth flows over HTTP.
package handler

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"collection-vault/internal/auth/service"
)

// AuthService is the service surface the handler needs.
type AuthService interface {
	Login(ctx context.Context, email, password, deviceID string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyPasswordReset(ctx context.Context, token, accountID string) (bool, error)
}

type AuthHandler struct {
	svc AuthService
}

// NewAuthHandler returns a handler backed by the given service.
func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input loginRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	if input.DeviceID == "" {
		input.DeviceID = c.Get("X-Device-Id")
	}
	res, err := h.svc.Login(c.UserContext(), input.Email, input.Password, input.DeviceID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(toTokenResponse(res))
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input refreshRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	res, err := h.svc.Refresh(c.UserContext(), input.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(toTokenResponse(res))
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var input logoutRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	if err := h.svc.Logout(c.UserContext(), input.RefreshToken); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var input resetRequestRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	if err := h.svc.RequestPasswordReset(c.UserContext(), input.Email); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *AuthHandler) VerifyPasswordReset(c *fiber.Ctx) error {
	var input resetVerifyRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	valid, err := h.svc.VerifyPasswordReset(c.UserContext(), input.Token, input.AccountID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resetVerifyResponse{Valid: valid})
}

// fail maps a service error to its HTTP status. The body carries the sentinel
// text only; infrastructure detail stays in the log.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenUnusable),
		errors.Is(err, service.ErrTokenExpired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrAccountLocked),
		errors.Is(err, service.ErrTwoFactorRequired):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrConcurrencyConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrMalformedAccountID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("auth handler: %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func toTokenResponse(res *service.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken:        res.AccessToken,
		AccessTokenExpiry:  res.AccessExpiresAt,
		RefreshToken:       res.RefreshToken,
		RefreshTokenExpiry: res.RefreshExpiresAt,
		Permissions:        res.Permissions,
	}
}
