package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dmsd/dmsd/internal/ethaddr"
	"github.com/dmsd/dmsd/internal/wallet"
)

// ClaimsLocal is the fiber locals key holding verified Claims.
const ClaimsLocal = "claims"

// Handler exposes the sign-in endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type challengeRequest struct {
	Address string `json:"address"`
}

// Challenge issues a message for the wallet to sign.
func (h *Handler) Challenge(c *fiber.Ctx) error {
	var req challengeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	address, err := ethaddr.Parse(req.Address)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	challenge, err := h.svc.RequestChallenge(c.UserContext(), address)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(challenge)
}

type signInRequest struct {
	Provider string `json:"provider"`
	SignInRequest
}

// SignIn exchanges a signed challenge for a session token.
func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Provider == "" {
		req.Provider = ProviderWalletAuth
	}
	res, err := h.svc.SignIn(c.UserContext(), req.Provider, req.SignInRequest)
	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(res)
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrMalformedMessage), errors.Is(err, wallet.ErrInvalidSignature):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSignatureMismatch), errors.Is(err, ErrWrongChain), errors.Is(err, ErrUnknownNonce):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// SignOut ends the session of the bearer token.
func (h *Handler) SignOut(c *fiber.Ctx) error {
	claims, ok := c.Locals(ClaimsLocal).(Claims)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing session")
	}
	var req SignOutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	res, err := h.svc.SignOut(c.UserContext(), claims, req)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "signed_out", "url": res.URL})
}

// BearerToken extracts the token of an Authorization header.
func BearerToken(header string) (string, bool) {
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}
