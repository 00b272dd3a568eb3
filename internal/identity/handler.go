package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// AddressLocal is the fiber locals key holding the authenticated address.
const AddressLocal = "address"

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type accountResponse struct {
	Address   string     `json:"address"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Me returns the account of the authenticated wallet.
func (h *Handler) Me(c *fiber.Ctx) error {
	address, ok := c.Locals(AddressLocal).(common.Address)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing session")
	}
	account, err := h.service.Account(c.UserContext(), address)
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	resp := accountResponse{Address: account.Address.Hex(), CreatedAt: account.CreatedAt}
	if !account.LastLogin.IsZero() {
		last := account.LastLogin
		resp.LastLogin = &last
	}
	return c.Status(http.StatusOK).JSON(resp)
}
