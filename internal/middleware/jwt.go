package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/dmsd/dmsd/internal/auth"
	"github.com/dmsd/dmsd/internal/identity"
)

// TokenVerifier validates session tokens. *auth.Service satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Claims, error)
}

// SessionAuth validates bearer session tokens and checks their token version.
func SessionAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := verifier.Verify(c.UserContext(), token)
		if errors.Is(err, auth.ErrRevoked) {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		address, _ := claims.Address()
		c.Locals(auth.ClaimsLocal, claims)
		c.Locals(identity.AddressLocal, address)
		return c.Next()
	}
}
