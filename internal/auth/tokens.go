package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "dmsd"

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid session token")

// Claims are carried by dashboard session tokens. The subject is the
// checksummed wallet address.
type Claims struct {
	SessionID string `json:"sid"`
	Version   int    `json:"ver"`
	jwt.RegisteredClaims
}

// Address returns the wallet address in the subject claim.
func (c Claims) Address() (common.Address, error) {
	if !common.IsHexAddress(c.Subject) {
		return common.Address{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return common.HexToAddress(c.Subject), nil
}

// SignToken issues an HS256 token for address.
func SignToken(secret []byte, address common.Address, sessionID string, version int, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		SessionID: sessionID,
		Version:   version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   address.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature, issuer and expiry of token.
func ParseToken(secret []byte, token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.SessionID == "" {
		return Claims{}, fmt.Errorf("%w: missing session", ErrInvalidToken)
	}
	if _, err := claims.Address(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}
