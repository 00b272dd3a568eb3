// Package auth signs wallets in to dashboard sessions and out again.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/dmsd/dmsd/internal/config"
	"github.com/dmsd/dmsd/internal/identity"
	"github.com/dmsd/dmsd/internal/wallet"
)

const (
	// ProviderWalletAuth is the only sign-in provider.
	ProviderWalletAuth = "wallet-auth"

	defaultSignInCallback  = "/dmsd"
	defaultSignOutCallback = "/login"
)

var (
	ErrUnknownProvider   = errors.New("unknown sign-in provider")
	ErrMalformedMessage  = errors.New("malformed sign-in message")
	ErrSignatureMismatch = errors.New("signature does not match the message address")
	ErrWrongChain        = errors.New("sign-in message targets another chain")
	ErrRevoked           = errors.New("session token revoked")
)

// Sessions opens and destroys the dashboard sessions bound to sign-ins.
type Sessions interface {
	Open(ctx context.Context, address common.Address) (string, error)
	Close(ctx context.Context, sessionID string) error
	CloseAddress(ctx context.Context, address common.Address) ([]string, error)
}

// SignInRequest carries a signed challenge.
type SignInRequest struct {
	Message     string `json:"message"`
	Signature   string `json:"signature"`
	CallbackURL string `json:"callback_url"`
}

// SignInResult is returned after a successful sign-in.
type SignInResult struct {
	URL       string         `json:"url"`
	Token     string         `json:"token"`
	Address   common.Address `json:"address"`
	SessionID string         `json:"session_id"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// SignOutRequest controls the redirect after sign-out.
type SignOutRequest struct {
	Redirect    bool   `json:"redirect"`
	CallbackURL string `json:"callback_url"`
}

// SignOutResult carries the redirect target, empty when Redirect was false.
type SignOutResult struct {
	URL string `json:"url,omitempty"`
}

// Service implements wallet sign-in on top of the identity service.
type Service struct {
	cfg      config.Config
	ids      *identity.Service
	nonces   NonceStore
	sessions Sessions
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the sign-in flow.
func NewService(cfg config.Config, ids *identity.Service, nonces NonceStore, sessions Sessions, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, ids: ids, nonces: nonces, sessions: sessions, logger: logger, now: time.Now}
}

// RequestChallenge issues a single-use message for address to sign.
func (s *Service) RequestChallenge(ctx context.Context, address common.Address) (Challenge, error) {
	if address == (common.Address{}) {
		return Challenge{}, fmt.Errorf("%w: zero address", ErrMalformedMessage)
	}
	now := s.now().UTC().Truncate(time.Second)
	c := Challenge{
		Address:   address,
		ChainID:   s.cfg.ChainID,
		Nonce:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.ChallengeTTL),
	}
	c.Message = formatMessage(s.cfg.AppName, c)
	if err := s.nonces.Put(ctx, c.Nonce, address, s.cfg.ChallengeTTL); err != nil {
		return Challenge{}, err
	}
	return c, nil
}

// SignIn verifies a signed challenge, opens a dashboard session and issues a token.
func (s *Service) SignIn(ctx context.Context, provider string, req SignInRequest) (SignInResult, error) {
	if provider != ProviderWalletAuth {
		return SignInResult{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	msg, err := parseMessage(req.Message)
	if err != nil {
		return SignInResult{}, err
	}
	sig, err := hexutil.Decode(strings.TrimSpace(req.Signature))
	if err != nil {
		return SignInResult{}, fmt.Errorf("%w: %v", wallet.ErrInvalidSignature, err)
	}
	signer, err := wallet.RecoverAddress([]byte(req.Message), sig)
	if err != nil {
		return SignInResult{}, err
	}
	if signer != msg.address {
		return SignInResult{}, ErrSignatureMismatch
	}
	if msg.chainID != s.cfg.ChainID {
		return SignInResult{}, ErrWrongChain
	}
	issuedTo, err := s.nonces.Take(ctx, msg.nonce)
	if err != nil {
		return SignInResult{}, err
	}
	if issuedTo != signer {
		return SignInResult{}, ErrUnknownNonce
	}

	account, err := s.ids.Touch(ctx, signer)
	if err != nil {
		return SignInResult{}, fmt.Errorf("touch account: %w", err)
	}
	sessionID, err := s.sessions.Open(ctx, signer)
	if err != nil {
		return SignInResult{}, fmt.Errorf("open session: %w", err)
	}

	now := s.now()
	token, err := SignToken(s.cfg.SigningSecret(), signer, sessionID, account.TokenVersion, now, s.cfg.SessionTTL)
	if err != nil {
		return SignInResult{}, err
	}
	if s.logger != nil {
		s.logger.Info("wallet signed in", "address", signer.Hex(), "session_id", sessionID)
	}
	return SignInResult{
		URL:       callback(req.CallbackURL, defaultSignInCallback),
		Token:     token,
		Address:   signer,
		SessionID: sessionID,
		ExpiresAt: now.Add(s.cfg.SessionTTL).UTC(),
	}, nil
}

// SignOut destroys the session of claims and revokes every token issued so far.
func (s *Service) SignOut(ctx context.Context, claims Claims, req SignOutRequest) (SignOutResult, error) {
	address, err := claims.Address()
	if err != nil {
		return SignOutResult{}, err
	}
	if err := s.EndSession(ctx, claims.SessionID, address); err != nil {
		return SignOutResult{}, err
	}
	if !req.Redirect {
		return SignOutResult{}, nil
	}
	return SignOutResult{URL: callback(req.CallbackURL, defaultSignOutCallback)}, nil
}

// EndSession revokes every token of address, so it also closes every other
// dashboard session of the wallet. It backs the logout entry of the sidebar.
func (s *Service) EndSession(ctx context.Context, sessionID string, address common.Address) error {
	if err := s.sessions.Close(ctx, sessionID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	others, err := s.sessions.CloseAddress(ctx, address)
	if err != nil {
		return fmt.Errorf("close wallet sessions: %w", err)
	}
	if _, err := s.ids.Revoke(ctx, address); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("wallet signed out", "address", address.Hex(), "session_id", sessionID, "other_sessions", len(others))
	}
	return nil
}

// Verify parses token and rejects it when its version was revoked.
func (s *Service) Verify(ctx context.Context, token string) (Claims, error) {
	claims, err := ParseToken(s.cfg.SigningSecret(), token)
	if err != nil {
		return Claims{}, err
	}
	address, _ := claims.Address()
	account, err := s.ids.Account(ctx, address)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Claims{}, ErrRevoked
		}
		return Claims{}, err
	}
	if account.TokenVersion != claims.Version {
		return Claims{}, ErrRevoked
	}
	return claims, nil
}

// callback keeps same-origin paths and falls back to def for anything else.
func callback(requested, def string) string {
	requested = strings.TrimSpace(requested)
	if !strings.HasPrefix(requested, "/") || strings.HasPrefix(requested, "//") {
		return def
	}
	return requested
}
