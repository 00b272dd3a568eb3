package identity

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Service manages wallet accounts.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Touch records a sign-in for address, creating the account on first use.
func (s *Service) Touch(ctx context.Context, address common.Address) (Account, error) {
	now := s.now().UTC()
	account, err := s.repo.FindByAddress(ctx, address)
	if errors.Is(err, ErrNotFound) {
		account = Account{ID: uuid.New().String(), Address: address, CreatedAt: now}
		err = s.repo.Create(ctx, account)
		if errors.Is(err, ErrAccountExists) {
			account, err = s.repo.FindByAddress(ctx, address)
		}
	}
	if err != nil {
		return Account{}, err
	}

	if err := s.repo.UpdateLastLogin(ctx, address, now); err != nil {
		return Account{}, err
	}
	account.LastLogin = now
	return account, nil
}

// Account returns the account for address.
func (s *Service) Account(ctx context.Context, address common.Address) (Account, error) {
	return s.repo.FindByAddress(ctx, address)
}

// Revoke bumps the token version of address.
func (s *Service) Revoke(ctx context.Context, address common.Address) (int, error) {
	return s.repo.UpdateTokenVersion(ctx, address)
}
