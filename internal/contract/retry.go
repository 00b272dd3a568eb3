package contract

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dmsd/dmsd/internal/wallet"
)

// RetryPolicy bounds the retries of transient provider errors.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used for zero fields of a RetryPolicy.
var DefaultRetryPolicy = RetryPolicy{
	MaxTries:        4,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     3 * time.Second,
}

// Retrying wraps a Client and retries transient provider failures of reads
// and confirmation waits with exponential backoff. Writes are never retried.
// Rejected signatures, reverts and cancellation are returned at once.
type Retrying struct {
	next   Client
	policy RetryPolicy
	logger *slog.Logger
}

var _ Client = (*Retrying)(nil)

// NewRetrying wraps next.
func NewRetrying(next Client, policy RetryPolicy, logger *slog.Logger) *Retrying {
	if policy.MaxTries == 0 {
		policy.MaxTries = DefaultRetryPolicy.MaxTries
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = DefaultRetryPolicy.MaxInterval
	}
	return &Retrying{next: next, policy: policy, logger: logger}
}

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, wallet.ErrRejected), errors.Is(err, wallet.ErrNoSigner), errors.Is(err, ErrReverted):
		return false
	case errors.Is(err, ErrUnavailable):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retry[T any](ctx context.Context, r *Retrying, method string, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !Transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.policy.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if r.logger != nil {
				r.logger.Warn("contract call failed, retrying", "method", method, "error", err, "wait", wait)
			}
		}),
	)
}

func (r *Retrying) GetUser(ctx context.Context, user common.Address) (UserRecord, error) {
	return retry(ctx, r, methodGetUser, func() (UserRecord, error) { return r.next.GetUser(ctx, user) })
}

func (r *Retrying) GetRecoveryWallets(ctx context.Context, from common.Address) ([2]common.Address, error) {
	return retry(ctx, r, methodGetRecoveryWallets, func() ([2]common.Address, error) { return r.next.GetRecoveryWallets(ctx, from) })
}

func (r *Retrying) GetWalletToProtect(ctx context.Context, from common.Address) (common.Address, error) {
	return retry(ctx, r, methodGetWalletToProtect, func() (common.Address, error) { return r.next.GetWalletToProtect(ctx, from) })
}

func (r *Retrying) GetPersonalMultiSig(ctx context.Context, from common.Address) (common.Address, error) {
	return retry(ctx, r, methodGetPersonalMultiSig, func() (common.Address, error) { return r.next.GetPersonalMultiSig(ctx, from) })
}

func (r *Retrying) GetPersonalMultiSigBalance(ctx context.Context, from common.Address) (*big.Int, error) {
	return retry(ctx, r, methodGetPersonalMultiSigBalance, func() (*big.Int, error) { return r.next.GetPersonalMultiSigBalance(ctx, from) })
}

func (r *Retrying) GetMultiSigOwners(ctx context.Context, multisig common.Address) ([]common.Address, error) {
	return retry(ctx, r, methodGetOwners, func() ([]common.Address, error) { return r.next.GetMultiSigOwners(ctx, multisig) })
}

func (r *Retrying) GetApprovals(ctx context.Context, from common.Address) (bool, error) {
	return retry(ctx, r, methodGetApprovals, func() (bool, error) { return r.next.GetApprovals(ctx, from) })
}

func (r *Retrying) GetApprovalsFromWalletToProtect(ctx context.Context, from common.Address) (bool, error) {
	return retry(ctx, r, methodGetApprovalsFromWalletToProtect, func() (bool, error) { return r.next.GetApprovalsFromWalletToProtect(ctx, from) })
}

func (r *Retrying) IsWalletToProtect(ctx context.Context, w common.Address) (bool, error) {
	return retry(ctx, r, methodIsWalletToProtect, func() (bool, error) { return r.next.IsWalletToProtect(ctx, w) })
}

// Writes pass through once. A provider error can arrive after the node
// accepted the transaction, and a second attempt would sign a new nonce.

func (r *Retrying) RegisterAdmin(ctx context.Context, s wallet.Signer, username, email string) (Tx, error) {
	return r.next.RegisterAdmin(ctx, s, username, email)
}

func (r *Retrying) SubscribeAdmin(ctx context.Context, s wallet.Signer) (Tx, error) {
	return r.next.SubscribeAdmin(ctx, s)
}

func (r *Retrying) CreatePersonalMultisig(ctx context.Context, s wallet.Signer, recovery [2]common.Address, walletToProtect common.Address) (Tx, error) {
	return r.next.CreatePersonalMultisig(ctx, s, recovery, walletToProtect)
}

func (r *Retrying) ValidateApproval(ctx context.Context, s wallet.Signer) (Tx, error) {
	return r.next.ValidateApproval(ctx, s)
}

func (r *Retrying) ApproveTransfer(ctx context.Context, s wallet.Signer) (Tx, error) {
	return r.next.ApproveTransfer(ctx, s)
}

func (r *Retrying) TransferToMultisig(ctx context.Context, s wallet.Signer, amount *big.Int) (Tx, error) {
	return r.next.TransferToMultisig(ctx, s, amount)
}

// WaitMined is keyed by the tx hash, so polling again never resubmits.
func (r *Retrying) WaitMined(ctx context.Context, tx Tx) (Receipt, error) {
	return retry(ctx, r, "waitMined", func() (Receipt, error) { return r.next.WaitMined(ctx, tx) })
}
