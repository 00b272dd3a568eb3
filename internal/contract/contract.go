// Package contract is the typed access layer to the DMSD smart contract and
// the personal multisig wallets it deploys. The contract is an opaque remote
// service: this package only knows method signatures and return shapes.
package contract

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dmsd/dmsd/internal/session"
	"github.com/dmsd/dmsd/internal/wallet"
)

var (
	// ErrReverted means the contract refused the call or the mined transaction failed.
	ErrReverted = errors.New("contract: execution reverted")
	// ErrUnavailable marks provider failures worth retrying.
	ErrUnavailable = errors.New("contract: provider unavailable")
	// ErrUnknownTx is returned by WaitMined for a handle this backend did not issue.
	ErrUnknownTx = errors.New("contract: unknown transaction")
)

// UserRecord is the profile tuple returned by getUser.
type UserRecord struct {
	Username     string
	Email        string
	IsRegistered bool
	IsAdmin      bool
	Subscribed   bool
}

// Profile converts the record into the session profile shape.
func (r UserRecord) Profile() session.UserProfile {
	return session.UserProfile{
		Email:        r.Email,
		Username:     r.Username,
		IsRegistered: r.IsRegistered,
		IsAdmin:      r.IsAdmin,
		Subscribed:   r.Subscribed,
	}
}

// Tx is the handle of a submitted write.
type Tx struct {
	Hash   common.Hash
	Method string
	From   common.Address

	raw *types.Transaction
}

// Receipt is the confirmation of a mined write.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
}

// Reader groups the read-only contract calls. from is the caller identity
// the contract resolves msg.sender-scoped data for.
type Reader interface {
	GetUser(ctx context.Context, user common.Address) (UserRecord, error)
	GetRecoveryWallets(ctx context.Context, from common.Address) ([2]common.Address, error)
	GetWalletToProtect(ctx context.Context, from common.Address) (common.Address, error)
	GetPersonalMultiSig(ctx context.Context, from common.Address) (common.Address, error)
	GetPersonalMultiSigBalance(ctx context.Context, from common.Address) (*big.Int, error)
	GetMultiSigOwners(ctx context.Context, multisig common.Address) ([]common.Address, error)
	GetApprovals(ctx context.Context, from common.Address) (bool, error)
	GetApprovalsFromWalletToProtect(ctx context.Context, from common.Address) (bool, error)
	IsWalletToProtect(ctx context.Context, wallet common.Address) (bool, error)
}

// Writer groups the state-changing calls and the confirmation primitive.
type Writer interface {
	RegisterAdmin(ctx context.Context, s wallet.Signer, username, email string) (Tx, error)
	SubscribeAdmin(ctx context.Context, s wallet.Signer) (Tx, error)
	CreatePersonalMultisig(ctx context.Context, s wallet.Signer, recovery [2]common.Address, walletToProtect common.Address) (Tx, error)
	ValidateApproval(ctx context.Context, s wallet.Signer) (Tx, error)
	ApproveTransfer(ctx context.Context, s wallet.Signer) (Tx, error)
	TransferToMultisig(ctx context.Context, s wallet.Signer, amount *big.Int) (Tx, error)
	WaitMined(ctx context.Context, tx Tx) (Receipt, error)
}

// Client is a full contract backend.
type Client interface {
	Reader
	Writer
}
