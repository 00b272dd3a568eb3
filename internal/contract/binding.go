package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dmsd/dmsd/internal/wallet"
)

// approvalGasLimit is the gas limit the dashboard forces on approve and
// transfer writes, whose estimation is unreliable on the deployed contract.
const approvalGasLimit = 1_000_000

// Backend is what the binding needs from an Ethereum node. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Binding talks to a deployed DMSD contract.
type Binding struct {
	address     common.Address
	backend     Backend
	dmsd        *bind.BoundContract
	multiSigABI abi.ABI
}

var _ Client = (*Binding)(nil)

// NewBinding binds the contract deployed at address.
func NewBinding(address common.Address, backend Backend) (*Binding, error) {
	parsed, err := abi.JSON(strings.NewReader(dmsdABI))
	if err != nil {
		return nil, fmt.Errorf("parse dmsd abi: %w", err)
	}
	multi, err := abi.JSON(strings.NewReader(multiSigABI))
	if err != nil {
		return nil, fmt.Errorf("parse multisig abi: %w", err)
	}
	return &Binding{
		address:     address,
		backend:     backend,
		dmsd:        bind.NewBoundContract(address, parsed, backend, backend, backend),
		multiSigABI: multi,
	}, nil
}

// Address returns the bound contract address.
func (b *Binding) Address() common.Address {
	return b.address
}

func (b *Binding) call(ctx context.Context, from common.Address, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := b.dmsd.Call(&bind.CallOpts{Context: ctx, From: from}, &out, method, params...); err != nil {
		return nil, classify(method, err)
	}
	return out, nil
}

// GetUser implements Reader.
func (b *Binding) GetUser(ctx context.Context, user common.Address) (UserRecord, error) {
	out, err := b.call(ctx, user, methodGetUser, user)
	if err != nil {
		return UserRecord{}, err
	}
	return UserRecord{
		Username:     *abi.ConvertType(out[0], new(string)).(*string),
		Email:        *abi.ConvertType(out[1], new(string)).(*string),
		IsRegistered: *abi.ConvertType(out[2], new(bool)).(*bool),
		IsAdmin:      *abi.ConvertType(out[3], new(bool)).(*bool),
		Subscribed:   *abi.ConvertType(out[4], new(bool)).(*bool),
	}, nil
}

// GetRecoveryWallets implements Reader.
func (b *Binding) GetRecoveryWallets(ctx context.Context, from common.Address) ([2]common.Address, error) {
	out, err := b.call(ctx, from, methodGetRecoveryWallets)
	if err != nil {
		return [2]common.Address{}, err
	}
	return *abi.ConvertType(out[0], new([2]common.Address)).(*[2]common.Address), nil
}

// GetWalletToProtect implements Reader.
func (b *Binding) GetWalletToProtect(ctx context.Context, from common.Address) (common.Address, error) {
	return b.address0(ctx, from, methodGetWalletToProtect)
}

// GetPersonalMultiSig implements Reader.
func (b *Binding) GetPersonalMultiSig(ctx context.Context, from common.Address) (common.Address, error) {
	return b.address0(ctx, from, methodGetPersonalMultiSig)
}

// GetPersonalMultiSigBalance implements Reader.
func (b *Binding) GetPersonalMultiSigBalance(ctx context.Context, from common.Address) (*big.Int, error) {
	out, err := b.call(ctx, from, methodGetPersonalMultiSigBalance)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetMultiSigOwners implements Reader.
func (b *Binding) GetMultiSigOwners(ctx context.Context, multisig common.Address) ([]common.Address, error) {
	bound := bind.NewBoundContract(multisig, b.multiSigABI, b.backend, b.backend, b.backend)
	var out []interface{}
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, methodGetOwners); err != nil {
		return nil, classify(methodGetOwners, err)
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// GetApprovals implements Reader.
func (b *Binding) GetApprovals(ctx context.Context, from common.Address) (bool, error) {
	return b.bool0(ctx, from, methodGetApprovals)
}

// GetApprovalsFromWalletToProtect implements Reader.
func (b *Binding) GetApprovalsFromWalletToProtect(ctx context.Context, from common.Address) (bool, error) {
	return b.bool0(ctx, from, methodGetApprovalsFromWalletToProtect)
}

// IsWalletToProtect implements Reader.
func (b *Binding) IsWalletToProtect(ctx context.Context, w common.Address) (bool, error) {
	return b.bool0(ctx, w, methodIsWalletToProtect, w)
}

func (b *Binding) address0(ctx context.Context, from common.Address, method string) (common.Address, error) {
	out, err := b.call(ctx, from, method)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (b *Binding) bool0(ctx context.Context, from common.Address, method string, params ...interface{}) (bool, error) {
	out, err := b.call(ctx, from, method, params...)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// RegisterAdmin implements Writer.
func (b *Binding) RegisterAdmin(ctx context.Context, s wallet.Signer, username, email string) (Tx, error) {
	return b.transact(ctx, s, 0, MethodRegisterAdmin, username, email)
}

// SubscribeAdmin implements Writer.
func (b *Binding) SubscribeAdmin(ctx context.Context, s wallet.Signer) (Tx, error) {
	return b.transact(ctx, s, 0, MethodSubscribeAdmin)
}

// CreatePersonalMultisig implements Writer.
func (b *Binding) CreatePersonalMultisig(ctx context.Context, s wallet.Signer, recovery [2]common.Address, walletToProtect common.Address) (Tx, error) {
	return b.transact(ctx, s, 0, MethodCreatePersonalMultisig, recovery, walletToProtect)
}

// ValidateApproval implements Writer.
func (b *Binding) ValidateApproval(ctx context.Context, s wallet.Signer) (Tx, error) {
	return b.transact(ctx, s, 0, MethodValidateApproval)
}

// ApproveTransfer implements Writer.
func (b *Binding) ApproveTransfer(ctx context.Context, s wallet.Signer) (Tx, error) {
	return b.transact(ctx, s, approvalGasLimit, MethodApproveTransfer)
}

// TransferToMultisig implements Writer.
func (b *Binding) TransferToMultisig(ctx context.Context, s wallet.Signer, amount *big.Int) (Tx, error) {
	return b.transact(ctx, s, approvalGasLimit, MethodTransferToMultisig, amount)
}

func (b *Binding) transact(ctx context.Context, s wallet.Signer, gasLimit uint64, method string, params ...interface{}) (Tx, error) {
	opts, err := s.TransactOpts(ctx)
	if err != nil {
		return Tx{}, err
	}
	if gasLimit > 0 {
		opts.GasLimit = gasLimit
	}
	tx, err := b.dmsd.Transact(opts, method, params...)
	if err != nil {
		return Tx{}, classify(method, err)
	}
	return Tx{Hash: tx.Hash(), Method: method, From: s.Address(), raw: tx}, nil
}

// WaitMined blocks until tx is mined or ctx ends.
func (b *Binding) WaitMined(ctx context.Context, tx Tx) (Receipt, error) {
	if tx.raw == nil {
		return Receipt{}, ErrUnknownTx
	}
	receipt, err := bind.WaitMined(ctx, b.backend, tx.raw)
	if err != nil {
		return Receipt{}, classify(tx.Method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, fmt.Errorf("%s %s: %w", tx.Method, tx.Hash.Hex(), ErrReverted)
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return Receipt{TxHash: receipt.TxHash, BlockNumber: block}, nil
}

// classify maps provider errors onto the package sentinels.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, wallet.ErrRejected) || errors.Is(err, ErrReverted) || errors.Is(err, ErrUnavailable) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "revert"):
		return fmt.Errorf("%s: %w: %v", method, ErrReverted, err)
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return fmt.Errorf("%s: %w: %v", method, wallet.ErrRejected, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "eof"),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "503"), strings.Contains(msg, "502"):
		return fmt.Errorf("%s: %w: %v", method, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", method, err)
}
