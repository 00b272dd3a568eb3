package contract

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dmsd/dmsd/internal/wallet"
)

type memVault struct {
	recovery          [2]common.Address
	protect           common.Address
	multisig          common.Address
	owners            []common.Address
	balance           *big.Int
	adminApproved     bool
	protectedApproved bool
}

type memTx struct {
	apply func()
	mined chan struct{}
	block uint64
}

// Memory is an in-process DMSD contract. Writes are checked against the
// current state when submitted, like a node estimating gas, and take effect
// when mined. Mining is immediate unless paused.
type Memory struct {
	mu sync.Mutex

	address   common.Address
	users     map[common.Address]UserRecord
	vaults    map[common.Address]*memVault
	protected map[common.Address]common.Address
	multisigs map[common.Address]common.Address

	txs      map[common.Hash]*memTx
	queue    []*memTx
	nonce    uint64
	deploys  uint64
	block    uint64
	paused   bool
	failures map[string]error
}

var _ Client = (*Memory)(nil)

// NewMemory returns an empty contract deployed at address.
func NewMemory(address common.Address) *Memory {
	return &Memory{
		address:   address,
		users:     make(map[common.Address]UserRecord),
		vaults:    make(map[common.Address]*memVault),
		protected: make(map[common.Address]common.Address),
		multisigs: make(map[common.Address]common.Address),
		txs:       make(map[common.Hash]*memTx),
		failures:  make(map[string]error),
	}
}

// Address returns the contract address.
func (m *Memory) Address() common.Address {
	return m.address
}

// FailNext makes the next call of method return err.
func (m *Memory) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

// PauseMining holds every subsequent write unmined until ResumeMining.
func (m *Memory) PauseMining() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// ResumeMining mines the queued writes in submission order.
func (m *Memory) ResumeMining() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	for _, tx := range m.queue {
		m.mineLocked(tx)
	}
	m.queue = nil
}

// Pending reports how many writes wait for mining.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Memory) failLocked(method string) error {
	err, ok := m.failures[method]
	if !ok {
		return nil
	}
	delete(m.failures, method)
	return err
}

func (m *Memory) vaultOfLocked(from common.Address) *memVault {
	if v, ok := m.vaults[from]; ok {
		return v
	}
	if admin, ok := m.protected[from]; ok {
		return m.vaults[admin]
	}
	return nil
}

func (m *Memory) read(ctx context.Context, method string, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked(method); err != nil {
		return err
	}
	fn()
	return nil
}

// GetUser implements Reader.
func (m *Memory) GetUser(ctx context.Context, user common.Address) (UserRecord, error) {
	var rec UserRecord
	err := m.read(ctx, methodGetUser, func() { rec = m.users[user] })
	return rec, err
}

// GetRecoveryWallets implements Reader.
func (m *Memory) GetRecoveryWallets(ctx context.Context, from common.Address) ([2]common.Address, error) {
	var out [2]common.Address
	err := m.read(ctx, methodGetRecoveryWallets, func() {
		if v := m.vaults[from]; v != nil {
			out = v.recovery
		}
	})
	return out, err
}

// GetWalletToProtect implements Reader.
func (m *Memory) GetWalletToProtect(ctx context.Context, from common.Address) (common.Address, error) {
	var out common.Address
	err := m.read(ctx, methodGetWalletToProtect, func() {
		if v := m.vaults[from]; v != nil {
			out = v.protect
		}
	})
	return out, err
}

// GetPersonalMultiSig implements Reader. The protected wallet resolves to
// the multisig of its admin.
func (m *Memory) GetPersonalMultiSig(ctx context.Context, from common.Address) (common.Address, error) {
	var out common.Address
	err := m.read(ctx, methodGetPersonalMultiSig, func() {
		if v := m.vaultOfLocked(from); v != nil {
			out = v.multisig
		}
	})
	return out, err
}

// GetPersonalMultiSigBalance implements Reader.
func (m *Memory) GetPersonalMultiSigBalance(ctx context.Context, from common.Address) (*big.Int, error) {
	out := new(big.Int)
	err := m.read(ctx, methodGetPersonalMultiSigBalance, func() {
		if v := m.vaultOfLocked(from); v != nil {
			out.Set(v.balance)
		}
	})
	return out, err
}

// GetMultiSigOwners implements Reader.
func (m *Memory) GetMultiSigOwners(ctx context.Context, multisig common.Address) ([]common.Address, error) {
	var out []common.Address
	var found bool
	err := m.read(ctx, methodGetOwners, func() {
		admin, ok := m.multisigs[multisig]
		if !ok {
			return
		}
		found = true
		out = append(out, m.vaults[admin].owners...)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s %s: %w: no multisig deployed", methodGetOwners, multisig.Hex(), ErrReverted)
	}
	return out, nil
}

// GetApprovals implements Reader.
func (m *Memory) GetApprovals(ctx context.Context, from common.Address) (bool, error) {
	var out bool
	err := m.read(ctx, methodGetApprovals, func() {
		if v := m.vaultOfLocked(from); v != nil {
			out = v.adminApproved
		}
	})
	return out, err
}

// GetApprovalsFromWalletToProtect implements Reader.
func (m *Memory) GetApprovalsFromWalletToProtect(ctx context.Context, from common.Address) (bool, error) {
	var out bool
	err := m.read(ctx, methodGetApprovalsFromWalletToProtect, func() {
		if v := m.vaultOfLocked(from); v != nil {
			out = v.protectedApproved
		}
	})
	return out, err
}

// IsWalletToProtect implements Reader.
func (m *Memory) IsWalletToProtect(ctx context.Context, w common.Address) (bool, error) {
	var out bool
	err := m.read(ctx, methodIsWalletToProtect, func() {
		_, out = m.protected[w]
	})
	return out, err
}

func revert(method, reason string) error {
	return fmt.Errorf("%s: %w: %s", method, ErrReverted, reason)
}

// submit runs check against the current state and queues apply for mining.
func (m *Memory) submit(ctx context.Context, s wallet.Signer, method string, check func(from common.Address) (func(), error)) (Tx, error) {
	opts, err := s.TransactOpts(ctx)
	if err != nil {
		return Tx{}, err
	}
	if err := ctx.Err(); err != nil {
		return Tx{}, err
	}
	from := opts.From

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked(method); err != nil {
		return Tx{}, err
	}
	apply, err := check(from)
	if err != nil {
		return Tx{}, err
	}

	m.nonce++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], m.nonce)
	hash := crypto.Keccak256Hash(m.address.Bytes(), from.Bytes(), []byte(method), n[:])

	tx := &memTx{apply: apply, mined: make(chan struct{})}
	m.txs[hash] = tx
	if m.paused {
		m.queue = append(m.queue, tx)
	} else {
		m.mineLocked(tx)
	}
	return Tx{Hash: hash, Method: method, From: from}, nil
}

func (m *Memory) mineLocked(tx *memTx) {
	m.block++
	tx.block = m.block
	tx.apply()
	close(tx.mined)
}

// RegisterAdmin implements Writer.
func (m *Memory) RegisterAdmin(ctx context.Context, s wallet.Signer, username, email string) (Tx, error) {
	return m.submit(ctx, s, MethodRegisterAdmin, func(from common.Address) (func(), error) {
		if m.users[from].IsRegistered {
			return nil, revert(MethodRegisterAdmin, "already registered")
		}
		return func() {
			rec := m.users[from]
			rec.Username, rec.Email = username, email
			rec.IsRegistered, rec.IsAdmin = true, true
			m.users[from] = rec
		}, nil
	})
}

// SubscribeAdmin implements Writer.
func (m *Memory) SubscribeAdmin(ctx context.Context, s wallet.Signer) (Tx, error) {
	return m.submit(ctx, s, MethodSubscribeAdmin, func(from common.Address) (func(), error) {
		rec := m.users[from]
		if !rec.IsRegistered {
			return nil, revert(MethodSubscribeAdmin, "user not registered")
		}
		if rec.Subscribed {
			return nil, revert(MethodSubscribeAdmin, "already subscribed")
		}
		return func() {
			rec := m.users[from]
			rec.Subscribed = true
			m.users[from] = rec
		}, nil
	})
}

// CreatePersonalMultisig implements Writer.
func (m *Memory) CreatePersonalMultisig(ctx context.Context, s wallet.Signer, recovery [2]common.Address, walletToProtect common.Address) (Tx, error) {
	return m.submit(ctx, s, MethodCreatePersonalMultisig, func(from common.Address) (func(), error) {
		switch {
		case !m.users[from].Subscribed:
			return nil, revert(MethodCreatePersonalMultisig, "subscription required")
		case m.vaults[from] != nil:
			return nil, revert(MethodCreatePersonalMultisig, "multisig already created")
		case recovery[0] == (common.Address{}) || recovery[1] == (common.Address{}) || walletToProtect == (common.Address{}):
			return nil, revert(MethodCreatePersonalMultisig, "zero address")
		case recovery[0] == recovery[1] || recovery[0] == walletToProtect || recovery[1] == walletToProtect:
			return nil, revert(MethodCreatePersonalMultisig, "duplicate address")
		case walletToProtect == from:
			return nil, revert(MethodCreatePersonalMultisig, "cannot protect the admin wallet")
		}
		if _, taken := m.protected[walletToProtect]; taken {
			return nil, revert(MethodCreatePersonalMultisig, "wallet already protected")
		}
		return func() {
			addr := crypto.CreateAddress(m.address, m.deploys)
			m.deploys++
			m.vaults[from] = &memVault{
				recovery: recovery,
				protect:  walletToProtect,
				multisig: addr,
				owners:   []common.Address{recovery[0], recovery[1], m.address},
				balance:  new(big.Int),
			}
			m.protected[walletToProtect] = from
			m.multisigs[addr] = from
		}, nil
	})
}

// ValidateApproval implements Writer.
func (m *Memory) ValidateApproval(ctx context.Context, s wallet.Signer) (Tx, error) {
	return m.submit(ctx, s, MethodValidateApproval, func(from common.Address) (func(), error) {
		v := m.vaults[from]
		if v == nil {
			return nil, revert(MethodValidateApproval, "no multisig")
		}
		return func() { v.adminApproved = true }, nil
	})
}

// ApproveTransfer implements Writer.
func (m *Memory) ApproveTransfer(ctx context.Context, s wallet.Signer) (Tx, error) {
	return m.submit(ctx, s, MethodApproveTransfer, func(from common.Address) (func(), error) {
		admin, ok := m.protected[from]
		if !ok {
			return nil, revert(MethodApproveTransfer, "caller is not a protected wallet")
		}
		v := m.vaults[admin]
		return func() { v.protectedApproved = true }, nil
	})
}

// TransferToMultisig implements Writer.
func (m *Memory) TransferToMultisig(ctx context.Context, s wallet.Signer, amount *big.Int) (Tx, error) {
	return m.submit(ctx, s, MethodTransferToMultisig, func(from common.Address) (func(), error) {
		v := m.vaults[from]
		switch {
		case v == nil:
			return nil, revert(MethodTransferToMultisig, "no multisig")
		case !v.adminApproved || !v.protectedApproved:
			return nil, revert(MethodTransferToMultisig, "transfer not approved")
		case amount == nil || amount.Sign() <= 0:
			return nil, revert(MethodTransferToMultisig, "amount must be positive")
		}
		credit := new(big.Int).Set(amount)
		return func() { v.balance.Add(v.balance, credit) }, nil
	})
}

// WaitMined implements Writer.
func (m *Memory) WaitMined(ctx context.Context, tx Tx) (Receipt, error) {
	m.mu.Lock()
	rec, ok := m.txs[tx.Hash]
	m.mu.Unlock()
	if !ok {
		return Receipt{}, ErrUnknownTx
	}
	select {
	case <-rec.mined:
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Receipt{TxHash: tx.Hash, BlockNumber: rec.block}, nil
}
