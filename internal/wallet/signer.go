// Package wallet is the signing collaborator: it turns a connected address
// into something that can authorize contract writes and sign login messages.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrRejected means the wallet holder refused to sign. It is never retried.
	ErrRejected = errors.New("signature rejected by wallet")
	// ErrNoSigner means no signer is available for the connected address.
	ErrNoSigner = errors.New("no signer for address")
	// ErrInvalidSignature is returned when a signature cannot be decoded or recovered.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer authorizes writes on behalf of one address.
type Signer interface {
	Address() common.Address
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
	// SignMessage signs msg as an EIP-191 personal message. The returned
	// signature has V in {27, 28}, like browser wallets produce.
	SignMessage(msg []byte) ([]byte, error)
}

// KeySigner signs with a private key held in memory.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewKeySigner wraps key for chainID.
func NewKeySigner(key *ecdsa.PrivateKey, chainID *big.Int) *KeySigner {
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey), chainID: new(big.Int).Set(chainID)}
}

// ParseKeySigner decodes a hex private key, with or without 0x prefix.
func ParseKeySigner(hexKey string, chainID *big.Int) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return NewKeySigner(key, chainID), nil
}

// Address returns the signer's address.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// TransactOpts returns transaction options bound to ctx.
func (s *KeySigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// SignMessage implements Signer.
func (s *KeySigner) SignMessage(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverAddress returns the address that signed msg as an EIP-191 personal
// message. V may be encoded as 0/1 or 27/28.
func RecoverAddress(msg, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Keyring maps addresses to the signers configured for this process.
type Keyring struct {
	mu      sync.RWMutex
	signers map[common.Address]Signer
}

// NewKeyring builds a keyring from hex private keys.
func NewKeyring(chainID *big.Int, hexKeys []string) (*Keyring, error) {
	k := &Keyring{signers: make(map[common.Address]Signer)}
	for i, hexKey := range hexKeys {
		if strings.TrimSpace(hexKey) == "" {
			continue
		}
		s, err := ParseKeySigner(hexKey, chainID)
		if err != nil {
			return nil, fmt.Errorf("signer key %d: %w", i, err)
		}
		k.Add(s)
	}
	return k, nil
}

// Add registers s under its address.
func (k *Keyring) Add(s Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.signers[s.Address()] = s
}

// Signer returns the signer for addr.
func (k *Keyring) Signer(addr common.Address) (Signer, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.signers[addr]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoSigner, addr.Hex())
	}
	return s, nil
}

// Addresses lists the addresses the keyring can sign for.
func (k *Keyring) Addresses() []common.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]common.Address, 0, len(k.signers))
	for addr := range k.signers {
		out = append(out, addr)
	}
	return out
}
