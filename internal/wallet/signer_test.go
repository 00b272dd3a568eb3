package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// First anvil/hardhat development key.
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var devAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestParseKeySigner(t *testing.T) {
	s, err := ParseKeySigner(devKey, big.NewInt(31337))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Address() != devAddress {
		t.Fatalf("expected %s, got %s", devAddress.Hex(), s.Address().Hex())
	}

	opts, err := s.TransactOpts(context.Background())
	if err != nil {
		t.Fatalf("transact opts: %v", err)
	}
	if opts.From != devAddress {
		t.Fatalf("transactor from %s", opts.From.Hex())
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s := NewKeySigner(key, big.NewInt(1))
	msg := []byte("dmsd login nonce 42")

	sig, err := s.SignMessage(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Fatalf("expected wallet-style V, got %d", v)
	}

	got, err := RecoverAddress(msg, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != s.Address() {
		t.Fatalf("recovered %s, want %s", got.Hex(), s.Address().Hex())
	}

	other, err := RecoverAddress([]byte("another message"), sig)
	if err == nil && other == s.Address() {
		t.Fatalf("signature must not verify a different message")
	}

	if _, err := RecoverAddress(msg, sig[:10]); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestKeyring(t *testing.T) {
	k, err := NewKeyring(big.NewInt(31337), []string{devKey, " "})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	if len(k.Addresses()) != 1 {
		t.Fatalf("expected one signer, got %d", len(k.Addresses()))
	}
	if _, err := k.Signer(devAddress); err != nil {
		t.Fatalf("signer: %v", err)
	}
	if _, err := k.Signer(common.HexToAddress("0x01")); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}

	if _, err := NewKeyring(big.NewInt(1), []string{"not-a-key"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
