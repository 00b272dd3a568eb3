package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestTouchCreatesThenStamps(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }

	ctx := context.Background()
	account, err := svc.Touch(ctx, alice)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if account.ID == "" || !account.CreatedAt.Equal(first) || !account.LastLogin.Equal(first) {
		t.Fatalf("unexpected account %+v", account)
	}

	later := first.Add(time.Hour)
	svc.now = func() time.Time { return later }
	again, err := svc.Touch(ctx, alice)
	if err != nil {
		t.Fatalf("touch again: %v", err)
	}
	if again.ID != account.ID {
		t.Fatalf("second sign-in must reuse the account")
	}
	if !again.CreatedAt.Equal(first) || !again.LastLogin.Equal(later) {
		t.Fatalf("unexpected timestamps %+v", again)
	}
}

func TestRevokeBumpsTokenVersion(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Revoke(ctx, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Touch(ctx, alice); err != nil {
		t.Fatalf("touch: %v", err)
	}
	version, err := svc.Revoke(ctx, alice)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
	account, _ := svc.Account(ctx, alice)
	if account.TokenVersion != 1 {
		t.Fatalf("expected stored version 1, got %d", account.TokenVersion)
	}
}
