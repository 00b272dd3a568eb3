// Package txlog journals every contract write issued from a dashboard
// session together with its confirmation outcome.
package txlog

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrDuplicate indicates the transaction hash is already journaled.
	ErrDuplicate = errors.New("transaction already recorded")
	// ErrNotFound is returned when completing an unknown hash.
	ErrNotFound = errors.New("transaction not found")
)

// Status is the lifecycle stage of a journaled write.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	// StatusAbandoned marks a write whose panel unmounted before confirmation.
	StatusAbandoned Status = "abandoned"
)

// Final reports whether s is a terminal status.
func (s Status) Final() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusAbandoned
}

// Entry is one journaled write.
type Entry struct {
	Hash        common.Hash    `json:"hash"`
	SessionID   string         `json:"session_id"`
	Address     common.Address `json:"address"`
	Method      string         `json:"method"`
	Panel       string         `json:"panel"`
	Status      Status         `json:"status"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Outcome completes a pending entry.
type Outcome struct {
	Status      Status
	BlockNumber uint64
	Error       string
}

// Journal defines the contract implemented by journal backends.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Complete(ctx context.Context, hash common.Hash, outcome Outcome) (Entry, error)
	ListByAddress(ctx context.Context, address common.Address, limit int) ([]Entry, error)
}

const defaultLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultLimit
	}
	return limit
}
