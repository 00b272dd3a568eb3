package identity

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Account is a wallet that has signed in at least once.
type Account struct {
	ID           string
	Address      common.Address
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    time.Time
}
