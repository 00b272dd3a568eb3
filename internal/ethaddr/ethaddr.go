// Package ethaddr holds the address conventions shared by every panel: the
// all-zero sentinel means "unset" and renders as N/A, and user-typed
// addresses are validated before they reach a contract write.
package ethaddr

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NotAvailable is what an unset address renders as.
const NotAvailable = "N/A"

var (
	// ErrInvalidAddress is returned for input that is not 0x followed by 40 hex digits.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrChecksum is returned for mixed-case input whose EIP-55 checksum does not match.
	ErrChecksum = errors.New("address checksum mismatch")
	// ErrZeroAddress is returned when the zero sentinel is typed as a real address.
	ErrZeroAddress = errors.New("zero address")
)

// IsUnset reports whether a is the zero-address sentinel.
func IsUnset(a common.Address) bool {
	return a == (common.Address{})
}

// Display renders a for humans: N/A for the sentinel, checksummed hex otherwise.
func Display(a common.Address) string {
	if IsUnset(a) {
		return NotAvailable
	}
	return a.Hex()
}

// DisplayAll renders every address with Display.
func DisplayAll(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = Display(a)
	}
	return out
}

// Parse validates a user-typed address. All-lowercase and all-uppercase input
// is accepted as is; mixed case must carry a valid EIP-55 checksum.
func Parse(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+2*common.AddressLength || !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	s = "0x" + s[2:]
	addr := common.HexToAddress(s)
	if IsUnset(addr) {
		return common.Address{}, ErrZeroAddress
	}
	if body := s[2:]; body != strings.ToLower(body) && body != strings.ToUpper(body) {
		mixed, err := common.NewMixedcaseAddressFromString(s)
		if err != nil {
			return common.Address{}, ErrInvalidAddress
		}
		if !mixed.ValidChecksum() {
			return common.Address{}, ErrChecksum
		}
	}
	return addr, nil
}
