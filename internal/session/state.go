// Package session holds the session-scoped dashboard state and the pure
// reducer that is the only way to change it.
//
// State changes are described by Action values. The Action interface is
// sealed: only the four action types of this package satisfy it, so a type
// switch over them is exhaustive. A nil Action is the one value Reduce cannot
// handle and it is reported as an *UnknownActionError.
package session

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// UserProfile mirrors the on-chain profile of the connected address. Zero
// values are the defaults for fields the contract has not reported.
type UserProfile struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	IsRegistered bool   `json:"is_registered"`
	IsAdmin      bool   `json:"is_admin"`
	Subscribed   bool   `json:"subscribed"`
}

// State is the session record. The zero address stands for an absent
// address and a nil CurrentUser for a profile not fetched yet.
type State struct {
	ContractAddress common.Address `json:"contract_address"`
	UserAddress     common.Address `json:"user_address"`
	CurrentUser     *UserProfile   `json:"current_user,omitempty"`
	VaultApproved   bool           `json:"vault_approved"`
}

// InitialState returns the state of a freshly opened session targeting contract.
func InitialState(contract common.Address) State {
	return State{ContractAddress: contract}
}

// Subscribed reports whether the current user enrolled in the recovery service.
func (s State) Subscribed() bool {
	return s.CurrentUser != nil && s.CurrentUser.Subscribed
}

// Profile returns the current profile, or the all-default profile when none was fetched.
func (s State) Profile() UserProfile {
	if s.CurrentUser == nil {
		return UserProfile{}
	}
	return *s.CurrentUser
}

// Kind tags an action.
type Kind string

const (
	KindAddUserAddress Kind = "ADD_USER_ADDRESS"
	KindAddUser        Kind = "ADD_USER"
	KindSubscribeUser  Kind = "SUBSCRIBE_USER"
	KindApproveVault   Kind = "APPROVE_VAULT"
)

// Action is a requested state change.
type Action interface {
	Kind() Kind
	sealed()
}

// AddUserAddress records the address of the wallet that connected.
type AddUserAddress struct {
	Address common.Address
}

// AddUser replaces the current profile.
type AddUser struct {
	Profile UserProfile
}

// SubscribeUser updates the subscription flag of the current profile only.
type SubscribeUser struct {
	Subscribed bool
}

// ApproveVault records whether the personal vault was validated.
type ApproveVault struct {
	Approved bool
}

func (AddUserAddress) Kind() Kind { return KindAddUserAddress }
func (AddUser) Kind() Kind        { return KindAddUser }
func (SubscribeUser) Kind() Kind  { return KindSubscribeUser }
func (ApproveVault) Kind() Kind   { return KindApproveVault }

func (AddUserAddress) sealed() {}
func (AddUser) sealed()        {}
func (SubscribeUser) sealed()  {}
func (ApproveVault) sealed()   {}

// UnknownActionError reports an action the reducer has no case for. It is an
// integration bug, never a user-triggered condition.
type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("session: undefined reducer action %T", e.Action)
}
