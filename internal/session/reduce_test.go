package session

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
)

var (
	contract = common.HexToAddress("0x65aCd2dD683E6F3E803393CD6A75782Ab806A447")
	alice    = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
)

func TestInitialState(t *testing.T) {
	got := InitialState(contract)
	want := State{ContractAddress: contract}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("initial state mismatch (-want +got):\n%s", diff)
	}
	if got.Subscribed() {
		t.Fatalf("fresh session must not be subscribed")
	}
}

func TestAddUserThenSubscribe(t *testing.T) {
	state, err := Fold(InitialState(contract),
		AddUser{Profile: UserProfile{Email: "a@b.com", Username: "alice", IsAdmin: false, IsRegistered: true, Subscribed: false}},
		SubscribeUser{Subscribed: true},
	)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	want := &UserProfile{Email: "a@b.com", Username: "alice", IsAdmin: false, IsRegistered: true, Subscribed: true}
	if diff := cmp.Diff(want, state.CurrentUser); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscribeWithoutProfileDefaultsFields(t *testing.T) {
	state, err := Reduce(InitialState(contract), SubscribeUser{Subscribed: true})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	want := &UserProfile{Subscribed: true}
	if diff := cmp.Diff(want, state.CurrentUser); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestAddUserAddressChangesOnlyUserAddress(t *testing.T) {
	before, err := Fold(InitialState(contract),
		AddUser{Profile: UserProfile{Email: "a@b.com", Username: "alice"}},
		ApproveVault{Approved: true},
	)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}

	after, err := Reduce(before, AddUserAddress{Address: alice})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}

	want := before
	want.UserAddress = alice
	if diff := cmp.Diff(want, after); diff != "" {
		t.Fatalf("non-interference violated (-want +got):\n%s", diff)
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before, _ := Reduce(InitialState(contract), AddUser{Profile: UserProfile{Username: "alice"}})
	snapshot := *before.CurrentUser

	if _, err := Reduce(before, SubscribeUser{Subscribed: true}); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if diff := cmp.Diff(snapshot, *before.CurrentUser); diff != "" {
		t.Fatalf("input profile mutated (-want +got):\n%s", diff)
	}
}

func TestApproveVault(t *testing.T) {
	state, err := Reduce(InitialState(contract), ApproveVault{Approved: true})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if !state.VaultApproved {
		t.Fatalf("expected vault approved")
	}
	if state.ContractAddress != contract {
		t.Fatalf("contract address changed")
	}
}

func TestReduceUnknownAction(t *testing.T) {
	start := InitialState(contract)
	got, err := Reduce(start, nil)
	var unknown *UnknownActionError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownActionError, got %v", err)
	}
	if diff := cmp.Diff(start, got); diff != "" {
		t.Fatalf("state changed on error (-want +got):\n%s", diff)
	}

	if _, err := Fold(start, ApproveVault{Approved: true}, nil, SubscribeUser{Subscribed: true}); !errors.As(err, &unknown) {
		t.Fatalf("fold must stop at unknown action, got %v", err)
	}
}

func TestSequentialReduceEqualsFold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	addrs := []common.Address{alice, contract, {}}

	for round := 0; round < 50; round++ {
		actions := make([]Action, 1+rng.Intn(12))
		for i := range actions {
			switch rng.Intn(4) {
			case 0:
				actions[i] = AddUserAddress{Address: addrs[rng.Intn(len(addrs))]}
			case 1:
				actions[i] = AddUser{Profile: UserProfile{
					Email:        []string{"", "a@b.com"}[rng.Intn(2)],
					Username:     []string{"", "alice"}[rng.Intn(2)],
					IsRegistered: rng.Intn(2) == 0,
					IsAdmin:      rng.Intn(2) == 0,
					Subscribed:   rng.Intn(2) == 0,
				}}
			case 2:
				actions[i] = SubscribeUser{Subscribed: rng.Intn(2) == 0}
			default:
				actions[i] = ApproveVault{Approved: rng.Intn(2) == 0}
			}
		}

		sequential := InitialState(contract)
		for _, a := range actions {
			next, err := Reduce(sequential, a)
			if err != nil {
				t.Fatalf("reduce: %v", err)
			}
			sequential = next
		}

		folded, err := Fold(InitialState(contract), actions...)
		if err != nil {
			t.Fatalf("fold: %v", err)
		}
		if diff := cmp.Diff(sequential, folded); diff != "" {
			t.Fatalf("round %d: fold differs (-seq +fold):\n%s", round, diff)
		}

		split := rng.Intn(len(actions) + 1)
		head, _ := Fold(InitialState(contract), actions[:split]...)
		resumed, _ := Fold(head, actions[split:]...)
		if diff := cmp.Diff(folded, resumed); diff != "" {
			t.Fatalf("round %d: split fold differs (-fold +split):\n%s", round, diff)
		}
	}
}
