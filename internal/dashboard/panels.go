package dashboard

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/dmsd/dmsd/internal/contract"
	"github.com/dmsd/dmsd/internal/ethaddr"
	"github.com/dmsd/dmsd/internal/nav"
	"github.com/dmsd/dmsd/internal/session"
	"github.com/dmsd/dmsd/internal/wallet"
)

// MultisigThreshold is the signature threshold of every personal multisig.
const MultisigThreshold = "2/3"

// DefaultTransferAmount is moved to the vault when no amount is given (1e12 wei).
var DefaultTransferAmount = big.NewInt(1_000_000_000_000)

// HomeSummary is the Home panel view.
type HomeSummary struct {
	Title           string    `json:"title"`
	Address         string    `json:"address"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Service         string    `json:"service"`
	RecoveryWallets [2]string `json:"recovery_wallets"`
	WalletToProtect string    `json:"wallet_to_protect"`
}

// Summary loads the profile and vault addresses of the connected wallet.
func (d *Dashboard) Summary(ctx context.Context) (HomeSummary, error) {
	m, from, err := d.reading(nav.Home)
	if err != nil {
		return HomeSummary{}, err
	}
	ctx, cancel := bind(ctx, m)
	defer cancel()

	var (
		user     contract.UserRecord
		recovery [2]common.Address
		protect  common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = d.deps.Contract.GetUser(gctx, from)
		return err
	})
	g.Go(func() (err error) {
		recovery, err = d.deps.Contract.GetRecoveryWallets(gctx, from)
		return err
	})
	g.Go(func() (err error) {
		protect, err = d.deps.Contract.GetWalletToProtect(gctx, from)
		return err
	})
	if err := g.Wait(); err != nil {
		return HomeSummary{}, fmt.Errorf("load summary: %w", err)
	}

	state, mounted, err := d.dispatchMounted(m, session.AddUser{Profile: user.Profile()})
	if err != nil {
		return HomeSummary{}, err
	}
	if !mounted {
		return HomeSummary{}, ErrPanelNotActive
	}

	profile := state.Profile()
	summary := HomeSummary{
		Title:           Text(KeyHomeTitle, d.deps.Language),
		Address:         ethaddr.Display(from),
		Username:        orNotAvailable(profile.Username),
		Email:           orNotAvailable(profile.Email),
		Service:         ethaddr.NotAvailable,
		RecoveryWallets: [2]string{ethaddr.Display(recovery[0]), ethaddr.Display(recovery[1])},
		WalletToProtect: ethaddr.Display(protect),
	}
	if profile.Subscribed {
		summary.Service = Text(KeyServiceRecovery, d.deps.Language)
	}
	return summary, nil
}

// SubscriptionView is the Subscription panel view.
type SubscriptionView struct {
	Title      string `json:"title"`
	Registered bool   `json:"registered"`
	Subscribed bool   `json:"subscribed"`
}

// Subscription reports where the connected wallet is in the enrolment flow.
func (d *Dashboard) Subscription() (SubscriptionView, error) {
	if _, _, err := d.reading(nav.Subscription); err != nil {
		return SubscriptionView{}, err
	}
	profile := d.store.Snapshot().Profile()
	return SubscriptionView{
		Title:      Text(KeySubscriptionTitle, d.deps.Language),
		Registered: profile.IsRegistered,
		Subscribed: profile.Subscribed,
	}, nil
}

// Register records the admin profile, then refetches it once confirmed.
func (d *Dashboard) Register(ctx context.Context, username, email string) (*Task, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	}
	return d.write(ctx, nav.Subscription,
		func(ctx context.Context, s wallet.Signer) (contract.Tx, error) {
			return d.deps.Contract.RegisterAdmin(ctx, s, username, email)
		},
		d.refetchProfile,
	)
}

// Subscribe enrols the admin in the recovery service.
func (d *Dashboard) Subscribe(ctx context.Context) (*Task, error) {
	return d.write(ctx, nav.Subscription,
		func(ctx context.Context, s wallet.Signer) (contract.Tx, error) {
			return d.deps.Contract.SubscribeAdmin(ctx, s)
		},
		after(session.SubscribeUser{Subscribed: true}),
	)
}

// MultisigForm holds the raw addresses typed into the vault creation form.
type MultisigForm struct {
	Recovery1       string `json:"recovery_1"`
	Recovery2       string `json:"recovery_2"`
	WalletToProtect string `json:"wallet_to_protect"`
}

// Parse validates the three addresses and rejects duplicates.
func (f MultisigForm) Parse() ([2]common.Address, common.Address, error) {
	var parsed [3]common.Address
	for i, raw := range []string{f.Recovery1, f.Recovery2, f.WalletToProtect} {
		addr, err := ethaddr.Parse(raw)
		if err != nil {
			return [2]common.Address{}, common.Address{}, fmt.Errorf("address %d: %w", i+1, err)
		}
		for j := 0; j < i; j++ {
			if parsed[j] == addr {
				return [2]common.Address{}, common.Address{}, fmt.Errorf("%w: address %d repeats address %d", ErrInvalidInput, i+1, j+1)
			}
		}
		parsed[i] = addr
	}
	return [2]common.Address{parsed[0], parsed[1]}, parsed[2], nil
}

// CreateMultisig deploys the personal multisig guarding the wallet to protect.
func (d *Dashboard) CreateMultisig(ctx context.Context, form MultisigForm) (*Task, error) {
	recovery, protect, err := form.Parse()
	if err != nil {
		return nil, err
	}
	if protect == d.store.Snapshot().UserAddress {
		return nil, fmt.Errorf("%w: the wallet to protect must differ from the admin wallet", ErrInvalidInput)
	}
	return d.write(ctx, nav.Subscription,
		func(ctx context.Context, s wallet.Signer) (contract.Tx, error) {
			return d.deps.Contract.CreatePersonalMultisig(ctx, s, recovery, protect)
		},
		d.refetchProfile,
	)
}

// VaultView is the Vault panel view.
type VaultView struct {
	Message     string `json:"message"`
	Subscribed  bool   `json:"subscribed"`
	Approved    bool   `json:"approved"`
	CanValidate bool   `json:"can_validate"`
}

// VaultStatus reads the admin approval flag.
func (d *Dashboard) VaultStatus(ctx context.Context) (VaultView, error) {
	m, from, err := d.reading(nav.Vault)
	if err != nil {
		return VaultView{}, err
	}
	state := d.store.Snapshot()
	if !state.Subscribed() {
		return VaultView{Message: Text(KeyVaultUnsubscribed, d.deps.Language)}, nil
	}

	ctx, cancel := bind(ctx, m)
	defer cancel()
	approved, err := d.deps.Contract.GetApprovals(ctx, from)
	if err != nil {
		return VaultView{}, fmt.Errorf("load approvals: %w", err)
	}
	if _, mounted, err := d.dispatchMounted(m, session.ApproveVault{Approved: approved}); err != nil {
		return VaultView{}, err
	} else if !mounted {
		return VaultView{}, ErrPanelNotActive
	}

	view := VaultView{Subscribed: true, Approved: approved, CanValidate: !approved}
	if approved {
		view.Message = Text(KeyVaultValidated, d.deps.Language)
	} else {
		view.Message = Text(KeyVaultValidate, d.deps.Language)
	}
	return view, nil
}

// ValidateApproval records the admin approval of the vault.
func (d *Dashboard) ValidateApproval(ctx context.Context) (*Task, error) {
	return d.write(ctx, nav.Vault,
		func(ctx context.Context, s wallet.Signer) (contract.Tx, error) {
			return d.deps.Contract.ValidateApproval(ctx, s)
		},
		after(session.ApproveVault{Approved: true}),
	)
}

// MultisigView describes the personal multisig of the admin.
type MultisigView struct {
	Title     string   `json:"title"`
	Address   string   `json:"address"`
	Owners    []string `json:"owners"`
	OwnersFor string   `json:"owners_description"`
	Threshold string   `json:"threshold"`
	Balance   string   `json:"balance_wei"`
}

// Multisig loads the vault address, its owners and its balance.
func (d *Dashboard) Multisig(ctx context.Context) (MultisigView, error) {
	m, from, err := d.reading(nav.Vault)
	if err != nil {
		return MultisigView{}, err
	}
	ctx, cancel := bind(ctx, m)
	defer cancel()

	view := MultisigView{
		Title:     Text(KeyMultisigTitle, d.deps.Language),
		OwnersFor: Text(KeyMultisigOwners, d.deps.Language),
		Threshold: MultisigThreshold,
		Address:   ethaddr.NotAvailable,
		Balance:   ethaddr.NotAvailable,
	}
	multisig, err := d.deps.Contract.GetPersonalMultiSig(ctx, from)
	if err != nil {
		return MultisigView{}, fmt.Errorf("load multisig: %w", err)
	}
	if ethaddr.IsUnset(multisig) {
		return view, nil
	}

	var (
		owners  []common.Address
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		owners, err = d.deps.Contract.GetMultiSigOwners(gctx, multisig)
		return err
	})
	g.Go(func() (err error) {
		balance, err = d.deps.Contract.GetPersonalMultiSigBalance(gctx, from)
		return err
	})
	if err := g.Wait(); err != nil {
		return MultisigView{}, fmt.Errorf("load multisig: %w", err)
	}

	view.Address = ethaddr.Display(multisig)
	view.Owners = ethaddr.DisplayAll(owners)
	if balance != nil {
		view.Balance = balance.String()
	}
	return view, nil
}

// TransferToMultisig moves amount wei from the protected wallet into the
// vault. A nil amount transfers DefaultTransferAmount.
func (d *Dashboard) TransferToMultisig(ctx context.Context, amount *big.Int) (*Task, error) {
	if amount == nil {
		amount = new(big.Int).Set(DefaultTransferAmount)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return d.write(ctx, nav.Vault,
		func(ctx context.Context, s wallet.Signer) (contract.Tx, error) {
			return d.deps.Contract.TransferToMultisig(ctx, s, amount)
		},
		nil,
	)
}

// ApprovalView is the Approve panel view of a protected wallet.
type ApprovalView struct {
	Title    string `json:"title"`
	Approved bool   `json:"approved"`
	Message  string `json:"message,omitempty"`
	Receiver string `json:"receiver"`
}

// ApprovalStatus reads whether the protected wallet approved the transfer.
func (d *Dashboard) ApprovalStatus(ctx context.Context) (ApprovalView, error) {
	m, from, err := d.reading(nav.Approve)
	if err != nil {
		return ApprovalView{}, err
	}
	ctx, cancel := bind(ctx, m)
	defer cancel()

	var (
		approved bool
		receiver common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		approved, err = d.deps.Contract.GetApprovalsFromWalletToProtect(gctx, from)
		return err
	})
	g.Go(func() (err error) {
		receiver, err = d.deps.Contract.GetPersonalMultiSig(gctx, from)
		return err
	})
	if err := g.Wait(); err != nil {
		return ApprovalView{}, fmt.Errorf("load approval: %w", err)
	}

	view := ApprovalView{Title: Text(KeyApproveTitle, d.deps.Language), Approved: approved, Receiver: ethaddr.Display(receiver)}
	if approved {
		view.Message = Text(KeyApproveDone, d.deps.Language)
	}
	return view, nil
}

// Approve records the protected wallet's consent to the transfer.
func (d *Dashboard) Approve(ctx context.Context) (*Task, error) {
	return d.write(ctx, nav.Approve,
		func(ctx context.Context, s wallet.Signer) (contract.Tx, error) {
			return d.deps.Contract.ApproveTransfer(ctx, s)
		},
		nil,
	)
}

// reading returns the live mount of p and the connected address.
func (d *Dashboard) reading(p nav.Panel) (*mount, common.Address, error) {
	m, err := d.current(p)
	if err != nil {
		return nil, common.Address{}, err
	}
	from := d.store.Snapshot().UserAddress
	if ethaddr.IsUnset(from) {
		return nil, common.Address{}, ErrNotConnected
	}
	return m, from, nil
}

func (d *Dashboard) refetchProfile(ctx context.Context) ([]session.Action, error) {
	user, err := d.deps.Contract.GetUser(ctx, d.store.Snapshot().UserAddress)
	if err != nil {
		return nil, err
	}
	return []session.Action{session.AddUser{Profile: user.Profile()}}, nil
}

func after(actions ...session.Action) followUp {
	return func(context.Context) ([]session.Action, error) {
		return actions, nil
	}
}

func orNotAvailable(s string) string {
	if s == "" {
		return ethaddr.NotAvailable
	}
	return s
}
