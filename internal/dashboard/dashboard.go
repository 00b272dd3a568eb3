// Package dashboard composes one session store, one navigation machine and
// the panels that read and write the DMSD contract on behalf of a connected
// wallet.
//
// Every activation of a panel creates a mount. Switching away ends it: reads
// started under it are cancelled and write confirmations that arrive after it
// ended are discarded instead of dispatched.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/language"

	"github.com/dmsd/dmsd/internal/contract"
	"github.com/dmsd/dmsd/internal/logging"
	"github.com/dmsd/dmsd/internal/nav"
	"github.com/dmsd/dmsd/internal/notification"
	"github.com/dmsd/dmsd/internal/session"
	"github.com/dmsd/dmsd/internal/txlog"
	"github.com/dmsd/dmsd/internal/wallet"
)

const defaultTxTimeout = 2 * time.Minute

// Signers resolves the signer of a connected address. *wallet.Keyring satisfies it.
type Signers interface {
	Signer(address common.Address) (wallet.Signer, error)
}

// Deps are the collaborators shared by every dashboard of a process.
type Deps struct {
	Contract  contract.Client
	Signers   Signers
	Journal   txlog.Journal
	Notifier  notification.Notifier
	Logger    *slog.Logger
	Language  language.Tag
	TxTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Journal == nil {
		d.Journal = txlog.NewInMemory()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Language == language.Und {
		d.Language = nav.DefaultLanguage
	}
	if d.TxTimeout <= 0 {
		d.TxTimeout = defaultTxTimeout
	}
	return d
}

// Snapshot is the persisted form of a dashboard.
type Snapshot struct {
	State     session.State `json:"state"`
	Active    nav.Panel     `json:"active"`
	Protected bool          `json:"protected"`
}

type mount struct {
	panel  nav.Panel
	ctx    context.Context
	cancel context.CancelFunc
}

// Dashboard is one wallet session.
type Dashboard struct {
	id      string
	deps    Deps
	store   *session.Store
	machine *nav.Machine
	logger  *slog.Logger

	protected atomic.Bool

	mu     sync.RWMutex
	mount  *mount
	closed bool
	logout   func(ctx context.Context) error
	onChange func()

	tasks sync.WaitGroup
}

// New opens a dashboard for the contract at contractAddress, with Home mounted.
func New(id string, contractAddress common.Address, deps Deps) *Dashboard {
	deps = deps.withDefaults()
	logger := deps.Logger.With("session_id", id)
	d := &Dashboard{
		id:      id,
		deps:    deps,
		store:   session.NewStore(session.InitialState(contractAddress), logger),
		machine: nav.NewMachine(),
		logger:  logger,
	}
	d.mount = newMount(nav.Home)
	return d
}

func newMount(p nav.Panel) *mount {
	ctx, cancel := context.WithCancel(context.Background())
	return &mount{panel: p, ctx: ctx, cancel: cancel}
}

// ID returns the session id.
func (d *Dashboard) ID() string {
	return d.id
}

// Store returns the session store. Observers registered on it run inside
// Dispatch and must not call back into the dashboard.
func (d *Dashboard) Store() *session.Store {
	return d.store
}

// State returns the current session state.
func (d *Dashboard) State() session.State {
	return d.store.Snapshot()
}

// Active returns the active panel.
func (d *Dashboard) Active() nav.Panel {
	return d.machine.Active()
}

// Language returns the language panels render in.
func (d *Dashboard) Language() language.Tag {
	return d.deps.Language
}

// Protected reports whether the connected wallet is a protected wallet.
func (d *Dashboard) Protected() bool {
	return d.protected.Load()
}

// Snapshot captures state, active panel and gate.
func (d *Dashboard) Snapshot() Snapshot {
	return Snapshot{State: d.store.Snapshot(), Active: d.machine.Active(), Protected: d.protected.Load()}
}

// SetLogout installs the side effect run when the logout entry is selected.
func (d *Dashboard) SetLogout(fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logout = fn
}

// setOnChange installs fn, run after every dispatch and navigation once the
// dashboard lock is released.
func (d *Dashboard) setOnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

func (d *Dashboard) changed() {
	d.mu.RLock()
	fn := d.onChange
	d.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Connect records the connected wallet and resolves the sidebar gate. A
// protected wallet lands on the Approve panel.
func (d *Dashboard) Connect(ctx context.Context, address common.Address) error {
	if _, err := d.store.Dispatch(session.AddUserAddress{Address: address}); err != nil {
		return err
	}
	d.changed()
	protected, err := d.deps.Contract.IsWalletToProtect(ctx, address)
	if err != nil {
		return err
	}
	d.protected.Store(protected)
	if protected {
		d.selectPanel(nav.Approve)
	}
	d.logger.Info("wallet connected", "address", address.Hex(), "protected", protected)
	return nil
}

// Restore rehydrates a persisted snapshot.
func (d *Dashboard) Restore(s Snapshot) {
	d.store.Restore(s.State)
	d.protected.Store(s.Protected)
	d.selectPanel(s.Active)
}

// Sidebar returns the entries this session may click.
func (d *Dashboard) Sidebar() []nav.Entry {
	return nav.Sidebar(d.gate(), d.machine.Active(), d.deps.Language)
}

func (d *Dashboard) gate() nav.Gate {
	return nav.Gate{ProtectedWallet: d.protected.Load()}
}

// Select handles a sidebar click by label. Labels of entries the gate hides
// and unknown labels are no-ops. The logout entry runs the logout hook.
func (d *Dashboard) Select(ctx context.Context, label string) (nav.Outcome, error) {
	if d.isClosed() {
		return nav.Outcome{Panel: d.machine.Active()}, ErrClosed
	}
	if item, ok := nav.Lookup(label); ok && !d.gate().Allows(item) {
		return nav.Outcome{Panel: d.machine.Active()}, nil
	}
	out := d.machine.Select(label)
	if out.Logout {
		d.mu.RLock()
		logout := d.logout
		d.mu.RUnlock()
		if logout != nil {
			return out, logout(ctx)
		}
		return out, nil
	}
	if out.Changed {
		d.remount(out.Panel)
	}
	return out, nil
}

// SelectPanel is the typed variant of Select.
func (d *Dashboard) SelectPanel(p nav.Panel) (nav.Outcome, error) {
	if d.isClosed() {
		return nav.Outcome{Panel: d.machine.Active()}, ErrClosed
	}
	if !d.gate().Allows(nav.Item{Panel: p}) {
		return nav.Outcome{Panel: d.machine.Active()}, nil
	}
	return d.selectPanel(p), nil
}

func (d *Dashboard) selectPanel(p nav.Panel) nav.Outcome {
	out := d.machine.SelectPanel(p)
	if out.Changed {
		d.remount(out.Panel)
	}
	return out
}

func (d *Dashboard) remount(p nav.Panel) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.mount.cancel()
	d.mount = newMount(p)
	d.mu.Unlock()

	d.logger.Debug("panel mounted", "panel", p.String())
	d.changed()
}

// current returns the live mount of panel p.
func (d *Dashboard) current(p nav.Panel) (*mount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.mount.panel != p {
		return nil, ErrPanelNotActive
	}
	return d.mount, nil
}

// dispatchMounted dispatches actions only while m is still the live mount.
func (d *Dashboard) dispatchMounted(m *mount, actions ...session.Action) (session.State, bool, error) {
	state, mounted, err := d.dispatchLocked(m, actions...)
	if mounted && len(actions) > 0 {
		d.changed()
	}
	return state, mounted, err
}

// dispatchLocked holds the mount steady across the dispatch. Nothing that
// waits on I/O may run under it.
func (d *Dashboard) dispatchLocked(m *mount, actions ...session.Action) (session.State, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.mount != m || m.ctx.Err() != nil {
		return session.State{}, false, nil
	}
	var state session.State
	for _, action := range actions {
		next, err := d.store.Dispatch(action)
		if err != nil {
			return next, true, err
		}
		state = next
	}
	if len(actions) == 0 {
		state = d.store.Snapshot()
	}
	return state, true, nil
}

// bind derives a context that ends with ctx or with the mount.
func bind(ctx context.Context, m *mount) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (d *Dashboard) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Close ends the session: the mount is cancelled, pending confirmations are
// abandoned and the store stops accepting actions.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mount.cancel()
	d.mu.Unlock()
	d.store.Close()
}

// Wait blocks until every confirmation started by this dashboard finished.
func (d *Dashboard) Wait() {
	d.tasks.Wait()
}
