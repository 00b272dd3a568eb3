package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/dmsd/dmsd/internal/logging"
)

const persistTimeout = 2 * time.Second

// LogoutHook ends a session from its sidebar logout entry.
type LogoutHook func(ctx context.Context, sessionID string, address common.Address) error

// Hub owns the dashboards of a process, keyed by session id.
type Hub struct {
	contract  common.Address
	deps      Deps
	snapshots SnapshotStore
	ttl       time.Duration
	logger    *slog.Logger

	now func() time.Time

	mu         sync.Mutex
	dashboards map[string]*hubEntry
	logout     LogoutHook
}

// hubEntry is a live dashboard and the moment it goes idle past the session TTL.
type hubEntry struct {
	d       *Dashboard
	expires time.Time
}

// NewHub builds a hub whose dashboards target contractAddress.
func NewHub(contractAddress common.Address, deps Deps, snapshots SnapshotStore, ttl time.Duration, logger *slog.Logger) *Hub {
	if snapshots == nil {
		snapshots = NewMemorySnapshotStore()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Hub{
		contract:   contractAddress,
		deps:       deps.withDefaults(),
		snapshots:  snapshots,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
		dashboards: make(map[string]*hubEntry),
	}
}

// SetLogoutHook installs the side effect of the logout entry. Without a hook
// the logout entry only closes the session.
func (h *Hub) SetLogoutHook(fn LogoutHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logout = fn
}

// Open starts a dashboard for address and returns its session id.
func (h *Hub) Open(ctx context.Context, address common.Address) (string, error) {
	id := uuid.NewString()
	d := New(id, h.contract, h.deps)
	h.attach(d)
	if err := d.Connect(ctx, address); err != nil {
		d.Close()
		return "", err
	}
	if err := h.snapshots.Save(ctx, id, d.Snapshot(), h.ttl); err != nil {
		d.Close()
		return "", err
	}

	h.mu.Lock()
	h.dashboards[id] = &hubEntry{d: d, expires: h.expiry()}
	h.mu.Unlock()
	h.logger.Info("dashboard session opened", "session_id", id, "address", address.Hex())
	return id, nil
}

// Get returns the dashboard of id, rehydrating it from its snapshot when this
// process has not seen it yet. A dashboard idle past the session TTL is
// evicted and only comes back if its snapshot still loads.
func (h *Hub) Get(ctx context.Context, id string) (*Dashboard, error) {
	h.mu.Lock()
	e, ok := h.dashboards[id]
	switch {
	case ok && h.live(e):
		e.expires = h.expiry()
		h.mu.Unlock()
		return e.d, nil
	case ok:
		delete(h.dashboards, id)
		h.mu.Unlock()
		e.d.Close()
		h.logger.Info("dashboard session expired", "session_id", id)
	default:
		h.mu.Unlock()
	}

	snap, err := h.snapshots.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.dashboards[id]; ok {
		return e.d, nil
	}
	d := New(id, h.contract, h.deps)
	d.Restore(snap)
	h.attach(d)
	h.dashboards[id] = &hubEntry{d: d, expires: h.expiry()}
	h.logger.Info("dashboard session restored", "session_id", id, "panel", snap.Active.String())
	return d, nil
}

// Close ends the session of id and forgets its snapshot.
func (h *Hub) Close(ctx context.Context, id string) error {
	h.mu.Lock()
	e, ok := h.dashboards[id]
	delete(h.dashboards, id)
	h.mu.Unlock()
	if ok {
		e.d.Close()
	}
	if err := h.snapshots.Delete(ctx, id); err != nil {
		return err
	}
	h.logger.Info("dashboard session closed", "session_id", id)
	return nil
}

// CloseAddress ends every session of address held by this hub and returns
// their ids.
func (h *Hub) CloseAddress(ctx context.Context, address common.Address) ([]string, error) {
	h.mu.Lock()
	var ids []string
	for id, e := range h.dashboards {
		if e.d.State().UserAddress == address {
			ids = append(ids, id)
		}
	}
	h.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := h.Close(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return ids, errors.Join(errs...)
}

// Sweep evicts dashboards idle past the session TTL and returns how many went.
// Their snapshots are left to expire in the snapshot store.
func (h *Hub) Sweep() int {
	h.mu.Lock()
	var expired []*Dashboard
	for id, e := range h.dashboards {
		if !h.live(e) {
			expired = append(expired, e.d)
			delete(h.dashboards, id)
		}
	}
	h.mu.Unlock()

	for _, d := range expired {
		d.Close()
	}
	if len(expired) > 0 {
		h.logger.Info("expired dashboard sessions evicted", "count", len(expired))
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until the returned stop is called.
func (h *Hub) StartSweeper(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.Sweep()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Len returns the number of live dashboards.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dashboards)
}

// Shutdown closes every dashboard and waits for their confirmations to
// settle. Snapshots are kept so sessions survive the restart.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	dashboards := make([]*Dashboard, 0, len(h.dashboards))
	for _, e := range h.dashboards {
		dashboards = append(dashboards, e.d)
	}
	h.dashboards = make(map[string]*hubEntry)
	h.mu.Unlock()

	for _, d := range dashboards {
		d.Close()
	}
	done := make(chan struct{})
	go func() {
		for _, d := range dashboards {
			d.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attach persists d on every state change and navigation, and wires the logout entry.
func (h *Hub) attach(d *Dashboard) {
	s := &saver{save: func() {
		if d.isClosed() {
			return
		}
		h.persist(d.ID(), d.Snapshot())
	}}
	d.setOnChange(s.trigger)
	d.SetLogout(func(ctx context.Context) error {
		h.mu.Lock()
		hook := h.logout
		h.mu.Unlock()
		if hook != nil {
			return hook(ctx, d.ID(), d.State().UserAddress)
		}
		return h.Close(ctx, d.ID())
	})
}

// saver serializes the snapshot writes of one dashboard. A change arriving
// while a write is in flight returns at once and the writer saves again with
// the newest snapshot.
type saver struct {
	save func()

	mu      sync.Mutex
	running bool
	dirty   bool
}

func (s *saver) trigger() {
	s.mu.Lock()
	s.dirty = true
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if !s.dirty {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.dirty = false
		s.mu.Unlock()
		s.save()
	}
}

func (h *Hub) expiry() time.Time {
	if h.ttl <= 0 {
		return time.Time{}
	}
	return h.now().Add(h.ttl)
}

func (h *Hub) live(e *hubEntry) bool {
	return e.expires.IsZero() || h.now().Before(e.expires)
}

// touch extends the idle deadline of id.
func (h *Hub) touch(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.dashboards[id]; ok {
		e.expires = h.expiry()
	}
}

func (h *Hub) persist(id string, snap Snapshot) {
	h.touch(id)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.snapshots.Save(ctx, id, snap, h.ttl); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("persist dashboard snapshot failed", "session_id", id, "error", err)
	}
}
