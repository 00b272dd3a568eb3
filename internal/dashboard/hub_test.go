package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/dmsd/dmsd/internal/logging"
	"github.com/dmsd/dmsd/internal/nav"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return mr, cache
}

func TestHubPersistsAndRehydrates(t *testing.T) {
	f := newFixture(t)
	mr, cache := setupRedis(t)
	ctx := context.Background()

	hub := NewHub(testContract, f.deps(), NewRedisSnapshotStore(cache), time.Hour, logging.Discard())
	id, err := hub.Open(ctx, f.admin.Address())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !mr.Exists(snapshotPrefix + id) {
		t.Fatalf("open must persist a snapshot")
	}
	if ttl := mr.TTL(snapshotPrefix + id); ttl != time.Hour {
		t.Fatalf("snapshot must expire with the session, ttl %s", ttl)
	}

	d, err := hub.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := d.Select(ctx, "Vault MultiSig"); err != nil {
		t.Fatalf("select: %v", err)
	}
	want := d.Snapshot()
	if err := hub.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	restarted := NewHub(testContract, f.deps(), NewRedisSnapshotStore(cache), time.Hour, logging.Discard())
	restored, err := restarted.Get(ctx, id)
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if diff := cmp.Diff(want, restored.Snapshot()); diff != "" {
		t.Fatalf("rehydrated snapshot mismatch (-want +got):\n%s", diff)
	}
	if restored.Active() != nav.Vault || restored.State().UserAddress != f.admin.Address() {
		t.Fatalf("unexpected restored dashboard %+v", restored.Snapshot())
	}

	if err := restarted.Close(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := restarted.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("closed sessions must be gone, got %v", err)
	}
}

func TestHubPersistsStateChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snapshots := NewMemorySnapshotStore()
	hub := NewHub(testContract, f.deps(), snapshots, time.Hour, nil)
	defer hub.Shutdown(ctx) // nolint:errcheck

	id, err := hub.Open(ctx, f.admin.Address())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d, _ := hub.Get(ctx, id)
	if _, err := d.Summary(ctx); err != nil {
		t.Fatalf("summary: %v", err)
	}

	snap, err := snapshots.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.State.CurrentUser == nil {
		t.Fatalf("dispatches must be persisted")
	}
}

func TestHubLogoutEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hub := NewHub(testContract, f.deps(), nil, time.Hour, nil)

	id, err := hub.Open(ctx, f.admin.Address())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var gotID string
	var gotAddr common.Address
	hub.SetLogoutHook(func(ctx context.Context, sessionID string, address common.Address) error {
		gotID, gotAddr = sessionID, address
		return hub.Close(ctx, sessionID)
	})

	d, _ := hub.Get(ctx, id)
	if _, err := d.Select(ctx, "Déconnexion"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if gotID != id || gotAddr != f.admin.Address() {
		t.Fatalf("hook got %q %s", gotID, gotAddr.Hex())
	}
	if hub.Len() != 0 {
		t.Fatalf("logout must close the session")
	}
	if _, err := hub.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestHubOpenProtectedWallet(t *testing.T) {
	f := newFixture(t)
	f.enrol(t)
	ctx := context.Background()
	snapshots := NewMemorySnapshotStore()
	hub := NewHub(testContract, f.deps(), snapshots, time.Hour, nil)
	defer hub.Shutdown(ctx) // nolint:errcheck

	id, err := hub.Open(ctx, f.protect.Address())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	snap, err := snapshots.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Active != nav.Approve || !snap.Protected {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMemorySnapshotExpiry(t *testing.T) {
	s := NewMemorySnapshotStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Save(ctx, "a", Snapshot{Active: nav.Vault}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if snap, err := s.Load(ctx, "a"); err != nil || snap.Active != nav.Vault {
		t.Fatalf("unexpected load %+v (%v)", snap, err)
	}
	now = now.Add(time.Minute)
	if _, err := s.Load(ctx, "a"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired snapshot must be gone, got %v", err)
	}
}

func TestHubEvictsIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	snapshots := NewMemorySnapshotStore()
	snapshots.now = clock
	hub := NewHub(testContract, f.deps(), snapshots, time.Minute, nil)
	hub.now = clock

	ids := make([]string, 50)
	for i := range ids {
		id, err := hub.Open(ctx, f.admin.Address())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		ids[i] = id
	}
	kept := ids[0]

	now = now.Add(40 * time.Second)
	if _, err := hub.Get(ctx, kept); err != nil {
		t.Fatalf("get live session: %v", err)
	}

	now = now.Add(40 * time.Second)
	if n := hub.Sweep(); n != 49 {
		t.Fatalf("expected 49 idle sessions evicted, got %d", n)
	}
	if hub.Len() != 1 {
		t.Fatalf("only the touched session may stay, got %d", hub.Len())
	}

	now = now.Add(2 * time.Minute)
	d := func() *Dashboard {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.dashboards[kept].d
	}()
	if _, err := hub.Get(ctx, kept); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("an expired session must not be served, got %v", err)
	}
	if hub.Len() != 0 {
		t.Fatalf("the expired session must leave the hub, got %d", hub.Len())
	}
	if _, err := d.SelectPanel(nav.Vault); !errors.Is(err, ErrClosed) {
		t.Fatalf("an evicted dashboard must be closed, got %v", err)
	}
}

func TestHubCloseAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hub := NewHub(testContract, f.deps(), nil, time.Hour, nil)

	a, _ := hub.Open(ctx, f.admin.Address())
	b, _ := hub.Open(ctx, f.admin.Address())
	other, err := hub.Open(ctx, f.protect.Address())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	closed, err := hub.CloseAddress(ctx, f.admin.Address())
	if err != nil {
		t.Fatalf("close address: %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("expected both admin sessions closed, got %v", closed)
	}
	for _, id := range []string{a, b} {
		if _, err := hub.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("session %s must be gone, got %v", id, err)
		}
	}
	if _, err := hub.Get(ctx, other); err != nil {
		t.Fatalf("another wallet's session must stay: %v", err)
	}
}

// slowSnapshots holds the first Save issued after block is set until release
// is closed.
type slowSnapshots struct {
	*MemorySnapshotStore
	block   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *slowSnapshots) Save(ctx context.Context, id string, snap Snapshot, ttl time.Duration) error {
	if s.block.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.MemorySnapshotStore.Save(ctx, id, snap, ttl)
}

func TestNavigationDoesNotWaitOnSnapshotWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slow := &slowSnapshots{
		MemorySnapshotStore: NewMemorySnapshotStore(),
		entered:             make(chan struct{}),
		release:             make(chan struct{}),
	}
	hub := NewHub(testContract, f.deps(), slow, time.Hour, nil)
	defer hub.Shutdown(ctx) // nolint:errcheck

	id, err := hub.Open(ctx, f.admin.Address())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d, _ := hub.Get(ctx, id)

	slow.block.Store(true)
	summary := make(chan error, 1)
	go func() {
		_, err := d.Summary(ctx)
		summary <- err
	}()
	select {
	case <-slow.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("summary never persisted")
	}

	selected := make(chan struct{})
	go func() {
		d.SelectPanel(nav.Vault) // nolint:errcheck
		close(selected)
	}()
	select {
	case <-selected:
	case <-time.After(time.Second):
		close(slow.release)
		t.Fatalf("navigation waited on a snapshot write")
	}

	close(slow.release)
	if err := <-summary; err != nil {
		t.Fatalf("summary: %v", err)
	}
	snap, err := slow.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Active != nav.Vault || snap.State.CurrentUser == nil {
		t.Fatalf("the newest snapshot must win, got %+v", snap)
	}
}
