package session

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrStoreClosed is returned by Dispatch after Close.
var ErrStoreClosed = errors.New("session: store closed")

// Observer is called with every new state, in dispatch order. Observers run
// synchronously inside Dispatch and must not dispatch themselves.
type Observer func(State)

// Store is the single owner of a session's State. It is created when a
// session opens and closed when it ends; nothing else holds the state.
type Store struct {
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	observers []observerEntry
	nextID    int
	closed    bool

	logger *slog.Logger
}

type observerEntry struct {
	id int
	fn Observer
}

// NewStore builds a store holding initial.
func NewStore(initial State, logger *slog.Logger) *Store {
	return &Store{state: initial.clone(), logger: logger}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Dispatch reduces action into the state and notifies observers. Concurrent
// callers are applied one at a time, in the order they acquire the store.
func (s *Store) Dispatch(action Action) (State, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return State{}, ErrStoreClosed
	}
	next, err := Reduce(s.state, action)
	if err != nil {
		current := s.state.clone()
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Error("session reducer rejected action", slog.Any("error", err))
		}
		return current, err
	}
	s.state = next
	observers := make([]observerEntry, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("session action applied", slog.String("kind", string(action.Kind())))
	}
	for _, o := range observers {
		o.fn(next.clone())
	}
	return next.clone(), nil
}

// Restore replaces the whole state without notifying observers. It exists to
// rehydrate a persisted session and is not a substitute for Dispatch.
func (s *Store) Restore(state State) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.clone()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Close drops every observer and makes further dispatches fail.
func (s *Store) Close() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.observers = nil
}

func (s State) clone() State {
	if s.CurrentUser != nil {
		profile := *s.CurrentUser
		s.CurrentUser = &profile
	}
	return s
}
