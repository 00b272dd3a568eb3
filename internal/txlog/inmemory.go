package txlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type inMemoryJournal struct {
	mu      sync.RWMutex
	entries map[common.Hash]Entry
	now     func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory journal.
func NewInMemory() Journal {
	return &inMemoryJournal{entries: make(map[common.Hash]Entry), now: time.Now}
}

func (j *inMemoryJournal) Record(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.entries[entry.Hash]; exists {
		return ErrDuplicate
	}
	now := j.now().UTC()
	if entry.Status == "" {
		entry.Status = StatusPending
	}
	entry.CreatedAt, entry.UpdatedAt = now, now
	j.entries[entry.Hash] = entry
	return nil
}

func (j *inMemoryJournal) Complete(_ context.Context, hash common.Hash, outcome Outcome) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[hash]
	if !ok {
		return Entry{}, ErrNotFound
	}
	entry.Status = outcome.Status
	entry.BlockNumber = outcome.BlockNumber
	entry.Error = outcome.Error
	entry.UpdatedAt = j.now().UTC()
	j.entries[hash] = entry
	return entry, nil
}

func (j *inMemoryJournal) ListByAddress(_ context.Context, address common.Address, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []Entry
	for _, entry := range j.entries {
		if entry.Address == address {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].Hash.Hex() < out[b].Hash.Hex()
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
