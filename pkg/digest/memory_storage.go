package digest

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-process Storage for development and tests.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	Entry
	claimedUntil time.Time
}

// NewMemoryStorage creates an empty in-memory digest store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]*memoryEntry)}
}

func (m *MemoryStorage) Add(_ context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = &memoryEntry{Entry: e}
	return nil
}

func (m *MemoryStorage) ClaimDue(_ context.Context, now time.Time, claimFor time.Duration) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []Entry
	for _, me := range m.entries {
		if me.Sent || me.ScheduledFor.After(now) || me.claimedUntil.After(now) {
			continue
		}
		me.claimedUntil = now.Add(claimFor)
		due = append(due, me.Entry)
	}
	sortEntries(due)
	return due, nil
}

func (m *MemoryStorage) MarkSent(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flipped int64
	for _, id := range ids {
		if me, ok := m.entries[id]; ok && !me.Sent {
			me.Sent = true
			flipped++
		}
	}
	return flipped, nil
}

func (m *MemoryStorage) Release(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if me, ok := m.entries[id]; ok && !me.Sent {
			me.claimedUntil = time.Time{}
		}
	}
	return nil
}

func (m *MemoryStorage) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, me := range m.entries {
		if me.Sent && me.CreatedAt.Before(cutoff) {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports how many entries are stored, sent or not. Test helper.
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
