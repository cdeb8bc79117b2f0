package channels

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryInbox is an in-process InboxStorage for development and tests.
type MemoryInbox struct {
	mu    sync.RWMutex
	items []InboxItem
}

// NewMemoryInbox creates an empty in-memory inbox store.
func NewMemoryInbox() *MemoryInbox {
	return &MemoryInbox{}
}

func (m *MemoryInbox) Insert(_ context.Context, item InboxItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

// List returns the newest items first, up to limit. A limit of zero or less
// means no limit.
func (m *MemoryInbox) List(_ context.Context, tenantID, userID string, limit int) ([]InboxItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []InboxItem
	for _, item := range m.items {
		if item.TenantID == tenantID && item.UserID == userID {
			out = append(out, item)
		}
	}
	slices.SortStableFunc(out, func(a, b InboxItem) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryInbox) MarkRead(_ context.Context, tenantID, userID string, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var marked int64
	for i := range m.items {
		item := &m.items[i]
		if item.TenantID != tenantID || item.UserID != userID || item.Read {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, item.ID) {
			continue
		}
		now := time.Now().UTC()
		item.Read = true
		item.ReadAt = &now
		marked++
	}
	return marked, nil
}

func (m *MemoryInbox) CountUnread(_ context.Context, tenantID, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, item := range m.items {
		if item.TenantID == tenantID && item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}
