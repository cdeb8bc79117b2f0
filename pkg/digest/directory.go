package digest

import (
	"context"
	"sync"
)

// MemoryDirectory remembers the last addressing seen per recipient. Callers
// record into it on every dispatch they route, so digest flushes can address
// recipients without an external user store. Entries live for the process
// lifetime only; deployments with a real user directory supply their own
// Directory instead.
type MemoryDirectory struct {
	mu    sync.RWMutex
	addrs map[string]Address
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{addrs: make(map[string]Address)}
}

// Record merges the non-empty fields of addr into the stored address for
// the recipient. Safe for concurrent use.
func (d *MemoryDirectory) Record(tenantID, userID string, addr Address) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := tenantID + "|" + userID
	cur := d.addrs[key]
	if addr.Email != "" {
		cur.Email = addr.Email
	}
	if addr.Phone != "" {
		cur.Phone = addr.Phone
	}
	if addr.Locale != "" {
		cur.Locale = addr.Locale
	}
	d.addrs[key] = cur
}

// Address returns the recorded address for the recipient, zero if none was
// ever recorded.
func (d *MemoryDirectory) Address(_ context.Context, tenantID, userID string) (Address, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.addrs[tenantID+"|"+userID], nil
}
