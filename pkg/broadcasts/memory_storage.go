package broadcasts

import (
	"context"
	"slices"
	"sync"
	"time"
)

type ackKey struct {
	tenantID    string
	userID      string
	broadcastID string
}

// MemoryStorage is an in-process Storage for development and tests.
type MemoryStorage struct {
	mu       sync.RWMutex
	messages map[string]*Message
	acks     map[ackKey]Acknowledgement
}

// NewMemoryStorage creates an empty in-memory broadcast store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages: make(map[string]*Message),
		acks:     make(map[ackKey]Acknowledgement),
	}
}

func (m *MemoryStorage) CreateMessage(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := msg
	m.messages[msg.ID] = &stored
	return nil
}

func (m *MemoryStorage) GetMessage(_ context.Context, tenantID, id string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok || msg.TenantID != tenantID {
		return Message{}, ErrNotFound
	}
	return *msg, nil
}

func (m *MemoryStorage) ListActive(_ context.Context, tenantID string, now time.Time) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []Message
	for _, msg := range m.messages {
		if msg.TenantID == tenantID && msg.ActiveAt(now) {
			active = append(active, *msg)
		}
	}
	slices.SortFunc(active, func(a, b Message) int {
		return a.ScheduledFor.Compare(b.ScheduledFor)
	})
	return active, nil
}

func (m *MemoryStorage) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var touched int64
	for _, msg := range m.messages {
		if msg.Active && msg.ExpiresAt != nil && !msg.ExpiresAt.After(now) {
			msg.Active = false
			touched++
		}
	}
	return touched, nil
}

func (m *MemoryStorage) CreateAck(_ context.Context, ack Acknowledgement) (Acknowledgement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ackKey{tenantID: ack.TenantID, userID: ack.UserID, broadcastID: ack.BroadcastID}
	if existing, ok := m.acks[key]; ok {
		return existing, nil
	}
	m.acks[key] = ack
	return ack, nil
}

func (m *MemoryStorage) AckedIDs(_ context.Context, tenantID, userID string, broadcastIDs []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acked := make(map[string]bool, len(broadcastIDs))
	for _, id := range broadcastIDs {
		if _, ok := m.acks[ackKey{tenantID: tenantID, userID: userID, broadcastID: id}]; ok {
			acked[id] = true
		}
	}
	return acked, nil
}
