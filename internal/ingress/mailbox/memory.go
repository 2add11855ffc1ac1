package mailbox

import (
	"context"
	"sync"

	"cvintake/internal/notify/models"
)

// InMemory is the default single-process mailbox: a bounded ring holding the
// newest entries first. For multi-process deployments use RedisMailbox.
type InMemory struct {
	mu       sync.RWMutex
	capacity int
	entries  []models.Notification
}

// NewInMemory creates a mailbox retaining at most capacity entries.
func NewInMemory(capacity int) *InMemory {
	if capacity <= 0 {
		capacity = 100
	}
	return &InMemory{capacity: capacity}
}

// Append adds a completion at the head, evicting the oldest entry when the
// ring is full.
func (m *InMemory) Append(ctx context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append([]models.Notification{n}, m.entries...)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[:m.capacity]
	}
	return nil
}

// List returns the retained entries, newest first.
func (m *InMemory) List(ctx context.Context) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Notification, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// Reset clears the mailbox.
func (m *InMemory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	return nil
}

// FetchNotifications satisfies the syncer Fetcher interface so in-process
// deployments can poll the mailbox without an HTTP round trip.
func (m *InMemory) FetchNotifications(ctx context.Context) ([]models.Notification, error) {
	return m.List(ctx)
}
