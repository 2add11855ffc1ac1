package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cvintake/internal/notify/models"
)

// Persister durably saves persistent-flagged notifications. The in-memory
// store is authoritative; persistence is a mirror written after every
// mutation and read once at startup.
type Persister interface {
	SaveAll(ctx context.Context, notifications []models.Notification) error
	Load(ctx context.Context, notBefore time.Time) ([]models.Notification, error)
}

// Store holds user-facing notifications ordered most-recent-first with a
// derived unread count. It is the single shared mutable resource touched by
// both local actions and the background syncer, so every mutation goes
// through the same lock and merge contract.
type Store struct {
	mu            sync.Mutex
	notifications []models.Notification

	persister Persister
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersister mirrors persistent entries to durable storage. Entries older
// than retention are dropped at load time, not continuously.
func WithPersister(p Persister, retention time.Duration) Option {
	return func(s *Store) {
		s.persister = p
		s.retention = retention
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a notification store and hydrates it from the persister when
// one is configured.
func New(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister != nil {
		cutoff := s.now().Add(-s.retention)
		loaded, err := s.persister.Load(context.Background(), cutoff)
		if err != nil {
			s.logger.Error("failed to load persisted notifications", "error", err)
		} else {
			s.notifications = loaded
		}
	}
	return s
}

// Add inserts a notification at the head. Identity, timestamp, and the unread
// flag are assigned when absent; an ID already present in the store makes the
// add a no-op so merges stay idempotent.
func (s *Store) Add(n models.Notification) models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = models.NewLocalID(s.now())
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	n.Read = false

	if s.indexOf(n.ID) >= 0 {
		return n
	}

	s.notifications = append([]models.Notification{n}, s.notifications...)
	s.persistLocked()
	s.scheduleAutoClose(n)
	return n
}

// Merge folds ingress notifications into the store, keyed by ID. Only
// genuinely new items are added, prepended ahead of existing entries in
// ingress order. Returns the number of newly merged items; merging the same
// payload twice is a no-op.
func (s *Store) Merge(items []models.Notification) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.notifications))
	for _, n := range s.notifications {
		existing[n.ID] = struct{}{}
	}

	fresh := make([]models.Notification, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, ok := existing[item.ID]; ok {
			continue
		}
		existing[item.ID] = struct{}{}
		item.Read = false
		if item.Type == "" {
			item.Type = models.TypeCVAnalysis
		}
		if item.Priority == "" {
			item.Priority = models.PriorityMedium
		}
		fresh = append(fresh, item)
	}

	if len(fresh) == 0 {
		return 0
	}

	s.notifications = append(fresh, s.notifications...)
	s.persistLocked()
	for _, n := range fresh {
		s.scheduleAutoClose(n)
	}
	return len(fresh)
}

// MarkAsRead flags one notification as read. Monotonic: a read notification
// never becomes unread through this path.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.notifications[i].Read = true
		s.persistLocked()
	}
}

// MarkAllAsRead flags every notification as read, driving the unread count
// to zero.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	s.persistLocked()
}

// Remove deletes a notification permanently. Removing an ID that is already
// gone is a no-op, which keeps auto-close timers safe.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
	s.persistLocked()
}

// ClearAll deletes every notification permanently.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = nil
	s.persistLocked()
}

// List returns a copy of all notifications, most recent first.
func (s *Store) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Unread returns a copy of the unread notifications.
func (s *Store) Unread() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Notification
	for _, n := range s.notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount is recomputed from current contents, never tracked separately.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// indexOf must be called while holding s.mu.
func (s *Store) indexOf(id string) int {
	for i, n := range s.notifications {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// persistLocked mirrors persistent entries to the persister. Must be called
// while holding s.mu. Persistence failures are logged, never propagated: the
// in-memory state stays authoritative.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	var persistent []models.Notification
	for _, n := range s.notifications {
		if n.Persistent {
			persistent = append(persistent, n)
		}
	}
	if err := s.persister.SaveAll(context.Background(), persistent); err != nil {
		s.logger.Error("failed to persist notifications", "error", err)
	}
}

// scheduleAutoClose arms self-removal for auto-close entries. Removal of an
// already removed entry is a no-op by contract.
func (s *Store) scheduleAutoClose(n models.Notification) {
	if !n.AutoClose || n.Duration <= 0 {
		return
	}
	id := n.ID
	time.AfterFunc(n.Duration, func() {
		s.Remove(id)
	})
}
