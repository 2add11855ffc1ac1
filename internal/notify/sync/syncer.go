package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cvintake/internal/notify/models"
)

// Fetcher retrieves the ingress notification list. Implemented by the
// in-process mailbox and by HTTPFetcher for out-of-process ingress.
type Fetcher interface {
	FetchNotifications(ctx context.Context) ([]models.Notification, error)
}

// Merger folds fetched notifications into local state, deduplicated by ID.
type Merger interface {
	Merge(items []models.Notification) int
}

// Observer receives sync outcome counts for metrics.
type Observer interface {
	SyncMerged(count int)
	SyncError()
}

// Syncer bridges asynchronous webhook completions back into the notification
// store by polling the ingress. One baseline poller runs for the process
// lifetime; upload batches layer burst subscriptions on top with a shorter
// interval. Burst and baseline polling run concurrently without
// double-delivering because the merge is an ID-keyed union.
type Syncer struct {
	fetcher  Fetcher
	merger   Merger
	observer Observer
	logger   *slog.Logger

	interval      time.Duration
	burstInterval time.Duration

	mu     sync.Mutex
	bursts int
}

// New creates a Syncer. Observer may be nil.
func New(fetcher Fetcher, merger Merger, logger *slog.Logger, interval, burstInterval time.Duration, observer Observer) *Syncer {
	return &Syncer{
		fetcher:       fetcher,
		merger:        merger,
		observer:      observer,
		logger:        logger,
		interval:      interval,
		burstInterval: burstInterval,
	}
}

// Run drives the baseline poll loop until ctx is cancelled. Fetch failures
// are logged and retried on the next tick; they never stop the loop and
// never surface to users.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SyncNow(ctx)
		}
	}
}

// SyncNow performs one fetch-and-merge cycle. Safe to call concurrently with
// the baseline loop; repeated syncs against an unchanged ingress are no-ops.
func (s *Syncer) SyncNow(ctx context.Context) {
	items, err := s.fetcher.FetchNotifications(ctx)
	if err != nil {
		s.logger.Warn("notification sync fetch failed", "error", err)
		if s.observer != nil {
			s.observer.SyncError()
		}
		return
	}
	merged := s.merger.Merge(items)
	if merged > 0 {
		s.logger.Info("merged ingress notifications", "count", merged)
	}
	if s.observer != nil {
		s.observer.SyncMerged(merged)
	}
}

// Burst performs one immediate sync, then polls at the shortened interval
// until the returned release function is called. Concurrent bursts each get
// their own subscription; releasing one never disturbs another or the
// baseline poller. Release is idempotent.
func (s *Syncer) Burst(ctx context.Context) (release func()) {
	s.SyncNow(ctx)

	s.mu.Lock()
	s.bursts++
	s.mu.Unlock()

	burstCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.burstInterval)
		defer ticker.Stop()
		for {
			select {
			case <-burstCtx.Done():
				return
			case <-ticker.C:
				s.SyncNow(burstCtx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.mu.Lock()
			s.bursts--
			s.mu.Unlock()
		})
	}
}

// ActiveBursts reports the number of live burst subscriptions.
func (s *Syncer) ActiveBursts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bursts
}
