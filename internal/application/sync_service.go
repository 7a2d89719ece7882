package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// TriggerCooldown is the minimum time between two manual syncs.
const TriggerCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	MapsAdded       int        `json:"maps_added"`
	MapsReloaded    int        `json:"maps_reloaded"`
	MapsRemoved     int        `json:"maps_removed"`
	MapsTotal       int        `json:"maps_total"`
	SyncedAt        time.Time  `json:"synced_at"`
	NextScheduledAt *time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService reloads maps from storage on a fixed interval and on demand.
// Syncs never overlap.
type SyncService struct {
	registry *MapRegistry
	interval time.Duration
	logger   *slog.Logger

	running sync.Mutex // held for the duration of one sync

	mu          sync.Mutex
	lastTrigger time.Time
	next        time.Time
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewSyncService creates a new sync service.
func NewSyncService(registry *MapRegistry, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start runs scheduled syncs in the background until Stop is called or ctx
// is done.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.scheduleNext()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if _, err := s.sync(ctx, "schedule"); err != nil {
					s.logger.Error("scheduled sync failed", "error", err)
				}
				s.scheduleNext()
			}
		}
	}()
}

// Stop ends scheduled syncs and waits for a running one to finish. It is
// safe to call more than once.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stop)
	})
	s.wg.Wait()
}

// TriggerSync runs a sync requested through the API. It returns
// ErrRateLimited when called again within TriggerCooldown.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if !s.lastTrigger.IsZero() && time.Since(s.lastTrigger) < TriggerCooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastTrigger = time.Now()
	s.mu.Unlock()

	return s.sync(ctx, "api")
}

// SyncNow syncs immediately without the trigger cooldown. The file watcher
// uses it after a batch of changes.
func (s *SyncService) SyncNow(ctx context.Context) (SyncResult, error) {
	return s.sync(ctx, "watch")
}

func (s *SyncService) sync(ctx context.Context, reason string) (SyncResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		MapsAdded:    stats.Added,
		MapsReloaded: stats.Reloaded,
		MapsRemoved:  stats.Removed,
		MapsTotal:    s.registry.MapCount(),
		SyncedAt:     time.Now().UTC(),
	}
	s.mu.Lock()
	if !s.next.IsZero() {
		next := s.next
		result.NextScheduledAt = &next
	}
	s.mu.Unlock()

	s.logger.Debug("sync finished", "reason", reason, "added", result.MapsAdded,
		"reloaded", result.MapsReloaded, "removed", result.MapsRemoved)
	return result, nil
}

func (s *SyncService) scheduleNext() {
	s.mu.Lock()
	s.next = time.Now().Add(s.interval).UTC()
	s.mu.Unlock()
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
