package backup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/state"
	"go.uber.org/zap"
)

// SchedulerConfig holds the task periods. Zero values take the defaults
// (2h backups, 24h sweeps over a 48h horizon, hourly stale checks against 6h).
type SchedulerConfig struct {
	Interval           time.Duration
	RetentionInterval  time.Duration
	RetentionHorizon   time.Duration
	StaleAfter         time.Duration
	StaleCheckInterval time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Hour
	}
	if c.RetentionInterval <= 0 {
		c.RetentionInterval = 24 * time.Hour
	}
	if c.RetentionHorizon <= 0 {
		c.RetentionHorizon = 48 * time.Hour
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 6 * time.Hour
	}
	if c.StaleCheckInterval <= 0 {
		c.StaleCheckInterval = time.Hour
	}
	return c
}

// Scheduler runs the auto-backup, retention and stale-check tasks.
type Scheduler struct {
	state     *state.State
	snapshots SnapshotStore
	cfg       SchedulerConfig
	log       *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stale atomic.Bool
}

func NewScheduler(st *state.State, snapshots SnapshotStore, cfg SchedulerConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		state:     st,
		snapshots: snapshots,
		cfg:       cfg.withDefaults(),
		log:       log.Named("backup"),
	}
	s.stale.Store(true)
	return s
}

// Start launches the tasks. Calling Start on a running scheduler is a no-op.
// The retention sweep and the stale check also run once immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.run(ctx, "auto-backup", s.cfg.Interval, false, func(ctx context.Context) {
		_, _ = s.BackupNow(ctx)
	})
	s.run(ctx, "retention", s.cfg.RetentionInterval, true, func(ctx context.Context) {
		_, _ = s.Sweep(ctx)
	})
	s.run(ctx, "stale-check", s.cfg.StaleCheckInterval, true, func(context.Context) {
		s.CheckStale()
	})
	s.log.Info("backup scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("retention_horizon", s.cfg.RetentionHorizon),
	)
}

// Stop cancels every task and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("backup scheduler stopped")
}

// Running reports whether the tasks are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) run(ctx context.Context, name string, every time.Duration, atStart bool, task func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if atStart {
			task(ctx)
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Debug("task stopped", zap.String("task", name))
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
}

// BackupNow copies the dataset under the state lock and writes it to the
// snapshot store outside of it.
func (s *Scheduler) BackupNow(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{ID: s.state.Now().UnixMilli(), Data: s.state.Snapshot()}
	if err := s.snapshots.Add(ctx, snap); err != nil {
		metrics.Backups.WithLabelValues("auto", "error").Inc()
		s.log.Error("auto-backup failed", zap.Error(err))
		return Snapshot{}, fmt.Errorf("backup: auto-backup: %w", err)
	}
	metrics.Backups.WithLabelValues("auto", "ok").Inc()
	s.log.Info("auto-backup stored", zap.Int64("id", snap.ID))
	return snap, nil
}

// Sweep deletes snapshots strictly older than the retention horizon.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	cutoff := s.state.Now().Add(-s.cfg.RetentionHorizon).UnixMilli()
	n, err := s.snapshots.PruneBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("retention sweep failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		metrics.BackupsPruned.Add(float64(n))
		s.log.Info("retention sweep pruned snapshots", zap.Int("count", n), zap.Int64("cutoff", cutoff))
	}
	return n, nil
}

// CheckStale re-evaluates the manual backup reminder: stale when no manual
// backup was ever taken or the last one is older than StaleAfter.
func (s *Scheduler) CheckStale() bool {
	last, ok := s.state.LastManualBackup()
	stale := !ok || s.state.Now().Sub(last) > s.cfg.StaleAfter
	s.stale.Store(stale)
	if stale {
		metrics.BackupStale.Set(1)
	} else {
		metrics.BackupStale.Set(0)
	}
	return stale
}

// Stale returns the result of the last check.
func (s *Scheduler) Stale() bool { return s.stale.Load() }
