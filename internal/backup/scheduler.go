package backup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/barstock/stock-cli/internal/model"
)

// Scheduler runs periodic backup cycles in the background.
type Scheduler struct {
	mgr      *Manager
	interval time.Duration
}

// NewScheduler creates a background backup scheduler.
func NewScheduler(mgr *Manager, interval time.Duration) *Scheduler {
	return &Scheduler{mgr: mgr, interval: interval}
}

// Run starts the periodic backup loop. It blocks until ctx is cancelled.
// A failed cycle is logged and never prevents the next one.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	log := zap.L().With(zap.String("component", "backup.scheduler"))
	log.Info("starting backup scheduler", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			s.cycle(ctx, log)
		}
	}
}

// Cycle performs one snapshot-then-sweep pass and returns the new entry and
// the number of expired artifacts removed.
func (s *Scheduler) Cycle(ctx context.Context) (*model.BackupEntry, int, error) {
	entry, err := s.mgr.Create(ctx)
	if err != nil {
		return nil, 0, err
	}

	removed, err := s.mgr.Sweep()
	if err != nil {
		return entry, 0, err
	}
	return entry, removed, nil
}

func (s *Scheduler) cycle(ctx context.Context, log *zap.Logger) {
	entry, removed, err := s.Cycle(ctx)
	if err != nil {
		log.Error("backup: scheduled cycle failed", zap.Error(err))
		return
	}

	log.Info("backup: scheduled cycle complete",
		zap.String("artifact", entry.Name),
		zap.Int("swept", removed),
	)
}
