package service

import (
	"context"
	"log/slog"
	"time"

	"lightsats/internal/infra"
	"lightsats/internal/infra/storage"
)

// ExpirySweeper periodically returns unclaimed tips past their expiry to
// their tippers.
type ExpirySweeper struct {
	store    *storage.Storage
	interval time.Duration
}

// NewExpirySweeper creates a sweeper with the given interval.
func NewExpirySweeper(store *storage.Storage, intervalSec int) *ExpirySweeper {
	interval := 5 * time.Minute
	if intervalSec > 0 {
		interval = time.Duration(intervalSec) * time.Second
	}
	return &ExpirySweeper{store: store, interval: interval}
}

// Start runs the sweep loop until the context is cancelled. The first sweep
// happens immediately so a restart doesn't delay reclaims by a full interval.
func (s *ExpirySweeper) Start(ctx context.Context) {
	go func() {
		s.sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Expiry sweeper stopped")
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *ExpirySweeper) sweep() {
	reclaimed, err := s.store.ReclaimExpired(time.Now())
	if err != nil {
		slog.Error("Expiry sweep failed", slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}
	if reclaimed > 0 {
		for i := int64(0); i < reclaimed; i++ {
			infra.GlobalMetrics.RecordTipReclaimed()
		}
		slog.Info("Expired tips reclaimed", slog.Int64("count", reclaimed))
	}
}
