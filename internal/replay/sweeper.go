package replay

import (
	"context"
	"time"

	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
	"github.com/santinopnp/PNPtvLive-bot/pkg/metrics"
)

const defaultSweepInterval = 20 * time.Minute

// Sweeper periodically evicts expired delivery ids from a MemoryStore.
type Sweeper struct {
	store    *MemoryStore
	logg     *logger.Logger
	metrics  *metrics.WebhookMetrics
	interval time.Duration
}

func NewSweeper(store *MemoryStore, logg *logger.Logger, m *metrics.WebhookMetrics, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{store: store, logg: logg, metrics: m, interval: interval}
}

// Run sweeps on a fixed cadence until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logg != nil {
				s.logg.Info(ctx, "replay sweeper context canceled")
			}
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	evicted := s.store.Sweep()
	s.metrics.AddSwept("memory", evicted)
	if s.logg != nil && evicted > 0 {
		entryCtx := s.logg.WithField(ctx, "evicted", evicted)
		s.logg.Info(entryCtx, "replay cache swept")
	}
}
