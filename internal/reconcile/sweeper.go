package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically resolves unknown fees and re-confirms transactions
// whose webhook never arrived.
type Sweeper struct {
	engine     *Engine
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewSweeper creates a Sweeper that runs every interval and treats
// transactions pending longer than staleAfter as stale.
func NewSweeper(engine *Engine, interval, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{engine: engine, interval: interval, staleAfter: staleAfter, logger: logger}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Reconciliation sweeper started", "interval", s.interval, "stale_after", s.staleAfter)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reconciliation sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	resolved, err := s.engine.ResolveUnknownFees(ctx)
	if err != nil {
		s.logger.Warn("Fee reconciliation incomplete", "error", err)
	}
	moved, err := s.engine.ResyncStalePending(ctx, s.staleAfter)
	if err != nil {
		s.logger.Warn("Stale payment resync incomplete", "error", err)
	}
	if resolved > 0 || moved > 0 {
		s.logger.Info("Reconciliation sweep", "fees_resolved", resolved, "payments_settled", moved)
	}
}
