package news

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Runner executes one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (RunCounters, error)
}

// Scheduler triggers ingestion runs: once at startup (the orchestrator skips
// the run itself when the store is populated) and then on a fixed interval.
// At most one run is in flight at a time; triggers that fire while a run is
// active are dropped rather than queued.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
	running  atomic.Bool
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until the context finishes, firing the bootstrap run immediately
// and interval runs thereafter. Call it on its own goroutine; runs never block
// the caller.
func (s *Scheduler) Run(ctx context.Context) {
	s.Trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}

// Trigger starts an ingestion run on its own goroutine. Reports false when a
// run is already in flight and the trigger was dropped.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("ingestion already running, trigger dropped")
		return false
	}
	go func() {
		defer s.running.Store(false)
		s.runOnce(ctx)
	}()
	return true
}

// runOnce executes the run with a recover boundary so an unexpected panic is
// logged and the scheduler returns to idle instead of taking down the host.
func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("ingestion run panicked", zap.Any("panic", rec))
		}
	}()
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error("ingestion run failed", zap.Error(err))
	}
}
