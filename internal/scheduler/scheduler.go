// Package scheduler triggers background refreshes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"leadhunt-engine/internal/logging"
)

type Task func(ctx context.Context) error

type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		// a slow run is skipped rather than stacked behind itself
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  logging.OrNop(logger).Named("scheduler"),
	}
}

// Add registers task under name. Each invocation gets its own timeout.
func (s *Scheduler) Add(spec, name string, timeout time.Duration, task Task) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, task) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, timeout time.Duration, task Task) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("job panicked", zap.String("job", name), zap.Any("panic", p))
		}
	}()

	start := time.Now()
	if err := task(ctx); err != nil {
		s.log.Warn("job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.log.Debug("job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// RunNow runs task once in the background, outside the schedule.
func (s *Scheduler) RunNow(name string, timeout time.Duration, task Task) {
	go s.run(name, timeout, task)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}
