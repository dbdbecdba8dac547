// Package scheduler repeats price-check batches on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job runs one batch.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a cron expression. A trigger that fires
// while the previous batch is still running is skipped.
type Scheduler struct {
	spec string
	job  Job
	cron *cron.Cron

	// RunOnStart triggers the job once before waiting for the schedule.
	RunOnStart bool

	mu   sync.Mutex
	runs int
}

// New validates spec (standard five-field syntax or a descriptor such as
// "@every 6h") and prepares a scheduler for job.
func New(spec string, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("job cannot be nil")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	logger := NewLogger(slog.Default())
	return &Scheduler{
		spec: spec,
		job:  job,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		RunOnStart: true,
	}, nil
}

// Run blocks until ctx is done, then waits for a running batch to return.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.trigger(ctx) }); err != nil {
		return fmt.Errorf("schedule batch: %w", err)
	}

	if s.RunOnStart {
		s.trigger(ctx)
	}

	s.cron.Start()
	slog.Info("Scheduler started", slog.String("schedule", s.spec))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped", slog.Int("runs", s.Runs()))
	return nil
}

// Runs returns how many batches have been started.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.runs++
	run := s.runs
	s.mu.Unlock()

	slog.Info("Scheduled batch starting", slog.Int("run", run))
	if err := s.job(ctx); err != nil {
		slog.Error("Scheduled batch failed", slog.Int("run", run), slog.Any("error", err))
	}
}
