package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
)

// Job is one periodic task. Run errors are logged; the next tick tries again.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs every job on its own ticker. Each tick asks the elector first,
// so only the cluster leader does any work.
type Scheduler struct {
	elector ports.LeaderElector
	jobs    []Job
	logger  *slog.Logger
}

func NewScheduler(elector ports.LeaderElector, logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		elector: elector,
		jobs:    jobs,
		logger:  logger,
	}
}

// Start blocks until ctx is cancelled and every job loop has returned.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("starting periodic job", "job", job.Name, "interval", job.Interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping periodic job", "job", job.Name)
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

// RunOnce executes a single leader-gated cycle of every job, in order.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		s.run(ctx, job)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if !s.elector.IsLeader(ctx) {
		s.logger.Debug("not leader, skipping job", "job", job.Name)
		return
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("periodic job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Info("periodic job completed", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
}
