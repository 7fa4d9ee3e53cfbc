package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"starpets/internal/metrics"
)

type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

type Runner struct {
	gate Gate
	log  *slog.Logger
	now  func() time.Time
	jobs []Job
}

func NewRunner(gate Gate, logger *slog.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{gate: gate, log: logger, now: time.Now, jobs: jobs}
}

// RunOnce runs every job whose current period is still unclaimed.
func (r *Runner) RunOnce(ctx context.Context) {
	for _, job := range r.jobs {
		r.fire(ctx, job)
	}
}

// Run fires each job on its own ticker until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			ticker := time.NewTicker(job.Every)
			defer ticker.Stop()
			r.fire(ctx, job)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					r.fire(ctx, job)
				}
			}
		}(job)
	}
	wg.Wait()
	r.log.Info("scheduler stopped")
}

func (r *Runner) fire(ctx context.Context, job Job) {
	ok, err := r.gate.Acquire(ctx, job.Name, job.Every, r.now())
	if err != nil {
		metrics.WorkerRuns.WithLabelValues(job.Name, "error").Inc()
		r.log.Error("job gate failed; skipping period", "job", job.Name, "err", err)
		return
	}
	if !ok {
		metrics.WorkerRuns.WithLabelValues(job.Name, "skipped").Inc()
		r.log.Debug("job period already claimed", "job", job.Name)
		return
	}
	started := time.Now()
	if err := job.Run(ctx); err != nil {
		metrics.WorkerRuns.WithLabelValues(job.Name, "error").Inc()
		r.log.Error("job failed", "job", job.Name, "err", err)
		return
	}
	metrics.WorkerRuns.WithLabelValues(job.Name, "ok").Inc()
	r.log.Info("job complete", "job", job.Name, "took", time.Since(started).String())
}
