// Package jobs runs the periodic background work: instance generation,
// the auto-approval and missed sweeps, reward expiry, the balance audit,
// and database backups.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/choretab/choretab/internal/metrics"
)

// Job is one named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives a set of jobs, each on its own ticker. Jobs run once at
// startup and then on every interval.
type Runner struct {
	mu     sync.RWMutex
	jobs   []Job
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(logger *slog.Logger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, logger: logger}
}

// Start begins all job loops.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	go func() {
		wg.Wait()
		close(r.done)
	}()
}

// Stop cancels all job loops and waits for them to finish.
func (r *Runner) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	done := r.done
	r.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	r.run(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.run(ctx, job)
		}
	}
}

func (r *Runner) run(ctx context.Context, job Job) {
	metrics.SweepRuns.WithLabelValues(job.Name).Inc()
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		metrics.SweepErrors.WithLabelValues(job.Name).Inc()
		r.logger.Error("job failed", "job", job.Name, "error", err)
		return
	}
	r.logger.Debug("job completed", "job", job.Name, "duration", time.Since(start))
}
