package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notifykit/notifykit/pkg/logger"
)

// Job is one periodic task. Run receives the time of the tick so jobs with
// boundary math (digest flushes) stay deterministic under test clocks.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

// Runner drives a set of periodic jobs.
type Runner struct {
	jobs []Job
	log  *slog.Logger
	now  func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the time source passed to jobs. Test hook.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a runner over the given jobs. Jobs without a name or with a
// non-positive interval are dropped with a warning.
func New(jobs []Job, opts ...Option) *Runner {
	r := &Runner{
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, job := range jobs {
		if job.Name == "" || job.Interval <= 0 || job.Run == nil {
			r.log.Warn("dropping misconfigured job", slog.String("job", job.Name))
			continue
		}
		r.jobs = append(r.jobs, job)
	}
	return r
}

// Start runs every job on its interval and blocks until ctx is cancelled
// and all jobs have stopped.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	r.log.LogAttrs(ctx, slog.LevelDebug, "job started",
		slog.String("job", job.Name),
		slog.Duration("interval", job.Interval),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.LogAttrs(ctx, slog.LevelDebug, "job stopped", slog.String("job", job.Name))
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

// runOnce executes one tick with panic recovery so a crashing job never
// takes the whole runner down.
func (r *Runner) runOnce(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.LogAttrs(ctx, slog.LevelError, "job panic recovered",
				slog.String("job", job.Name),
				slog.Any("panic", rec),
			)
		}
	}()

	if err := job.Run(ctx, r.now()); err != nil {
		r.log.LogAttrs(ctx, slog.LevelWarn, "job run failed",
			slog.String("job", job.Name),
			logger.Error(err),
		)
	}
}
