package jobs

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the story expiry sweep runs.
const DefaultSweepInterval = 10 * time.Minute

// StoryExpirer deactivates stories past their expiry.
type StoryExpirer interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically deactivates expired stories. Visibility never depends
// on the sweep; reads already exclude expired rows.
type Sweeper struct {
	expirer  StoryExpirer
	interval time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

// NewSweeper creates a story expiry sweeper. metrics may be nil.
func NewSweeper(expirer StoryExpirer, interval time.Duration, metrics *Metrics, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. It runs one
// sweep immediately so a fresh deploy catches up on expiries at once.
func (s *Sweeper) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("story expiry sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	swept, err := s.expirer.DeactivateExpired(ctx)

	if s.metrics != nil {
		s.metrics.ObserveJobDuration(JobTypeStoryExpiry, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Error("story expiry sweep failed", "error", err)
		if s.metrics != nil {
			s.metrics.IncJobsTotal(JobTypeStoryExpiry, StatusFailure)
			s.metrics.IncJobErrors(JobTypeStoryExpiry, "storage_error")
		}
		return
	}

	if s.metrics != nil {
		s.metrics.IncJobsTotal(JobTypeStoryExpiry, StatusSuccess)
	}
	if swept > 0 {
		s.logger.Info("story expiry sweep completed", "swept", swept, "duration_ms", time.Since(start).Milliseconds())
	}
}
