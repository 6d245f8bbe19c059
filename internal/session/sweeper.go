package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/observability"
)

// DefaultSweepSchedule runs the sweep every five minutes.
const DefaultSweepSchedule = "@every 5m"

// JobScheduler registers periodic jobs.
type JobScheduler interface {
	AddJob(name, expr string, task func()) error
}

// Sweeper evicts idle sessions.
type Sweeper struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

// NewSweeper creates a sweeper. A non-positive timeout uses DefaultTimeout.
func NewSweeper(store Store, timeout time.Duration) *Sweeper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sweeper{store: store, timeout: timeout, now: time.Now}
}

// Sweep removes idle sessions once and refreshes the active-session gauge.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.store.SweepExpired(ctx, s.now(), s.timeout)
	if err != nil {
		slog.Error("Sweeper.Sweep: sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("Sweeper.Sweep: evicted idle sessions", "count", n, "timeout", s.timeout)
	}
	if count, err := s.store.Count(ctx); err == nil {
		observability.SetActiveSessions(count)
	}
	return n
}

// Register schedules the sweep. An empty schedule uses DefaultSweepSchedule.
func (s *Sweeper) Register(ctx context.Context, sched JobScheduler, schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return sched.AddJob("session-sweep", schedule, func() { s.Sweep(ctx) })
}
