// Package sched drives the periodic background jobs of the governance
// subsystem: the expiry sweep over signature requests and proposals, and the
// daily maintenance pass over validator reputation and resource counters.
package sched

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultSweepInterval bounds how stale an expired request or proposal
	// can stay in a non-terminal status without foreground activity.
	DefaultSweepInterval = time.Minute
	// DefaultMaintenanceInterval is the cadence of the reputation and daily
	// counter upkeep.
	DefaultMaintenanceInterval = 24 * time.Hour
)

// Expirer force-transitions records whose deadline passed and reports how
// many it touched.
type Expirer interface {
	ExpireStale(now time.Time) int
}

type expirerEntry struct {
	name string
	run  Expirer
}

type jobEntry struct {
	name string
	run  func(now time.Time)
}

// Scheduler owns the background tickers. Jobs run sequentially on the
// scheduler goroutine; each engine does its own per-subnet locking.
type Scheduler struct {
	log                 *slog.Logger
	sweepInterval       time.Duration
	maintenanceInterval time.Duration
	nowFn               func() time.Time

	expirers []expirerEntry
	daily    []jobEntry
}

// New constructs a scheduler with the default intervals. A nil logger falls
// back to the process default.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		log:                 log,
		sweepInterval:       DefaultSweepInterval,
		maintenanceInterval: DefaultMaintenanceInterval,
		nowFn:               func() time.Time { return time.Now().UTC() },
	}
}

// SetIntervals overrides the sweep and maintenance cadence. Non-positive
// values keep the current setting.
func (s *Scheduler) SetIntervals(sweep, maintenance time.Duration) {
	if sweep > 0 {
		s.sweepInterval = sweep
	}
	if maintenance > 0 {
		s.maintenanceInterval = maintenance
	}
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (s *Scheduler) SetNowFunc(now func() time.Time) {
	if now == nil {
		s.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	s.nowFn = now
}

// AddExpirer registers a component for the expiry sweep.
func (s *Scheduler) AddExpirer(name string, e Expirer) {
	s.expirers = append(s.expirers, expirerEntry{name: name, run: e})
}

// AddDailyJob registers a maintenance job.
func (s *Scheduler) AddDailyJob(name string, job func(now time.Time)) {
	s.daily = append(s.daily, jobEntry{name: name, run: job})
}

// Sweep runs one expiry pass across every registered expirer.
func (s *Scheduler) Sweep() {
	now := s.nowFn()
	for _, entry := range s.expirers {
		if expired := entry.run.ExpireStale(now); expired > 0 {
			s.log.Info("expired stale records", "component", entry.name, "count", expired)
		}
	}
}

// Maintain runs one maintenance pass across every registered daily job.
func (s *Scheduler) Maintain() {
	now := s.nowFn()
	for _, entry := range s.daily {
		entry.run(now)
		s.log.Info("maintenance job finished", "job", entry.name)
	}
}

// Run blocks driving both tickers until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()
	maintenance := time.NewTicker(s.maintenanceInterval)
	defer maintenance.Stop()

	s.log.Info("scheduler started",
		"sweepInterval", s.sweepInterval.String(),
		"maintenanceInterval", s.maintenanceInterval.String(),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-sweep.C:
			s.Sweep()
		case <-maintenance.C:
			s.Maintain()
		}
	}
}
