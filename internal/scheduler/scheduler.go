// Package scheduler drives the periodic work: snooze wake-ups every
// tick, and wall-clock daily/weekly/monthly jobs evaluated in the
// configured time zone. Each tick does a bounded amount of work; slow
// jobs like report generation are dispatched on their own goroutine so
// the next tick is never blocked.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/internal/service/report"
	"github.com/motorpool/motorpool/internal/usecase"
)

// Scheduler is the single cooperative timer loop.
type Scheduler struct {
	fleet     *usecase.FleetUseCase
	access    *usecase.AccessUseCase
	reports   *report.Service
	notifier  ports.Notifier
	log       logger.Logger
	loc       *time.Location
	interval  time.Duration
	adminChat string
	now       func() time.Time

	mu          sync.Mutex
	lastDaily   time.Time
	lastWeekly  time.Time
	lastMonthly time.Time

	jobs sync.WaitGroup
}

// New creates a scheduler. Wall-clock jobs first fire on the boundary
// after start, not retroactively at startup.
func New(
	fleet *usecase.FleetUseCase,
	access *usecase.AccessUseCase,
	reports *report.Service,
	notifier ports.Notifier,
	log logger.Logger,
	loc *time.Location,
	interval time.Duration,
	adminChat string,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Scheduler{
		fleet:     fleet,
		access:    access,
		reports:   reports,
		notifier:  notifier,
		log:       log,
		loc:       loc,
		interval:  interval,
		adminChat: adminChat,
		now:       time.Now,
	}
	start := s.now().In(loc)
	s.lastDaily = start
	s.lastWeekly = start
	s.lastMonthly = start
	return s
}

// WithClock overrides the time source. Used in tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	start := now().In(s.loc)
	s.lastDaily = start
	s.lastWeekly = start
	s.lastMonthly = start
	return s
}

// Run ticks until ctx is cancelled, then waits for dispatched jobs to
// drain.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info(ctx, "Scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
		"timezone": s.loc.String(),
	})

	for {
		select {
		case <-ctx.Done():
			s.jobs.Wait()
			s.log.Info(context.Background(), "Scheduler stopped", nil)
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduling pass. Exported so tests can drive the
// clock instead of sleeping.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().In(s.loc)

	if woken, err := s.access.WakeDue(ctx, now); err != nil {
		s.log.Error(ctx, "Snooze wake sweep failed", err, nil)
	} else if woken > 0 {
		s.log.Info(ctx, "Woke snoozed requests", map[string]interface{}{"count": woken})
	}

	s.mu.Lock()
	daily := !sameDay(s.lastDaily, now)
	weekly := !sameISOWeek(s.lastWeekly, now)
	monthly := s.lastMonthly.In(s.loc).Month() != now.Month() || s.lastMonthly.In(s.loc).Year() != now.Year()
	if daily {
		s.lastDaily = now
	}
	if weekly {
		s.lastWeekly = now
	}
	if monthly {
		s.lastMonthly = now
	}
	s.mu.Unlock()

	if daily {
		s.dispatch(ctx, "maintenance check", s.maintenanceCheck)
	}
	if weekly {
		s.dispatch(ctx, "weekly summary", func(ctx context.Context) { s.summary(ctx, now, 7*24*time.Hour) })
	}
	if monthly {
		s.dispatch(ctx, "monthly summary", func(ctx context.Context) { s.summary(ctx, now, 30*24*time.Hour) })
	}
}

// Wait blocks until dispatched jobs finish. Used in tests.
func (s *Scheduler) Wait() {
	s.jobs.Wait()
}

func (s *Scheduler) dispatch(ctx context.Context, name string, job func(context.Context)) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.log.Debug(ctx, "Dispatching scheduled job", map[string]interface{}{"job": name})
		job(ctx)
	}()
}

func (s *Scheduler) maintenanceCheck(ctx context.Context) {
	settings, err := s.access.Settings(ctx)
	if err != nil {
		s.log.Error(ctx, "Maintenance check could not load settings", err, nil)
		return
	}
	due, err := s.fleet.MaintenanceDue(ctx, settings.MaintenanceInterval)
	if err != nil {
		s.log.Error(ctx, "Maintenance check failed", err, nil)
		return
	}
	for _, v := range due {
		s.notify(ctx, s.reports.MaintenanceNotice(v, settings.MaintenanceInterval))
	}
}

func (s *Scheduler) summary(ctx context.Context, until time.Time, window time.Duration) {
	settings, err := s.access.Settings(ctx)
	if err != nil {
		s.log.Error(ctx, "Summary could not load settings", err, nil)
		return
	}
	if !settings.SummaryEnabled {
		return
	}
	entries, err := s.fleet.History(ctx, 0)
	if err != nil {
		s.log.Error(ctx, "Summary could not read ledger", err, nil)
		return
	}
	s.notify(ctx, s.reports.Summary(entries, until.Add(-window), until))
}

func (s *Scheduler) notify(ctx context.Context, text string) {
	if s.notifier == nil || s.adminChat == "" {
		return
	}
	if err := s.notifier.SendMessage(ctx, s.adminChat, text, nil); err != nil {
		s.log.Error(ctx, "Failed to deliver scheduled notification", err, nil)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameISOWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
