package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// WorkingHours gates scheduled scrapes to a local-time window. Forced runs
// bypass it.
type WorkingHours struct {
	Start int // inclusive hour of day
	End   int // exclusive hour of day
	Loc   *time.Location
}

// Contains reports whether t falls inside the window.
func (w WorkingHours) Contains(t time.Time) bool {
	h := t.In(w.Loc).Hour()
	if w.Start <= w.End {
		return h >= w.Start && h < w.End
	}
	// Window wraps midnight.
	return h >= w.Start || h < w.End
}

// Scheduler owns the periodic triggers: scrape batches on an interval inside
// working hours, joins piggybacked on the same tick, stale-run sweeps, and
// the nightly channel scoring job.
type Scheduler struct {
	s     gocron.Scheduler
	hours WorkingHours
}

// NewScheduler builds an idle scheduler; jobs are registered before Start.
func NewScheduler(hours WorkingHours) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(hours.Loc))
	if err != nil {
		return nil, fmt.Errorf("op=scraper.scheduler: %w", err)
	}
	return &Scheduler{s: s, hours: hours}, nil
}

// AddScrapeJob registers the batch trigger. Each tick outside working hours
// is skipped.
func (s *Scheduler) AddScrapeJob(ctx context.Context, interval time.Duration, batcher *Batcher, joiner *Joiner, joinLimit int) error {
	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			now := time.Now()
			if !s.hours.Contains(now) {
				slog.Debug("scrape tick outside working hours, skipped")
				return
			}
			if joiner != nil && joinLimit > 0 {
				if n, err := joiner.JoinPending(ctx, joinLimit); err != nil {
					slog.Error("join sweep failed", slog.Any("error", err))
				} else if n > 0 {
					slog.Info("join sweep", slog.Int("joined", n))
				}
			}
			if _, err := batcher.Run(ctx); err != nil {
				slog.Error("scheduled scrape run failed", slog.Any("error", err))
			}
		}),
		gocron.WithName("scrape-batch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("op=scraper.scheduler: scrape job: %w", err)
	}
	return nil
}

// AddWatchdogJob registers the stale-run sweep.
func (s *Scheduler) AddWatchdogJob(ctx context.Context, every time.Duration, w *Watchdog) error {
	_, err := s.s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if _, err := w.Sweep(ctx); err != nil {
				slog.Error("stale run sweep failed", slog.Any("error", err))
			}
		}),
		gocron.WithName("stale-run-sweep"),
	)
	if err != nil {
		return fmt.Errorf("op=scraper.scheduler: watchdog job: %w", err)
	}
	return nil
}

// AddCronJob registers an arbitrary cron-scheduled task (used for the
// nightly channel scoring sweep).
func (s *Scheduler) AddCronJob(name, expr string, task func()) error {
	_, err := s.s.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("op=scraper.scheduler: cron job %s: %w", name, err)
	}
	return nil
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() { s.s.Start() }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.s.Shutdown() }
