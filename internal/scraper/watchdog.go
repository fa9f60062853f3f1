package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/observability"
)

// Watchdog reaps runs stuck in running, usually after a process crash. Swept
// runs become partial: their stored messages are real, their counters are
// not trustworthy.
type Watchdog struct {
	runs   domain.ScrapeRunRepository
	maxAge time.Duration
}

// NewWatchdog wires a Watchdog. maxAge is how long a run may stay running
// before it is presumed dead.
func NewWatchdog(runs domain.ScrapeRunRepository, maxAge time.Duration) *Watchdog {
	return &Watchdog{runs: runs, maxAge: maxAge}
}

// Sweep moves stale running runs to partial and returns how many were swept.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-w.maxAge)
	n, err := w.runs.SweepStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=scraper.watchdog: %w", err)
	}
	if n > 0 {
		observability.ScrapeRunsTotal.WithLabelValues(string(domain.RunPartial)).Add(float64(n))
		slog.Warn("stale scrape runs swept", slog.Int("count", n))
	}
	return n, nil
}
