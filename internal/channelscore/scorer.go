// Package channelscore recomputes channel health from persisted job yield
// and drives the active/probation/deactivated lifecycle. It runs as a
// periodic sweep independent of the batcher; the batcher only consumes the
// resulting ordering seed.
package channelscore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/observability"
)

// Health is a weighted blend of relevance yield and average job quality,
// clamped to [0,100].
const (
	weightRelevance = 0.6
	weightQuality   = 0.4

	reasonLowYield = "low yield"
)

// Options tunes the sweep.
type Options struct {
	// WindowDays bounds the yield aggregation.
	WindowDays int
	// ProbationThreshold is the health score below which a window counts as
	// low.
	ProbationThreshold float64
	// DemotionWindows is how many consecutive low windows deactivate a
	// probation channel.
	DemotionWindows int
}

// Report summarizes one sweep.
type Report struct {
	Scored      int
	Demoted     int
	Promoted    int
	Deactivated int
}

// Scorer recomputes health for every scorable channel.
type Scorer struct {
	channels domain.ChannelRepository
	jobs     domain.JobRepository
	opts     Options
	now      func() time.Time
}

func NewScorer(channels domain.ChannelRepository, jobs domain.JobRepository, opts Options) *Scorer {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.ProbationThreshold <= 0 {
		opts.ProbationThreshold = 30
	}
	if opts.DemotionWindows <= 0 {
		opts.DemotionWindows = 3
	}
	return &Scorer{channels: channels, jobs: jobs, opts: opts, now: time.Now}
}

// Sweep rescores active and probation channels. Per-channel failures are
// logged and skipped so one bad row cannot stall the sweep.
func (s *Scorer) Sweep(ctx domain.Context) (Report, error) {
	channels, err := s.channels.ListScorable(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("op=channelscore.list: %w", err)
	}

	since := s.now().AddDate(0, 0, -s.opts.WindowDays)
	var rep Report
	for _, ch := range channels {
		if err := s.scoreOne(ctx, ch, since, &rep); err != nil {
			slog.Error("channel scoring failed",
				slog.String("channel", ch.Handle), slog.Any("error", err))
			continue
		}
		rep.Scored++
	}

	slog.Info("channel score sweep finished",
		slog.Int("scored", rep.Scored),
		slog.Int("demoted", rep.Demoted),
		slog.Int("promoted", rep.Promoted),
		slog.Int("deactivated", rep.Deactivated))
	return rep, nil
}

func (s *Scorer) scoreOne(ctx domain.Context, ch domain.Channel, since time.Time, rep *Report) error {
	yield, err := s.jobs.ChannelYield(ctx, ch.Handle, since)
	if err != nil {
		return fmt.Errorf("op=channelscore.yield: %w", err)
	}

	score := HealthScore(yield)
	status, reason, lowWindows := s.transition(ch, score)

	if err := s.channels.UpdateHealth(ctx, ch.Handle, score, status, reason, lowWindows); err != nil {
		return fmt.Errorf("op=channelscore.update: %w", err)
	}

	if status != ch.Status {
		observability.ChannelStatusTransitions.WithLabelValues(string(status)).Inc()
		switch status {
		case domain.ChannelProbation:
			rep.Demoted++
		case domain.ChannelActive:
			rep.Promoted++
		case domain.ChannelDeactivated:
			rep.Deactivated++
		}
		slog.Info("channel status changed",
			slog.String("channel", ch.Handle),
			slog.String("from", string(ch.Status)),
			slog.String("to", string(status)),
			slog.Float64("health", score))
	}
	return nil
}

// transition applies the lifecycle rules: a low window demotes active to
// probation and extends the streak; the streak reaching the demotion limit
// deactivates; a healthy window resets the streak and restores probation to
// active.
func (s *Scorer) transition(ch domain.Channel, score float64) (domain.ChannelStatus, string, int) {
	if score >= s.opts.ProbationThreshold {
		return domain.ChannelActive, "", 0
	}

	lowWindows := ch.LowHealthWindows + 1
	if lowWindows >= s.opts.DemotionWindows {
		return domain.ChannelDeactivated, reasonLowYield, lowWindows
	}
	return domain.ChannelProbation, "", lowWindows
}

// HealthScore blends relevance ratio and average quality into [0,100]. A
// channel with no jobs in the window scores zero.
func HealthScore(y domain.YieldStats) float64 {
	total := y.TotalJobs
	if total < 1 {
		total = 1
	}
	ratio := float64(y.RelevantJobs) / float64(total)

	quality := y.AvgQuality
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}

	score := 100 * (weightRelevance*ratio + weightQuality*quality)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
