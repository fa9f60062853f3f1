package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/observability"
	"github.com/fairyhunter13/jobscout/internal/service/accountpool"
)

// maxRunErrors bounds the structured error list persisted on a run.
const maxRunErrors = 50

// Batcher turns one trigger into one scrape run: select due channels, spread
// them over healthy accounts, fan out one worker per account, aggregate.
type Batcher struct {
	runs     domain.ScrapeRunRepository
	channels domain.ChannelRepository
	pool     *accountpool.Pool
	worker   *Worker

	batchSize int
}

// NewBatcher wires a Batcher.
func NewBatcher(runs domain.ScrapeRunRepository, channels domain.ChannelRepository, pool *accountpool.Pool, worker *Worker, batchSize int) *Batcher {
	return &Batcher{
		runs:      runs,
		channels:  channels,
		pool:      pool,
		worker:    worker,
		batchSize: batchSize,
	}
}

// Run executes one scrape run and returns its terminal record. A run with
// zero usable accounts fails; channel-level errors make it partial.
func (b *Batcher) Run(ctx context.Context) (domain.ScrapeRun, error) {
	runID := ulid.Make().String()
	started := time.Now().UTC()
	if _, err := b.runs.Create(ctx, domain.ScrapeRun{
		ID:        runID,
		Status:    domain.RunRunning,
		StartedAt: started,
	}); err != nil {
		return domain.ScrapeRun{}, fmt.Errorf("op=scraper.batch: create run: %w", err)
	}
	slog.Info("scrape run started", slog.String("run_id", runID))

	counters, errs, runErr := b.execute(ctx, runID)

	status := domain.RunSuccess
	switch {
	case runErr != nil:
		status = domain.RunFailed
		counters.Errors++
		errs = appendRunError(errs, domain.RunError{Code: "run_failed", Message: runErr.Error()})
	case counters.Errors > 0:
		status = domain.RunPartial
	}

	if err := b.runs.Finish(ctx, runID, status, counters, errs); err != nil {
		return domain.ScrapeRun{}, fmt.Errorf("op=scraper.batch run=%s: finish: %w", runID, err)
	}
	observability.ScrapeRunsTotal.WithLabelValues(string(status)).Inc()
	slog.Info("scrape run finished",
		slog.String("run_id", runID),
		slog.String("status", string(status)),
		slog.Int("accounts", counters.AccountsUsed),
		slog.Int("channels", counters.GroupsProcessed),
		slog.Int("messages", counters.MessagesFetched),
		slog.Int("errors", counters.Errors))

	run, err := b.runs.Get(ctx, runID)
	if err != nil {
		return domain.ScrapeRun{}, err
	}
	return run, runErr
}

func (b *Batcher) execute(ctx context.Context, runID string) (domain.RunCounters, []domain.RunError, error) {
	var counters domain.RunCounters
	var errs []domain.RunError

	channels, err := b.channels.Active(ctx)
	if err != nil {
		return counters, errs, fmt.Errorf("list channels: %w", err)
	}
	if len(channels) == 0 {
		slog.Info("no channels due", slog.String("run_id", runID))
		return counters, errs, nil
	}

	accounts, err := b.pool.Healthy(ctx)
	if err != nil {
		return counters, errs, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return counters, errs, fmt.Errorf("no usable accounts")
	}

	used := map[int]bool{}
	for len(channels) > 0 {
		n := b.batchSize
		if n > len(channels) {
			n = len(channels)
		}
		batch := channels[:n]
		channels = channels[n:]

		assignments := partition(batch, accounts)
		for id := range assignments {
			used[id] = true
		}

		var (
			g       errgroup.Group
			results = make(chan AccountReport, len(assignments))
		)
		for accountID, chs := range assignments {
			accountID, chs := accountID, chs
			g.Go(func() error {
				report, err := b.worker.RunAccount(ctx, accountID, chs, runID)
				if err != nil {
					report.Errors = append(report.Errors, domain.RunError{
						Code:    "account_failed",
						Account: accountID,
						Message: err.Error(),
					})
				}
				results <- report
				return nil
			})
		}
		_ = g.Wait()
		close(results)
		for r := range results {
			counters.GroupsProcessed += r.ChannelsScraped
			counters.MessagesFetched += r.MessagesFetched
			counters.Errors += len(r.Errors)
			for _, e := range r.Errors {
				errs = appendRunError(errs, e)
			}
		}

		if ctx.Err() != nil {
			return counters, errs, ctx.Err()
		}
	}
	counters.AccountsUsed = len(used)
	return counters, errs, nil
}

// partition spreads channels over accounts: an owned channel goes to its
// owner when that account is usable, the rest round-robin.
func partition(channels []domain.Channel, accounts []domain.Account) map[int][]domain.Channel {
	usable := map[int]bool{}
	order := make([]int, 0, len(accounts))
	for _, a := range accounts {
		usable[a.ID] = true
		order = append(order, a.ID)
	}

	out := map[int][]domain.Channel{}
	next := 0
	for _, ch := range channels {
		id := ch.AccountID
		if id == 0 || !usable[id] {
			id = order[next%len(order)]
			next++
		}
		out[id] = append(out[id], ch)
	}
	return out
}

func appendRunError(errs []domain.RunError, e domain.RunError) []domain.RunError {
	if len(errs) >= maxRunErrors {
		return errs
	}
	return append(errs, e)
}
