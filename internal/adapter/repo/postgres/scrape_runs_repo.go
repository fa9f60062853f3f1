package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// ScrapeRunRepo records batcher invocations.
type ScrapeRunRepo struct{ Pool PgxPool }

// NewScrapeRunRepo constructs a ScrapeRunRepo with the given pool.
func NewScrapeRunRepo(p PgxPool) *ScrapeRunRepo { return &ScrapeRunRepo{Pool: p} }

// Create inserts a run in state running and returns its id.
func (r *ScrapeRunRepo) Create(ctx domain.Context, run domain.ScrapeRun) (string, error) {
	tracer := otel.Tracer("repo.scrape_runs")
	ctx, span := tracer.Start(ctx, "scrape_runs.Create")
	defer span.End()
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	q := `INSERT INTO scrape_runs (id, status, started_at, errors) VALUES ($1,'running',$2,'[]')`
	if _, err := r.Pool.Exec(ctx, q, run.ID, started); err != nil {
		return "", fmt.Errorf("op=scrape_run.create: %w", err)
	}
	return run.ID, nil
}

// Finish writes the terminal status, counters and the bounded error list.
func (r *ScrapeRunRepo) Finish(ctx domain.Context, id string, status domain.ScrapeRunStatus, c domain.RunCounters, errs []domain.RunError) error {
	tracer := otel.Tracer("repo.scrape_runs")
	ctx, span := tracer.Start(ctx, "scrape_runs.Finish")
	defer span.End()
	// Cap the stored error list; counters keep the full tally.
	const maxStoredErrors = 50
	if len(errs) > maxStoredErrors {
		errs = errs[:maxStoredErrors]
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("op=scrape_run.finish marshal: %w", err)
	}
	q := `UPDATE scrape_runs SET status=$2, finished_at=$3,
		accounts_used=$4, groups_processed=$5, messages_fetched=$6,
		jobs_extracted=$7, duplicates_found=$8, errors_count=$9, errors=$10
		WHERE id=$1`
	_, err = r.Pool.Exec(ctx, q, id, status, time.Now().UTC(),
		c.AccountsUsed, c.GroupsProcessed, c.MessagesFetched,
		c.JobsExtracted, c.DuplicatesFound, c.Errors, payload)
	if err != nil {
		return fmt.Errorf("op=scrape_run.finish: %w", err)
	}
	return nil
}

const runCols = `id, status, started_at, COALESCE(finished_at, 'epoch'::timestamptz),
	accounts_used, groups_processed, messages_fetched, jobs_extracted,
	duplicates_found, errors_count, errors`

func scanRun(row pgx.Row) (domain.ScrapeRun, error) {
	var run domain.ScrapeRun
	var payload []byte
	err := row.Scan(&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.Counters.AccountsUsed, &run.Counters.GroupsProcessed, &run.Counters.MessagesFetched,
		&run.Counters.JobsExtracted, &run.Counters.DuplicatesFound, &run.Counters.Errors, &payload)
	if err != nil {
		return domain.ScrapeRun{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &run.Errors); err != nil {
			return domain.ScrapeRun{}, err
		}
	}
	return run, nil
}

// Get loads a run by id.
func (r *ScrapeRunRepo) Get(ctx domain.Context, id string) (domain.ScrapeRun, error) {
	tracer := otel.Tracer("repo.scrape_runs")
	ctx, span := tracer.Start(ctx, "scrape_runs.Get")
	defer span.End()
	run, err := scanRun(r.Pool.QueryRow(ctx, `SELECT `+runCols+` FROM scrape_runs WHERE id=$1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ScrapeRun{}, fmt.Errorf("op=scrape_run.get: %w", domain.ErrNotFound)
		}
		return domain.ScrapeRun{}, fmt.Errorf("op=scrape_run.get: %w", err)
	}
	return run, nil
}

// ListRecent returns the newest runs first.
func (r *ScrapeRunRepo) ListRecent(ctx domain.Context, limit int) ([]domain.ScrapeRun, error) {
	tracer := otel.Tracer("repo.scrape_runs")
	ctx, span := tracer.Start(ctx, "scrape_runs.ListRecent")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+runCols+` FROM scrape_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("op=scrape_run.list: %w", err)
	}
	defer rows.Close()
	var out []domain.ScrapeRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("op=scrape_run.list: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// SweepStale moves runs stuck in running since before cutoff to partial.
func (r *ScrapeRunRepo) SweepStale(ctx domain.Context, cutoff time.Time) (int, error) {
	tracer := otel.Tracer("repo.scrape_runs")
	ctx, span := tracer.Start(ctx, "scrape_runs.SweepStale")
	defer span.End()
	q := `UPDATE scrape_runs SET status='partial', finished_at=$2
		WHERE status='running' AND started_at < $1`
	tag, err := r.Pool.Exec(ctx, q, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("op=scrape_run.sweep_stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
