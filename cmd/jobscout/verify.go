package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/jobscout/internal/config"
	"github.com/fairyhunter13/jobscout/internal/domain"
)

func processTask(rawID, handle string, platformID int64) domain.ProcessTask {
	return domain.ProcessTask{
		RawMessageID:      rawID,
		ChannelHandle:     handle,
		PlatformMessageID: platformID,
		CorrelationID:     "cli",
	}
}

// runVerify runs read-only consistency checks and returns one report line
// per check. Non-zero counts are anomalies for an operator to chase.
func runVerify(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) ([]string, error) {
	checks := []struct {
		name  string
		query string
		args  []any
	}{
		{
			name:  "processed messages without an outcome",
			query: `SELECT COUNT(*) FROM raw_messages WHERE processed AND (outcome IS NULL OR outcome = '')`,
		},
		{
			name: "active duplicate pairs inside the dedup window",
			query: `SELECT COUNT(*) FROM (
				SELECT content_hash FROM jobs
				WHERE is_active AND first_seen_at >= now() - $1::interval
				GROUP BY content_hash HAVING COUNT(*) > 1) d`,
			args: []any{fmt.Sprintf("%d seconds", int(cfg.DedupWindow.Seconds()))},
		},
		{
			name: "non-deactivated channels owned by banned accounts",
			query: `SELECT COUNT(*) FROM channels c
				JOIN accounts a ON a.id = c.account_id
				WHERE a.is_banned AND c.status <> 'deactivated'`,
		},
		{
			name:  "unprocessed raw messages",
			query: `SELECT COUNT(*) FROM raw_messages WHERE NOT processed`,
		},
		{
			name:  "scrape runs stuck in running",
			query: `SELECT COUNT(*) FROM scrape_runs WHERE status = 'running' AND started_at < now() - $1::interval`,
			args:  []any{fmt.Sprintf("%d seconds", int(cfg.StaleRunAge.Seconds()))},
		},
	}

	out := make([]string, 0, len(checks))
	for _, c := range checks {
		var n int64
		if err := pool.QueryRow(ctx, c.query, c.args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("op=verify.%s: %w", c.name, err)
		}
		marker := "ok"
		if n > 0 {
			marker = "ANOMALY"
		}
		out = append(out, fmt.Sprintf("[%s] %s: %d", marker, c.name, n))
	}
	return out, nil
}
