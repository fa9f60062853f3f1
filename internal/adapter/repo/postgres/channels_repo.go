package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// ChannelRepo owns channel rows.
type ChannelRepo struct{ Pool PgxPool }

// NewChannelRepo constructs a ChannelRepo with the given pool.
func NewChannelRepo(p PgxPool) *ChannelRepo { return &ChannelRepo{Pool: p} }

const channelCols = `handle, title, category, is_member, COALESCE(account_id, 0),
	COALESCE(last_seen_id, 0), COALESCE(last_scraped_at, 'epoch'::timestamptz),
	messages_scraped, job_messages_found, quality_jobs_found,
	health_score, status, COALESCE(deactivated_reason, ''), low_health_windows`

func scanChannel(row pgx.Row) (domain.Channel, error) {
	var c domain.Channel
	err := row.Scan(&c.Handle, &c.Title, &c.Category, &c.IsMember, &c.AccountID,
		&c.LastSeenID, &c.LastScrapedAt, &c.MessagesScraped, &c.JobMessagesFound,
		&c.QualityJobsFound, &c.HealthScore, &c.Status, &c.DeactivatedReason,
		&c.LowHealthWindows)
	return c, err
}

func (r *ChannelRepo) queryChannels(ctx domain.Context, q string, args ...any) ([]domain.Channel, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Active returns joined, active channels in the batcher's stable order:
// best health first, least-recently-scraped first within equal health.
func (r *ChannelRepo) Active(ctx domain.Context) ([]domain.Channel, error) {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.Active")
	defer span.End()
	q := `SELECT ` + channelCols + ` FROM channels
		WHERE status='active' AND is_member
		ORDER BY health_score DESC, last_scraped_at ASC NULLS FIRST, handle`
	cs, err := r.queryChannels(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=channel.active: %w", err)
	}
	return cs, nil
}

// Get loads a channel by handle (case-insensitive).
func (r *ChannelRepo) Get(ctx domain.Context, handle string) (domain.Channel, error) {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.Get")
	defer span.End()
	q := `SELECT ` + channelCols + ` FROM channels WHERE handle=$1`
	c, err := scanChannel(r.Pool.QueryRow(ctx, q, strings.ToLower(handle)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Channel{}, fmt.Errorf("op=channel.get: %w", domain.ErrNotFound)
		}
		return domain.Channel{}, fmt.Errorf("op=channel.get: %w", err)
	}
	return c, nil
}

// Upsert inserts or refreshes a curated channel row. Cursor and counters are
// never overwritten here.
func (r *ChannelRepo) Upsert(ctx domain.Context, c domain.Channel) error {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.Upsert")
	defer span.End()
	if c.Status == "" {
		c.Status = domain.ChannelActive
	}
	q := `INSERT INTO channels (handle, title, category, is_member, status, health_score, created_at)
		VALUES ($1,$2,$3,$4,$5,50,$6)
		ON CONFLICT (handle) DO UPDATE SET title=EXCLUDED.title, category=EXCLUDED.category`
	_, err := r.Pool.Exec(ctx, q, strings.ToLower(c.Handle), c.Title, c.Category, c.IsMember, c.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=channel.upsert: %w", err)
	}
	return nil
}

// AssignAccount sets the owning account; it only takes effect when no account
// is assigned yet, per the first-join ownership rule.
func (r *ChannelRepo) AssignAccount(ctx domain.Context, handle string, accountID int) error {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.AssignAccount")
	defer span.End()
	q := `UPDATE channels SET account_id=$2, is_member=true,
		status = CASE WHEN status='probation' THEN 'active' ELSE status END
		WHERE handle=$1 AND (account_id IS NULL OR account_id=0 OR status='probation')`
	if _, err := r.Pool.Exec(ctx, q, strings.ToLower(handle), accountID); err != nil {
		return fmt.Errorf("op=channel.assign_account: %w", err)
	}
	return nil
}

// MarkScraped advances the cursor and applies additive counter deltas. The
// GREATEST keeps the cursor monotonic under concurrent retries.
func (r *ChannelRepo) MarkScraped(ctx domain.Context, handle string, accountID int, newLastSeen int64, d domain.ScrapeDelta) error {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.MarkScraped")
	defer span.End()
	q := `UPDATE channels SET
		last_seen_id = GREATEST(COALESCE(last_seen_id,0), $2),
		last_scraped_at = $3,
		messages_scraped = messages_scraped + $4,
		job_messages_found = job_messages_found + $5,
		quality_jobs_found = quality_jobs_found + $6
		WHERE handle=$1`
	_, err := r.Pool.Exec(ctx, q, strings.ToLower(handle), newLastSeen, time.Now().UTC(),
		d.MessagesScraped, d.JobMessagesFound, d.QualityJobsFound)
	if err != nil {
		return fmt.Errorf("op=channel.mark_scraped: %w", err)
	}
	return nil
}

// SetStatus updates the lifecycle label with a reason.
func (r *ChannelRepo) SetStatus(ctx domain.Context, handle string, st domain.ChannelStatus, reason string) error {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.SetStatus")
	defer span.End()
	q := `UPDATE channels SET status=$2, deactivated_reason=$3 WHERE handle=$1`
	if _, err := r.Pool.Exec(ctx, q, strings.ToLower(handle), st, reason); err != nil {
		return fmt.Errorf("op=channel.set_status: %w", err)
	}
	return nil
}

// MoveToProbationByAccount parks all channels owned by a banned account.
func (r *ChannelRepo) MoveToProbationByAccount(ctx domain.Context, accountID int) (int, error) {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.MoveToProbationByAccount")
	defer span.End()
	q := `UPDATE channels SET status='probation', deactivated_reason='owning account banned'
		WHERE account_id=$1 AND status='active'`
	tag, err := r.Pool.Exec(ctx, q, accountID)
	if err != nil {
		return 0, fmt.Errorf("op=channel.probation_by_account: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// JoinCandidates lists channels awaiting a first join.
func (r *ChannelRepo) JoinCandidates(ctx domain.Context, limit int) ([]domain.Channel, error) {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.JoinCandidates")
	defer span.End()
	q := `SELECT ` + channelCols + ` FROM channels
		WHERE NOT is_member AND status <> 'deactivated'
		ORDER BY created_at ASC LIMIT $1`
	cs, err := r.queryChannels(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=channel.join_candidates: %w", err)
	}
	return cs, nil
}

// ListScorable returns channels the scorer sweep considers.
func (r *ChannelRepo) ListScorable(ctx domain.Context) ([]domain.Channel, error) {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.ListScorable")
	defer span.End()
	q := `SELECT ` + channelCols + ` FROM channels WHERE status IN ('active','probation') AND is_member ORDER BY handle`
	cs, err := r.queryChannels(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=channel.list_scorable: %w", err)
	}
	return cs, nil
}

// UpdateHealth writes the recomputed score, status and low-window streak.
func (r *ChannelRepo) UpdateHealth(ctx domain.Context, handle string, score float64, st domain.ChannelStatus, reason string, lowWindows int) error {
	tracer := otel.Tracer("repo.channels")
	ctx, span := tracer.Start(ctx, "channels.UpdateHealth")
	defer span.End()
	q := `UPDATE channels SET health_score=$2, status=$3, deactivated_reason=$4, low_health_windows=$5
		WHERE handle=$1`
	_, err := r.Pool.Exec(ctx, q, strings.ToLower(handle), score, st, reason, lowWindows)
	if err != nil {
		return fmt.Errorf("op=channel.update_health: %w", err)
	}
	return nil
}
