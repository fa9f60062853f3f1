package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// AccountRepo persists the account fleet.
type AccountRepo struct{ Pool PgxPool }

// NewAccountRepo constructs an AccountRepo with the given pool.
func NewAccountRepo(p PgxPool) *AccountRepo { return &AccountRepo{Pool: p} }

const accountCols = `id, api_id, api_hash, is_active, is_banned, health, consecutive_errors,
	COALESCE(last_used_at, 'epoch'::timestamptz), COALESCE(last_join_at, 'epoch'::timestamptz),
	COALESCE(join_day, ''), daily_joins`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.APIID, &a.APIHash, &a.IsActive, &a.IsBanned, &a.Health,
		&a.ConsecutiveErrors, &a.LastUsedAt, &a.LastJoinAt, &a.JoinDay, &a.DailyJoins)
	return a, err
}

// List returns accounts, optionally only active ones, ordered by id.
func (r *AccountRepo) List(ctx domain.Context, onlyActive bool) ([]domain.Account, error) {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.List")
	defer span.End()
	q := `SELECT ` + accountCols + ` FROM accounts`
	if onlyActive {
		q += ` WHERE is_active AND NOT is_banned`
	}
	q += ` ORDER BY id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=account.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("op=account.list: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get loads an account by id.
func (r *AccountRepo) Get(ctx domain.Context, id int) (domain.Account, error) {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.Get")
	defer span.End()
	q := `SELECT ` + accountCols + ` FROM accounts WHERE id=$1`
	a, err := scanAccount(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Account{}, fmt.Errorf("op=account.get: %w", domain.ErrNotFound)
		}
		return domain.Account{}, fmt.Errorf("op=account.get: %w", err)
	}
	return a, nil
}

// ReportSuccess resets the consecutive-error counter, restores a degraded
// account to healthy and stamps last_used_at.
func (r *AccountRepo) ReportSuccess(ctx domain.Context, id int) error {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.ReportSuccess")
	defer span.End()
	q := `UPDATE accounts SET consecutive_errors=0, last_used_at=$2,
		health = CASE WHEN health='degraded' THEN 'healthy' ELSE health END
		WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=account.report_success: %w", err)
	}
	return nil
}

// ReportError atomically increments consecutive_errors, moves the account to
// degraded at the third consecutive error, and returns the resulting health.
// Banned stays banned.
func (r *AccountRepo) ReportError(ctx domain.Context, id int, kind string) (domain.AccountHealth, error) {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.ReportError")
	defer span.End()
	q := `UPDATE accounts SET
		consecutive_errors = consecutive_errors + 1,
		last_used_at = $2,
		health = CASE
			WHEN health = 'banned' THEN 'banned'
			WHEN consecutive_errors + 1 >= 3 THEN 'degraded'
			ELSE health
		END
		WHERE id=$1
		RETURNING health`
	var h domain.AccountHealth
	if err := r.Pool.QueryRow(ctx, q, id, time.Now().UTC()).Scan(&h); err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("op=account.report_error kind=%s: %w", kind, domain.ErrNotFound)
		}
		return "", fmt.Errorf("op=account.report_error kind=%s: %w", kind, err)
	}
	return h, nil
}

// MarkBanned sets the terminal banned state and deactivates the account.
func (r *AccountRepo) MarkBanned(ctx domain.Context, id int) error {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.MarkBanned")
	defer span.End()
	q := `UPDATE accounts SET is_banned=true, is_active=false, health='banned' WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("op=account.mark_banned: %w", err)
	}
	return nil
}

// RecordJoin bumps daily_joins for day, resetting the counter when the day
// rolled over, and returns the new count. Single statement so two concurrent
// joiners cannot both observe the quota as free.
func (r *AccountRepo) RecordJoin(ctx domain.Context, id int, day string) (int, error) {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.RecordJoin")
	defer span.End()
	q := `UPDATE accounts SET
		daily_joins = CASE WHEN join_day = $2 THEN daily_joins + 1 ELSE 1 END,
		join_day = $2,
		last_join_at = $3
		WHERE id=$1
		RETURNING daily_joins`
	var n int
	if err := r.Pool.QueryRow(ctx, q, id, day, time.Now().UTC()).Scan(&n); err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("op=account.record_join: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("op=account.record_join: %w", err)
	}
	return n, nil
}
