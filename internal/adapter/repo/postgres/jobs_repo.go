package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/pipeline/canonical"
)

// JobRepo persists canonical jobs. CommitCandidate is the single write path:
// company resolution, job insert, raw-message outcome and channel counters
// happen in one transaction so a failure leaves the raw message
// reprocessable.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// CommitCandidate applies one JobCommit atomically and returns the job id.
func (r *JobRepo) CommitCandidate(ctx domain.Context, c domain.JobCommit) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.CommitCandidate")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("job.outcome", string(c.Outcome)),
		attribute.Bool("job.active", c.IsActive),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("op=job.commit begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cand := c.Candidate
	normalized := canonical.CompanyName(cand.Company)

	// Resolve or create the company. The insert races are absorbed by the
	// unique index on normalized_name.
	var companyID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM companies WHERE normalized_name=$1`, normalized).Scan(&companyID)
	if err == pgx.ErrNoRows {
		companyID = uuid.New().String()
		_, err = tx.Exec(ctx,
			`INSERT INTO companies (id, name, normalized_name, is_verified, created_at)
			 VALUES ($1,$2,$3,false,$4)
			 ON CONFLICT (normalized_name) DO NOTHING`,
			companyID, cand.Company, normalized, time.Now().UTC())
		if err == nil {
			// A concurrent insert may have won; read back the canonical id.
			err = tx.QueryRow(ctx,
				`SELECT id FROM companies WHERE normalized_name=$1`, normalized).Scan(&companyID)
		}
	}
	if err != nil {
		return "", fmt.Errorf("op=job.commit company: %w", err)
	}

	seen := c.SeenAt
	if seen.IsZero() {
		seen = time.Now().UTC()
	}
	jobID := uuid.New().String()
	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, title, company_id, raw_message_id, channel_handle,
			location_raw, cities, is_remote, is_hybrid, is_onsite_only, geo_scope,
			experience_raw, min_years, max_years, is_fresher, salary_monthly,
			skills, category, apply_url, apply_emails, apply_phones,
			quality_score, relevance_score, content_hash, is_active,
			first_seen_at, last_seen_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)`,
		jobID, cand.Title, companyID, c.RawMessageID, c.ChannelHandle,
		cand.Location.Raw, cand.Location.Cities, cand.Location.IsRemote, cand.Location.IsHybrid,
		cand.Location.IsOnsiteOnly, cand.Location.Scope,
		cand.Experience.Raw, cand.Experience.MinYears, cand.Experience.MaxYears, cand.Experience.IsFresher,
		cand.SalaryMonthly, cand.Skills, cand.Category,
		cand.Apply.URL, cand.Apply.Emails, cand.Apply.Phones,
		cand.QualityScore, cand.RelevanceScore, cand.ContentHash, c.IsActive,
		seen, seen, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=job.commit insert: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE raw_messages SET processed=true, outcome=$2, job_id=$3 WHERE id=$1`,
		c.RawMessageID, c.Outcome, jobID)
	if err != nil {
		return "", fmt.Errorf("op=job.commit raw_message: %w", err)
	}

	quality := 0
	if c.IsActive {
		quality = 1
	}
	_, err = tx.Exec(ctx,
		`UPDATE channels SET job_messages_found = job_messages_found + 1,
			quality_jobs_found = quality_jobs_found + $2
		 WHERE handle=$1`,
		c.ChannelHandle, quality)
	if err != nil {
		return "", fmt.Errorf("op=job.commit channel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("op=job.commit: %w", err)
	}
	return jobID, nil
}

// MarkMessageOutcome is the no-candidate path: tag the raw message terminal
// without inserting a job row.
func (r *JobRepo) MarkMessageOutcome(ctx domain.Context, rawMessageID string, outcome domain.ProcessingOutcome) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.MarkMessageOutcome")
	defer span.End()
	q := `UPDATE raw_messages SET processed=true, outcome=$2 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, rawMessageID, outcome); err != nil {
		return fmt.Errorf("op=job.mark_outcome: %w", err)
	}
	return nil
}

// FindActiveByHashSince returns active jobs carrying hash first seen at or
// after since, oldest first.
func (r *JobRepo) FindActiveByHashSince(ctx domain.Context, hash string, since time.Time) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FindActiveByHashSince")
	defer span.End()
	q := `SELECT id, title, company_id, raw_message_id, channel_handle, content_hash,
			quality_score, relevance_score, is_active, first_seen_at, last_seen_at
		FROM jobs WHERE content_hash=$1 AND is_active AND first_seen_at >= $2
		ORDER BY first_seen_at ASC`
	rows, err := r.Pool.Query(ctx, q, hash, since)
	if err != nil {
		return nil, fmt.Errorf("op=job.find_by_hash: %w", err)
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.CompanyID, &j.RawMessageID, &j.ChannelHandle,
			&j.ContentHash, &j.QualityScore, &j.RelevanceScore, &j.IsActive,
			&j.FirstSeenAt, &j.LastSeenAt); err != nil {
			return nil, fmt.Errorf("op=job.find_by_hash: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// TouchDuplicate bumps last_seen_at on the surviving row of a dedup collapse.
func (r *JobRepo) TouchDuplicate(ctx domain.Context, jobID string, seenAt time.Time) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.TouchDuplicate")
	defer span.End()
	q := `UPDATE jobs SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, jobID, seenAt); err != nil {
		return fmt.Errorf("op=job.touch_duplicate: %w", err)
	}
	return nil
}

// ChannelYield aggregates a channel's persisted jobs inside the scoring window.
func (r *JobRepo) ChannelYield(ctx domain.Context, handle string, since time.Time) (domain.YieldStats, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ChannelYield")
	defer span.End()
	q := `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COALESCE(AVG(quality_score), 0)
		FROM jobs WHERE channel_handle=$1 AND created_at >= $2`
	var s domain.YieldStats
	if err := r.Pool.QueryRow(ctx, q, handle, since).Scan(&s.TotalJobs, &s.RelevantJobs, &s.AvgQuality); err != nil {
		return domain.YieldStats{}, fmt.Errorf("op=job.channel_yield: %w", err)
	}
	return s, nil
}
