// Package docstore implements the raw-message document store.
//
// The collection is a JSONB-augmented Postgres table with a compound unique
// index on (platform_message_id, channel_handle) and a partial index on
// processed=false, which is exactly the access pattern the pipeline needs:
// idempotent upserts from the scraper and an oldest-first pending scan for
// the processor. The domain.RawMessageStore port keeps the store swappable.
package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// PgxPool is the minimal pool surface the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists raw messages.
type Store struct{ Pool PgxPool }

// New constructs a Store with the given pool.
func New(p PgxPool) *Store { return &Store{Pool: p} }

// Upsert inserts the message or absorbs the duplicate key. Reports whether a
// new row was created; an existing row is left untouched so reprocessing
// state never regresses.
func (s *Store) Upsert(ctx domain.Context, m domain.RawMessage) (bool, error) {
	tracer := otel.Tracer("docstore.raw_messages")
	ctx, span := tracer.Start(ctx, "raw_messages.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("channel", m.ChannelHandle),
		attribute.Int64("platform_message_id", m.PlatformMessageID),
	)
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	fetched := m.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}
	q := `INSERT INTO raw_messages
		(id, platform_message_id, channel_handle, body, sender_id, authored_at,
		 fetched_at, fetched_by, urls, processed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false)
		ON CONFLICT (platform_message_id, channel_handle) DO NOTHING`
	tag, err := s.Pool.Exec(ctx, q, id, m.PlatformMessageID, m.ChannelHandle, m.Text,
		m.SenderID, m.AuthoredAt, fetched, m.FetchedByAccount, m.URLs)
	if err != nil {
		return false, fmt.Errorf("op=raw_message.upsert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const rawCols = `id, platform_message_id, channel_handle, body, sender_id,
	authored_at, fetched_at, fetched_by, urls, processed, COALESCE(outcome, ''), COALESCE(job_id::text, '')`

func scanRaw(row pgx.Row) (domain.RawMessage, error) {
	var m domain.RawMessage
	err := row.Scan(&m.ID, &m.PlatformMessageID, &m.ChannelHandle, &m.Text, &m.SenderID,
		&m.AuthoredAt, &m.FetchedAt, &m.FetchedByAccount, &m.URLs, &m.Processed, &m.Outcome, &m.JobID)
	return m, err
}

// Get loads a raw message by id.
func (s *Store) Get(ctx domain.Context, id string) (domain.RawMessage, error) {
	tracer := otel.Tracer("docstore.raw_messages")
	ctx, span := tracer.Start(ctx, "raw_messages.Get")
	defer span.End()
	m, err := scanRaw(s.Pool.QueryRow(ctx, `SELECT `+rawCols+` FROM raw_messages WHERE id=$1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.RawMessage{}, fmt.Errorf("op=raw_message.get: %w", domain.ErrNotFound)
		}
		return domain.RawMessage{}, fmt.Errorf("op=raw_message.get: %w", err)
	}
	return m, nil
}

// GetByKey loads a raw message by its compound platform key.
func (s *Store) GetByKey(ctx domain.Context, platformMessageID int64, channelHandle string) (domain.RawMessage, error) {
	tracer := otel.Tracer("docstore.raw_messages")
	ctx, span := tracer.Start(ctx, "raw_messages.GetByKey")
	defer span.End()
	q := `SELECT ` + rawCols + ` FROM raw_messages WHERE platform_message_id=$1 AND channel_handle=$2`
	m, err := scanRaw(s.Pool.QueryRow(ctx, q, platformMessageID, channelHandle))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.RawMessage{}, fmt.Errorf("op=raw_message.get_by_key: %w", domain.ErrNotFound)
		}
		return domain.RawMessage{}, fmt.Errorf("op=raw_message.get_by_key: %w", err)
	}
	return m, nil
}

// ListPending returns unprocessed messages oldest-first for the
// reconciliation sweep.
func (s *Store) ListPending(ctx domain.Context, limit int) ([]domain.RawMessage, error) {
	tracer := otel.Tracer("docstore.raw_messages")
	ctx, span := tracer.Start(ctx, "raw_messages.ListPending")
	defer span.End()
	q := `SELECT ` + rawCols + ` FROM raw_messages WHERE NOT processed ORDER BY fetched_at ASC LIMIT $1`
	rows, err := s.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=raw_message.list_pending: %w", err)
	}
	defer rows.Close()
	var out []domain.RawMessage
	for rows.Next() {
		m, err := scanRaw(rows)
		if err != nil {
			return nil, fmt.Errorf("op=raw_message.list_pending: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountPending reports the processor backlog.
func (s *Store) CountPending(ctx domain.Context) (int64, error) {
	tracer := otel.Tracer("docstore.raw_messages")
	ctx, span := tracer.Start(ctx, "raw_messages.CountPending")
	defer span.End()
	var n int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM raw_messages WHERE NOT processed`).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=raw_message.count_pending: %w", err)
	}
	return n, nil
}
