package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// PreferencesRepo serves the single active scraping-preferences row written
// by the admin API.
type PreferencesRepo struct{ Pool PgxPool }

// NewPreferencesRepo constructs a PreferencesRepo with the given pool.
func NewPreferencesRepo(p PgxPool) *PreferencesRepo { return &PreferencesRepo{Pool: p} }

// GetActive loads the active preferences. ErrNotFound when none configured;
// callers fall back to domain defaults.
func (r *PreferencesRepo) GetActive(ctx domain.Context) (domain.Preferences, error) {
	tracer := otel.Tracer("repo.preferences")
	ctx, span := tracer.Start(ctx, "preferences.GetActive")
	defer span.End()
	q := `SELECT payload, updated_at FROM preferences WHERE is_active ORDER BY updated_at DESC LIMIT 1`
	var payload []byte
	var p domain.Preferences
	if err := r.Pool.QueryRow(ctx, q).Scan(&payload, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Preferences{}, fmt.Errorf("op=preferences.get_active: %w", domain.ErrNotFound)
		}
		return domain.Preferences{}, fmt.Errorf("op=preferences.get_active: %w", err)
	}
	updatedAt := p.UpdatedAt
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Preferences{}, fmt.Errorf("op=preferences.get_active unmarshal: %w", err)
	}
	p.UpdatedAt = updatedAt
	return p, nil
}
