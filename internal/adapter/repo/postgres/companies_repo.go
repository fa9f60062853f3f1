package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// CompanyRepo serves canonical employer reads; creation happens inside the
// job commit transaction.
type CompanyRepo struct{ Pool PgxPool }

// NewCompanyRepo constructs a CompanyRepo with the given pool.
func NewCompanyRepo(p PgxPool) *CompanyRepo { return &CompanyRepo{Pool: p} }

// GetByNormalizedName looks a company up by its canonical name.
func (r *CompanyRepo) GetByNormalizedName(ctx domain.Context, normalized string) (domain.Company, error) {
	tracer := otel.Tracer("repo.companies")
	ctx, span := tracer.Start(ctx, "companies.GetByNormalizedName")
	defer span.End()
	q := `SELECT id, name, normalized_name, is_verified, created_at FROM companies WHERE normalized_name=$1`
	var c domain.Company
	err := r.Pool.QueryRow(ctx, q, normalized).Scan(&c.ID, &c.Name, &c.NormalizedName, &c.IsVerified, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Company{}, fmt.Errorf("op=company.get: %w", domain.ErrNotFound)
		}
		return domain.Company{}, fmt.Errorf("op=company.get: %w", err)
	}
	return c, nil
}
