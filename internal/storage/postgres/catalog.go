package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/catalog"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByID looks up a single variant. Returns catalog.ErrNotFound when the
// variant does not exist.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalog.Variant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, unit_price, tax_rate, digital, stock
		FROM variants WHERE id = $1`, id)

	var v catalog.Variant
	err := row.Scan(&v.ID, &v.Name, &v.UnitPrice, &v.TaxRate, &v.Digital, &v.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}
	return &v, nil
}

// GetByIDs fetches all requested variants in a single query. Missing IDs are
// silently absent from the result; callers detect them by comparing lengths.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, unit_price, tax_rate, digital, stock
		FROM variants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	defer rows.Close()

	var out []catalog.Variant
	for rows.Next() {
		var v catalog.Variant
		if err := rows.Scan(&v.ID, &v.Name, &v.UnitPrice, &v.TaxRate, &v.Digital, &v.Stock); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
