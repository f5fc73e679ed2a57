package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ecom_ops_backend/internal/models"
)

type costLookupRepository struct {
	db *sql.DB
}

// NewCostLookupRepository creates a new instance of CostLookupRepository.
func NewCostLookupRepository(db *sql.DB) CostLookupRepository {
	return &costLookupRepository{db: db}
}

func (r *costLookupRepository) List(ctx context.Context) ([]models.CostLookupRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, strength, vendor, cost_per_unit, updated_at
		FROM cost_lookups ORDER BY id`)
	if err != nil {
		return nil, wrapDBError(err, "listing cost lookups")
	}
	defer rows.Close()

	out := []models.CostLookupRow{}
	for rows.Next() {
		var row models.CostLookupRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Strength, &row.Vendor, &row.CostPerUnit, &row.UpdatedAt); err != nil {
			return nil, wrapDBError(err, "scanning cost lookup")
		}
		out = append(out, row)
	}
	return out, wrapDBError(rows.Err(), "iterating cost lookups")
}

// Upsert keys rows on (name, strength, vendor).
func (r *costLookupRepository) Upsert(ctx context.Context, row *models.CostLookupRow) (int64, error) {
	err := r.db.QueryRowContext(ctx, `INSERT INTO cost_lookups (name, strength, vendor, cost_per_unit, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (name, strength, vendor) DO UPDATE SET cost_per_unit = EXCLUDED.cost_per_unit, updated_at = NOW()
		RETURNING id, updated_at`,
		strings.TrimSpace(row.Name), strings.TrimSpace(row.Strength), strings.TrimSpace(row.Vendor), row.CostPerUnit,
	).Scan(&row.ID, &row.UpdatedAt)
	if err != nil {
		return 0, wrapDBError(err, "upserting cost lookup "+row.Name)
	}
	return row.ID, nil
}

func (r *costLookupRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cost_lookups WHERE id = $1`, id)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("deleting cost lookup %d", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
