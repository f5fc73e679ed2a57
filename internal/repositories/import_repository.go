package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ecom_ops_backend/internal/models"
)

const importLineColumns = `id, batch_id, line_number, to_char(transaction_date, 'YYYY-MM-DD'), description, vendor,
	amount, category, auto_categorized, approved, rejected, expense_id, created_at`

type importRepository struct {
	db *sql.DB
}

// NewImportRepository creates a new instance of ImportRepository.
func NewImportRepository(db *sql.DB) ImportRepository {
	return &importRepository{db: db}
}

// CreateBatch stores the batch header and every staged line in one transaction.
func (r *importRepository) CreateBatch(ctx context.Context, batch *models.ExpenseImportBatch, lines []models.ExpenseImportLine) (int64, error) {
	now := time.Now()
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `INSERT INTO expense_import_batches
			(filename, status, total_lines, approved_lines, created_at, updated_at)
			VALUES ($1, $2, $3, 0, $4, $4) RETURNING id`,
			batch.Filename, models.ImportStatusPending, len(lines), now,
		).Scan(&batch.ID)
		if err != nil {
			return wrapDBError(err, "creating import batch")
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO expense_import_lines
			(batch_id, line_number, transaction_date, description, vendor, amount, category, auto_categorized, created_at)
			VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9) RETURNING id`)
		if err != nil {
			return wrapDBError(err, "preparing import line insert")
		}
		defer stmt.Close()

		for i := range lines {
			l := &lines[i]
			l.BatchID = batch.ID
			l.CreatedAt = now
			if err := stmt.QueryRowContext(ctx, batch.ID, l.LineNumber, l.TransactionDate, l.Description, l.Vendor,
				l.Amount, l.Category, l.AutoCategorized, now).Scan(&l.ID); err != nil {
				return wrapDBError(err, fmt.Sprintf("inserting import line %d", l.LineNumber))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	batch.Status = models.ImportStatusPending
	batch.TotalLines = len(lines)
	batch.CreatedAt, batch.UpdatedAt = now, now
	return batch.ID, nil
}

func (r *importRepository) GetBatch(ctx context.Context, id int64) (*models.ExpenseImportBatch, error) {
	b := &models.ExpenseImportBatch{}
	err := r.db.QueryRowContext(ctx, `SELECT id, filename, status, total_lines, approved_lines, created_at, updated_at
		FROM expense_import_batches WHERE id = $1`, id).
		Scan(&b.ID, &b.Filename, &b.Status, &b.TotalLines, &b.ApprovedLines, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting import batch %d", id))
	}
	return b, nil
}

func (r *importRepository) ListBatches(ctx context.Context) ([]models.ExpenseImportBatch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, filename, status, total_lines, approved_lines, created_at, updated_at
		FROM expense_import_batches ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, wrapDBError(err, "listing import batches")
	}
	defer rows.Close()

	batches := []models.ExpenseImportBatch{}
	for rows.Next() {
		var b models.ExpenseImportBatch
		if err := rows.Scan(&b.ID, &b.Filename, &b.Status, &b.TotalLines, &b.ApprovedLines, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, wrapDBError(err, "scanning import batch")
		}
		batches = append(batches, b)
	}
	return batches, wrapDBError(rows.Err(), "iterating import batches")
}

func (r *importRepository) ListLines(ctx context.Context, batchID int64) ([]models.ExpenseImportLine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+importLineColumns+` FROM expense_import_lines
		WHERE batch_id = $1 ORDER BY line_number, id`, batchID)
	if err != nil {
		return nil, wrapDBError(err, "listing import lines")
	}
	defer rows.Close()

	lines := []models.ExpenseImportLine{}
	for rows.Next() {
		var l models.ExpenseImportLine
		var txDate, category sql.NullString
		var expenseID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.BatchID, &l.LineNumber, &txDate, &l.Description, &l.Vendor,
			&l.Amount, &category, &l.AutoCategorized, &l.Approved, &l.Rejected, &expenseID, &l.CreatedAt); err != nil {
			return nil, wrapDBError(err, "scanning import line")
		}
		if txDate.Valid {
			l.TransactionDate = &txDate.String
		}
		if category.Valid {
			l.Category = &category.String
		}
		if expenseID.Valid {
			l.ExpenseID = &expenseID.Int64
		}
		lines = append(lines, l)
	}
	return lines, wrapDBError(rows.Err(), "iterating import lines")
}

// pendingLineUpdate runs an update restricted to a pending line of the batch.
func (r *importRepository) pendingLineUpdate(ctx context.Context, op, set string, batchID, lineID int64, args ...interface{}) error {
	query := `UPDATE expense_import_lines SET ` + set + `
		WHERE batch_id = $1 AND id = $2 AND NOT approved AND NOT rejected`
	res, err := r.db.ExecContext(ctx, query, append([]interface{}{batchID, lineID}, args...)...)
	if err != nil {
		return wrapDBError(err, op)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *importRepository) SetLineCategory(ctx context.Context, batchID, lineID int64, category string) error {
	return r.pendingLineUpdate(ctx, "setting import line category", `category = $3, auto_categorized = FALSE`, batchID, lineID, category)
}

func (r *importRepository) MarkLineApproved(ctx context.Context, batchID, lineID, expenseID int64) error {
	return r.pendingLineUpdate(ctx, "approving import line", `approved = TRUE, expense_id = $3`, batchID, lineID, expenseID)
}

func (r *importRepository) MarkLineRejected(ctx context.Context, batchID, lineID int64) error {
	return r.pendingLineUpdate(ctx, "rejecting import line", `rejected = TRUE`, batchID, lineID)
}

func (r *importRepository) UpdateBatchStatus(ctx context.Context, batchID int64, status string, approvedLines int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expense_import_batches
		SET status = $2, approved_lines = $3, updated_at = NOW() WHERE id = $1`, batchID, status, approvedLines)
	if err != nil {
		return wrapDBError(err, "updating import batch status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
