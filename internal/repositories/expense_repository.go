package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ecom_ops_backend/internal/models"

	"github.com/shopspring/decimal"
)

const expenseColumns = `id, to_char(expense_date, 'YYYY-MM-DD'), category, description, vendor, amount, source,
	order_number, external_ref, metadata, created_at, updated_at`

type expenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository creates a new instance of ExpenseRepository.
func NewExpenseRepository(db *sql.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func scanExpense(s scanner, extra ...interface{}) (*models.Expense, error) {
	e := &models.Expense{}
	var orderNumber, externalRef sql.NullString
	var metadata []byte
	dest := []interface{}{&e.ID, &e.ExpenseDate, &e.Category, &e.Description, &e.Vendor, &e.Amount, &e.Source,
		&orderNumber, &externalRef, &metadata, &e.CreatedAt, &e.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if orderNumber.Valid {
		e.OrderNumber = &orderNumber.String
	}
	if externalRef.Valid {
		e.ExternalRef = &externalRef.String
	}
	if len(metadata) > 0 {
		e.Metadata = json.RawMessage(metadata)
	}
	return e, nil
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func (r *expenseRepository) FindByOrderAndCategory(ctx context.Context, orderNumber, category string) (*models.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE order_number = $1 AND category = $2 ORDER BY id LIMIT 1`, orderNumber, category)
	e, err := scanExpense(row)
	if err != nil {
		return nil, wrapDBError(err, "finding expense for "+orderNumber)
	}
	return e, nil
}

func (r *expenseRepository) FindByExternalRef(ctx context.Context, externalRef string) (*models.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE external_ref = $1`, externalRef)
	e, err := scanExpense(row)
	if err != nil {
		return nil, wrapDBError(err, "finding expense by ref "+externalRef)
	}
	return e, nil
}

func (r *expenseRepository) Create(ctx context.Context, e *models.Expense) (int64, error) {
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `INSERT INTO expenses
		(expense_date, category, description, vendor, amount, source, order_number, external_ref, metadata, created_at, updated_at)
		VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING id`,
		e.ExpenseDate, e.Category, e.Description, e.Vendor, e.Amount, e.Source,
		e.OrderNumber, e.ExternalRef, nullJSON(e.Metadata), now,
	).Scan(&e.ID)
	if err != nil {
		return 0, wrapDBError(err, "creating expense")
	}
	e.CreatedAt, e.UpdatedAt = now, now
	return e.ID, nil
}

func (r *expenseRepository) UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal, description string, metadata json.RawMessage) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET
			amount = $2,
			description = $3,
			metadata = COALESCE($4::jsonb, metadata),
			updated_at = NOW()
		WHERE id = $1`, id, amount, description, nullJSON(metadata))
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("updating expense %d", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *expenseRepository) List(ctx context.Context, filters models.ExpenseFilters) ([]models.Expense, int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + expenseColumns + `, COUNT(*) OVER() AS total_count FROM expenses`)

	var conditions []string
	var args []interface{}
	argCount := 1
	add := func(cond string, v interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argCount))
		args = append(args, v)
		argCount++
	}

	if filters.Category != nil && *filters.Category != "" {
		add("category = $%d", *filters.Category)
	}
	if filters.Source != nil && *filters.Source != "" {
		add("source = $%d", *filters.Source)
	}
	if filters.OrderNumber != nil && *filters.OrderNumber != "" {
		add("order_number = $%d", *filters.OrderNumber)
	}
	if filters.StartDate != nil && *filters.StartDate != "" {
		add("expense_date >= $%d::date", *filters.StartDate)
	}
	if filters.EndDate != nil && *filters.EndDate != "" {
		add("expense_date <= $%d::date", *filters.EndDate)
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	page, pageSize := normalizePage(filters.Page, filters.PageSize)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY expense_date DESC, id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, wrapDBError(err, "listing expenses")
	}
	defer rows.Close()

	expenses := []models.Expense{}
	total := 0
	for rows.Next() {
		e, err := scanExpense(rows, &total)
		if err != nil {
			return nil, 0, wrapDBError(err, "scanning expense")
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapDBError(err, "iterating expenses")
	}
	return expenses, total, nil
}

func (r *expenseRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("deleting expense %d", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
