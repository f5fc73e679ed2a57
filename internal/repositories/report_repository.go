package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ecom_ops_backend/internal/models"

	"github.com/lib/pq"
)

type reportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sql.DB) ReportRepository {
	return &reportRepository{db: db}
}

// dateWindow appends inclusive date bounds on col to conditions.
func dateWindow(col, startDate, endDate string, conditions []string, args []interface{}) ([]string, []interface{}) {
	if startDate != "" {
		args = append(args, startDate)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d::date", col, len(args)))
	}
	if endDate != "" {
		args = append(args, endDate)
		conditions = append(conditions, fmt.Sprintf("%s <= $%d::date", col, len(args)))
	}
	return conditions, args
}

func (r *reportRepository) OrderTotals(ctx context.Context, startDate, endDate string) (models.OrderTotals, error) {
	var totals models.OrderTotals
	conditions := []string{"NOT (o.status = ANY($1))"}
	args := []interface{}{pq.Array(models.ExcludedOrderStatuses)}
	conditions, args = dateWindow("COALESCE(o.order_date, o.created_at)::date", startDate, endDate, conditions, args)
	where := strings.Join(conditions, " AND ")

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*),
			COALESCE(SUM(o.total), 0), COALESCE(SUM(o.product_cost), 0),
			COALESCE(SUM(o.shipping_cost), 0), COALESCE(SUM(o.profit), 0)
		FROM orders o WHERE `+where, args...).
		Scan(&totals.OrderCount, &totals.Revenue, &totals.ProductCost, &totals.ShippingCost, &totals.Profit)
	if err != nil {
		return totals, wrapDBError(err, "summing orders")
	}

	err = r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(l.qty_ordered), 0)
		FROM order_lines l JOIN orders o ON o.order_number = l.order_number
		WHERE `+where, args...).Scan(&totals.QtySold)
	if err != nil {
		return totals, wrapDBError(err, "summing qty sold")
	}
	return totals, nil
}

func (r *reportRepository) ExpenseTotals(ctx context.Context, startDate, endDate string) ([]models.CategoryTotal, error) {
	conditions, args := dateWindow("expense_date", startDate, endDate, nil, nil)
	query := `SELECT category, SUM(amount), COUNT(*) FROM expenses`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY category ORDER BY SUM(amount) DESC, category"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err, "summing expenses")
	}
	defer rows.Close()

	totals := []models.CategoryTotal{}
	for rows.Next() {
		var t models.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total, &t.Count); err != nil {
			return nil, wrapDBError(err, "scanning expense total")
		}
		totals = append(totals, t)
	}
	return totals, wrapDBError(rows.Err(), "iterating expense totals")
}
