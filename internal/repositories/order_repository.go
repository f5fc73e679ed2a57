package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ecom_ops_backend/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, order_number, woo_order_id, status, subtotal, total, product_cost, profit,
	shipping_charged, shipping_cost, coupon_discount, coupon_code, customer_name, customer_email,
	currency, notes, shippo_order_id, shippo_transaction_id, order_date, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func scanOrder(s scanner, extra ...interface{}) (*models.Order, error) {
	o := &models.Order{}
	var wooID sql.NullInt64
	var shippoOrderID, shippoTxID sql.NullString
	var orderDate sql.NullTime

	dest := []interface{}{
		&o.ID, &o.OrderNumber, &wooID, &o.Status, &o.Subtotal, &o.Total, &o.ProductCost, &o.Profit,
		&o.ShippingCharged, &o.ShippingCost, &o.CouponDiscount, &o.CouponCode, &o.CustomerName, &o.CustomerEmail,
		&o.Currency, &o.Notes, &shippoOrderID, &shippoTxID, &orderDate, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if wooID.Valid {
		o.WooOrderID = &wooID.Int64
	}
	if shippoOrderID.Valid {
		o.ShippoOrderID = &shippoOrderID.String
	}
	if shippoTxID.Valid {
		o.ShippoTransactionID = &shippoTxID.String
	}
	if orderDate.Valid {
		o.OrderDate = &orderDate.Time
	}
	return o, nil
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	o, err := scanOrder(row)
	if err != nil {
		return nil, wrapDBError(err, "getting order "+orderNumber)
	}
	return o, nil
}

func (r *orderRepository) GetByWooOrderID(ctx context.Context, wooOrderID int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE woo_order_id = $1`, wooOrderID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting order by woo id %d", wooOrderID))
	}
	return o, nil
}

func (r *orderRepository) List(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, COUNT(*) OVER() AS total_count FROM orders`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.StartDate != nil && *filters.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("COALESCE(order_date, created_at)::date >= $%d::date", argCount))
		args = append(args, *filters.StartDate)
		argCount++
	}
	if filters.EndDate != nil && *filters.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("COALESCE(order_date, created_at)::date <= $%d::date", argCount))
		args = append(args, *filters.EndDate)
		argCount++
	}
	if filters.Search != nil && *filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(order_number ILIKE $%d OR customer_name ILIKE $%d OR customer_email ILIKE $%d)", argCount, argCount, argCount))
		args = append(args, "%"+*filters.Search+"%")
		argCount++
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	page, pageSize := normalizePage(filters.Page, filters.PageSize)
	queryBuilder.WriteString(" ORDER BY COALESCE(order_date, created_at) DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, wrapDBError(err, "listing orders")
	}
	defer rows.Close()

	orders := []models.Order{}
	totalCount := 0
	for rows.Next() {
		o, err := scanOrder(rows, &totalCount)
		if err != nil {
			return nil, 0, wrapDBError(err, "scanning order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapDBError(err, "iterating orders")
	}
	return orders, totalCount, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, op, query string, args ...interface{}) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err, op)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrapDBError(err, op)
		}
		orders = append(orders, *o)
	}
	return orders, wrapDBError(rows.Err(), op)
}

func (r *orderRepository) ListWithShippoTransaction(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryOrders(ctx, "listing shippo orders",
		`SELECT `+orderColumns+` FROM orders
		 WHERE shippo_transaction_id IS NOT NULL AND shippo_transaction_id <> ''
		 ORDER BY COALESCE(order_date, created_at) DESC LIMIT $1`, limit)
}

func (r *orderRepository) ListCouponOrders(ctx context.Context) ([]models.Order, error) {
	return r.queryOrders(ctx, "listing coupon orders",
		`SELECT `+orderColumns+` FROM orders
		 WHERE (coupon_discount > 0 OR coupon_code <> '') AND NOT (status = ANY($1))
		 ORDER BY id`, pq.Array(models.ExcludedOrderStatuses))
}

const orderUpsertInsert = `INSERT INTO orders
	(order_number, woo_order_id, status, subtotal, total, product_cost, profit, shipping_charged,
	 coupon_discount, coupon_code, customer_name, customer_email, currency, notes, order_date, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`

const orderUpsertSet = `status = EXCLUDED.status, subtotal = EXCLUDED.subtotal, total = EXCLUDED.total,
	product_cost = EXCLUDED.product_cost, profit = EXCLUDED.profit, shipping_charged = EXCLUDED.shipping_charged,
	coupon_discount = EXCLUDED.coupon_discount, coupon_code = EXCLUDED.coupon_code,
	customer_name = EXCLUDED.customer_name, customer_email = EXCLUDED.customer_email,
	currency = EXCLUDED.currency, notes = EXCLUDED.notes,
	order_date = COALESCE(EXCLUDED.order_date, orders.order_date), updated_at = EXCLUDED.updated_at`

func (r *orderRepository) Upsert(ctx context.Context, order *models.Order, target ConflictTarget) (int64, error) {
	var query string
	switch target {
	case ConflictOrderNumber:
		query = orderUpsertInsert + ` ON CONFLICT (order_number) DO UPDATE SET
			woo_order_id = COALESCE(EXCLUDED.woo_order_id, orders.woo_order_id), ` + orderUpsertSet + ` RETURNING id`
	case ConflictWooOrderID:
		if order.WooOrderID == nil {
			return 0, fmt.Errorf("%w: woo_order_id conflict target without woo_order_id", ErrDatabaseError)
		}
		query = orderUpsertInsert + ` ON CONFLICT (woo_order_id) DO UPDATE SET
			order_number = EXCLUDED.order_number, ` + orderUpsertSet + ` RETURNING id`
	case ConflictNone:
		query = orderUpsertInsert + ` RETURNING id`
	default:
		return 0, fmt.Errorf("%w: unknown conflict target %q", ErrDatabaseError, target)
	}

	now := time.Now()
	var wooID sql.NullInt64
	if order.WooOrderID != nil {
		wooID = sql.NullInt64{Int64: *order.WooOrderID, Valid: true}
	}
	var orderDate sql.NullTime
	if order.OrderDate != nil {
		orderDate = sql.NullTime{Time: *order.OrderDate, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		order.OrderNumber, wooID, order.Status, order.Subtotal, order.Total, order.ProductCost, order.Profit,
		order.ShippingCharged, order.CouponDiscount, order.CouponCode, order.CustomerName, order.CustomerEmail,
		order.Currency, order.Notes, orderDate, now,
	).Scan(&order.ID)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("upserting order %s on %q", order.OrderNumber, target))
	}
	order.UpdatedAt = now
	return order.ID, nil
}

func (r *orderRepository) RecordShippo(ctx context.Context, orderNumber string, shippoOrderID, transactionID *string, shippingCost decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET
			shippo_order_id = COALESCE(shippo_order_id, $2),
			shippo_transaction_id = COALESCE(shippo_transaction_id, $3),
			shipping_cost = CASE WHEN shipping_cost = 0 THEN $4 ELSE shipping_cost END,
			updated_at = NOW()
		WHERE order_number = $1`, orderNumber, shippoOrderID, transactionID, shippingCost)
	return wrapDBError(err, "recording shippo markers for "+orderNumber)
}

func (r *orderRepository) SetShippingCost(ctx context.Context, orderNumber string, cost decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET shipping_cost = $2, updated_at = NOW() WHERE order_number = $1`, orderNumber, cost)
	if err != nil {
		return wrapDBError(err, "setting shipping cost for "+orderNumber)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) ReplaceLines(ctx context.Context, wooOrderID int64, lines []models.OrderLine) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE woo_order_id = $1`, wooOrderID); err != nil {
			return wrapDBError(err, "deleting order lines")
		}
		for _, l := range lines {
			var productID sql.NullInt64
			if l.ProductID != nil {
				productID = sql.NullInt64{Int64: *l.ProductID, Valid: true}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO order_lines
				(woo_order_id, line_item_id, order_number, product_id, product_name, sku, qty_ordered,
				 customer_paid_per_unit, our_cost_per_unit, line_total, line_cost, line_profit)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				wooOrderID, l.LineItemID, l.OrderNumber, productID, l.ProductName, l.SKU, l.QtyOrdered,
				l.CustomerPaidPerUnit, l.OurCostPerUnit, l.LineTotal, l.LineCost, l.LineProfit)
			if err != nil {
				return wrapDBError(err, fmt.Sprintf("inserting order line %d/%d", wooOrderID, l.LineItemID))
			}
		}
		return nil
	})
}

func (r *orderRepository) GetLines(ctx context.Context, wooOrderID int64) ([]models.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT woo_order_id, line_item_id, order_number, product_id, product_name, sku,
			qty_ordered, customer_paid_per_unit, our_cost_per_unit, line_total, line_cost, line_profit
		FROM order_lines WHERE woo_order_id = $1 ORDER BY line_item_id`, wooOrderID)
	if err != nil {
		return nil, wrapDBError(err, "getting order lines")
	}
	defer rows.Close()

	lines := []models.OrderLine{}
	for rows.Next() {
		var l models.OrderLine
		var productID sql.NullInt64
		if err := rows.Scan(&l.WooOrderID, &l.LineItemID, &l.OrderNumber, &productID, &l.ProductName, &l.SKU,
			&l.QtyOrdered, &l.CustomerPaidPerUnit, &l.OurCostPerUnit, &l.LineTotal, &l.LineCost, &l.LineProfit); err != nil {
			return nil, wrapDBError(err, "scanning order line")
		}
		if productID.Valid {
			l.ProductID = &productID.Int64
		}
		lines = append(lines, l)
	}
	return lines, wrapDBError(rows.Err(), "iterating order lines")
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
