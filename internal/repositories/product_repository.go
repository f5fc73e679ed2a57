package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ecom_ops_backend/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const productColumns = `id, woo_product_id, name, sku, starting_qty, qty_sold, stock_status_override,
	retail_price, sale_price, unit_cost, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository.
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

func scanProduct(s scanner) (*models.Product, error) {
	p := &models.Product{}
	var wooID sql.NullInt64
	var override sql.NullString
	if err := s.Scan(&p.ID, &wooID, &p.Name, &p.SKU, &p.StartingQty, &p.QtySold, &override,
		&p.RetailPrice, &p.SalePrice, &p.UnitCost, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if wooID.Valid {
		p.WooProductID = &wooID.Int64
	}
	if override.Valid {
		p.StockStatusOverride = &override.String
	}
	return p, nil
}

func (r *productRepository) GetByWooProductID(ctx context.Context, wooProductID int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE woo_product_id = $1`, wooProductID)
	p, err := scanProduct(row)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting product by woo id %d", wooProductID))
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, p *models.Product) (int64, error) {
	now := time.Now()
	var wooID sql.NullInt64
	if p.WooProductID != nil {
		wooID = sql.NullInt64{Int64: *p.WooProductID, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, `INSERT INTO products
		(woo_product_id, name, sku, starting_qty, qty_sold, stock_status_override, retail_price, sale_price, unit_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING id`,
		wooID, p.Name, p.SKU, p.StartingQty, p.QtySold, p.StockStatusOverride,
		p.RetailPrice, p.SalePrice, p.UnitCost, now,
	).Scan(&p.ID)
	if err != nil {
		return 0, wrapDBError(err, "creating product "+p.Name)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return p.ID, nil
}

func (r *productRepository) SetUnitCost(ctx context.Context, id int64, cost decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET unit_cost = $2, updated_at = NOW() WHERE id = $1`, id, cost)
	if err != nil {
		return wrapDBError(err, "setting product unit cost")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertFromPlatform reports created=true when the row was inserted. xmax is
// zero only for freshly inserted tuples.
func (r *productRepository) UpsertFromPlatform(ctx context.Context, p *models.Product) (bool, error) {
	if p.WooProductID == nil {
		return false, fmt.Errorf("%w: platform product without woo_product_id", ErrDatabaseError)
	}
	var created bool
	err := r.db.QueryRowContext(ctx, `INSERT INTO products
		(woo_product_id, name, sku, starting_qty, retail_price, sale_price, unit_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (woo_product_id) DO UPDATE SET
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			retail_price = EXCLUDED.retail_price,
			sale_price = EXCLUDED.sale_price,
			starting_qty = CASE WHEN products.starting_qty = 0 THEN EXCLUDED.starting_qty ELSE products.starting_qty END,
			unit_cost = CASE WHEN products.unit_cost = 0 THEN EXCLUDED.unit_cost ELSE products.unit_cost END,
			updated_at = NOW()
		RETURNING id, (xmax = 0)`,
		*p.WooProductID, p.Name, p.SKU, p.StartingQty, p.RetailPrice, p.SalePrice, p.UnitCost,
	).Scan(&p.ID, &created)
	if err != nil {
		return false, wrapDBError(err, "upserting product "+p.Name)
	}
	return created, nil
}

func (r *productRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, wrapDBError(err, "listing products")
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapDBError(err, "scanning product")
		}
		products = append(products, *p)
	}
	return products, wrapDBError(rows.Err(), "iterating products")
}

func (r *productRepository) RecomputeQtySold(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE products p SET
			qty_sold = COALESCE((
				SELECT SUM(l.qty_ordered)
				FROM order_lines l
				JOIN orders o ON o.order_number = l.order_number
				WHERE l.product_id = p.woo_product_id AND NOT (o.status = ANY($1))
			), 0),
			updated_at = NOW()`, pq.Array(models.ExcludedOrderStatuses))
	if err != nil {
		return 0, wrapDBError(err, "recomputing qty sold")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
