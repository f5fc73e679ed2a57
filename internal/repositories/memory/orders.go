package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

type orderRepo struct{ s *state }

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Lines = nil
	return &c
}

func (r *orderRepo) byNumber(orderNumber string) *models.Order {
	for _, o := range r.s.orders {
		if o.OrderNumber == orderNumber {
			return o
		}
	}
	return nil
}

func (r *orderRepo) byWooID(wooID int64) *models.Order {
	for _, o := range r.s.orders {
		if o.WooOrderID != nil && *o.WooOrderID == wooID {
			return o
		}
	}
	return nil
}

func (r *orderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if o := r.byNumber(orderNumber); o != nil {
		return cloneOrder(o), nil
	}
	return nil, repositories.ErrNotFound
}

func (r *orderRepo) GetByWooOrderID(_ context.Context, wooOrderID int64) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if o := r.byWooID(wooOrderID); o != nil {
		return cloneOrder(o), nil
	}
	return nil, repositories.ErrNotFound
}

func orderDay(o *models.Order) string {
	if o.OrderDate != nil {
		return o.OrderDate.Format(utils.DateLayout)
	}
	return o.CreatedAt.Format(utils.DateLayout)
}

func inWindow(day, start, end string) bool {
	if start != "" && day < start {
		return false
	}
	if end != "" && day > end {
		return false
	}
	return true
}

func (r *orderRepo) sorted(keep func(*models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := orderDay(&out[i]), orderDay(&out[j])
		if di != dj {
			return di > dj
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *orderRepo) List(_ context.Context, f models.OrderFilters) ([]models.Order, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(utils.StringValue(f.Search))
	all := r.sorted(func(o *models.Order) bool {
		if f.Status != nil && *f.Status != "" && o.Status != *f.Status {
			return false
		}
		if !inWindow(orderDay(o), utils.StringValue(f.StartDate), utils.StringValue(f.EndDate)) {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(o.OrderNumber), search) &&
			!strings.Contains(strings.ToLower(o.CustomerName), search) &&
			!strings.Contains(strings.ToLower(o.CustomerEmail), search) {
			return false
		}
		return true
	})
	return paginate(all, f.Page, f.PageSize), len(all), nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (r *orderRepo) ListWithShippoTransaction(_ context.Context, limit int) ([]models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	out := r.sorted(func(o *models.Order) bool {
		return o.ShippoTransactionID != nil && *o.ShippoTransactionID != ""
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *orderRepo) ListCouponOrders(_ context.Context) ([]models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.sorted(func(o *models.Order) bool {
		return (o.CouponDiscount.GreaterThan(decimal.Zero) || o.CouponCode != "") && !models.IsExcludedStatus(o.Status)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// applyUpsert copies the columns an upsert may overwrite.
func applyUpsert(dst, src *models.Order) {
	dst.Status = src.Status
	dst.Subtotal = src.Subtotal
	dst.Total = src.Total
	dst.ProductCost = src.ProductCost
	dst.Profit = src.Profit
	dst.ShippingCharged = src.ShippingCharged
	dst.CouponDiscount = src.CouponDiscount
	dst.CouponCode = src.CouponCode
	dst.CustomerName = src.CustomerName
	dst.CustomerEmail = src.CustomerEmail
	dst.Currency = src.Currency
	dst.Notes = src.Notes
	if src.OrderDate != nil {
		dst.OrderDate = src.OrderDate
	}
}

func duplicate(constraint string) error {
	return fmt.Errorf("%w: (constraint: %s)", repositories.ErrDuplicateKey, constraint)
}

func (r *orderRepo) Upsert(_ context.Context, order *models.Order, target repositories.ConflictTarget) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()

	var existing *models.Order
	switch target {
	case repositories.ConflictOrderNumber:
		existing = r.byNumber(order.OrderNumber)
		if existing != nil && order.WooOrderID != nil {
			if other := r.byWooID(*order.WooOrderID); other != nil && other.ID != existing.ID {
				return 0, duplicate("orders_woo_order_id_key")
			}
		}
		if existing != nil {
			if order.WooOrderID != nil {
				id := *order.WooOrderID
				existing.WooOrderID = &id
			}
		}
	case repositories.ConflictWooOrderID:
		if order.WooOrderID == nil {
			return 0, fmt.Errorf("%w: woo_order_id conflict target without woo_order_id", repositories.ErrDatabaseError)
		}
		existing = r.byWooID(*order.WooOrderID)
		if existing != nil {
			if other := r.byNumber(order.OrderNumber); other != nil && other.ID != existing.ID {
				return 0, duplicate("orders_order_number_key")
			}
			existing.OrderNumber = order.OrderNumber
		}
	case repositories.ConflictNone:
	default:
		return 0, fmt.Errorf("%w: unknown conflict target %q", repositories.ErrDatabaseError, target)
	}

	if existing != nil {
		applyUpsert(existing, order)
		existing.UpdatedAt = now
		order.ID = existing.ID
		order.UpdatedAt = now
		return existing.ID, nil
	}

	if r.byNumber(order.OrderNumber) != nil {
		return 0, duplicate("orders_order_number_key")
	}
	if order.WooOrderID != nil && r.byWooID(*order.WooOrderID) != nil {
		return 0, duplicate("orders_woo_order_id_key")
	}
	stored := cloneOrder(order)
	stored.ID = r.s.id("orders")
	stored.ShippingCost = decimal.Zero
	stored.ShippoOrderID = nil
	stored.ShippoTransactionID = nil
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.s.orders[stored.ID] = stored

	order.ID = stored.ID
	order.CreatedAt, order.UpdatedAt = now, now
	return stored.ID, nil
}

func (r *orderRepo) RecordShippo(_ context.Context, orderNumber string, shippoOrderID, transactionID *string, shippingCost decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.byNumber(orderNumber)
	if o == nil {
		return nil
	}
	if o.ShippoOrderID == nil && shippoOrderID != nil {
		v := *shippoOrderID
		o.ShippoOrderID = &v
	}
	if o.ShippoTransactionID == nil && transactionID != nil {
		v := *transactionID
		o.ShippoTransactionID = &v
	}
	if o.ShippingCost.IsZero() {
		o.ShippingCost = shippingCost
	}
	o.UpdatedAt = r.s.now()
	return nil
}

func (r *orderRepo) SetShippingCost(_ context.Context, orderNumber string, cost decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.byNumber(orderNumber)
	if o == nil {
		return repositories.ErrNotFound
	}
	o.ShippingCost = cost
	o.UpdatedAt = r.s.now()
	return nil
}

func (r *orderRepo) ReplaceLines(_ context.Context, wooOrderID int64, lines []models.OrderLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	fresh := make(map[lineKey]models.OrderLine, len(lines))
	for _, l := range lines {
		k := lineKey{wooOrderID: wooOrderID, lineItemID: l.LineItemID}
		if _, dup := fresh[k]; dup {
			return duplicate("order_lines_pkey")
		}
		l.WooOrderID = wooOrderID
		fresh[k] = l
	}
	for k := range r.s.lines {
		if k.wooOrderID == wooOrderID {
			delete(r.s.lines, k)
		}
	}
	for k, l := range fresh {
		r.s.lines[k] = l
	}
	return nil
}

func (r *orderRepo) GetLines(_ context.Context, wooOrderID int64) ([]models.OrderLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.OrderLine{}
	for k, l := range r.s.lines {
		if k.wooOrderID == wooOrderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineItemID < out[j].LineItemID })
	return out, nil
}
