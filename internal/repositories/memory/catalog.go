package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"

	"github.com/shopspring/decimal"
)

type productRepo struct{ s *state }

func (r *productRepo) byWooID(wooID int64) *models.Product {
	for _, p := range r.s.products {
		if p.WooProductID != nil && *p.WooProductID == wooID {
			return p
		}
	}
	return nil
}

func (r *productRepo) GetByWooProductID(_ context.Context, wooProductID int64) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p := r.byWooID(wooProductID); p != nil {
		c := *p
		return &c, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *productRepo) Create(_ context.Context, p *models.Product) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.WooProductID != nil && r.byWooID(*p.WooProductID) != nil {
		return 0, duplicate("products_woo_product_id_key")
	}
	now := r.s.now()
	stored := *p
	stored.ID = r.s.id("products")
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.s.products[stored.ID] = &stored

	p.ID = stored.ID
	p.CreatedAt, p.UpdatedAt = now, now
	return p.ID, nil
}

func (r *productRepo) SetUnitCost(_ context.Context, id int64, cost decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.UnitCost = cost
	p.UpdatedAt = r.s.now()
	return nil
}

func (r *productRepo) UpsertFromPlatform(ctx context.Context, p *models.Product) (bool, error) {
	if p.WooProductID == nil {
		return false, fmt.Errorf("%w: platform product without woo_product_id", repositories.ErrDatabaseError)
	}
	r.s.mu.Lock()
	existing := r.byWooID(*p.WooProductID)
	if existing == nil {
		r.s.mu.Unlock()
		_, err := r.Create(ctx, p)
		return err == nil, err
	}
	defer r.s.mu.Unlock()

	existing.Name = p.Name
	existing.SKU = p.SKU
	existing.RetailPrice = p.RetailPrice
	existing.SalePrice = p.SalePrice
	if existing.StartingQty == 0 {
		existing.StartingQty = p.StartingQty
	}
	if existing.UnitCost.IsZero() {
		existing.UnitCost = p.UnitCost
	}
	existing.UpdatedAt = r.s.now()
	p.ID = existing.ID
	return false, nil
}

func (r *productRepo) List(_ context.Context) ([]models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *productRepo) RecomputeQtySold(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	statusByNumber := make(map[string]string, len(r.s.orders))
	for _, o := range r.s.orders {
		statusByNumber[o.OrderNumber] = o.Status
	}
	sold := map[int64]int{}
	for _, l := range r.s.lines {
		if l.ProductID == nil {
			continue
		}
		status, ok := statusByNumber[l.OrderNumber]
		if !ok || models.IsExcludedStatus(status) {
			continue
		}
		sold[*l.ProductID] += l.QtyOrdered
	}

	now := r.s.now()
	for _, p := range r.s.products {
		p.QtySold = 0
		if p.WooProductID != nil {
			p.QtySold = sold[*p.WooProductID]
		}
		p.UpdatedAt = now
	}
	return len(r.s.products), nil
}

type costLookupRepo struct{ s *state }

func (r *costLookupRepo) List(_ context.Context) ([]models.CostLookupRow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.CostLookupRow, 0, len(r.s.costs))
	for _, c := range r.s.costs {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *costLookupRepo) Upsert(_ context.Context, row *models.CostLookupRow) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row.Name = strings.TrimSpace(row.Name)
	row.Strength = strings.TrimSpace(row.Strength)
	row.Vendor = strings.TrimSpace(row.Vendor)
	row.UpdatedAt = r.s.now()

	for _, c := range r.s.costs {
		if c.Name == row.Name && c.Strength == row.Strength && c.Vendor == row.Vendor {
			c.CostPerUnit = row.CostPerUnit
			c.UpdatedAt = row.UpdatedAt
			row.ID = c.ID
			return c.ID, nil
		}
	}
	stored := *row
	stored.ID = r.s.id("cost_lookups")
	r.s.costs[stored.ID] = &stored
	row.ID = stored.ID
	return stored.ID, nil
}

func (r *costLookupRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.costs[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.costs, id)
	return nil
}
