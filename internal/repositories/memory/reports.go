package memory

import (
	"context"
	"sort"

	"ecom_ops_backend/internal/models"

	"github.com/shopspring/decimal"
)

type reportRepo struct{ s *state }

func (r *reportRepo) OrderTotals(_ context.Context, startDate, endDate string) (models.OrderTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	totals := models.OrderTotals{}
	counted := map[string]bool{}
	for _, o := range r.s.orders {
		if models.IsExcludedStatus(o.Status) || !inWindow(orderDay(o), startDate, endDate) {
			continue
		}
		counted[o.OrderNumber] = true
		totals.OrderCount++
		totals.Revenue = totals.Revenue.Add(o.Total)
		totals.ProductCost = totals.ProductCost.Add(o.ProductCost)
		totals.ShippingCost = totals.ShippingCost.Add(o.ShippingCost)
		totals.Profit = totals.Profit.Add(o.Profit)
	}
	for _, l := range r.s.lines {
		if counted[l.OrderNumber] {
			totals.QtySold += l.QtyOrdered
		}
	}
	return totals, nil
}

func (r *reportRepo) ExpenseTotals(_ context.Context, startDate, endDate string) ([]models.CategoryTotal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byCategory := map[string]*models.CategoryTotal{}
	for _, e := range r.s.expenses {
		if !inWindow(e.ExpenseDate, startDate, endDate) {
			continue
		}
		t, ok := byCategory[e.Category]
		if !ok {
			t = &models.CategoryTotal{Category: e.Category, Total: decimal.Zero}
			byCategory[e.Category] = t
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}

	out := make([]models.CategoryTotal, 0, len(byCategory))
	for _, t := range byCategory {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}
