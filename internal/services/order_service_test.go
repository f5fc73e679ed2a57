package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ecom_ops_backend/internal/clients/woocommerce"
	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories/memory"
)

type fakeOrderSource struct {
	orders map[int64]woocommerce.Order
	pages  map[int][]woocommerce.Order
	err    error
	calls  int
}

func (f *fakeOrderSource) GetOrder(_ context.Context, id int64) (woocommerce.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("woocommerce: order %d not found", id)
	}
	return o, nil
}

func (f *fakeOrderSource) ListOrders(_ context.Context, page, _ int) ([]woocommerce.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

func wooOrder(t *testing.T, raw string) woocommerce.Order {
	t.Helper()
	return woocommerce.Order(payloadFromJSON(t, raw))
}

func TestIngestStringifiedLineItems(t *testing.T) {
	svc := newTestServices(t, nil, nil)
	ctx := context.Background()

	payload := payloadFromJSON(t, `{"order_number":"1001","line_items":"[{\"name\":\"Widget\",\"quantity\":2,\"price\":\"9.99\"}]"}`)
	res, err := svc.orders.Ingest(ctx, payload, OriginWebhook)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.OrderNumber != "Order #1001" || res.WooOrderID != 1001 {
		t.Fatalf("unexpected identity: %+v", res)
	}
	if len(res.LineItems) != 1 {
		t.Fatalf("expected one line, got %+v", res.LineItems)
	}
	line := res.LineItems[0]
	if line.QtyOrdered != 2 || !line.CustomerPaidPerUnit.Equal(dec("9.99")) {
		t.Fatalf("unexpected line: %+v", line)
	}
	if !line.OurCostPerUnit.IsZero() || !line.LineProfit.Equal(dec("19.98")) {
		t.Fatalf("unexpected line figures: %+v", line)
	}
	if !res.Total.Equal(dec("19.98")) || !res.Margin.Equal(dec("100")) {
		t.Fatalf("unexpected totals: total=%s margin=%s", res.Total, res.Margin)
	}

	order, err := svc.orders.GetOrder(ctx, "#1001")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(order.Lines) != 1 || order.Lines[0].LineItemID != syntheticLineIDBase {
		t.Fatalf("stored lines: %+v", order.Lines)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	svc := newTestServices(t, &memory.Seed{
		CostLookups: []memory.SeedCostLookup{{Name: "Widget", CostPerUnit: "3.00"}},
	}, nil)
	ctx := context.Background()

	full := `{"id":2001,"number":"2001","total":"40.00","line_items":[
		{"id":1,"name":"Widget","quantity":2,"price":"10.00"},
		{"id":2,"name":"Gizmo","quantity":1,"price":"20.00"}]}`
	for i := 0; i < 2; i++ {
		if _, err := svc.orders.Ingest(ctx, payloadFromJSON(t, full), OriginWebhook); err != nil {
			t.Fatalf("Ingest #%d: %v", i, err)
		}
	}
	orders, total, err := svc.orders.GetOrders(ctx, models.OrderFilters{})
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if total != 1 || len(orders) != 1 {
		t.Fatalf("expected one order, got %d", total)
	}
	order, _ := svc.orders.GetOrder(ctx, "Order #2001")
	if len(order.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(order.Lines))
	}
	if !order.ProductCost.Equal(dec("6")) || !order.Profit.Equal(dec("34")) {
		t.Fatalf("unexpected figures: cost=%s profit=%s", order.ProductCost, order.Profit)
	}

	shrunk := `{"id":2001,"number":"2001","total":"20.00","line_items":[{"id":1,"name":"Widget","quantity":2,"price":"10.00"}]}`
	if _, err := svc.orders.Ingest(ctx, payloadFromJSON(t, shrunk), OriginRefetch); err != nil {
		t.Fatalf("Ingest shrunk: %v", err)
	}
	order, _ = svc.orders.GetOrder(ctx, "Order #2001")
	if len(order.Lines) != 1 || order.Lines[0].LineItemID != 1 {
		t.Fatalf("stale line not removed: %+v", order.Lines)
	}
	if !order.Total.Equal(dec("20")) {
		t.Fatalf("total not refreshed: %s", order.Total)
	}
}

func TestIngestFallsBackToPlatformIDOnRenamedOrder(t *testing.T) {
	svc := newTestServices(t, &memory.Seed{
		Orders: []memory.SeedOrder{{OrderNumber: "Order #5000", WooOrderID: 5000}},
	}, nil)
	ctx := context.Background()

	res, err := svc.orders.Ingest(ctx, payloadFromJSON(t, `{"id":5000,"number":"WEB-5000-R","total":"15"}`), OriginWebhook)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.OrderNumber != "WEB-5000-R" {
		t.Fatalf("unexpected order number %q", res.OrderNumber)
	}
	_, total, _ := svc.orders.GetOrders(ctx, models.OrderFilters{})
	if total != 1 {
		t.Fatalf("expected rename in place, got %d orders", total)
	}
	if _, err := svc.orders.GetOrder(ctx, "Order #5000"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("old number should be gone, got %v", err)
	}
}

func TestIngestReconcilesProducts(t *testing.T) {
	svc := newTestServices(t, &memory.Seed{
		Products: []memory.SeedProduct{
			{WooProductID: 88, Name: "Serum", StartingQty: 10},
			{WooProductID: 99, Name: "Balm", StartingQty: 10, UnitCost: "6.00"},
		},
		CostLookups: []memory.SeedCostLookup{{Name: "Serum", Strength: "5mg", CostPerUnit: "4.00"}},
	}, nil)
	ctx := context.Background()

	payload := payloadFromJSON(t, `{"id":3001,"line_items":[
		{"id":1,"product_id":77,"name":"Serum - 5mg","quantity":1,"price":"25"},
		{"id":2,"product_id":88,"name":"Serum - 5mg","quantity":1,"price":"25"},
		{"id":3,"product_id":99,"name":"Balm","quantity":2,"price":"12"}]}`)
	res, err := svc.orders.Ingest(ctx, payload, OriginWebhook)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	placeholder, err := svc.store.Products.GetByWooProductID(ctx, 77)
	if err != nil {
		t.Fatalf("placeholder product not created: %v", err)
	}
	if placeholder.Name != "Serum - 5mg" || !placeholder.UnitCost.Equal(dec("4")) || !placeholder.RetailPrice.Equal(dec("25")) {
		t.Fatalf("unexpected placeholder: %+v", placeholder)
	}
	backfilled, _ := svc.store.Products.GetByWooProductID(ctx, 88)
	if !backfilled.UnitCost.Equal(dec("4")) {
		t.Fatalf("cost not backfilled: %s", backfilled.UnitCost)
	}
	balm := res.LineItems[2]
	if !balm.OurCostPerUnit.Equal(dec("6")) || !balm.LineCost.Equal(dec("12")) {
		t.Fatalf("product cost not used as fallback: %+v", balm)
	}
}

func TestIngestDerivesAffiliateExpense(t *testing.T) {
	svc := newTestServices(t, nil, nil)
	ctx := context.Background()

	res, err := svc.orders.Ingest(ctx, payloadFromJSON(t, `{"id":4001,"total":"123.45","discount_total":"10","coupon_lines":[{"code":"ANNA"}]}`), OriginWebhook)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Affiliate != AffiliateCreated {
		t.Fatalf("expected affiliate created, got %q", res.Affiliate)
	}
	e, err := svc.store.Expenses.FindByOrderAndCategory(ctx, "Order #4001", models.CategoryAffiliate)
	if err != nil {
		t.Fatalf("affiliate expense missing: %v", err)
	}
	if !e.Amount.Equal(dec("12.35")) || e.Vendor != "ANNA" || e.ExpenseDate != testToday {
		t.Fatalf("unexpected affiliate expense: %+v", e)
	}
}

func TestIngestSkipsAffiliateForExcludedStatus(t *testing.T) {
	svc := newTestServices(t, nil, nil)
	ctx := context.Background()

	for _, status := range []string{"refunded", "Cancelled", "failed"} {
		raw := fmt.Sprintf(`{"id":4101,"status":%q,"total":"80","discount_total":"5","coupon_lines":[{"code":"ANNA"}]}`, status)
		res, err := svc.orders.Ingest(ctx, payloadFromJSON(t, raw), OriginWebhook)
		if err != nil {
			t.Fatalf("Ingest(%s): %v", status, err)
		}
		if res.Affiliate != AffiliateSkipped {
			t.Fatalf("status %s: expected affiliate skipped, got %q", status, res.Affiliate)
		}
	}
	if _, err := svc.store.Expenses.FindByOrderAndCategory(ctx, "Order #4101", models.CategoryAffiliate); err == nil {
		t.Fatal("excluded order should not carry an affiliate expense")
	}
}

func TestSyncOrder(t *testing.T) {
	source := &fakeOrderSource{orders: map[int64]woocommerce.Order{
		6001: wooOrder(t, `{"id":6001,"number":"6001","status":"wc-completed","total":"30","line_items":[{"id":9,"name":"Widget","quantity":3,"price":"10"}]}`),
	}}
	svc := newTestServices(t, nil, source)
	ctx := context.Background()

	res, err := svc.orders.SyncOrder(ctx, 6001)
	if err != nil {
		t.Fatalf("SyncOrder: %v", err)
	}
	if res.OrderNumber != "Order #6001" || len(res.LineItems) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	order, _ := svc.orders.GetOrder(ctx, "6001")
	if order.Status != models.OrderStatusCompleted {
		t.Fatalf("status = %q", order.Status)
	}
	if _, err := svc.orders.SyncOrder(ctx, 404); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestSyncOrdersPage(t *testing.T) {
	source := &fakeOrderSource{pages: map[int][]woocommerce.Order{
		1: {
			wooOrder(t, `{"id":7001,"number":"7001","total":"10"}`),
			wooOrder(t, `{"status":"processing"}`),
		},
		2: {wooOrder(t, `{"id":7002,"number":"7002","total":"10"}`)},
	}}
	svc := newTestServices(t, nil, source)
	ctx := context.Background()

	first, err := svc.orders.SyncOrdersPage(ctx, 1, 2)
	if err != nil {
		t.Fatalf("SyncOrdersPage: %v", err)
	}
	if first.Processed != 1 || first.Failed != 1 || first.Done || first.NextPage == nil || *first.NextPage != 2 {
		t.Fatalf("unexpected first page: %+v", first)
	}
	if first.Details[1].Ref != "unknown" || first.Details[1].Status != "error" {
		t.Fatalf("unexpected failure detail: %+v", first.Details[1])
	}

	second, err := svc.orders.SyncOrdersPage(ctx, *first.NextPage, 2)
	if err != nil {
		t.Fatalf("SyncOrdersPage: %v", err)
	}
	if !second.Done || second.NextPage != nil || second.Processed != 1 {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestSyncOrdersPageErrors(t *testing.T) {
	ctx := context.Background()

	unconfigured := newTestServices(t, nil, nil)
	if _, err := unconfigured.orders.SyncOrdersPage(ctx, 1, 10); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := unconfigured.orders.SyncOrder(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	source := &fakeOrderSource{err: errors.New("connection reset")}
	svc := newTestServices(t, nil, source)
	if _, err := svc.orders.SyncOrdersPage(ctx, 1, 10); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	lease, err := svc.guard.locker.Obtain(ctx, "woo_orders", defaultLockTTL)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	defer lease.Release(ctx)
	source.err = nil
	if _, err := svc.orders.SyncOrdersPage(ctx, 1, 10); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("platform should not be called while locked, calls=%d", source.calls)
	}
}

func TestGetOrdersRejectsBadDates(t *testing.T) {
	svc := newTestServices(t, nil, nil)
	bad := "01/02/2024"
	if _, _, err := svc.orders.GetOrders(context.Background(), models.OrderFilters{StartDate: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
