package services

import (
	"context"
	"errors"
	"testing"

	"ecom_ops_backend/internal/clients/woocommerce"
	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories/memory"
)

type fakeProductSource struct {
	pages map[int][]woocommerce.Product
	err   error
}

func (f *fakeProductSource) ListProducts(_ context.Context, page, _ int) ([]woocommerce.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

func TestProductListDerivesStock(t *testing.T) {
	store := newTestStore(t, &memory.Seed{
		Products: []memory.SeedProduct{
			{WooProductID: 501, Name: "Oversold", StartingQty: 2, RetailPrice: "20", SalePrice: "15"},
			{WooProductID: 502, Name: "Running Low", StartingQty: 6, RetailPrice: "10"},
			{WooProductID: 503, Name: "Plenty", StartingQty: 100, RetailPrice: "10"},
		},
		Orders: []memory.SeedOrder{
			{OrderNumber: "Order #1", WooOrderID: 1, Lines: []memory.SeedLine{
				{ProductID: 501, Name: "Oversold", Quantity: 5, Price: "15"},
				{ProductID: 502, Name: "Running Low", Quantity: 2, Price: "10"},
			}},
			{OrderNumber: "Order #2", WooOrderID: 2, Status: "cancelled", Lines: []memory.SeedLine{
				{ProductID: 503, Name: "Plenty", Quantity: 99, Price: "10"},
			}},
		},
	})
	svc := NewProductService(store.Products, NewCostLookupService(store.CostLookups, nil), nil, nil, 5, 0)

	products, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	byName := map[string]models.Product{}
	for _, p := range products {
		byName[p.Name] = p
	}

	cases := []struct {
		name   string
		stock  int
		status string
	}{
		{"Oversold", 0, models.StockStatusOutOfStock},
		{"Running Low", 4, models.StockStatusLowStock},
		{"Plenty", 100, models.StockStatusInStock},
	}
	for _, tc := range cases {
		p := byName[tc.name]
		if p.CurrentStock != tc.stock || p.StockStatus != tc.status {
			t.Errorf("%s: stock=%d status=%q, want %d %q", tc.name, p.CurrentStock, p.StockStatus, tc.stock, tc.status)
		}
	}
	if !byName["Oversold"].EffectivePrice.Equal(dec("15")) || !byName["Plenty"].EffectivePrice.Equal(dec("10")) {
		t.Fatalf("unexpected effective prices: %+v", byName)
	}
}

func TestProductSyncPage(t *testing.T) {
	store := newTestStore(t, &memory.Seed{
		Products:    []memory.SeedProduct{{WooProductID: 11, Name: "Old Name", StartingQty: 3}},
		CostLookups: []memory.SeedCostLookup{{Name: "Serum", CostPerUnit: "4.00"}},
	})
	source := &fakeProductSource{pages: map[int][]woocommerce.Product{
		1: {
			{ID: 11, Name: "Renamed", RegularPrice: "19.99", SalePrice: "", StockQuantity: "40"},
			{ID: 12, Name: "Serum", Price: "$25.00", SalePrice: "22", StockQuantity: ""},
		},
	}}
	svc := NewProductService(store.Products, NewCostLookupService(store.CostLookups, nil), source, NewSyncGuard(nil, 0), 5, 0)
	ctx := context.Background()

	res, err := svc.SyncPage(ctx, 1, 10)
	if err != nil {
		t.Fatalf("SyncPage: %v", err)
	}
	if res.Created != 1 || res.Updated != 1 || !res.Done || res.NextPage != nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	renamed, _ := store.Products.GetByWooProductID(ctx, 11)
	if renamed.Name != "Renamed" || renamed.StartingQty != 3 || !renamed.RetailPrice.Equal(dec("19.99")) {
		t.Fatalf("unexpected updated product: %+v", renamed)
	}
	serum, _ := store.Products.GetByWooProductID(ctx, 12)
	if !serum.UnitCost.Equal(dec("4")) || !serum.RetailPrice.Equal(dec("25")) || !serum.SalePrice.Valid {
		t.Fatalf("unexpected created product: %+v", serum)
	}
}

func TestProductSyncPageErrors(t *testing.T) {
	store := newTestStore(t, nil)
	costs := NewCostLookupService(store.CostLookups, nil)
	ctx := context.Background()

	if _, err := NewProductService(store.Products, costs, nil, nil, 5, 0).SyncPage(ctx, 1, 10); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	failing := &fakeProductSource{err: errors.New("timeout")}
	if _, err := NewProductService(store.Products, costs, failing, nil, 5, 0).SyncPage(ctx, 1, 10); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
