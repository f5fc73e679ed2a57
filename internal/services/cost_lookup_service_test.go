package services

import (
	"context"
	"testing"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories/memory"
)

func row(name, strength, vendor, cost string) models.CostLookupRow {
	return models.CostLookupRow{Name: name, Strength: strength, Vendor: vendor, CostPerUnit: dec(cost)}
}

func TestCostTableMatch(t *testing.T) {
	table := CostTable{
		row("BPC-157 Blend", "", "", "9.00"),
		row("BPC-157", "5mg", "", "4.00"),
		row("BPC-157", "10mg", "", "7.00"),
		row("BPC-157", "10mg", "Acme", "6.50"),
		row("Widget", "", "", "3.00"),
		row("Sermorelin Acetate", "2mg", "", "11.00"),
		row("Sermorelin Acetate", "5mg", "", "15.00"),
		row("Gadget Pro", "", "", "8.00"),
	}

	cases := []struct {
		name        string
		product     string
		vendor      string
		wantCost    string
		wantMatched string
	}{
		{"exact wins over earlier substring row", "BPC-157 - 10mg", "", "7.00", "BPC-157"},
		{"vendor breaks tie inside a stage", "BPC-157 - 10mg", "acme", "6.50", "BPC-157"},
		{"no strength matches any exact row", "Widget", "", "3.00", "Widget"},
		{"query strength matches wildcard row", "Widget - 20 pack", "", "3.00", "Widget"},
		{"substring prefers overlapping strength", "Sermorelin - 5mg", "", "15.00", "Sermorelin Acetate"},
		{"substring takes first without strength", "Sermorelin", "", "11.00", "Sermorelin Acetate"},
		{"keyword fallback", "Deluxe Gadget Bundle", "", "8.00", "Gadget Pro"},
		{"short tokens are ignored", "Go X", "", "0", ""},
		{"no match", "Unknown Thing", "", "0", ""},
		{"empty name", "", "", "0", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Match(tc.product, tc.vendor)
			if !got.CostPerUnit.Equal(dec(tc.wantCost)) {
				t.Fatalf("cost = %s, want %s (match %+v)", got.CostPerUnit, tc.wantCost, got)
			}
			if got.MatchedName != tc.wantMatched {
				t.Fatalf("matched name = %q, want %q", got.MatchedName, tc.wantMatched)
			}
		})
	}
}

func TestCostTableExactMatchIgnoresRowOrder(t *testing.T) {
	forward := CostTable{row("Tea Tree Oil", "", "", "2.00"), row("Tea", "", "", "1.00")}
	backward := CostTable{row("Tea", "", "", "1.00"), row("Tea Tree Oil", "", "", "2.00")}
	for _, table := range []CostTable{forward, backward} {
		if got := table.Match("Tea", ""); !got.CostPerUnit.Equal(dec("1.00")) {
			t.Fatalf("expected exact row to win, got %+v", got)
		}
	}
}

type countingCache struct {
	rows        []models.CostLookupRow
	ok          bool
	sets        int
	invalidated int
}

func (c *countingCache) Get(context.Context) ([]models.CostLookupRow, bool) { return c.rows, c.ok }
func (c *countingCache) Set(_ context.Context, rows []models.CostLookupRow) {
	c.rows, c.ok = rows, true
	c.sets++
}
func (c *countingCache) Invalidate(context.Context) {
	c.rows, c.ok = nil, false
	c.invalidated++
}

func TestCostLookupServiceCachesAndInvalidates(t *testing.T) {
	store := newTestStore(t, &memory.Seed{CostLookups: []memory.SeedCostLookup{{Name: "Widget", CostPerUnit: "3.00"}}})
	cache := &countingCache{}
	svc := NewCostLookupService(store.CostLookups, cache)
	ctx := context.Background()

	if got := svc.Lookup(ctx, "Widget", ""); !got.CostPerUnit.Equal(dec("3.00")) {
		t.Fatalf("lookup: %+v", got)
	}
	svc.Lookup(ctx, "Widget", "")
	if cache.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", cache.sets)
	}

	if _, err := svc.Upsert(ctx, CostLookupRequest{Name: "Widget", CostPerUnit: dec("3.50")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if cache.invalidated != 1 {
		t.Fatalf("expected invalidation after upsert")
	}
	if got := svc.Lookup(ctx, "Widget", ""); !got.CostPerUnit.Equal(dec("3.50")) {
		t.Fatalf("expected updated cost, got %+v", got)
	}
}

func TestCostLookupServiceValidation(t *testing.T) {
	svc := NewCostLookupService(newTestStore(t, nil).CostLookups, nil)
	ctx := context.Background()
	if _, err := svc.Upsert(ctx, CostLookupRequest{Name: "  "}); err == nil {
		t.Fatal("expected error for blank name")
	}
	if _, err := svc.Upsert(ctx, CostLookupRequest{Name: "X", CostPerUnit: dec("-1")}); err == nil {
		t.Fatal("expected error for negative cost")
	}
	if err := svc.Delete(ctx, 99); err != ErrCostLookupNotFound {
		t.Fatalf("expected ErrCostLookupNotFound, got %v", err)
	}
}
