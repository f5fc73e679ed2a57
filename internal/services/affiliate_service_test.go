package services

import (
	"context"
	"strings"
	"testing"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/internal/repositories/memory"
)

func expensesOf(t *testing.T, store *repositories.Store, category string) []models.Expense {
	t.Helper()
	out, _, err := store.Expenses.List(context.Background(), models.ExpenseFilters{Category: &category})
	if err != nil {
		t.Fatalf("List expenses: %v", err)
	}
	return out
}

func TestAffiliateDerive(t *testing.T) {
	svc := newTestServices(t, nil, nil)
	ctx := context.Background()
	in := AffiliateInput{OrderNumber: "Order #10", OrderTotal: dec("80.00"), CouponCode: "SAM"}

	outcome, err := svc.affiliates.Derive(ctx, in)
	if err != nil || outcome != AffiliateCreated {
		t.Fatalf("Derive = %q, %v", outcome, err)
	}
	got := expensesOf(t, svc.store, models.CategoryAffiliate)
	if len(got) != 1 {
		t.Fatalf("expected one affiliate expense, got %d", len(got))
	}
	e := got[0]
	if !e.Amount.Equal(dec("8")) || e.Source != models.ExpenseSourceAffiliateAuto || e.Vendor != "SAM" {
		t.Fatalf("unexpected expense: %+v", e)
	}
	if !strings.Contains(e.Description, "Order #10") || !strings.Contains(e.Description, "coupon SAM") {
		t.Fatalf("unexpected description %q", e.Description)
	}

	in.OrderTotal = dec("95.55")
	outcome, err = svc.affiliates.Derive(ctx, in)
	if err != nil || outcome != AffiliateUpdated {
		t.Fatalf("second Derive = %q, %v", outcome, err)
	}
	got = expensesOf(t, svc.store, models.CategoryAffiliate)
	if len(got) != 1 || !got[0].Amount.Equal(dec("9.56")) {
		t.Fatalf("expected single updated expense, got %+v", got)
	}
}

func TestAffiliateDeriveSkips(t *testing.T) {
	svc := newTestServices(t, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		in   AffiliateInput
	}{
		{"no coupon", AffiliateInput{OrderNumber: "Order #1", OrderTotal: dec("50")}},
		{"zero total", AffiliateInput{OrderNumber: "Order #2", CouponCode: "X"}},
		{"negative total", AffiliateInput{OrderNumber: "Order #3", OrderTotal: dec("-5"), CouponDiscount: dec("5")}},
		{"rounds to zero", AffiliateInput{OrderNumber: "Order #4", OrderTotal: dec("0.04"), CouponCode: "X"}},
	}
	for _, tc := range cases {
		outcome, err := svc.affiliates.Derive(ctx, tc.in)
		if err != nil || outcome != AffiliateSkipped {
			t.Errorf("%s: Derive = %q, %v", tc.name, outcome, err)
		}
	}
	if got := expensesOf(t, svc.store, models.CategoryAffiliate); len(got) != 0 {
		t.Fatalf("expected no expenses, got %d", len(got))
	}
}

func TestAffiliateDiscountOnlyUsesDefaultVendor(t *testing.T) {
	svc := newTestServices(t, nil, nil)
	outcome, err := svc.affiliates.Derive(context.Background(), AffiliateInput{
		OrderNumber: "Order #20", OrderTotal: dec("10"), CouponDiscount: dec("2"),
	})
	if err != nil || outcome != AffiliateCreated {
		t.Fatalf("Derive = %q, %v", outcome, err)
	}
	if e := expensesOf(t, svc.store, models.CategoryAffiliate)[0]; e.Vendor != "Affiliate" || !e.Amount.Equal(dec("1")) {
		t.Fatalf("unexpected expense: %+v", e)
	}
}

func TestAffiliateBackfill(t *testing.T) {
	svc := newTestServices(t, &memory.Seed{
		Orders: []memory.SeedOrder{
			{OrderNumber: "Order #1", WooOrderID: 1, CouponCode: "A", Lines: []memory.SeedLine{{Name: "W", Quantity: 1, Price: "100"}}},
			{OrderNumber: "Order #2", WooOrderID: 2, CouponCode: "B", Lines: []memory.SeedLine{{Name: "W", Quantity: 1, Price: "50"}}},
			{OrderNumber: "Order #3", WooOrderID: 3, Lines: []memory.SeedLine{{Name: "W", Quantity: 1, Price: "70"}}},
			{OrderNumber: "Order #4", WooOrderID: 4, CouponCode: "C", Status: "cancelled", Lines: []memory.SeedLine{{Name: "W", Quantity: 1, Price: "70"}}},
			{OrderNumber: "Order #5", WooOrderID: 5, CouponCode: "D"},
		},
	}, nil)
	ctx := context.Background()

	if _, err := svc.affiliates.Derive(ctx, AffiliateInput{OrderNumber: "Order #2", OrderTotal: dec("40"), CouponCode: "B"}); err != nil {
		t.Fatalf("Derive: %v", err)
	}

	res, err := svc.affiliates.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if res.Created != 1 || res.Updated != 1 || res.Skipped != 1 || res.Errors != 0 {
		t.Fatalf("unexpected tally: %+v", res)
	}
	got := expensesOf(t, svc.store, models.CategoryAffiliate)
	if len(got) != 2 {
		t.Fatalf("expected 2 affiliate expenses, got %d", len(got))
	}
	for _, e := range got {
		want := map[string]string{"Order #1": "10", "Order #2": "5"}[*e.OrderNumber]
		if !e.Amount.Equal(dec(want)) {
			t.Errorf("%s amount = %s, want %s", *e.OrderNumber, e.Amount, want)
		}
	}

	again, err := svc.affiliates.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if again.Created != 0 || again.Updated != 2 {
		t.Fatalf("backfill should be idempotent, got %+v", again)
	}
}
