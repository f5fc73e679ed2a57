package services

import (
	"context"
	"errors"
	"testing"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/pkg/utils"
)

func TestExpenseCreate(t *testing.T) {
	store := newTestStore(t, nil)
	svc := NewExpenseService(store.Expenses, utils.FixedClock(testToday))
	ctx := context.Background()

	e, err := svc.Create(ctx, CreateExpenseRequest{Description: "Packing tape", Amount: dec("12.345"), OrderNumber: "#55"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ExpenseDate != testToday || e.Category != models.CategoryUncategorized || e.Source != models.ExpenseSourceManual {
		t.Fatalf("unexpected defaults: %+v", e)
	}
	if !e.Amount.Equal(dec("12.35")) || utils.StringValue(e.OrderNumber) != "Order #55" {
		t.Fatalf("unexpected amount or order: %+v", e)
	}

	cases := []struct {
		name string
		req  CreateExpenseRequest
	}{
		{"zero amount", CreateExpenseRequest{Description: "x"}},
		{"negative amount", CreateExpenseRequest{Description: "x", Amount: dec("-1")}},
		{"bad date", CreateExpenseRequest{Description: "x", Amount: dec("1"), ExpenseDate: "2024/01/01"}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.req); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}

	if _, err := svc.Create(ctx, CreateExpenseRequest{Description: "label", Category: "shipping", Amount: dec("5"), OrderNumber: "55"}); err != nil {
		t.Fatalf("Create shipping: %v", err)
	}
	if _, err := svc.Create(ctx, CreateExpenseRequest{Description: "label again", Category: "shipping", Amount: dec("5"), OrderNumber: "Order #55"}); !errors.Is(err, ErrExpenseConflict) {
		t.Fatalf("expected ErrExpenseConflict, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateExpenseRequest{Description: "label cased", Category: " Shipping ", Amount: dec("5"), OrderNumber: "55"}); !errors.Is(err, ErrExpenseConflict) {
		t.Fatalf("expected ErrExpenseConflict for a differently cased category, got %v", err)
	}

	list, total, err := svc.List(ctx, models.ExpenseFilters{})
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("List = %d, %v", total, err)
	}
	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, e.ID); !errors.Is(err, ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
}
