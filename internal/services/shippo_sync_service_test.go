package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ecom_ops_backend/internal/clients/shippo"
	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories/memory"
	"ecom_ops_backend/pkg/utils"
)

type fakeShippo struct {
	orderPages   map[int]*shippo.OrderPage
	invoicePages map[int]*shippo.InvoicePage
	transactions map[string]*shippo.Transaction
	rates        map[string]*shippo.Rate
	listErr      error
	orderCalls   int
}

func (f *fakeShippo) ListOrders(_ context.Context, page, _ int, _, _ time.Time) (*shippo.OrderPage, error) {
	f.orderCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if p, ok := f.orderPages[page]; ok {
		return p, nil
	}
	return &shippo.OrderPage{}, nil
}

func (f *fakeShippo) GetTransaction(_ context.Context, id string) (*shippo.Transaction, error) {
	if tx, ok := f.transactions[id]; ok {
		return tx, nil
	}
	return nil, fmt.Errorf("transaction %s not found", id)
}

func (f *fakeShippo) GetRate(_ context.Context, id string) (*shippo.Rate, error) {
	if r, ok := f.rates[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("rate %s not found", id)
}

func (f *fakeShippo) ListInvoices(_ context.Context, _ string, page, _ int) (*shippo.InvoicePage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if p, ok := f.invoicePages[page]; ok {
		return p, nil
	}
	return &shippo.InvoicePage{}, nil
}

func rateRef(id string) json.RawMessage {
	raw, _ := json.Marshal(id)
	return raw
}

func shippoSeed() *memory.Seed {
	return &memory.Seed{Orders: []memory.SeedOrder{
		{OrderNumber: "Order #100", WooOrderID: 100, OrderDate: "2024-01-10"},
		{OrderNumber: "Order #101", WooOrderID: 101, OrderDate: "2024-01-11"},
	}}
}

func newShippoSync(t *testing.T, api ShippoAPI) (ShippoSyncService, *testServices) {
	t.Helper()
	ts := newTestServices(t, shippoSeed(), nil)
	return NewShippoSyncService(api, ts.store, utils.FixedClock(testToday), ts.guard), ts
}

func TestShippoSyncOrdersInsertsOnce(t *testing.T) {
	api := &fakeShippo{
		orderPages: map[int]*shippo.OrderPage{
			1: {Next: "page2", Results: []shippo.Order{
				{ObjectID: "so_1", OrderNumber: "#100", PlacedAt: "2024-01-10T12:00:00Z", ShippingCost: "9.99",
					Transactions: []shippo.Transaction{{ObjectID: "tx_1", Rate: rateRef("rate_1")}}},
				{ObjectID: "so_2", OrderNumber: "101", PlacedAt: "2024-01-11T12:00:00Z", ShippingCost: "6.40",
					Transactions: []shippo.Transaction{{ObjectID: "tx_2", Rate: rateRef("missing")}}},
			}},
			2: {Results: []shippo.Order{
				{ObjectID: "so_3", OrderNumber: "999", ShippingCost: "4.00"},
				{ObjectID: "so_4", OrderNumber: "", ShippingCost: "4.00"},
			}},
		},
		rates: map[string]*shippo.Rate{"rate_1": {ObjectID: "rate_1", Amount: "7.25"}},
	}
	svc, ts := newShippoSync(t, api)
	ctx := context.Background()

	res, err := svc.SyncOrders(ctx, ShippoOrdersSyncRequest{})
	if err != nil {
		t.Fatalf("SyncOrders: %v", err)
	}
	if res.Created != 2 || res.Skipped != 2 || res.Errors != 0 || res.Pages != 2 {
		t.Fatalf("unexpected tally: %+v", res)
	}

	shipping := expensesOf(t, ts.store, models.CategoryShipping)
	amounts := map[string]string{}
	for _, e := range shipping {
		amounts[*e.OrderNumber] = e.Amount.String()
	}
	if amounts["Order #100"] != "7.25" || amounts["Order #101"] != "6.4" {
		t.Fatalf("unexpected amounts: %v", amounts)
	}

	order, _ := ts.store.Orders.GetByOrderNumber(ctx, "Order #100")
	if utils.StringValue(order.ShippoTransactionID) != "tx_1" || !order.ShippingCost.Equal(dec("7.25")) {
		t.Fatalf("markers not recorded: %+v", order)
	}

	api.rates["rate_1"].Amount = "8.00"
	again, err := svc.SyncOrders(ctx, ShippoOrdersSyncRequest{})
	if err != nil {
		t.Fatalf("SyncOrders: %v", err)
	}
	if again.Created != 0 || again.Skipped != 4 {
		t.Fatalf("second run should only skip: %+v", again)
	}
	for _, e := range expensesOf(t, ts.store, models.CategoryShipping) {
		if *e.OrderNumber == "Order #100" && !e.Amount.Equal(dec("7.25")) {
			t.Fatalf("insert-only sync changed an amount: %s", e.Amount)
		}
	}
}

func TestShippoSyncOrdersErrors(t *testing.T) {
	ctx := context.Background()

	svc, _ := newShippoSync(t, nil)
	if _, err := svc.SyncOrders(ctx, ShippoOrdersSyncRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	api := &fakeShippo{listErr: errors.New("502 bad gateway")}
	svc, ts := newShippoSync(t, api)
	if _, err := svc.SyncOrders(ctx, ShippoOrdersSyncRequest{}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	start, end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.SyncOrders(ctx, ShippoOrdersSyncRequest{StartDate: &start, EndDate: &end}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	lease, err := ts.guard.locker.Obtain(ctx, flowShippoOrders, time.Minute)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	defer lease.Release(ctx)
	calls := api.orderCalls
	if _, err := svc.SyncOrders(ctx, ShippoOrdersSyncRequest{}); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if api.orderCalls != calls {
		t.Fatal("Shippo was called while the flow was locked")
	}
}

func TestShippoResyncTransactions(t *testing.T) {
	api := &fakeShippo{
		transactions: map[string]*shippo.Transaction{
			"tx_1": {ObjectID: "tx_1", Rate: rateRef("rate_1")},
			"tx_2": {ObjectID: "tx_2", Rate: json.RawMessage(`{"object_id":"rate_2","amount":"3.00"}`)},
		},
		rates: map[string]*shippo.Rate{
			"rate_1": {Amount: "11.10"},
			"rate_2": {Amount: "5.55"},
		},
	}
	svc, ts := newShippoSync(t, api)
	ctx := context.Background()

	tx1, tx2 := "tx_1", "tx_2"
	if err := ts.store.Orders.RecordShippo(ctx, "Order #100", nil, &tx1, dec("9.00")); err != nil {
		t.Fatalf("RecordShippo: %v", err)
	}
	if err := ts.store.Orders.RecordShippo(ctx, "Order #101", nil, &tx2, dec("4.00")); err != nil {
		t.Fatalf("RecordShippo: %v", err)
	}
	orderNumber := "Order #100"
	if _, err := ts.store.Expenses.Create(ctx, &models.Expense{
		ExpenseDate: "2024-01-10", Category: models.CategoryShipping, Description: "label",
		Amount: dec("9.00"), Source: models.ExpenseSourceShippoAPI, OrderNumber: &orderNumber,
	}); err != nil {
		t.Fatalf("Create expense: %v", err)
	}

	res, err := svc.ResyncTransactions(ctx, 0)
	if err != nil {
		t.Fatalf("ResyncTransactions: %v", err)
	}
	if res.Updated != 2 || res.Errors != 0 {
		t.Fatalf("unexpected tally: %+v", res)
	}

	got := map[string]models.Expense{}
	for _, e := range expensesOf(t, ts.store, models.CategoryShipping) {
		got[*e.OrderNumber] = e
	}
	if len(got) != 2 || !got["Order #100"].Amount.Equal(dec("11.10")) || !got["Order #101"].Amount.Equal(dec("5.55")) {
		t.Fatalf("unexpected shipping expenses: %+v", got)
	}
	if got["Order #101"].ExpenseDate != "2024-01-11" {
		t.Fatalf("created expense should use the order date, got %s", got["Order #101"].ExpenseDate)
	}
	order, _ := ts.store.Orders.GetByOrderNumber(ctx, "Order #100")
	if !order.ShippingCost.Equal(dec("11.10")) {
		t.Fatalf("order shipping cost not overwritten: %s", order.ShippingCost)
	}
}

func TestShippoSyncInvoicesDedupes(t *testing.T) {
	api := &fakeShippo{invoicePages: map[int]*shippo.InvoicePage{
		1: {Results: []shippo.Invoice{
			{ObjectID: "inv_1", InvoiceNumber: "A-1", InvoicePaidDate: "2024-01-31T00:00:00Z", TotalCharged: shippo.Money{Amount: "120.00"}},
			{ObjectID: "inv_2", InvoiceNumber: "A-2", TotalInvoiced: shippo.Money{Amount: "35.50"}},
			{ObjectID: "inv_3", InvoiceNumber: "A-3", TotalCharged: shippo.Money{Amount: "0"}},
		}},
	}}
	svc, ts := newShippoSync(t, api)
	ctx := context.Background()

	res, err := svc.SyncInvoices(ctx, 0)
	if err != nil {
		t.Fatalf("SyncInvoices: %v", err)
	}
	if res.Created != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected tally: %+v", res)
	}
	e, err := ts.store.Expenses.FindByExternalRef(ctx, InvoiceExternalRef("A-1"))
	if err != nil {
		t.Fatalf("invoice expense missing: %v", err)
	}
	if e.ExpenseDate != "2024-01-31" || e.Source != models.ExpenseSourceShippoInvoice {
		t.Fatalf("unexpected invoice expense: %+v", e)
	}
	second, _ := ts.store.Expenses.FindByExternalRef(ctx, InvoiceExternalRef("A-2"))
	if second.ExpenseDate != testToday {
		t.Fatalf("unpaid date should fall back to today, got %s", second.ExpenseDate)
	}

	again, err := svc.SyncInvoices(ctx, 0)
	if err != nil {
		t.Fatalf("SyncInvoices: %v", err)
	}
	if again.Created != 0 || again.Skipped != 3 {
		t.Fatalf("second run should skip everything: %+v", again)
	}
}
