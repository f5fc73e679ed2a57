package shippo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTransactionRateID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"rate_123"`, "rate_123"},
		{`{"object_id":"rate_456","amount":"5.10"}`, "rate_456"},
		{``, ""},
		{`42`, ""},
	}
	for _, tc := range cases {
		tx := Transaction{Rate: []byte(tc.raw)}
		if got := tx.RateID(); got != tc.want {
			t.Fatalf("RateID(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestClientEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "ShippoToken tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/orders/":
			if r.URL.Query().Get("start_date") == "" {
				t.Errorf("expected start_date in %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"next":null,"results":[{"object_id":"o1","order_number":"#2654","shipping_cost":"4.20","transactions":[{"object_id":"t1","rate":"r1"}]}]}`))
		case "/transactions/t1":
			w.Write([]byte(`{"object_id":"t1","rate":{"object_id":"r1"}}`))
		case "/rates/r1":
			w.Write([]byte(`{"object_id":"r1","amount":"5.35","currency":"USD"}`))
		case "/invoices/":
			if r.URL.Query().Get("status") != "PAID" {
				t.Errorf("expected status=PAID, got %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"results":[{"invoice_number":"INV-1","total_invoiced":{"amount":"12.00"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	page, err := c.ListOrders(ctx, 1, 50, time.Now().AddDate(0, 0, -30), time.Time{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Results) != 1 || page.Next != "" || page.Results[0].Transactions[0].RateID() != "r1" {
		t.Fatalf("unexpected page: %+v", page)
	}

	tx, err := c.GetTransaction(ctx, "t1")
	if err != nil || tx.RateID() != "r1" {
		t.Fatalf("GetTransaction: %v %+v", err, tx)
	}
	rate, err := c.GetRate(ctx, "r1")
	if err != nil || rate.Amount != "5.35" {
		t.Fatalf("GetRate: %v %+v", err, rate)
	}
	invoices, err := c.ListInvoices(ctx, "PAID", 1, 25)
	if err != nil || len(invoices.Results) != 1 || invoices.Results[0].Amount() != "12.00" {
		t.Fatalf("ListInvoices: %v %+v", err, invoices)
	}
}
