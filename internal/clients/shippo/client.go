// Package shippo reads orders, label transactions, rates and invoices from
// the Shippo API.
package shippo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ecom_ops_backend/internal/clients/rest"
)

const DefaultBaseURL = "https://api.goshippo.com"

var ErrNotConfigured = errors.New("shippo client is not configured")

// Transaction is a purchased label.
type Transaction struct {
	ObjectID       string          `json:"object_id"`
	ObjectStatus   string          `json:"object_status"`
	Status         string          `json:"status"`
	TrackingNumber string          `json:"tracking_number"`
	Rate           json.RawMessage `json:"rate"`
	Metadata       string          `json:"metadata"`
}

// RateID returns the rate reference, which Shippo sends either as an id
// string or as an embedded rate object.
func (t Transaction) RateID() string {
	if len(t.Rate) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(t.Rate, &id); err == nil {
		return id
	}
	var obj struct {
		ObjectID string `json:"object_id"`
	}
	if err := json.Unmarshal(t.Rate, &obj); err == nil {
		return obj.ObjectID
	}
	return ""
}

type Order struct {
	ObjectID             string        `json:"object_id"`
	OrderNumber          string        `json:"order_number"`
	OrderStatus          string        `json:"order_status"`
	PlacedAt             string        `json:"placed_at"`
	ShippingCost         string        `json:"shipping_cost"`
	ShippingCostCurrency string        `json:"shipping_cost_currency"`
	Transactions         []Transaction `json:"transactions"`
}

type OrderPage struct {
	Next     string  `json:"next"`
	Previous string  `json:"previous"`
	Results  []Order `json:"results"`
}

type Rate struct {
	ObjectID string `json:"object_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Provider string `json:"provider"`
}

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type Invoice struct {
	ObjectID          string `json:"object_id"`
	InvoiceNumber     string `json:"invoice_number"`
	Status            string `json:"status"`
	InvoicePaidDate   string `json:"invoice_paid_date"`
	InvoiceOpenedDate string `json:"invoice_opened_date"`
	TotalCharged      Money  `json:"total_charged"`
	TotalInvoiced     Money  `json:"total_invoiced"`
}

// Amount is the charged total, falling back to the invoiced total.
func (inv Invoice) Amount() string {
	if strings.TrimSpace(inv.TotalCharged.Amount) != "" {
		return inv.TotalCharged.Amount
	}
	return inv.TotalInvoiced.Amount
}

type InvoicePage struct {
	Next    string    `json:"next"`
	Results []Invoice `json:"results"`
}

type Client struct {
	rest *rest.Client
}

func New(baseURL, token string, opts ...rest.Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]rest.Option{rest.WithAuth(func(r *http.Request) {
		r.Header.Set("Authorization", "ShippoToken "+token)
	})}, opts...)
	return &Client{rest: rest.New("shippo", baseURL, opts...)}, nil
}

// ListOrders returns one page of orders placed in [start, end]. Zero times are omitted.
func (c *Client) ListOrders(ctx context.Context, page, results int, start, end time.Time) (*OrderPage, error) {
	params := url.Values{"page": {strconv.Itoa(page)}, "results": {strconv.Itoa(results)}}
	if !start.IsZero() {
		params.Set("start_date", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		params.Set("end_date", end.UTC().Format(time.RFC3339))
	}
	var out OrderPage
	if err := c.rest.GetJSON(ctx, "/orders/", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var out Transaction
	if err := c.rest.GetJSON(ctx, "/transactions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRate(ctx context.Context, id string) (*Rate, error) {
	var out Rate
	if err := c.rest.GetJSON(ctx, "/rates/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListInvoices(ctx context.Context, status string, page, results int) (*InvoicePage, error) {
	params := url.Values{"page": {strconv.Itoa(page)}, "results": {strconv.Itoa(results)}}
	if status != "" {
		params.Set("status", status)
	}
	var out InvoicePage
	if err := c.rest.GetJSON(ctx, "/invoices/", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
