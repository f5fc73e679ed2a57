// Package woocommerce reads orders and products from the WooCommerce REST API (wc/v3).
package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ecom_ops_backend/internal/clients/rest"
)

const apiPrefix = "/wp-json/wc/v3"

// ErrNotConfigured is returned by New when the store URL or keys are missing.
var ErrNotConfigured = errors.New("woocommerce client is not configured")

// Order is a raw order document. Ingestion reads it through the alias map,
// so it stays untyped.
type Order map[string]interface{}

// Product is the subset of the product resource used by catalog sync.
type Product struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	SKU           string      `json:"sku"`
	Price         string      `json:"price"`
	RegularPrice  string      `json:"regular_price"`
	SalePrice     string      `json:"sale_price"`
	StockQuantity json.Number `json:"stock_quantity"`
	Status        string      `json:"status"`
}

// Stock returns the managed stock quantity, or 0 when stock is not tracked.
func (p Product) Stock() int {
	n, err := strconv.Atoi(strings.TrimSpace(p.StockQuantity.String()))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type Client struct {
	rest *rest.Client
}

func New(baseURL, consumerKey, consumerSecret string, opts ...rest.Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" || consumerKey == "" || consumerSecret == "" {
		return nil, ErrNotConfigured
	}
	opts = append([]rest.Option{rest.WithAuth(func(r *http.Request) {
		r.SetBasicAuth(consumerKey, consumerSecret)
	})}, opts...)
	return &Client{rest: rest.New("woocommerce", strings.TrimRight(baseURL, "/")+apiPrefix, opts...)}, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (Order, error) {
	var out Order
	if err := c.rest.GetJSON(ctx, fmt.Sprintf("/orders/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrders returns one page. A page shorter than perPage is the last one.
func (c *Client) ListOrders(ctx context.Context, page, perPage int) ([]Order, error) {
	var out []Order
	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
		"orderby":  {"id"},
		"order":    {"asc"},
	}
	if err := c.rest.GetJSON(ctx, "/orders", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProducts(ctx context.Context, page, perPage int) ([]Product, error) {
	var out []Product
	params := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}
	if err := c.rest.GetJSON(ctx, "/products", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var out Product
	if err := c.rest.GetJSON(ctx, fmt.Sprintf("/products/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
