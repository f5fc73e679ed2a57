package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecom_ops_backend/internal/clients/woocommerce"
	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

const (
	OriginWebhook = "webhook"
	OriginForm    = "form"
	OriginRefetch = "refetch"
	OriginBulk    = "bulk"
)

// OrderSource fetches raw orders from the storefront platform.
type OrderSource interface {
	GetOrder(ctx context.Context, id int64) (woocommerce.Order, error)
	ListOrders(ctx context.Context, page, perPage int) ([]woocommerce.Order, error)
}

// IngestResult DTO
type IngestResult struct {
	Status      string             `json:"status"`
	OrderNumber string             `json:"order_number"`
	WooOrderID  int64              `json:"woo_order_id"`
	Total       decimal.Decimal    `json:"total"`
	Cost        decimal.Decimal    `json:"cost"`
	Profit      decimal.Decimal    `json:"profit"`
	Margin      decimal.Decimal    `json:"margin"`
	LineItems   []models.OrderLine `json:"line_items"`
	Affiliate   AffiliateOutcome   `json:"affiliate,omitempty"`
}

// SyncDetail is the per-item outcome of a bulk pass.
type SyncDetail struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Note   string `json:"note,omitempty"`
}

// OrderSyncPage DTO
type OrderSyncPage struct {
	Page      int          `json:"page"`
	PerPage   int          `json:"per_page"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Details   []SyncDetail `json:"details"`
	NextPage  *int         `json:"next_page"`
	Done      bool         `json:"done"`
}

// OrderService reconciles platform orders into local orders and lines.
type OrderService interface {
	Ingest(ctx context.Context, payload OrderPayload, origin string) (*IngestResult, error)
	SyncOrder(ctx context.Context, wooOrderID int64) (*IngestResult, error)
	SyncOrdersPage(ctx context.Context, page, perPage int) (*OrderSyncPage, error)
	GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error)
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
}

type orderService struct {
	orders      repositories.OrderRepository
	products    repositories.ProductRepository
	costs       CostLookupService
	affiliates  AffiliateService
	source      OrderSource
	locks       *SyncGuard
	defaultPage int
}

// NewOrderService creates a new instance of OrderService. source may be nil
// when the storefront is not configured; ingestion still works.
func NewOrderService(store *repositories.Store, costs CostLookupService, affiliates AffiliateService, source OrderSource, locks *SyncGuard, batchSize int) OrderService {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &orderService{
		orders:      store.Orders,
		products:    store.Products,
		costs:       costs,
		affiliates:  affiliates,
		source:      source,
		locks:       locks,
		defaultPage: batchSize,
	}
}

// upsertPlan lists the conflict targets an order write is attempted with,
// in order, until one succeeds.
func upsertPlan(order *models.Order) []repositories.ConflictTarget {
	plan := []repositories.ConflictTarget{repositories.ConflictOrderNumber}
	if order.WooOrderID != nil {
		plan = append(plan, repositories.ConflictWooOrderID)
	}
	return append(plan, repositories.ConflictNone)
}

// Margin is profit as a percentage of total, two decimals, zero for a zero total.
func Margin(profit, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return profit.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}

func (s *orderService) Ingest(ctx context.Context, payload OrderPayload, origin string) (*IngestResult, error) {
	n, err := payload.Normalize()
	if err != nil {
		return nil, err
	}

	table := s.costs.Table(ctx)
	lines := make([]models.OrderLine, 0, len(n.Lines))
	lineSum := decimal.Zero
	cost := decimal.Zero
	for _, raw := range n.Lines {
		line := models.OrderLine{
			WooOrderID:          n.WooOrderID,
			LineItemID:          raw.ID,
			OrderNumber:         n.OrderNumber,
			ProductName:         raw.Name,
			SKU:                 raw.SKU,
			QtyOrdered:          raw.Quantity,
			CustomerPaidPerUnit: raw.UnitPrice(),
			OurCostPerUnit:      table.Match(raw.Name, "").CostPerUnit,
		}
		if raw.ProductID > 0 {
			pid := raw.ProductID
			line.ProductID = &pid
			line.OurCostPerUnit = s.reconcileProduct(ctx, raw, line.CustomerPaidPerUnit, line.OurCostPerUnit)
		}
		line.Derive()
		lineSum = lineSum.Add(line.LineTotal)
		cost = cost.Add(line.LineCost)
		lines = append(lines, line)
	}

	order := &models.Order{
		OrderNumber:     n.OrderNumber,
		Status:          n.Status,
		Subtotal:        lineSum,
		Total:           lineSum,
		ProductCost:     cost,
		ShippingCharged: n.ShippingTotal,
		CouponDiscount:  n.CouponDiscount,
		CouponCode:      n.CouponCode,
		CustomerName:    n.CustomerName,
		CustomerEmail:   n.CustomerEmail,
		Currency:        n.Currency,
		Notes:           n.Notes,
		OrderDate:       n.OrderDate,
	}
	wooID := n.WooOrderID
	order.WooOrderID = &wooID
	if n.HasSubtotal {
		order.Subtotal = n.Subtotal
	}
	if n.HasTotal {
		order.Total = n.Total
	}
	order.Profit = order.Total.Sub(cost)

	if err := s.upsert(ctx, order); err != nil {
		return nil, err
	}
	if err := s.orders.ReplaceLines(ctx, wooID, lines); err != nil {
		utils.LogError(err, "OrderService: failed to replace order lines", map[string]interface{}{"order_number": order.OrderNumber})
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.RecordOrderIngested(origin)

	result := &IngestResult{
		Status:      "ok",
		OrderNumber: order.OrderNumber,
		WooOrderID:  wooID,
		Total:       order.Total,
		Cost:        cost,
		Profit:      order.Profit,
		Margin:      Margin(order.Profit, order.Total),
		LineItems:   lines,
	}

	switch {
	case s.affiliates == nil:
	case models.IsExcludedStatus(order.Status):
		result.Affiliate = AffiliateSkipped
	default:
		outcome, err := s.affiliates.Derive(ctx, AffiliateInput{
			OrderNumber:    order.OrderNumber,
			WooOrderID:     order.WooOrderID,
			OrderTotal:     order.Total,
			CouponDiscount: order.CouponDiscount,
			CouponCode:     order.CouponCode,
		})
		if err != nil {
			utils.LogError(err, "OrderService: affiliate expense derivation failed", map[string]interface{}{"order_number": order.OrderNumber})
		}
		result.Affiliate = outcome
	}
	return result, nil
}

func (s *orderService) upsert(ctx context.Context, order *models.Order) error {
	var lastErr error
	for _, target := range upsertPlan(order) {
		if _, err := s.orders.Upsert(ctx, order, target); err != nil {
			utils.LogWarn("Order upsert attempt failed", map[string]interface{}{
				"order_number": order.OrderNumber,
				"target":       string(target),
				"error":        err.Error(),
			})
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPersistence, lastErr)
}

// reconcileProduct creates a placeholder for an unknown product or backfills
// a missing cost. It returns the unit cost the line should use.
func (s *orderService) reconcileProduct(ctx context.Context, raw RawLine, unitPrice, resolved decimal.Decimal) decimal.Decimal {
	product, err := s.products.GetByWooProductID(ctx, raw.ProductID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		wooID := raw.ProductID
		placeholder := &models.Product{
			WooProductID: &wooID,
			Name:         strings.TrimSpace(raw.Name),
			SKU:          raw.SKU,
			RetailPrice:  unitPrice,
			UnitCost:     resolved,
		}
		if placeholder.Name == "" {
			placeholder.Name = fmt.Sprintf("Product %d", wooID)
		}
		if _, err := s.products.Create(ctx, placeholder); err != nil && !errors.Is(err, repositories.ErrDuplicateKey) {
			utils.LogWarn("Placeholder product creation failed", map[string]interface{}{"woo_product_id": wooID, "error": err.Error()})
		}
		return resolved
	case err != nil:
		utils.LogWarn("Product lookup failed", map[string]interface{}{"woo_product_id": raw.ProductID, "error": err.Error()})
		return resolved
	}

	if product.UnitCost.IsZero() && resolved.IsPositive() {
		if err := s.products.SetUnitCost(ctx, product.ID, resolved); err != nil {
			utils.LogWarn("Product cost backfill failed", map[string]interface{}{"product_id": product.ID, "error": err.Error()})
		}
	}
	if resolved.IsZero() && product.UnitCost.IsPositive() {
		return product.UnitCost
	}
	return resolved
}

func (s *orderService) SyncOrder(ctx context.Context, wooOrderID int64) (*IngestResult, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: woocommerce", ErrNotConfigured)
	}
	raw, err := s.source.GetOrder(ctx, wooOrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return s.Ingest(ctx, OrderPayload(raw), OriginRefetch)
}

// SyncOrdersPage ingests one page of platform orders. Callers continue with
// NextPage until Done.
func (s *orderService) SyncOrdersPage(ctx context.Context, page, perPage int) (*OrderSyncPage, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: woocommerce", ErrNotConfigured)
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.defaultPage
	}
	if perPage > 100 {
		perPage = 100
	}

	result := &OrderSyncPage{Page: page, PerPage: perPage, Details: []SyncDetail{}}
	err := s.locks.run(ctx, "woo_orders", func(refresh func()) error {
		raw, err := s.source.ListOrders(ctx, page, perPage)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		for _, order := range raw {
			payload := OrderPayload(order)
			ingested, err := s.Ingest(ctx, payload, OriginBulk)
			if err != nil {
				result.Failed++
				metrics.RecordSyncError("woo_orders")
				result.Details = append(result.Details, SyncDetail{Ref: payloadRef(payload), Status: "error", Error: err.Error()})
				continue
			}
			result.Processed++
			result.Details = append(result.Details, SyncDetail{Ref: ingested.OrderNumber, Status: "ok"})
			refresh()
		}
		result.Done = len(raw) < perPage
		if !result.Done {
			next := page + 1
			result.NextPage = &next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func payloadRef(p OrderPayload) string {
	idx := indexKeys(p)
	if s, ok := lookupString(idx, orderFieldAliases["order_number"]); ok {
		return s
	}
	if s, ok := lookupString(idx, orderFieldAliases["woo_order_id"]); ok {
		return s
	}
	return "unknown"
}

func (s *orderService) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	if err := validateDateFilter(filters.StartDate, filters.EndDate); err != nil {
		return nil, 0, err
	}
	orders, total, err := s.orders.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.orders.GetByOrderNumber(ctx, NormalizeOrderNumber(orderNumber))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.WooOrderID != nil {
		lines, err := s.orders.GetLines(ctx, *order.WooOrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load order lines: %w", err)
		}
		order.Lines = lines
	}
	return order, nil
}
