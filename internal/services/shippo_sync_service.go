package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecom_ops_backend/internal/clients/shippo"
	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

const (
	flowShippoOrders       = "shippo_orders"
	flowShippoTransactions = "shippo_transactions"
	flowShippoInvoices     = "shippo_invoices"

	shippoOrdersPageSize   = 50
	shippoInvoicesPageSize = 25
	defaultShippoMaxPages  = 5
	defaultShippoLookback  = 30 * 24 * time.Hour
	defaultResyncLimit     = 200
)

// ShippoAPI is the subset of the Shippo client the sync passes use.
type ShippoAPI interface {
	ListOrders(ctx context.Context, page, results int, start, end time.Time) (*shippo.OrderPage, error)
	GetTransaction(ctx context.Context, id string) (*shippo.Transaction, error)
	GetRate(ctx context.Context, id string) (*shippo.Rate, error)
	ListInvoices(ctx context.Context, status string, page, results int) (*shippo.InvoicePage, error)
}

// ShippoOrdersSyncRequest DTO. Zero values select the defaults.
type ShippoOrdersSyncRequest struct {
	MaxPages  int
	StartDate *time.Time
	EndDate   *time.Time
}

// ShippoSyncResult DTO
type ShippoSyncResult struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Skipped int          `json:"skipped"`
	Errors  int          `json:"errors"`
	Pages   int          `json:"pages"`
	Details []SyncDetail `json:"details"`
}

func (r *ShippoSyncResult) detail(flow, ref, status, note string, err error) {
	d := SyncDetail{Ref: ref, Status: status, Note: note}
	switch status {
	case "created":
		r.Created++
	case "updated":
		r.Updated++
	case "skipped":
		r.Skipped++
	case "error":
		r.Errors++
		metrics.RecordSyncError(flow)
		if err != nil {
			d.Error = err.Error()
		}
	}
	r.Details = append(r.Details, d)
}

// ShippoSyncService reconciles shipping costs from Shippo into expenses.
type ShippoSyncService interface {
	// SyncOrders inserts missing shipping expenses; it never updates one.
	SyncOrders(ctx context.Context, req ShippoOrdersSyncRequest) (*ShippoSyncResult, error)
	// ResyncTransactions overwrites order shipping cost and the shipping
	// expense with the label's actual rate.
	ResyncTransactions(ctx context.Context, limit int) (*ShippoSyncResult, error)
	// SyncInvoices inserts one expense per unseen paid invoice.
	SyncInvoices(ctx context.Context, maxPages int) (*ShippoSyncResult, error)
}

type shippoSyncService struct {
	api      ShippoAPI
	orders   repositories.OrderRepository
	expenses repositories.ExpenseRepository
	clock    utils.Clock
	locks    *SyncGuard
	now      func() time.Time
}

// NewShippoSyncService creates a new instance of ShippoSyncService. api may
// be nil, in which case every pass returns ErrNotConfigured.
func NewShippoSyncService(api ShippoAPI, store *repositories.Store, clock utils.Clock, locks *SyncGuard) ShippoSyncService {
	if clock == nil {
		clock = utils.NewZoneClock(nil)
	}
	return &shippoSyncService{
		api:      api,
		orders:   store.Orders,
		expenses: store.Expenses,
		clock:    clock,
		locks:    locks,
		now:      time.Now,
	}
}

func (s *shippoSyncService) configured() error {
	if s.api == nil {
		return fmt.Errorf("%w: shippo", ErrNotConfigured)
	}
	return nil
}

// parseCost accepts only positive amounts.
func parseCost(raw string) (decimal.Decimal, bool) {
	d, ok := utils.ParseLooseAmount(raw)
	if !ok || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// shippoDate reduces a Shippo timestamp to YYYY-MM-DD.
func shippoDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", utils.DateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(utils.DateLayout), true
		}
	}
	return "", false
}

func jsonMeta(fields map[string]interface{}) json.RawMessage {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return raw
}

// labelCost is the first transaction's rate amount, else the order's own
// shipping cost.
func (s *shippoSyncService) labelCost(ctx context.Context, o shippo.Order) (decimal.Decimal, *shippo.Transaction, bool) {
	var tx *shippo.Transaction
	if len(o.Transactions) > 0 {
		tx = &o.Transactions[0]
		if rateID := tx.RateID(); rateID != "" {
			rate, err := s.api.GetRate(ctx, rateID)
			if err != nil {
				utils.LogWarn("Shippo rate lookup failed, using order shipping cost", map[string]interface{}{
					"order_number": o.OrderNumber,
					"rate_id":      rateID,
					"error":        err.Error(),
				})
			} else if cost, ok := parseCost(rate.Amount); ok {
				return cost, tx, true
			}
		}
	}
	cost, ok := parseCost(o.ShippingCost)
	return cost, tx, ok
}

func (s *shippoSyncService) SyncOrders(ctx context.Context, req ShippoOrdersSyncRequest) (*ShippoSyncResult, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = defaultShippoMaxPages
	}
	end := s.now()
	if req.EndDate != nil {
		end = *req.EndDate
	}
	start := end.Add(-defaultShippoLookback)
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: start_date is after end_date", ErrValidation)
	}

	result := &ShippoSyncResult{Details: []SyncDetail{}}
	err := s.locks.run(ctx, flowShippoOrders, func(refresh func()) error {
		for page := 1; page <= maxPages; page++ {
			batch, err := s.api.ListOrders(ctx, page, shippoOrdersPageSize, start, end)
			if err != nil {
				if page == 1 {
					return fmt.Errorf("%w: %v", ErrUpstream, err)
				}
				result.detail(flowShippoOrders, fmt.Sprintf("page %d", page), "error", "", err)
				break
			}
			result.Pages++
			for _, o := range batch.Results {
				s.syncOrder(ctx, o, result)
			}
			refresh()
			if batch.Next == "" || len(batch.Results) == 0 {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *shippoSyncService) syncOrder(ctx context.Context, o shippo.Order, result *ShippoSyncResult) {
	orderNumber := NormalizeOrderNumber(o.OrderNumber)
	if orderNumber == "" {
		result.detail(flowShippoOrders, o.ObjectID, "skipped", "no order number", nil)
		return
	}
	if _, err := s.orders.GetByOrderNumber(ctx, orderNumber); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			result.detail(flowShippoOrders, orderNumber, "skipped", "no local order", nil)
			return
		}
		result.detail(flowShippoOrders, orderNumber, "error", "", err)
		return
	}

	cost, tx, ok := s.labelCost(ctx, o)
	if !ok {
		result.detail(flowShippoOrders, orderNumber, "skipped", "no valid shipping cost", nil)
		return
	}

	var txID *string
	if tx != nil {
		txID = utils.NewNullString(tx.ObjectID)
	}
	if err := s.orders.RecordShippo(ctx, orderNumber, utils.NewNullString(o.ObjectID), txID, cost); err != nil {
		utils.LogWarn("Failed to record Shippo markers", map[string]interface{}{"order_number": orderNumber, "error": err.Error()})
	}

	if _, err := s.expenses.FindByOrderAndCategory(ctx, orderNumber, models.CategoryShipping); err == nil {
		metrics.RecordExpenseWrite(models.ExpenseSourceShippoAPI, "skipped")
		result.detail(flowShippoOrders, orderNumber, "skipped", "shipping expense exists", nil)
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		result.detail(flowShippoOrders, orderNumber, "error", "", err)
		return
	}

	date, ok := shippoDate(o.PlacedAt)
	if !ok {
		date = s.clock.Today()
	}
	meta := map[string]interface{}{"shippo_order_id": o.ObjectID}
	if tx != nil {
		meta["transaction_id"] = tx.ObjectID
		meta["rate_id"] = tx.RateID()
	}
	expense := &models.Expense{
		ExpenseDate: date,
		Category:    models.CategoryShipping,
		Description: "Shippo label for " + orderNumber,
		Vendor:      "Shippo",
		Amount:      cost,
		Source:      models.ExpenseSourceShippoAPI,
		OrderNumber: &orderNumber,
		Metadata:    jsonMeta(meta),
	}
	if _, err := s.expenses.Create(ctx, expense); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			result.detail(flowShippoOrders, orderNumber, "skipped", "shipping expense exists", nil)
			return
		}
		result.detail(flowShippoOrders, orderNumber, "error", "", err)
		return
	}
	metrics.RecordExpenseWrite(models.ExpenseSourceShippoAPI, "created")
	result.detail(flowShippoOrders, orderNumber, "created", cost.StringFixed(2), nil)
}

func (s *shippoSyncService) ResyncTransactions(ctx context.Context, limit int) (*ShippoSyncResult, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultResyncLimit
	}

	result := &ShippoSyncResult{Details: []SyncDetail{}}
	err := s.locks.run(ctx, flowShippoTransactions, func(refresh func()) error {
		orders, err := s.orders.ListWithShippoTransaction(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list orders with Shippo labels: %w", err)
		}
		for _, o := range orders {
			s.resyncOrder(ctx, o, result)
			refresh()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *shippoSyncService) resyncOrder(ctx context.Context, o models.Order, result *ShippoSyncResult) {
	txID := utils.StringValue(o.ShippoTransactionID)
	tx, err := s.api.GetTransaction(ctx, txID)
	if err != nil {
		result.detail(flowShippoTransactions, o.OrderNumber, "error", "", fmt.Errorf("%w: %v", ErrUpstream, err))
		return
	}
	rateID := tx.RateID()
	if rateID == "" {
		result.detail(flowShippoTransactions, o.OrderNumber, "error", "", errors.New("transaction has no rate"))
		return
	}
	rate, err := s.api.GetRate(ctx, rateID)
	if err != nil {
		result.detail(flowShippoTransactions, o.OrderNumber, "error", "", fmt.Errorf("%w: %v", ErrUpstream, err))
		return
	}
	cost, ok := parseCost(rate.Amount)
	if !ok {
		result.detail(flowShippoTransactions, o.OrderNumber, "error", "", fmt.Errorf("invalid rate amount %q", rate.Amount))
		return
	}

	if err := s.orders.SetShippingCost(ctx, o.OrderNumber, cost); err != nil {
		result.detail(flowShippoTransactions, o.OrderNumber, "error", "", err)
		return
	}

	desc := "Shippo label for " + o.OrderNumber
	meta := jsonMeta(map[string]interface{}{
		"shippo_order_id": utils.StringValue(o.ShippoOrderID),
		"transaction_id":  txID,
		"rate_id":         rateID,
	})
	existing, err := s.expenses.FindByOrderAndCategory(ctx, o.OrderNumber, models.CategoryShipping)
	switch {
	case err == nil:
		if err := s.expenses.UpdateAmount(ctx, existing.ID, cost, desc, meta); err != nil {
			result.detail(flowShippoTransactions, o.OrderNumber, "error", "", err)
			return
		}
		metrics.RecordExpenseWrite(models.ExpenseSourceShippoAPI, "updated")
		result.detail(flowShippoTransactions, o.OrderNumber, "updated",
			fmt.Sprintf("%s -> %s", existing.Amount.StringFixed(2), cost.StringFixed(2)), nil)
	case errors.Is(err, repositories.ErrNotFound):
		orderNumber := o.OrderNumber
		expense := &models.Expense{
			ExpenseDate: s.clock.Today(),
			Category:    models.CategoryShipping,
			Description: desc,
			Vendor:      "Shippo",
			Amount:      cost,
			Source:      models.ExpenseSourceShippoAPI,
			OrderNumber: &orderNumber,
			Metadata:    meta,
		}
		if o.OrderDate != nil {
			expense.ExpenseDate = o.OrderDate.Format(utils.DateLayout)
		}
		if _, err := s.expenses.Create(ctx, expense); err != nil {
			result.detail(flowShippoTransactions, o.OrderNumber, "error", "", err)
			return
		}
		metrics.RecordExpenseWrite(models.ExpenseSourceShippoAPI, "created")
		// the order's cost was still rewritten, so this counts as an update
		result.detail(flowShippoTransactions, o.OrderNumber, "updated", "created shipping expense "+cost.StringFixed(2), nil)
	default:
		result.detail(flowShippoTransactions, o.OrderNumber, "error", "", err)
	}
}

func (s *shippoSyncService) SyncInvoices(ctx context.Context, maxPages int) (*ShippoSyncResult, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = defaultShippoMaxPages
	}

	result := &ShippoSyncResult{Details: []SyncDetail{}}
	err := s.locks.run(ctx, flowShippoInvoices, func(refresh func()) error {
		for page := 1; page <= maxPages; page++ {
			batch, err := s.api.ListInvoices(ctx, "PAID", page, shippoInvoicesPageSize)
			if err != nil {
				if page == 1 {
					return fmt.Errorf("%w: %v", ErrUpstream, err)
				}
				result.detail(flowShippoInvoices, fmt.Sprintf("page %d", page), "error", "", err)
				break
			}
			result.Pages++
			for _, inv := range batch.Results {
				s.syncInvoice(ctx, inv, result)
			}
			refresh()
			if batch.Next == "" || len(batch.Results) == 0 {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// InvoiceExternalRef is the dedup key of an invoice expense.
func InvoiceExternalRef(invoiceNumber string) string {
	return "shippo_invoice_" + strings.TrimSpace(invoiceNumber)
}

func (s *shippoSyncService) syncInvoice(ctx context.Context, inv shippo.Invoice, result *ShippoSyncResult) {
	number := strings.TrimSpace(inv.InvoiceNumber)
	if number == "" {
		result.detail(flowShippoInvoices, inv.ObjectID, "skipped", "no invoice number", nil)
		return
	}
	ref := InvoiceExternalRef(number)
	if _, err := s.expenses.FindByExternalRef(ctx, ref); err == nil {
		result.detail(flowShippoInvoices, number, "skipped", "already recorded", nil)
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		result.detail(flowShippoInvoices, number, "error", "", err)
		return
	}

	amount, ok := parseCost(inv.Amount())
	if !ok {
		result.detail(flowShippoInvoices, number, "skipped", "no positive amount", nil)
		return
	}
	date, ok := shippoDate(inv.InvoicePaidDate)
	if !ok {
		date = s.clock.Today()
	}
	expense := &models.Expense{
		ExpenseDate: date,
		Category:    models.CategoryShipping,
		Description: "Shippo invoice " + number,
		Vendor:      "Shippo",
		Amount:      amount,
		Source:      models.ExpenseSourceShippoInvoice,
		ExternalRef: &ref,
		Metadata: jsonMeta(map[string]interface{}{
			"invoice_id": inv.ObjectID,
			"status":     inv.Status,
		}),
	}
	if _, err := s.expenses.Create(ctx, expense); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			result.detail(flowShippoInvoices, number, "skipped", "already recorded", nil)
			return
		}
		result.detail(flowShippoInvoices, number, "error", "", err)
		return
	}
	metrics.RecordExpenseWrite(models.ExpenseSourceShippoInvoice, "created")
	result.detail(flowShippoInvoices, number, "created", amount.StringFixed(2), nil)
}
