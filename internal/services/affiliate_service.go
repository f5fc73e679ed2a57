package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// DefaultAffiliateRate is the commission share of an order total.
var DefaultAffiliateRate = decimal.RequireFromString("0.10")

// AffiliateOutcome says what Derive did.
type AffiliateOutcome string

const (
	AffiliateCreated AffiliateOutcome = "created"
	AffiliateUpdated AffiliateOutcome = "updated"
	AffiliateSkipped AffiliateOutcome = "skipped"
)

// AffiliateInput DTO
type AffiliateInput struct {
	OrderNumber    string
	WooOrderID     *int64
	OrderTotal     decimal.Decimal
	CouponDiscount decimal.Decimal
	CouponCode     string
}

// CouponUsed reports whether the order carries a coupon signal.
func (in AffiliateInput) CouponUsed() bool {
	return in.CouponDiscount.IsPositive() || strings.TrimSpace(in.CouponCode) != ""
}

// BackfillResult DTO
type BackfillResult struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Skipped int          `json:"skipped"`
	Errors  int          `json:"errors"`
	Details []SyncDetail `json:"details"`
}

// AffiliateService keeps one affiliate commission expense per coupon order.
type AffiliateService interface {
	Derive(ctx context.Context, in AffiliateInput) (AffiliateOutcome, error)
	Backfill(ctx context.Context) (*BackfillResult, error)
}

type affiliateService struct {
	orders   repositories.OrderRepository
	expenses repositories.ExpenseRepository
	rate     decimal.Decimal
	clock    utils.Clock
	locks    *SyncGuard
}

// NewAffiliateService creates a new instance of AffiliateService.
func NewAffiliateService(store *repositories.Store, rate decimal.Decimal, clock utils.Clock, locks *SyncGuard) AffiliateService {
	if !rate.IsPositive() {
		rate = DefaultAffiliateRate
	}
	if clock == nil {
		clock = utils.NewZoneClock(nil)
	}
	return &affiliateService{
		orders:   store.Orders,
		expenses: store.Expenses,
		rate:     rate,
		clock:    clock,
		locks:    locks,
	}
}

// AffiliateAmount is total*rate rounded to cents.
func AffiliateAmount(total, rate decimal.Decimal) decimal.Decimal {
	return utils.RoundCents(total.Mul(rate))
}

func (s *affiliateService) description(in AffiliateInput) string {
	pct := s.rate.Mul(decimal.NewFromInt(100)).String()
	desc := fmt.Sprintf("Affiliate commission (%s%%) for %s", pct, in.OrderNumber)
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		desc += " - coupon " + code
	}
	return desc
}

func (s *affiliateService) metadata(in AffiliateInput) json.RawMessage {
	raw, err := json.Marshal(map[string]interface{}{
		"order_total":     in.OrderTotal,
		"rate":            s.rate,
		"coupon_code":     strings.TrimSpace(in.CouponCode),
		"coupon_discount": in.CouponDiscount,
		"woo_order_id":    in.WooOrderID,
	})
	if err != nil {
		return nil
	}
	return raw
}

func (s *affiliateService) Derive(ctx context.Context, in AffiliateInput) (AffiliateOutcome, error) {
	if !in.OrderTotal.IsPositive() || !in.CouponUsed() {
		return AffiliateSkipped, nil
	}
	amount := AffiliateAmount(in.OrderTotal, s.rate)
	if !amount.IsPositive() {
		return AffiliateSkipped, nil
	}
	desc := s.description(in)
	meta := s.metadata(in)

	existing, err := s.expenses.FindByOrderAndCategory(ctx, in.OrderNumber, models.CategoryAffiliate)
	switch {
	case err == nil:
		return s.update(ctx, existing.ID, amount, desc, meta)
	case !errors.Is(err, repositories.ErrNotFound):
		return "", fmt.Errorf("failed to look up affiliate expense: %w", err)
	}

	orderNumber := in.OrderNumber
	vendor := strings.TrimSpace(in.CouponCode)
	if vendor == "" {
		vendor = "Affiliate"
	}
	expense := &models.Expense{
		ExpenseDate: s.clock.Today(),
		Category:    models.CategoryAffiliate,
		Description: desc,
		Vendor:      vendor,
		Amount:      amount,
		Source:      models.ExpenseSourceAffiliateAuto,
		OrderNumber: &orderNumber,
		Metadata:    meta,
	}
	if _, err := s.expenses.Create(ctx, expense); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			// lost a race with a concurrent ingestion of the same order
			if existing, ferr := s.expenses.FindByOrderAndCategory(ctx, in.OrderNumber, models.CategoryAffiliate); ferr == nil {
				return s.update(ctx, existing.ID, amount, desc, meta)
			}
		}
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.RecordExpenseWrite(models.ExpenseSourceAffiliateAuto, string(AffiliateCreated))
	return AffiliateCreated, nil
}

func (s *affiliateService) update(ctx context.Context, id int64, amount decimal.Decimal, desc string, meta json.RawMessage) (AffiliateOutcome, error) {
	if err := s.expenses.UpdateAmount(ctx, id, amount, desc, meta); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.RecordExpenseWrite(models.ExpenseSourceAffiliateAuto, string(AffiliateUpdated))
	return AffiliateUpdated, nil
}

func (s *affiliateService) Backfill(ctx context.Context) (*BackfillResult, error) {
	result := &BackfillResult{Details: []SyncDetail{}}
	err := s.locks.run(ctx, "affiliate_backfill", func(refresh func()) error {
		orders, err := s.orders.ListCouponOrders(ctx)
		if err != nil {
			return fmt.Errorf("failed to list coupon orders: %w", err)
		}
		for i, o := range orders {
			outcome, err := s.Derive(ctx, AffiliateInput{
				OrderNumber:    o.OrderNumber,
				WooOrderID:     o.WooOrderID,
				OrderTotal:     o.Total,
				CouponDiscount: o.CouponDiscount,
				CouponCode:     o.CouponCode,
			})
			if err != nil {
				result.Errors++
				metrics.RecordSyncError("affiliate_backfill")
				result.Details = append(result.Details, SyncDetail{Ref: o.OrderNumber, Status: "error", Error: err.Error()})
				continue
			}
			switch outcome {
			case AffiliateCreated:
				result.Created++
			case AffiliateUpdated:
				result.Updated++
			default:
				result.Skipped++
			}
			result.Details = append(result.Details, SyncDetail{Ref: o.OrderNumber, Status: string(outcome)})
			if i%50 == 49 {
				refresh()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
