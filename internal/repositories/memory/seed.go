package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Seed is the demo data set. Money values are written as strings or plain
// numbers; both decode through their literal text.
type Seed struct {
	Products    []SeedProduct    `yaml:"products"`
	CostLookups []SeedCostLookup `yaml:"cost_lookups"`
	Rules       []SeedRule       `yaml:"rules"`
	Orders      []SeedOrder      `yaml:"orders"`
	Expenses    []SeedExpense    `yaml:"expenses"`
}

type SeedProduct struct {
	WooProductID int64  `yaml:"woo_product_id"`
	Name         string `yaml:"name"`
	SKU          string `yaml:"sku"`
	StartingQty  int    `yaml:"starting_qty"`
	RetailPrice  string `yaml:"retail_price"`
	SalePrice    string `yaml:"sale_price"`
	UnitCost     string `yaml:"unit_cost"`
}

type SeedCostLookup struct {
	Name        string `yaml:"name"`
	Strength    string `yaml:"strength"`
	Vendor      string `yaml:"vendor"`
	CostPerUnit string `yaml:"cost_per_unit"`
}

type SeedRule struct {
	Pattern     string `yaml:"pattern"`
	PatternType string `yaml:"pattern_type"`
	Category    string `yaml:"category"`
	Priority    int    `yaml:"priority"`
	Inactive    bool   `yaml:"inactive"`
}

type SeedOrder struct {
	OrderNumber    string     `yaml:"order_number"`
	WooOrderID     int64      `yaml:"woo_order_id"`
	Status         string     `yaml:"status"`
	OrderDate      string     `yaml:"order_date"`
	CustomerName   string     `yaml:"customer_name"`
	CustomerEmail  string     `yaml:"customer_email"`
	CouponCode     string     `yaml:"coupon_code"`
	CouponDiscount string     `yaml:"coupon_discount"`
	ShippingCost   string     `yaml:"shipping_cost"`
	Lines          []SeedLine `yaml:"lines"`
}

type SeedLine struct {
	LineItemID int64  `yaml:"line_item_id"`
	ProductID  int64  `yaml:"product_id"`
	Name       string `yaml:"name"`
	SKU        string `yaml:"sku"`
	Quantity   int    `yaml:"quantity"`
	Price      string `yaml:"price"`
	UnitCost   string `yaml:"unit_cost"`
}

type SeedExpense struct {
	Date        string `yaml:"date"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Vendor      string `yaml:"vendor"`
	Amount      string `yaml:"amount"`
	Source      string `yaml:"source"`
	OrderNumber string `yaml:"order_number"`
	ExternalRef string `yaml:"external_ref"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %s: %w", path, err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes YAML seed data.
func ParseSeed(raw []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	return &seed, nil
}

func money(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("seed field %s: %w", field, err)
	}
	return d, nil
}

func (s *Seed) apply(store *repositories.Store) error {
	ctx := context.Background()

	for _, sp := range s.Products {
		p := models.Product{Name: sp.Name, SKU: sp.SKU, StartingQty: sp.StartingQty}
		if sp.WooProductID != 0 {
			id := sp.WooProductID
			p.WooProductID = &id
		}
		var err error
		if p.RetailPrice, err = money("retail_price", sp.RetailPrice); err != nil {
			return err
		}
		if p.UnitCost, err = money("unit_cost", sp.UnitCost); err != nil {
			return err
		}
		if strings.TrimSpace(sp.SalePrice) != "" {
			sale, err := money("sale_price", sp.SalePrice)
			if err != nil {
				return err
			}
			p.SalePrice = decimal.NewNullDecimal(sale)
		}
		if _, err := store.Products.Create(ctx, &p); err != nil {
			return fmt.Errorf("seeding product %s: %w", sp.Name, err)
		}
	}

	for _, sc := range s.CostLookups {
		cost, err := money("cost_per_unit", sc.CostPerUnit)
		if err != nil {
			return err
		}
		row := models.CostLookupRow{Name: sc.Name, Strength: sc.Strength, Vendor: sc.Vendor, CostPerUnit: cost}
		if _, err := store.CostLookups.Upsert(ctx, &row); err != nil {
			return fmt.Errorf("seeding cost lookup %s: %w", sc.Name, err)
		}
	}

	for _, sr := range s.Rules {
		rule := models.CategorizationRule{
			Pattern:     sr.Pattern,
			PatternType: sr.PatternType,
			Category:    sr.Category,
			Priority:    sr.Priority,
			IsActive:    !sr.Inactive,
		}
		if rule.PatternType == "" {
			rule.PatternType = models.PatternTypeContains
		}
		if _, err := store.Rules.Create(ctx, &rule, sr.Priority == 0); err != nil {
			return fmt.Errorf("seeding rule %s: %w", sr.Pattern, err)
		}
	}

	for _, so := range s.Orders {
		if err := seedOrder(ctx, store, so); err != nil {
			return err
		}
	}

	for _, se := range s.Expenses {
		amount, err := money("amount", se.Amount)
		if err != nil {
			return err
		}
		e := models.Expense{
			ExpenseDate: se.Date,
			Category:    models.NormalizeCategory(se.Category),
			Description: se.Description,
			Vendor:      se.Vendor,
			Amount:      amount,
			Source:      se.Source,
			OrderNumber: utils.NewNullString(se.OrderNumber),
			ExternalRef: utils.NewNullString(se.ExternalRef),
		}
		if e.Source == "" {
			e.Source = models.ExpenseSourceManual
		}
		if _, err := store.Expenses.Create(ctx, &e); err != nil {
			return fmt.Errorf("seeding expense %q: %w", se.Description, err)
		}
	}

	if len(s.Orders) > 0 {
		if _, err := store.Products.RecomputeQtySold(ctx); err != nil {
			return err
		}
	}
	return nil
}

func seedOrder(ctx context.Context, store *repositories.Store, so SeedOrder) error {
	o := models.Order{
		OrderNumber:   so.OrderNumber,
		Status:        so.Status,
		CustomerName:  so.CustomerName,
		CustomerEmail: so.CustomerEmail,
		CouponCode:    so.CouponCode,
		Currency:      "USD",
	}
	if o.Status == "" {
		o.Status = models.OrderStatusCompleted
	}
	if so.WooOrderID != 0 {
		id := so.WooOrderID
		o.WooOrderID = &id
	}
	if so.OrderDate != "" {
		t, err := time.Parse(utils.DateLayout, so.OrderDate)
		if err != nil {
			return fmt.Errorf("seed order %s date: %w", so.OrderNumber, err)
		}
		o.OrderDate = &t
	}
	var err error
	if o.CouponDiscount, err = money("coupon_discount", so.CouponDiscount); err != nil {
		return err
	}

	lines := make([]models.OrderLine, 0, len(so.Lines))
	for i, sl := range so.Lines {
		l := models.OrderLine{
			LineItemID:  sl.LineItemID,
			OrderNumber: so.OrderNumber,
			ProductName: sl.Name,
			SKU:         sl.SKU,
			QtyOrdered:  sl.Quantity,
		}
		if l.LineItemID == 0 {
			l.LineItemID = int64(1_000_000 + i)
		}
		if sl.ProductID != 0 {
			pid := sl.ProductID
			l.ProductID = &pid
		}
		if l.CustomerPaidPerUnit, err = money("price", sl.Price); err != nil {
			return err
		}
		if l.OurCostPerUnit, err = money("unit_cost", sl.UnitCost); err != nil {
			return err
		}
		l.Derive()
		o.Subtotal = o.Subtotal.Add(l.LineTotal)
		o.ProductCost = o.ProductCost.Add(l.LineCost)
		lines = append(lines, l)
	}
	o.Total = o.Subtotal.Sub(o.CouponDiscount)
	o.Profit = o.Total.Sub(o.ProductCost)

	if _, err := store.Orders.Upsert(ctx, &o, repositories.ConflictOrderNumber); err != nil {
		return fmt.Errorf("seeding order %s: %w", so.OrderNumber, err)
	}
	if o.WooOrderID != nil {
		if err := store.Orders.ReplaceLines(ctx, *o.WooOrderID, lines); err != nil {
			return fmt.Errorf("seeding lines of %s: %w", so.OrderNumber, err)
		}
	}
	shipping, err := money("shipping_cost", so.ShippingCost)
	if err != nil {
		return err
	}
	if shipping.GreaterThan(decimal.Zero) {
		if err := store.Orders.SetShippingCost(ctx, so.OrderNumber, shipping); err != nil {
			return err
		}
	}
	return nil
}
