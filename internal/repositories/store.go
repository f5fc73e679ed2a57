package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"ecom_ops_backend/internal/models"

	"github.com/shopspring/decimal"
)

// ConflictTarget names the unique key an order upsert resolves against.
// ConflictNone means a plain insert.
type ConflictTarget string

const (
	ConflictOrderNumber ConflictTarget = "order_number"
	ConflictWooOrderID  ConflictTarget = "woo_order_id"
	ConflictNone        ConflictTarget = ""
)

// OrderRepository persists orders and their lines.
type OrderRepository interface {
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByWooOrderID(ctx context.Context, wooOrderID int64) (*models.Order, error)
	List(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error)
	ListWithShippoTransaction(ctx context.Context, limit int) ([]models.Order, error)
	ListCouponOrders(ctx context.Context) ([]models.Order, error)
	// Upsert writes the order resolving conflicts on target. Shipping cost and
	// Shippo markers are never overwritten by an upsert.
	Upsert(ctx context.Context, order *models.Order, target ConflictTarget) (int64, error)
	// RecordShippo fills the Shippo markers and shipping cost only where they are still empty.
	RecordShippo(ctx context.Context, orderNumber string, shippoOrderID, transactionID *string, shippingCost decimal.Decimal) error
	SetShippingCost(ctx context.Context, orderNumber string, cost decimal.Decimal) error
	// ReplaceLines deletes every line of wooOrderID and inserts lines.
	ReplaceLines(ctx context.Context, wooOrderID int64, lines []models.OrderLine) error
	GetLines(ctx context.Context, wooOrderID int64) ([]models.OrderLine, error)
}

// ProductRepository persists catalog items.
type ProductRepository interface {
	GetByWooProductID(ctx context.Context, wooProductID int64) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) (int64, error)
	SetUnitCost(ctx context.Context, id int64, cost decimal.Decimal) error
	// UpsertFromPlatform matches on WooProductID. Existing unit cost and a
	// non-zero starting quantity are preserved.
	UpsertFromPlatform(ctx context.Context, product *models.Product) (created bool, err error)
	List(ctx context.Context) ([]models.Product, error)
	// RecomputeQtySold sums qty_ordered over non-excluded order lines per product.
	RecomputeQtySold(ctx context.Context) (int, error)
}

// ExpenseRepository persists expenses.
type ExpenseRepository interface {
	FindByOrderAndCategory(ctx context.Context, orderNumber, category string) (*models.Expense, error)
	FindByExternalRef(ctx context.Context, externalRef string) (*models.Expense, error)
	Create(ctx context.Context, expense *models.Expense) (int64, error)
	UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal, description string, metadata json.RawMessage) error
	List(ctx context.Context, filters models.ExpenseFilters) ([]models.Expense, int, error)
	Delete(ctx context.Context, id int64) error
}

// ImportRepository persists staged statement imports.
type ImportRepository interface {
	CreateBatch(ctx context.Context, batch *models.ExpenseImportBatch, lines []models.ExpenseImportLine) (int64, error)
	GetBatch(ctx context.Context, id int64) (*models.ExpenseImportBatch, error)
	ListBatches(ctx context.Context) ([]models.ExpenseImportBatch, error)
	ListLines(ctx context.Context, batchID int64) ([]models.ExpenseImportLine, error)
	SetLineCategory(ctx context.Context, batchID, lineID int64, category string) error
	MarkLineApproved(ctx context.Context, batchID, lineID, expenseID int64) error
	MarkLineRejected(ctx context.Context, batchID, lineID int64) error
	UpdateBatchStatus(ctx context.Context, batchID int64, status string, approvedLines int) error
}

// RuleRepository persists categorization rules.
type RuleRepository interface {
	// List returns rules by descending priority, newest first on ties.
	List(ctx context.Context, activeOnly bool) ([]models.CategorizationRule, error)
	Get(ctx context.Context, id int64) (*models.CategorizationRule, error)
	// Create assigns priority max+1 when autoPriority is set.
	Create(ctx context.Context, rule *models.CategorizationRule, autoPriority bool) (int64, error)
	Update(ctx context.Context, id int64, patch models.RulePatch) (*models.CategorizationRule, error)
	Delete(ctx context.Context, id int64) error
}

// CostLookupRepository persists the per-unit cost table.
type CostLookupRepository interface {
	List(ctx context.Context) ([]models.CostLookupRow, error)
	Upsert(ctx context.Context, row *models.CostLookupRow) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// UserRepository persists dashboard operators.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User, hashedPassword string) (int64, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, string, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// ReportRepository computes dashboard aggregates. Dates are inclusive YYYY-MM-DD; empty means open.
type ReportRepository interface {
	OrderTotals(ctx context.Context, startDate, endDate string) (models.OrderTotals, error)
	ExpenseTotals(ctx context.Context, startDate, endDate string) ([]models.CategoryTotal, error)
}

// Store is the data provider the services depend on.
type Store struct {
	Orders      OrderRepository
	Products    ProductRepository
	Expenses    ExpenseRepository
	Imports     ImportRepository
	Rules       RuleRepository
	CostLookups CostLookupRepository
	Users       UserRepository
	Reports     ReportRepository
}

// NewPostgresStore wires every repository to db.
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Orders:      NewOrderRepository(db),
		Products:    NewProductRepository(db),
		Expenses:    NewExpenseRepository(db),
		Imports:     NewImportRepository(db),
		Rules:       NewRuleRepository(db),
		CostLookups: NewCostLookupRepository(db),
		Users:       NewUserRepository(db),
		Reports:     NewReportRepository(db),
	}
}
