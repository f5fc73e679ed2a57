package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// CreateExpenseRequest DTO
type CreateExpenseRequest struct {
	ExpenseDate string          `json:"expense_date"`
	Category    string          `json:"category"`
	Description string          `json:"description" binding:"required"`
	Vendor      string          `json:"vendor"`
	Amount      decimal.Decimal `json:"amount"`
	OrderNumber string          `json:"order_number"`
}

// ExpenseService handles manually recorded expenses and listings.
type ExpenseService interface {
	List(ctx context.Context, filters models.ExpenseFilters) ([]models.Expense, int, error)
	Create(ctx context.Context, req CreateExpenseRequest) (*models.Expense, error)
	Delete(ctx context.Context, id int64) error
}

type expenseService struct {
	expenses repositories.ExpenseRepository
	clock    utils.Clock
}

// NewExpenseService creates a new instance of ExpenseService.
func NewExpenseService(expenses repositories.ExpenseRepository, clock utils.Clock) ExpenseService {
	if clock == nil {
		clock = utils.NewZoneClock(nil)
	}
	return &expenseService{expenses: expenses, clock: clock}
}

func (s *expenseService) List(ctx context.Context, filters models.ExpenseFilters) ([]models.Expense, int, error) {
	if err := validateDateFilter(filters.StartDate, filters.EndDate); err != nil {
		return nil, 0, err
	}
	expenses, total, err := s.expenses.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, total, nil
}

func (s *expenseService) Create(ctx context.Context, req CreateExpenseRequest) (*models.Expense, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	}
	date := strings.TrimSpace(req.ExpenseDate)
	if date == "" {
		date = s.clock.Today()
	} else if _, err := time.Parse(utils.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: expense_date must be YYYY-MM-DD", ErrValidation)
	}

	expense := &models.Expense{
		ExpenseDate: date,
		Category:    models.NormalizeCategory(req.Category),
		Description: strings.TrimSpace(req.Description),
		Vendor:      strings.TrimSpace(req.Vendor),
		Amount:      utils.RoundCents(req.Amount),
		Source:      models.ExpenseSourceManual,
		OrderNumber: utils.NewNullString(req.OrderNumber),
	}
	if expense.OrderNumber != nil {
		normalized := NormalizeOrderNumber(*expense.OrderNumber)
		expense.OrderNumber = &normalized
	}

	id, err := s.expenses.Create(ctx, expense)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrExpenseConflict
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	expense.ID = id
	metrics.RecordExpenseWrite(models.ExpenseSourceManual, "created")
	return expense, nil
}

func (s *expenseService) Delete(ctx context.Context, id int64) error {
	if err := s.expenses.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrExpenseNotFound
		}
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}
