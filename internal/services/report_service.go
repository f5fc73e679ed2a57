package services

import (
	"context"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// ReportService builds dashboard figures.
type ReportService interface {
	// GetDashboardSummary never fails on store errors; it returns empty
	// figures with Warning set instead. Only bad input is an error.
	GetDashboardSummary(ctx context.Context, params models.ReportRequestParams) (*models.DashboardSummary, error)
}

type reportService struct {
	reports repositories.ReportRepository
}

// NewReportService creates a new instance of ReportService.
func NewReportService(reports repositories.ReportRepository) ReportService {
	return &reportService{reports: reports}
}

func emptySummary(params models.ReportRequestParams) *models.DashboardSummary {
	return &models.DashboardSummary{
		StartDate:          params.StartDate,
		EndDate:            params.EndDate,
		ExpensesByCategory: []models.CategoryTotal{},
	}
}

func (s *reportService) GetDashboardSummary(ctx context.Context, params models.ReportRequestParams) (*models.DashboardSummary, error) {
	if err := validateDateFilter(&params.StartDate, &params.EndDate); err != nil {
		return nil, err
	}

	totals, err := s.reports.OrderTotals(ctx, params.StartDate, params.EndDate)
	if err != nil {
		utils.LogError(err, "ReportService: order totals unavailable")
		summary := emptySummary(params)
		summary.Warning = "order figures are temporarily unavailable"
		return summary, nil
	}
	categories, err := s.reports.ExpenseTotals(ctx, params.StartDate, params.EndDate)
	if err != nil {
		utils.LogError(err, "ReportService: expense totals unavailable")
		summary := emptySummary(params)
		summary.Warning = "expense figures are temporarily unavailable"
		return summary, nil
	}

	expenses := decimal.Zero
	for _, c := range categories {
		expenses = expenses.Add(c.Total)
	}
	if categories == nil {
		categories = []models.CategoryTotal{}
	}

	// Shipping labels are booked as shipping expenses, so net profit only
	// subtracts the expense total.
	net := totals.Profit.Sub(expenses)
	return &models.DashboardSummary{
		StartDate:          params.StartDate,
		EndDate:            params.EndDate,
		OrderCount:         totals.OrderCount,
		Revenue:            totals.Revenue,
		ProductCost:        totals.ProductCost,
		ShippingCost:       totals.ShippingCost,
		GrossProfit:        totals.Profit,
		Expenses:           expenses,
		NetProfit:          net,
		Margin:             Margin(net, totals.Revenue),
		QtySold:            totals.QtySold,
		ExpensesByCategory: categories,
	}, nil
}
