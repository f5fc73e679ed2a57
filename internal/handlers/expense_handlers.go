package handlers

import (
	"net/http"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// ExpenseHandler serves the expense ledger.
type ExpenseHandler struct {
	expenseService services.ExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(es services.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: es}
}

// GetExpenses handles fetching expenses with filters.
func (h *ExpenseHandler) GetExpenses(c *gin.Context) {
	var filters models.ExpenseFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, err)
		return
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 50
	}

	expenses, totalCount, err := h.expenseService.List(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "fetch expenses")
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      expenses,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// CreateExpense records a manual expense.
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	var req services.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	expense, err := h.expenseService.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "create expense")
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.expenseService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete expense")
		return
	}
	c.Status(http.StatusNoContent)
}
