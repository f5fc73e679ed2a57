package handlers

import (
	"net/http"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// CostLookupHandler serves the product cost table.
type CostLookupHandler struct {
	costService services.CostLookupService
}

// NewCostLookupHandler creates a new CostLookupHandler.
func NewCostLookupHandler(cs services.CostLookupService) *CostLookupHandler {
	return &CostLookupHandler{costService: cs}
}

func (h *CostLookupHandler) ListCostLookups(c *gin.Context) {
	rows, err := h.costService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "list cost lookups")
		return
	}
	if rows == nil {
		rows = []models.CostLookupRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// UpsertCostLookup creates the row or replaces the one with the same name and strength.
func (h *CostLookupHandler) UpsertCostLookup(c *gin.Context) {
	var req services.CostLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	row, err := h.costService.Upsert(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "save cost lookup")
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *CostLookupHandler) DeleteCostLookup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.costService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete cost lookup")
		return
	}
	c.Status(http.StatusNoContent)
}
