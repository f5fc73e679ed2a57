package handlers

import (
	"net/http"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// ReportHandler serves the dashboard figures.
type ReportHandler struct {
	reportService services.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(rs services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: rs}
}

// GetDashboardSummary answers 200 even when the store fails; the body then
// carries empty figures and a warning.
func (h *ReportHandler) GetDashboardSummary(c *gin.Context) {
	var params models.ReportRequestParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBindError(c, err)
		return
	}

	summary, err := h.reportService.GetDashboardSummary(c.Request.Context(), params)
	if err != nil {
		respondServiceError(c, err, "build dashboard summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}
