package handlers

import (
	"errors"
	"io"
	"net/http"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/services"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const maxStatementSize = 10 << 20

// ImportHandler serves the statement import workflow.
type ImportHandler struct {
	importService services.ImportService
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(is services.ImportService) *ImportHandler {
	return &ImportHandler{importService: is}
}

type setLineCategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// UploadStatement stages an uploaded .csv or .xlsx statement.
func (h *ImportHandler) UploadStatement(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "No file uploaded. Send the statement in the 'file' field.", err.Error()))
		return
	}
	if fileHeader.Size > maxStatementSize {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "File is too large.", fileHeader.Size))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.LogError(err, "UploadStatement: Failed to open upload")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Could not read uploaded file.", err.Error()))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxStatementSize))
	if err != nil {
		utils.LogError(err, "UploadStatement: Failed to read upload")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Could not read uploaded file.", err.Error()))
		return
	}

	result, err := h.importService.Stage(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		respondServiceError(c, err, "stage statement")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListBatches returns every import batch without lines.
func (h *ImportHandler) ListBatches(c *gin.Context) {
	batches, err := h.importService.ListBatches(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "list import batches")
		return
	}
	if batches == nil {
		batches = []models.ExpenseImportBatch{}
	}
	c.JSON(http.StatusOK, batches)
}

// GetBatch returns one batch with its staged lines.
func (h *ImportHandler) GetBatch(c *gin.Context) {
	batchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	batch, err := h.importService.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		respondServiceError(c, err, "fetch import batch")
		return
	}
	c.JSON(http.StatusOK, batch)
}

// SetLineCategory assigns a category to a pending line.
func (h *ImportHandler) SetLineCategory(c *gin.Context) {
	batchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(c, "line_id")
	if !ok {
		return
	}
	var req setLineCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.importService.SetLineCategory(c.Request.Context(), batchID, lineID, req.Category); err != nil {
		respondServiceError(c, err, "set line category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"line_id": lineID, "category": req.Category})
}

// RejectLine marks a pending line rejected.
func (h *ImportHandler) RejectLine(c *gin.Context) {
	batchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(c, "line_id")
	if !ok {
		return
	}
	if err := h.importService.RejectLine(c.Request.Context(), batchID, lineID); err != nil {
		respondServiceError(c, err, "reject line")
		return
	}
	c.JSON(http.StatusOK, gin.H{"line_id": lineID, "status": models.LineStateRejected})
}

// Approve promotes the requested (or all eligible) lines to expenses.
func (h *ImportHandler) Approve(c *gin.Context) {
	batchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	// An empty body approves every eligible line.
	var req services.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	result, err := h.importService.Approve(c.Request.Context(), batchID, req)
	if err != nil {
		respondServiceError(c, err, "approve import")
		return
	}
	c.JSON(http.StatusOK, result)
}
