package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"ecom_ops_backend/internal/services"
	"ecom_ops_backend/internal/statement"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service errors onto the API error envelope.
// action names the failed operation in the log line and generic messages.
func respondServiceError(c *gin.Context, err error, action string) {
	var columns *statement.ColumnDetectionError

	switch {
	case errors.As(err, &columns):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeMissingColumns, columns.Error(),
			gin.H{"missing": columns.Missing, "headers": columns.Headers}))
		return
	case errors.Is(err, services.ErrMissingColumns):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeMissingColumns, err.Error(), nil))
		return
	case errors.Is(err, services.ErrNoDataRows):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "No data rows found in file.", err.Error()))
		return
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), nil))
		return
	case errors.Is(err, services.ErrNothingToApprove):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeNothingToApprove, err.Error(), nil))
		return
	case errors.Is(err, services.ErrBatchNotFound),
		errors.Is(err, services.ErrLineNotPending),
		errors.Is(err, services.ErrRuleNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrExpenseNotFound),
		errors.Is(err, services.ErrCostLookupNotFound),
		errors.Is(err, services.ErrUserNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), nil))
		return
	case errors.Is(err, services.ErrExpenseConflict),
		errors.Is(err, services.ErrUsernameExists),
		errors.Is(err, services.ErrEmailExists):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), nil))
		return
	case errors.Is(err, services.ErrSyncInProgress):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeSyncInProgress, err.Error(), nil))
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid username or password.", nil))
		return
	case errors.Is(err, services.ErrRegistrationClosed):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, err.Error(), nil))
		return
	}

	utils.LogError(err, action)
	switch {
	case errors.Is(err, services.ErrNotConfigured), errors.Is(err, services.ErrUpstream):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeUpstreamError, "Failed to "+action+".", err.Error()))
	case errors.Is(err, services.ErrPersistence):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodePersistenceError, "Failed to "+action+".", err.Error()))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to "+action+".", "Internal error"))
	}
}

func respondBindError(c *gin.Context, err error) {
	utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format.", c.Param(name)))
		return 0, false
	}
	return id, true
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format.", name+" must be a non-negative integer"))
		return 0, false
	}
	return n, true
}
