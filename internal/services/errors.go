package services

import (
	"errors"

	"ecom_ops_backend/internal/statement"
)

// --- Custom Service Errors ---
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotConfigured      = errors.New("integration is not configured")
	ErrUpstream           = errors.New("upstream request failed")
	ErrPersistence        = errors.New("failed to persist record")
	ErrSyncInProgress     = errors.New("a sync of this kind is already running")
	ErrNothingToApprove   = errors.New("no staged lines are eligible for approval")
	ErrBatchNotFound      = errors.New("import batch not found")
	ErrLineNotPending     = errors.New("import line not found or no longer pending")
	ErrRuleNotFound       = errors.New("categorization rule not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrExpenseNotFound    = errors.New("expense not found")
	ErrCostLookupNotFound = errors.New("cost lookup row not found")
	ErrExpenseConflict    = errors.New("an expense of this category already exists for the order")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrRegistrationClosed = errors.New("registration requires an admin")
	ErrTokenGeneration    = errors.New("failed to generate token")

	// Statement errors pass through unchanged so handlers can match either name.
	ErrMissingColumns = statement.ErrMissingColumns
	ErrNoDataRows     = statement.ErrNoDataRows
)
