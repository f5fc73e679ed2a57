package handlers

import (
	"errors"
	"net/http"

	"ecom_ops_backend/internal/middleware"
	"ecom_ops_backend/internal/services"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// actorFromContext returns the authenticated caller, or nil for anonymous requests.
func actorFromContext(c *gin.Context) *services.Actor {
	raw, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return nil
	}
	userID, ok := raw.(int64)
	if !ok {
		return nil
	}
	return &services.Actor{UserID: userID, Role: c.GetString(middleware.ContextUserRole)}
}

// RegisterUser handles operator registration.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req services.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "RegisterUser: Failed to bind JSON")
		respondBindError(c, err)
		return
	}

	user, err := h.authService.RegisterUser(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "register user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// LoginUser handles operator login.
func (h *AuthHandler) LoginUser(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "LoginUser: Failed to bind JSON")
		respondBindError(c, err)
		return
	}

	authResp, err := h.authService.LoginUser(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, authResp)
}

// GetCurrentUser retrieves the profile of the currently authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		utils.LogError(errors.New("userID not found in context"), "GetCurrentUser: userID not in context")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated.", "Missing user ID in context"))
		return
	}

	user, err := h.authService.GetUserProfile(c.Request.Context(), actor.UserID)
	if err != nil {
		respondServiceError(c, err, "retrieve user profile")
		return
	}
	c.JSON(http.StatusOK, user)
}
