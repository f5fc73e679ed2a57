package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	APIKeyHeader = "x-api-key"
	APIKeyQuery  = "api_key"

	ContextUserID   = "userID"
	ContextUsername = "username"
	ContextUserRole = "userRole"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *utils.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextUserRole, claims.Role)
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", nil))
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid authorization header format. Use Bearer <token>", nil))
			return
		}

		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the caller's claims when a valid token is
// present and lets anonymous requests through untouched.
func OptionalAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			claims, err := utils.ValidateToken(secret, tokenString)
			if err != nil {
				utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
				return
			}
			setClaims(c, claims)
		}
		c.Next()
	}
}

// RoleAuthMiddleware creates a Gin middleware for role-based authorization.
// It checks if the user role (from JWT claims) is one of the allowed roles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString(ContextUserRole)
		if roleStr == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "User role not found in token claims", nil))
			return
		}

		for _, r := range allowedRoles {
			if strings.EqualFold(roleStr, r) {
				c.Next()
				return
			}
		}
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			"You do not have permission to access this resource. Required roles: "+strings.Join(allowedRoles, ", "), nil))
	}
}

// APIKeyOptions configures APIKeyMiddleware.
type APIKeyOptions struct {
	// Key is the shared automation secret. Empty means no key is configured.
	Key string
	// Insecure lets requests through when Key is empty. Ignored otherwise.
	Insecure bool
	// JWTSecret, when set, also admits requests carrying a valid operator token.
	JWTSecret []byte
}

// APIKeyMiddleware guards automation endpoints with the shared secret from the
// x-api-key header or the api_key query parameter. Without a configured key
// every request is refused unless Insecure is set.
func APIKeyMiddleware(opts APIKeyOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Key == "" && opts.Insecure {
			c.Next()
			return
		}

		if len(opts.JWTSecret) > 0 {
			if tokenString, ok := bearerToken(c); ok {
				if claims, err := utils.ValidateToken(opts.JWTSecret, tokenString); err == nil {
					setClaims(c, claims)
					c.Next()
					return
				}
			}
		}

		if opts.Key == "" {
			utils.LogWarn("Automation request refused: no API key configured", map[string]interface{}{"path": c.FullPath()})
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Automation API key is not configured", nil))
			return
		}

		provided := c.GetHeader(APIKeyHeader)
		if provided == "" {
			provided = c.Query(APIKeyQuery)
		}
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(opts.Key)) != 1 {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or missing API key", nil))
			return
		}
		c.Next()
	}
}
