package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusops/ta-scheduler-api/internal/authz"
	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/service"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
	"github.com/campusops/ta-scheduler-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// Principal builds the permission-engine principal from the request claims.
// The bool is false when the route is not JWT-protected.
func Principal(c *gin.Context) (authz.Principal, bool) {
	claimsValue, exists := c.Get(ContextUserKey)
	if !exists {
		return authz.Principal{}, false
	}
	claims, ok := claimsValue.(*models.JWTClaims)
	if !ok {
		return authz.Principal{}, false
	}
	return authz.Principal{ID: claims.UserID, Username: claims.Username, Role: claims.Role}, true
}
