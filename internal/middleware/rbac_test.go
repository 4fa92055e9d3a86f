package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

func rbacRequest(t *testing.T, claims *models.JWTClaims, target string, allowed ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	})
	r.PUT("/users/:username", RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req, _ := http.NewRequest(http.MethodPut, "/users/"+target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "a1", Username: "admin", Role: models.RoleAdmin}
	w := rbacRequest(t, claims, "tgrade", string(models.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRBACDeniesUnlistedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u2", Username: "tgrade", Role: models.RoleTA}
	w := rbacRequest(t, claims, "iteach", string(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesUsernameParam(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u2", Username: "tgrade", Role: models.RoleTA}

	w := rbacRequest(t, claims, "tgrade", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = rbacRequest(t, claims, "iteach", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRequiresClaims(t *testing.T) {
	w := rbacRequest(t, nil, "tgrade", string(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
