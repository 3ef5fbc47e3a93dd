package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"switchboard/internal/tenant"
	"switchboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	apiKeyHeader        = "X-API-Key"
)

// RequireOperatorToken verifies an operator access token and injects the
// identity into the request context. Role checks belong to internal/rbac.
func RequireOperatorToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithOperator(c.Request.Context(), claims.OperatorID, claims.Role)
		ctx = WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		logger.Set(c, logger.FromGin(c).With("operator_id", claims.OperatorID))
		c.Next()
	}
}

type APIKeyResolver interface {
	ResolveByAPIKey(ctx context.Context, key string) (tenant.Tenant, error)
}

// RequireTenantAPIKey resolves the calling tenant from X-API-Key. Unknown
// keys get 401 and suspended or cancelled tenants get 403, so a caller can
// tell a wrong key from a disabled account.
func RequireTenantAPIKey(r APIKeyResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := r.ResolveByAPIKey(c.Request.Context(), c.GetHeader(apiKeyHeader))
		switch {
		case errors.Is(err, tenant.ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		case errors.Is(err, tenant.ErrTenantInactive):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tenant is not active"})
			return
		case err != nil:
			logger.FromGin(c).Error("api key resolution failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		ctx := WithTenant(c.Request.Context(), t)
		ctx = WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		logger.Set(c, logger.FromGin(c).With("tenant_id", t.ID))
		c.Next()
	}
}
