package httpapi

import (
	"net/http"

	"switchboard/internal/auth"
	"switchboard/internal/tenant"

	"github.com/gin-gonic/gin"
)

// CreateTenant returns the raw API key once; it is never retrievable again.
func (h Handlers) CreateTenant(c *gin.Context) {
	var req tenant.CreateTenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	t, key, err := h.Admin.CreateTenant(ctx, auth.Actor(ctx), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenant": t, "api_key": key})
}

func (h Handlers) SuspendTenant(c *gin.Context)  { h.setTenantStatus(c, tenant.StatusSuspended) }
func (h Handlers) ActivateTenant(c *gin.Context) { h.setTenantStatus(c, tenant.StatusActive) }
func (h Handlers) CancelTenant(c *gin.Context)   { h.setTenantStatus(c, tenant.StatusCancelled) }

func (h Handlers) setTenantStatus(c *gin.Context, status tenant.Status) {
	ctx := c.Request.Context()
	t, err := h.Admin.SetStatus(ctx, auth.Actor(ctx), c.Param("tenant_id"), status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) RotateAPIKey(c *gin.Context) {
	ctx := c.Request.Context()
	key, err := h.Admin.RotateAPIKey(ctx, auth.Actor(ctx), c.Param("tenant_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_key": key})
}

func (h Handlers) ProvisionNumber(c *gin.Context) {
	var req tenant.ProvisionNumberInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	n, err := h.Admin.ProvisionNumber(ctx, auth.Actor(ctx), c.Param("tenant_id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h Handlers) ReleaseNumber(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := h.Admin.ReleaseNumber(ctx, auth.Actor(ctx), c.Param("tenant_id"), c.Param("number_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
