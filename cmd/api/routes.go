package main

import (
	"context"
	"net/http"

	"switchboard/internal/httpapi"
	"switchboard/internal/rbac"
	"switchboard/internal/routing"
	"switchboard/internal/telephony"
	"switchboard/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	webhooks telephony.WebhookHandler
	api      httpapi.Handlers

	// signature is nil when webhook signature validation is disabled.
	signature gin.HandlerFunc
	tenantMW  gin.HandlerFunc
	adminMW   gin.HandlerFunc

	ready func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.Use(metrics.Middleware())

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := d.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	// Provider webhooks. The tenant is resolved from ?tenant= on each URL.
	hooks := r.Group("")
	if d.signature != nil {
		hooks.Use(d.signature)
	}
	{
		w := d.webhooks
		hooks.POST(routing.PathVoiceInbound, w.VoiceInbound)
		hooks.POST(routing.PathVoiceMenu, w.VoiceMenu)
		hooks.POST(routing.PathVoiceAI, w.VoiceAI)
		hooks.POST(routing.PathVoiceDialComplete, w.VoiceDialComplete)
		hooks.POST(routing.PathVoicemailDone, w.VoicemailDone)
		hooks.POST(routing.PathVoiceRecording, w.VoiceRecording)
		hooks.POST(routing.PathVoiceTranscribed, w.VoiceTranscription)
		hooks.POST(routing.PathVoiceStatus, w.VoiceStatus)
		hooks.POST(routing.PathSMSInbound, w.SMSInbound)
	}

	// Tenant API, authenticated by X-API-Key.
	v1 := r.Group("/v1")
	v1.Use(d.tenantMW, rbac.RequireTenant())
	{
		h := d.api

		ext := v1.Group("/extensions")
		ext.GET("", h.ListExtensions)
		ext.POST("", h.CreateExtension)
		ext.GET("/:code", h.GetExtension)
		ext.PATCH("/:code", h.UpdateExtension)
		ext.DELETE("/:code", h.DeleteExtension)

		vm := v1.Group("/voicemails")
		vm.GET("", h.ListVoicemails)
		vm.GET("/:id", h.GetVoicemail)
		vm.GET("/:id/playback", h.VoicemailPlayback)
		vm.POST("/:id/listened", h.MarkVoicemailListened)

		v1.POST("/sms", h.SendSMS)

		conv := v1.Group("/conversations")
		conv.GET("/:counterpart", h.GetConversation)
		conv.POST("/:counterpart/reply", h.ReplyToConversation)
		conv.POST("/:counterpart/release", h.ReleaseConversation)

		camp := v1.Group("/campaigns")
		camp.GET("", h.ListCampaigns)
		camp.POST("", h.CreateCampaign)
		camp.GET("/:id", h.GetCampaign)
		camp.POST("/:id/dispatch", h.DispatchCampaign)

		v1.GET("/analytics", h.Analytics)
	}

	// Operator API. Support staff may not mutate tenants.
	admin := r.Group("/admin")
	admin.Use(d.adminMW, rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleSuperAdmin))
	{
		h := d.api
		admin.POST("/tenants", h.CreateTenant)
		admin.POST("/tenants/:tenant_id/suspend", h.SuspendTenant)
		admin.POST("/tenants/:tenant_id/activate", h.ActivateTenant)
		admin.POST("/tenants/:tenant_id/cancel", h.CancelTenant)
		admin.POST("/tenants/:tenant_id/rotate-key", h.RotateAPIKey)
		admin.POST("/tenants/:tenant_id/numbers", h.ProvisionNumber)
		admin.DELETE("/tenants/:tenant_id/numbers/:number_id", h.ReleaseNumber)
	}
}
