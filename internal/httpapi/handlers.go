package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"switchboard/internal/auth"
	"switchboard/internal/campaign"
	"switchboard/internal/conversation"
	"switchboard/internal/reporting"
	"switchboard/internal/tenant"
	"switchboard/internal/voicemail"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Extensions    *tenant.ExtensionService
	Voicemail     *voicemail.Service
	Conversations *conversation.Service
	Campaigns     *campaign.Dispatcher
	Reporting     *reporting.Service
	Admin         *tenant.AdminService
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func currentTenant(c *gin.Context) (tenant.Tenant, bool) {
	t, err := auth.Tenant(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant required"})
		return tenant.Tenant{}, false
	}
	return t, true
}

func listLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

// --- Extensions ---

func (h Handlers) ListExtensions(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	out, err := h.Extensions.List(c.Request.Context(), t.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"extensions": out})
}

func (h Handlers) CreateExtension(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	var req tenant.ExtensionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	e, err := h.Extensions.Create(c.Request.Context(), t.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h Handlers) GetExtension(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	e, err := h.Extensions.Get(c.Request.Context(), t.ID, c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) UpdateExtension(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	var req tenant.ExtensionPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	e, err := h.Extensions.Update(c.Request.Context(), t.ID, c.Param("code"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// DeleteExtension deactivates; the code stays reserved.
func (h Handlers) DeleteExtension(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	e, err := h.Extensions.Deactivate(c.Request.Context(), t.ID, c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// --- Voicemail ---

func (h Handlers) ListVoicemails(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	out, err := h.Voicemail.List(c.Request.Context(), t.ID, c.Query("extension"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voicemails": out})
}

func (h Handlers) GetVoicemail(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	v, err := h.Voicemail.Get(c.Request.Context(), t.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) VoicemailPlayback(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	u, err := h.Voicemail.PlaybackURL(c.Request.Context(), t.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

func (h Handlers) MarkVoicemailListened(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	if err := h.Voicemail.MarkListened(c.Request.Context(), t.ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- SMS and conversations ---

func (h Handlers) SendSMS(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	var req conversation.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	sid, err := h.Conversations.Send(c.Request.Context(), t.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message_sid": sid})
}

// Conversations are addressed by the counterpart in the path and our
// number in the "number" query parameter.
func (h Handlers) GetConversation(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	counterpart, ours, ok := conversationKey(c)
	if !ok {
		return
	}
	conv, err := h.Conversations.Get(c.Request.Context(), t.ID, counterpart, ours)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// conversationKey reads both ends of a thread. An unencoded "+" in the
// query string arrives as a leading space and is restored.
func conversationKey(c *gin.Context) (counterpart, ours string, ok bool) {
	counterpart = strings.TrimSpace(c.Param("counterpart"))
	ours = c.Query("number")
	if strings.HasPrefix(ours, " ") {
		ours = "+" + strings.TrimLeft(ours, " ")
	}
	ours = strings.TrimSpace(ours)
	if !tenant.ValidE164(counterpart) {
		badRequest(c, "counterpart must be E.164")
		return "", "", false
	}
	if !tenant.ValidE164(ours) {
		badRequest(c, "number must be E.164")
		return "", "", false
	}
	return counterpart, ours, true
}

type replyRequest struct {
	Body string `json:"body"`
}

func (h Handlers) ReplyToConversation(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	counterpart, ours, ok := conversationKey(c)
	if !ok {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	conv, err := h.Conversations.ReplyAsHuman(c.Request.Context(), t.ID, counterpart, ours, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h Handlers) ReleaseConversation(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	counterpart, ours, ok := conversationKey(c)
	if !ok {
		return
	}
	conv, err := h.Conversations.Release(c.Request.Context(), t.ID, counterpart, ours)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// --- Campaigns ---

func (h Handlers) CreateCampaign(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	var req campaign.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	out, err := h.Campaigns.Create(c.Request.Context(), t.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) ListCampaigns(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	out, err := h.Campaigns.List(c.Request.Context(), t.ID, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": out})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	out, err := h.Campaigns.Get(c.Request.Context(), t.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// DispatchCampaign releases a scheduled campaign to the queue.
func (h Handlers) DispatchCampaign(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	out, err := h.Campaigns.DispatchScheduled(c.Request.Context(), t.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, out)
}

// --- Analytics ---

// Analytics defaults to the trailing 30 days. from/to are RFC 3339.
func (h Handlers) Analytics(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	to := time.Now().UTC()
	from := to.Add(-30 * 24 * time.Hour)
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			badRequest(c, "from must be RFC 3339")
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			badRequest(c, "to must be RFC 3339")
			return
		}
	}
	out, err := h.Reporting.Analytics(c.Request.Context(), t.ID, reporting.TimeRange{From: from, To: to})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
