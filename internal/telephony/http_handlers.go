package telephony

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"switchboard/internal/conversation"
	"switchboard/internal/routing"
	"switchboard/internal/tenant"
	"switchboard/internal/voicemail"
	"switchboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler turns Twilio webhooks into routing/voicemail/SMS calls and
// writes TwiML. The tenant comes from the ?tenant= query parameter set when
// the number was provisioned; it is resolved before anything else runs.
//
// A voice webhook always gets a valid TwiML document back, even on error.

type TenantResolver interface {
	ResolveByID(ctx context.Context, tenantID string) (tenant.Tenant, error)
	OwnedNumber(ctx context.Context, tenantID, e164 string) (tenant.PhoneNumber, error)
}

// CallFlow is implemented by routing.Engine.
type CallFlow interface {
	Inbound(ctx context.Context, c routing.Call) (routing.Plan, error)
	MenuInput(ctx context.Context, c routing.Call, digits string, attempt int) (routing.Plan, error)
	Speech(ctx context.Context, c routing.Call, transcript string, turn int) (routing.Plan, error)
	DialOutcome(ctx context.Context, c routing.Call, extCode, dialStatus string) (routing.Plan, error)
	VoicemailDone(ctx context.Context, c routing.Call) routing.Plan
	CallStatus(ctx context.Context, tenantID, callSid, status string, durationSeconds int) error
}

type VoicemailRecorder interface {
	RecordingCompleted(ctx context.Context, tenantID string, ev voicemail.RecordingEvent) (voicemail.Voicemail, error)
	TranscriptionCompleted(ctx context.Context, tenantID string, ev voicemail.TranscriptionEvent) error
}

type SMSResponder interface {
	HandleInbound(ctx context.Context, t tenant.Tenant, in conversation.InboundSMS) (conversation.Reply, error)
}

type WebhookHandler struct {
	Tenants   TenantResolver
	Calls     CallFlow
	Voicemail VoicemailRecorder
	SMS       SMSResponder
}

// resolve loads the active tenant named on the callback URL and scopes the
// request logger to it.
func (h WebhookHandler) resolve(c *gin.Context) (tenant.Tenant, bool) {
	id := c.Query(routing.ParamTenant)
	t, err := h.Tenants.ResolveByID(c.Request.Context(), id)
	if err != nil {
		log := logger.FromGin(c)
		if errors.Is(err, tenant.ErrUnauthorized) || errors.Is(err, tenant.ErrTenantInactive) {
			log.Warn("webhook for unknown or inactive tenant", "tenant_param", id, "err", err)
		} else {
			log.Error("tenant resolution failed", "tenant_param", id, "err", err)
		}
		return tenant.Tenant{}, false
	}
	logger.Set(c, logger.FromGin(c).With("tenant_id", t.ID))
	return t, true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func writeXML(c *gin.Context, body string) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, body)
}

func (h WebhookHandler) writePlan(c *gin.Context, p routing.Plan, err error) {
	log := logger.FromGin(c)
	if err != nil {
		log.Error("call flow failed", "err", err)
		writeXML(c, RenderApology())
		return
	}
	out, err := RenderPlan(p)
	if err != nil {
		log.Error("twiml render failed", "state", p.State, "err", err)
		writeXML(c, RenderApology())
		return
	}
	writeXML(c, out)
}

func call(t tenant.Tenant, v VoiceForm) routing.Call {
	return routing.Call{Tenant: t, CallSid: v.CallSid, From: v.From, To: v.To}
}

func (h WebhookHandler) VoiceInbound(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		writeXML(c, RenderReject())
		return
	}
	form, err := ParseVoice(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("malformed voice webhook", "err", err)
		writeXML(c, RenderApology())
		return
	}
	p, err := h.Calls.Inbound(c.Request.Context(), call(t, form))
	h.writePlan(c, p, err)
}

func (h WebhookHandler) VoiceMenu(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		writeXML(c, RenderReject())
		return
	}
	form, err := ParseMenu(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("malformed menu webhook", "err", err)
		writeXML(c, RenderApology())
		return
	}
	p, err := h.Calls.MenuInput(c.Request.Context(), call(t, form.VoiceForm), form.Digits, queryInt(c, routing.ParamAttempt))
	h.writePlan(c, p, err)
}

func (h WebhookHandler) VoiceAI(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		writeXML(c, RenderReject())
		return
	}
	form, err := ParseSpeech(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("malformed speech webhook", "err", err)
		writeXML(c, RenderApology())
		return
	}
	p, err := h.Calls.Speech(c.Request.Context(), call(t, form.VoiceForm), form.SpeechResult, queryInt(c, routing.ParamTurn))
	h.writePlan(c, p, err)
}

func (h WebhookHandler) VoiceDialComplete(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		writeXML(c, RenderReject())
		return
	}
	form, err := ParseDial(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("malformed dial webhook", "err", err)
		writeXML(c, RenderApology())
		return
	}
	p, err := h.Calls.DialOutcome(c.Request.Context(), call(t, form.VoiceForm), c.Query(routing.ParamExtension), form.DialCallStatus)
	h.writePlan(c, p, err)
}

func (h WebhookHandler) VoicemailDone(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		writeXML(c, RenderReject())
		return
	}
	form, err := ParseVoice(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("malformed voicemail webhook", "err", err)
		writeXML(c, RenderApology())
		return
	}
	h.writePlan(c, h.Calls.VoicemailDone(c.Request.Context(), call(t, form)), nil)
}

// VoiceRecording is the asynchronous recording status callback.
func (h WebhookHandler) VoiceRecording(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	form, err := ParseRecording(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.RecordingStatus != "" && form.RecordingStatus != "completed" {
		c.Status(http.StatusNoContent)
		return
	}
	_, err = h.Voicemail.RecordingCompleted(c.Request.Context(), t.ID, voicemail.RecordingEvent{
		CallSid:         form.CallSid,
		RecordingSid:    form.RecordingSid,
		RecordingURL:    form.RecordingURL,
		DurationSeconds: form.RecordingDuration,
		ExtensionCode:   c.Query(routing.ParamExtension),
	})
	if err != nil {
		// 5xx makes Twilio retry the callback; the insert is idempotent.
		logger.FromGin(c).Error("voicemail ingestion failed", "recording_sid", form.RecordingSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h WebhookHandler) VoiceTranscription(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	form, err := ParseTranscription(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	err = h.Voicemail.TranscriptionCompleted(c.Request.Context(), t.ID, voicemail.TranscriptionEvent{
		RecordingSid: form.RecordingSid,
		Text:         form.TranscriptionText,
		Status:       form.TranscriptionStatus,
	})
	switch {
	case errors.Is(err, voicemail.ErrNotFound):
		logger.FromGin(c).Warn("transcription for unknown recording", "recording_sid", form.RecordingSid)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case err != nil:
		logger.FromGin(c).Error("transcription update failed", "recording_sid", form.RecordingSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
	default:
		c.Status(http.StatusNoContent)
	}
}

// VoiceStatus performs the single terminal write for a call.
func (h WebhookHandler) VoiceStatus(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	form, err := ParseStatus(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if err := h.Calls.CallStatus(c.Request.Context(), t.ID, form.CallSid, form.CallStatus, form.CallDuration); err != nil {
		logger.FromGin(c).Error("call status update failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h WebhookHandler) SMSInbound(c *gin.Context) {
	t, ok := h.resolve(c)
	if !ok {
		out, _ := RenderMessage("")
		writeXML(c, out)
		return
	}
	form, err := ParseSMS(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("malformed sms webhook", "err", err)
		out, _ := RenderMessage("")
		writeXML(c, out)
		return
	}
	// A message to a number the tenant no longer holds is dropped unanswered.
	if _, err := h.Tenants.OwnedNumber(c.Request.Context(), t.ID, form.To); err != nil {
		log := logger.FromGin(c)
		if errors.Is(err, tenant.ErrNumberNotOwned) {
			log.Warn("sms to number not owned by tenant", "to", form.To, "message_sid", form.MessageSid)
		} else {
			log.Error("number ownership check failed", "to", form.To, "message_sid", form.MessageSid, "err", err)
		}
		out, _ := RenderMessage("")
		writeXML(c, out)
		return
	}
	reply, err := h.SMS.HandleInbound(c.Request.Context(), t, conversation.InboundSMS{
		MessageSid: form.MessageSid,
		From:       form.From,
		To:         form.To,
		Body:       form.Body,
	})
	if err != nil {
		// reply still holds whatever the responder cleared for sending.
		logger.FromGin(c).Error("inbound sms failed", "message_sid", form.MessageSid, "reply_kind", reply.Kind, "err", err)
	}
	out, err := RenderMessage(reply.Body)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		out, _ = RenderMessage("")
	}
	writeXML(c, out)
}
