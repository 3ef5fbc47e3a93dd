package routing

import (
	"net/url"
	"strconv"
	"strings"
)

// Webhook paths registered by the HTTP layer. Every URL handed to the
// provider carries ?tenant=<id>; the handler resolves it through the registry.
const (
	PathVoiceInbound      = "/webhooks/twilio/voice/inbound"
	PathVoiceMenu         = "/webhooks/twilio/voice/menu"
	PathVoiceAI           = "/webhooks/twilio/voice/ai"
	PathVoiceDialComplete = "/webhooks/twilio/voice/dial-complete"
	PathVoicemailDone     = "/webhooks/twilio/voice/voicemail-done"
	PathVoiceRecording    = "/webhooks/twilio/voice/recording"
	PathVoiceTranscribed  = "/webhooks/twilio/voice/transcription"
	PathVoiceStatus       = "/webhooks/twilio/voice/status"
	PathSMSInbound        = "/webhooks/twilio/sms/inbound"
)

// Query parameters carried on callback URLs.
const (
	ParamTenant    = "tenant"
	ParamAttempt   = "attempt"
	ParamTurn      = "turn"
	ParamExtension = "ext"
)

// Callbacks builds absolute provider callback URLs.
type Callbacks struct {
	BaseURL string
}

func NewCallbacks(baseURL string) Callbacks {
	return Callbacks{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c Callbacks) build(path, tenantID string, extra ...string) string {
	q := url.Values{}
	q.Set(ParamTenant, tenantID)
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			q.Set(extra[i], extra[i+1])
		}
	}
	return c.BaseURL + path + "?" + q.Encode()
}

func (c Callbacks) VoiceURL(tenantID string) string  { return c.build(PathVoiceInbound, tenantID) }
func (c Callbacks) SMSURL(tenantID string) string    { return c.build(PathSMSInbound, tenantID) }
func (c Callbacks) StatusURL(tenantID string) string { return c.build(PathVoiceStatus, tenantID) }

func (c Callbacks) Menu(tenantID string, attempt int) string {
	return c.build(PathVoiceMenu, tenantID, ParamAttempt, strconv.Itoa(attempt))
}

func (c Callbacks) AI(tenantID string, turn int) string {
	return c.build(PathVoiceAI, tenantID, ParamTurn, strconv.Itoa(turn))
}

func (c Callbacks) DialComplete(tenantID, extCode string) string {
	return c.build(PathVoiceDialComplete, tenantID, ParamExtension, extCode)
}

func (c Callbacks) VoicemailDone(tenantID string) string {
	return c.build(PathVoicemailDone, tenantID)
}

func (c Callbacks) Recording(tenantID, extCode string) string {
	return c.build(PathVoiceRecording, tenantID, ParamExtension, extCode)
}

func (c Callbacks) Transcription(tenantID, extCode string) string {
	return c.build(PathVoiceTranscribed, tenantID, ParamExtension, extCode)
}
