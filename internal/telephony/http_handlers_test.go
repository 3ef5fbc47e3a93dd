package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"switchboard/internal/compliance"
	"switchboard/internal/conversation"
	"switchboard/internal/routing"
	"switchboard/internal/tenant"
	"switchboard/internal/voicemail"

	"github.com/gin-gonic/gin"
)

type fakeFlow struct {
	calls    []routing.Call
	attempt  int
	ext      string
	status   string
	err      error
	finished []string
}

func (f *fakeFlow) Inbound(ctx context.Context, c routing.Call) (routing.Plan, error) {
	f.calls = append(f.calls, c)
	if f.err != nil {
		return routing.Plan{}, f.err
	}
	return routing.Plan{State: routing.StateMainMenu, Steps: []routing.Step{
		routing.GatherDigits{Prompt: "Welcome.", NumDigits: 3, Action: "https://x/menu"},
	}}, nil
}

func (f *fakeFlow) MenuInput(ctx context.Context, c routing.Call, digits string, attempt int) (routing.Plan, error) {
	f.attempt = attempt
	return routing.Plan{State: routing.StateMainMenu, Steps: []routing.Step{routing.Hangup{}}}, nil
}

func (f *fakeFlow) Speech(ctx context.Context, c routing.Call, transcript string, turn int) (routing.Plan, error) {
	return routing.Plan{Steps: []routing.Step{routing.Hangup{}}}, nil
}

func (f *fakeFlow) DialOutcome(ctx context.Context, c routing.Call, extCode, dialStatus string) (routing.Plan, error) {
	f.ext, f.status = extCode, dialStatus
	return routing.Plan{Steps: []routing.Step{routing.Hangup{}}}, nil
}

func (f *fakeFlow) VoicemailDone(ctx context.Context, c routing.Call) routing.Plan {
	return routing.Plan{Steps: []routing.Step{routing.Hangup{}}}
}

func (f *fakeFlow) CallStatus(ctx context.Context, tenantID, callSid, status string, durationSeconds int) error {
	f.finished = append(f.finished, tenantID+"/"+callSid+"/"+status)
	return nil
}

type fakeRecorder struct {
	events []voicemail.RecordingEvent
}

func (f *fakeRecorder) RecordingCompleted(ctx context.Context, tenantID string, ev voicemail.RecordingEvent) (voicemail.Voicemail, error) {
	f.events = append(f.events, ev)
	return voicemail.Voicemail{}, nil
}

func (f *fakeRecorder) TranscriptionCompleted(ctx context.Context, tenantID string, ev voicemail.TranscriptionEvent) error {
	return voicemail.ErrNotFound
}

type fakeSMS struct {
	reply conversation.Reply
	err   error
	got   []conversation.InboundSMS
}

func (f *fakeSMS) HandleInbound(ctx context.Context, t tenant.Tenant, in conversation.InboundSMS) (conversation.Reply, error) {
	f.got = append(f.got, in)
	return f.reply, f.err
}

// newTestRegistry holds active tenant t1, which owns +18005550100, and
// suspended tenant t2.
func newTestRegistry(t *testing.T) *tenant.Registry {
	t.Helper()
	ctx := context.Background()
	repo := tenant.NewMemoryRepo()
	if err := repo.InsertTenant(ctx, tenant.Tenant{ID: "t1", Status: tenant.StatusActive}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.InsertTenant(ctx, tenant.Tenant{ID: "t2", Status: tenant.StatusSuspended}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.InsertNumber(ctx, tenant.PhoneNumber{ID: "n1", TenantID: "t1", E164: "+18005550100", Kind: tenant.NumberKindTollFree, Active: true}); err != nil {
		t.Fatalf("insert number: %v", err)
	}
	return tenant.NewRegistry(repo, "")
}

func newWebhookRouter(t *testing.T) (*gin.Engine, *fakeFlow, *fakeRecorder, *fakeSMS) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	flow, rec, sms := &fakeFlow{}, &fakeRecorder{}, &fakeSMS{}
	h := WebhookHandler{Tenants: newTestRegistry(t), Calls: flow, Voicemail: rec, SMS: sms}

	r := gin.New()
	r.POST(routing.PathVoiceInbound, h.VoiceInbound)
	r.POST(routing.PathVoiceMenu, h.VoiceMenu)
	r.POST(routing.PathVoiceDialComplete, h.VoiceDialComplete)
	r.POST(routing.PathVoiceRecording, h.VoiceRecording)
	r.POST(routing.PathVoiceTranscribed, h.VoiceTranscription)
	r.POST(routing.PathVoiceStatus, h.VoiceStatus)
	r.POST(routing.PathSMSInbound, h.SMSInbound)
	return r, flow, rec, sms
}

func post(r *gin.Engine, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const voiceBody = "CallSid=CA1&From=%2B14155550123&To=%2B18005550100&CallStatus=ringing"

func TestVoiceInbound_RendersPlan(t *testing.T) {
	r, flow, _, _ := newWebhookRouter(t)
	w := post(r, routing.PathVoiceInbound+"?tenant=t1", voiceBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(w.Body.String(), "<Gather") {
		t.Fatalf("expected gather, got %s", w.Body.String())
	}
	if len(flow.calls) != 1 || flow.calls[0].Tenant.ID != "t1" || flow.calls[0].To != "+18005550100" {
		t.Fatalf("unexpected calls %+v", flow.calls)
	}
}

func TestVoiceInbound_UnknownOrSuspendedTenantIsRejected(t *testing.T) {
	r, flow, _, _ := newWebhookRouter(t)
	for _, q := range []string{"?tenant=nope", "?tenant=t2", ""} {
		w := post(r, routing.PathVoiceInbound+q, voiceBody)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Reject") {
			t.Fatalf("%s: expected reject twiml, got %d %s", q, w.Code, w.Body.String())
		}
	}
	if len(flow.calls) != 0 {
		t.Fatalf("flow must not run for rejected tenants")
	}
}

func TestVoiceInbound_FlowErrorApologizes(t *testing.T) {
	r, flow, _, _ := newWebhookRouter(t)
	flow.err = errors.New("db down")
	w := post(r, routing.PathVoiceInbound+"?tenant=t1", voiceBody)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Say") {
		t.Fatalf("expected apology twiml, got %d %s", w.Code, w.Body.String())
	}
}

func TestVoiceMenuAndDial_ReadCallbackParams(t *testing.T) {
	r, flow, _, _ := newWebhookRouter(t)
	post(r, routing.PathVoiceMenu+"?tenant=t1&attempt=2", voiceBody+"&Digits=9")
	if flow.attempt != 2 {
		t.Fatalf("attempt=%d", flow.attempt)
	}
	post(r, routing.PathVoiceDialComplete+"?tenant=t1&ext=101", voiceBody+"&DialCallStatus=no-answer")
	if flow.ext != "101" || flow.status != "no-answer" {
		t.Fatalf("ext=%q status=%q", flow.ext, flow.status)
	}
}

func TestVoiceRecording_OnlyCompleted(t *testing.T) {
	r, _, rec, _ := newWebhookRouter(t)
	body := "CallSid=CA1&RecordingSid=RE1&RecordingUrl=https%3A%2F%2Fapi.twilio.com%2Frec%2FRE1&RecordingDuration=7"

	w := post(r, routing.PathVoiceRecording+"?tenant=t1&ext=101", body+"&RecordingStatus=in-progress")
	if w.Code != http.StatusNoContent || len(rec.events) != 0 {
		t.Fatalf("in-progress should be ignored: %d %d", w.Code, len(rec.events))
	}
	w = post(r, routing.PathVoiceRecording+"?tenant=t1&ext=101", body+"&RecordingStatus=completed")
	if w.Code != http.StatusNoContent || len(rec.events) != 1 {
		t.Fatalf("expected one event: %d %d", w.Code, len(rec.events))
	}
	if rec.events[0].ExtensionCode != "101" || rec.events[0].DurationSeconds != 7 {
		t.Fatalf("unexpected event %+v", rec.events[0])
	}

	w = post(r, routing.PathVoiceRecording+"?tenant=t2", body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestVoiceTranscription_UnknownRecording(t *testing.T) {
	r, _, _, _ := newWebhookRouter(t)
	w := post(r, routing.PathVoiceTranscribed+"?tenant=t1", "RecordingSid=RE9&TranscriptionText=hi&TranscriptionStatus=completed")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestVoiceStatus_TerminalWrite(t *testing.T) {
	r, flow, _, _ := newWebhookRouter(t)
	w := post(r, routing.PathVoiceStatus+"?tenant=t1", "CallSid=CA1&CallStatus=completed&CallDuration=42")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if len(flow.finished) != 1 || flow.finished[0] != "t1/CA1/completed" {
		t.Fatalf("unexpected %+v", flow.finished)
	}
}

func TestSMSInbound(t *testing.T) {
	r, _, _, sms := newWebhookRouter(t)
	sms.reply = conversation.Reply{Body: "We open at 9am.", Kind: conversation.ReplyAutomated}

	w := post(r, routing.PathSMSInbound+"?tenant=t1", "MessageSid=SM1&From=%2B14155550123&To=%2B18005550100&Body=hours%3F")
	if !strings.Contains(w.Body.String(), "<Message>We open at 9am.</Message>") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if len(sms.got) != 1 || sms.got[0].Body != "hours?" {
		t.Fatalf("unexpected inbound %+v", sms.got)
	}

	sms.reply = conversation.Reply{Kind: conversation.ReplyNone}
	w = post(r, routing.PathSMSInbound+"?tenant=t1", "MessageSid=SM2&From=%2B14155550123&To=%2B18005550100&Body=hi")
	if strings.Contains(w.Body.String(), "<Message") {
		t.Fatalf("expected empty response, got %s", w.Body.String())
	}

	w = post(r, routing.PathSMSInbound+"?tenant=t2", "MessageSid=SM3&From=%2B14155550123&To=%2B18005550100&Body=hi")
	if strings.Contains(w.Body.String(), "<Message") || len(sms.got) != 2 {
		t.Fatalf("suspended tenant must not reach the responder")
	}
}

func TestSMSInbound_NumberNotOwnedIsDropped(t *testing.T) {
	r, _, _, sms := newWebhookRouter(t)
	sms.reply = conversation.Reply{Body: "We open at 9am.", Kind: conversation.ReplyAutomated}

	w := post(r, routing.PathSMSInbound+"?tenant=t1", "MessageSid=SM1&From=%2B14155550123&To=%2B18005550199&Body=hours%3F")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<Message") {
		t.Fatalf("expected empty response, got %s", w.Body.String())
	}
	if len(sms.got) != 0 {
		t.Fatalf("responder reached for unowned number: %+v", sms.got)
	}
}

func TestSMSInbound_ErrorSendsOnlyClearedReply(t *testing.T) {
	r, _, _, sms := newWebhookRouter(t)
	sms.reply = conversation.Reply{Kind: conversation.ReplyNone}
	sms.err = errors.New("redis down")

	w := post(r, routing.PathSMSInbound+"?tenant=t1", "MessageSid=SM1&From=%2B14155550123&To=%2B18005550100&Body=hi")
	if strings.Contains(w.Body.String(), "<Message") {
		t.Fatalf("expected empty response, got %s", w.Body.String())
	}

	sms.reply = conversation.Reply{Body: "We open at 9am.", Kind: conversation.ReplyAutomated}
	w = post(r, routing.PathSMSInbound+"?tenant=t1", "MessageSid=SM2&From=%2B14155550123&To=%2B18005550100&Body=hours%3F")
	if !strings.Contains(w.Body.String(), "<Message>We open at 9am.</Message>") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

type failingOptOutLedger struct {
	*compliance.MemoryLedger
}

func (failingOptOutLedger) OptOut(ctx context.Context, tenantID, phone string) error {
	return errors.New("ledger unavailable")
}

type failingPutStore struct {
	*conversation.MemoryStore
	fail bool
}

func (s *failingPutStore) Put(ctx context.Context, c conversation.Conversation, ttl time.Duration) error {
	if s.fail {
		return errors.New("redis down")
	}
	return s.MemoryStore.Put(ctx, c, ttl)
}

func newSMSRouter(t *testing.T, store conversation.Store, ledger compliance.Ledger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := newTestRegistry(t)
	svc := conversation.NewService(store, ledger, nil, nil, nil, reg, conversation.Config{})
	h := WebhookHandler{Tenants: reg, SMS: svc}
	r := gin.New()
	r.POST(routing.PathSMSInbound, h.SMSInbound)
	return r
}

func TestSMSInbound_StopWithLedgerFailureSendsNothing(t *testing.T) {
	r := newSMSRouter(t, conversation.NewMemoryStore(), failingOptOutLedger{compliance.NewMemoryLedger()})

	w := post(r, routing.PathSMSInbound+"?tenant=t1", "MessageSid=SM1&From=%2B14155550123&To=%2B18005550100&Body=STOP")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<Message") {
		t.Fatalf("expected empty response, got %s", body)
	}
	if strings.Contains(body, conversation.FallbackReply) {
		t.Fatalf("fallback text sent on failed opt-out: %s", body)
	}
}

func TestSMSInbound_HumanModeWithStoreFailureSendsNothing(t *testing.T) {
	store := &failingPutStore{MemoryStore: conversation.NewMemoryStore()}
	err := store.Put(context.Background(), conversation.Conversation{
		TenantID:    "t1",
		Counterpart: "+14155550123",
		OurNumber:   "+18005550100",
		Mode:        conversation.ModeHuman,
	}, time.Hour)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.fail = true
	r := newSMSRouter(t, store, compliance.NewMemoryLedger())

	w := post(r, routing.PathSMSInbound+"?tenant=t1", "MessageSid=SM1&From=%2B14155550123&To=%2B18005550100&Body=still+there%3F")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<Message") {
		t.Fatalf("automated reply sent on a human thread: %s", w.Body.String())
	}
}
