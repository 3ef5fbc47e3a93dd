package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"switchboard/internal/auth"
	"switchboard/internal/calls"
	"switchboard/internal/campaign"
	"switchboard/internal/compliance"
	"switchboard/internal/conversation"
	"switchboard/internal/queue"
	"switchboard/internal/reporting"
	"switchboard/internal/tenant"
	"switchboard/internal/voicemail"
	"switchboard/pkg/objectstore"

	"github.com/gin-gonic/gin"
)

type stubSender struct{ sent []string }

func (s *stubSender) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	s.sent = append(s.sent, from+">"+to)
	return fmt.Sprintf("SM%d", len(s.sent)), nil
}

type noFetch struct{}

func (noFetch) Fetch(ctx context.Context, url string) ([]byte, error) {
	return nil, errors.New("unused")
}

type fixture struct {
	router *gin.Engine
	ledger *compliance.MemoryLedger
	sender *stubSender
	queue  *queue.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	repo := tenant.NewMemoryRepo()
	for _, id := range []string{"t1", "t2"} {
		if err := repo.InsertTenant(ctx, tenant.Tenant{ID: id, DisplayName: id, Status: tenant.StatusActive}); err != nil {
			t.Fatalf("insert tenant: %v", err)
		}
	}
	if err := repo.InsertNumber(ctx, tenant.PhoneNumber{
		ID: "n1", TenantID: "t1", E164: "+18005550100", Kind: tenant.NumberKindTollFree, Active: true, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert number: %v", err)
	}
	registry := tenant.NewRegistry(repo, "pepper")

	ledger := compliance.NewMemoryLedger()
	sender := &stubSender{}
	q := queue.NewMemory()
	callRepo := calls.NewMemoryRepo()
	vmRepo := voicemail.NewMemoryRepo()
	campRepo := campaign.NewMemoryRepo()

	h := Handlers{
		Extensions:    tenant.NewExtensionService(repo, registry),
		Voicemail:     voicemail.NewService(vmRepo, objectstore.NewMemoryStore(), noFetch{}, callRepo, time.Minute),
		Conversations: conversation.NewService(conversation.NewMemoryStore(), ledger, sender, nil, nil, registry, conversation.Config{}),
		Campaigns:     campaign.NewDispatcher(campRepo, ledger, registry, q, campaign.MaxBatchSize),
		Reporting:     reporting.NewService(callRepo, campRepo, vmRepo),
		Admin:         tenant.NewAdminService(repo, registry, nil, nil, nil),
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(func(c *gin.Context) {
		id := c.GetHeader("X-Tenant")
		if id == "" {
			c.Next()
			return
		}
		tn, err := registry.ResolveByID(c.Request.Context(), id)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(auth.WithTenant(c.Request.Context(), tn))
		c.Next()
	})
	v1.POST("/extensions", h.CreateExtension)
	v1.GET("/extensions/:code", h.GetExtension)
	v1.DELETE("/extensions/:code", h.DeleteExtension)
	v1.POST("/sms", h.SendSMS)
	v1.GET("/conversations/:counterpart", h.GetConversation)
	v1.POST("/conversations/:counterpart/reply", h.ReplyToConversation)
	v1.POST("/conversations/:counterpart/release", h.ReleaseConversation)
	v1.POST("/campaigns", h.CreateCampaign)
	v1.GET("/campaigns/:id", h.GetCampaign)
	v1.POST("/campaigns/:id/dispatch", h.DispatchCampaign)
	v1.GET("/voicemails/:id", h.GetVoicemail)
	v1.GET("/analytics", h.Analytics)
	r.POST("/admin/tenants", h.CreateTenant)
	r.POST("/admin/tenants/:tenant_id/cancel", h.CancelTenant)
	r.POST("/admin/tenants/:tenant_id/activate", h.ActivateTenant)

	return fixture{router: r, ledger: ledger, sender: sender, queue: q}
}

func (f fixture) do(t *testing.T, method, path, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set("X-Tenant", tenantID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestExtensions_CreateDuplicateAndIsolation(t *testing.T) {
	f := newFixture(t)
	body := `{"code":"101","name":"Sales"}`

	if w := f.do(t, http.MethodPost, "/v1/extensions", "t1", body); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodPost, "/v1/extensions", "t1", body); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/v1/extensions/101", "t2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 across tenants, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/v1/extensions", "t1", `{"code":"1","name":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad code, got %d", w.Code)
	}
	w := f.do(t, http.MethodDelete, "/v1/extensions/101", "t1", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"active":false`) {
		t.Fatalf("expected deactivated extension, got %d %s", w.Code, w.Body.String())
	}
}

func TestHandlers_RequireTenant(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/v1/extensions/101", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSendSMS_DefaultsFromAndHonoursOptOut(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/sms", "t1", `{"to":"+15555550111","body":"hi"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != "+18005550100>+15555550111" {
		t.Fatalf("unexpected sends: %v", f.sender.sent)
	}

	if err := f.ledger.OptOut(context.Background(), "t1", "+15555550111"); err != nil {
		t.Fatalf("opt out: %v", err)
	}
	if w := f.do(t, http.MethodPost, "/v1/sms", "t1", `{"to":"+15555550111","body":"hi"}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for opted-out recipient, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/v1/sms", "t2", `{"to":"+15555550111","body":"hi"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tenant without numbers, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/v1/sms", "t1", `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/v1/conversations/+15555550111?number=%2B18005550100", "t1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestConversations_NumberQueryIsNormalised(t *testing.T) {
	f := newFixture(t)

	// "+" left unencoded in the query arrives as a space
	w := f.do(t, http.MethodPost, "/v1/conversations/+15555550111/reply?number=+18005550100", "t1", `{"body":"hi there"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != "+18005550100>+15555550111" {
		t.Fatalf("unexpected sends: %v", f.sender.sent)
	}
	if w := f.do(t, http.MethodGet, "/v1/conversations/+15555550111?number=+18005550100", "t1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected stored thread, got %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodPost, "/v1/conversations/+15555550111/release?number=%2B18005550100", "t1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected release, got %d: %s", w.Code, w.Body.String())
	}
}

func TestConversations_RejectInvalidNumbers(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/conversations/+15555550111"},
		{http.MethodGet, "/v1/conversations/+15555550111?number=abc"},
		{http.MethodGet, "/v1/conversations/15555550111?number=%2B18005550100"},
		{http.MethodPost, "/v1/conversations/+15555550111/release?number=1800"},
	}
	for _, tc := range cases {
		if w := f.do(t, tc.method, tc.path, "t1", ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d", tc.method, tc.path, w.Code)
		}
	}
	if w := f.do(t, http.MethodPost, "/v1/conversations/+15555550111/reply?number=abc", "t1", `{"body":"hi"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on reply, got %d", w.Code)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("invalid request must not send: %v", f.sender.sent)
	}
}

func TestCampaigns_CreateEnqueuesAndDispatchRejectsWrongState(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/campaigns", "t1",
		`{"name":"spring","message_template":"Sale!","recipients":["+15555550111","+15555550112"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var c campaign.Campaign
	if err := json.Unmarshal(w.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Status != campaign.StatusSending || c.TotalRecipients != 2 {
		t.Fatalf("unexpected campaign: %+v", c)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("expected one queued batch, got %d", f.queue.Len())
	}

	if w := f.do(t, http.MethodPost, "/v1/campaigns/"+c.ID+"/dispatch", "t1", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 dispatching a sending campaign, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/v1/campaigns/"+c.ID, "t2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 across tenants, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/v1/campaigns", "t1", `{"name":"x","message_template":"y","recipients":["bogus"]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad recipient, got %d", w.Code)
	}
}

func TestVoicemail_UnknownIsNotFound(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/v1/voicemails/missing", "t1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAnalytics_ValidatesRange(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/v1/analytics", "t1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodGet, "/v1/analytics?from=yesterday", "t1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparsable from, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/v1/analytics?from=2026-01-02T00:00:00Z&to=2026-01-01T00:00:00Z", "t1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}
}

func TestAdmin_CreateTenantAndCancelIsFinal(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/admin/tenants", "", `{"display_name":"Acme","company_name":"Acme Inc"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Tenant tenant.Tenant `json:"tenant"`
		APIKey string        `json:"api_key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.APIKey == "" || out.Tenant.ID == "" {
		t.Fatalf("expected tenant and key, got %+v", out)
	}

	if w := f.do(t, http.MethodPost, "/admin/tenants/"+out.Tenant.ID+"/cancel", "", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/admin/tenants/"+out.Tenant.ID+"/activate", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 reactivating a cancelled tenant, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/admin/tenants/nope/cancel", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tenant, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{tenant.ErrUnauthorized, http.StatusUnauthorized},
		{tenant.ErrTenantInactive, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", tenant.ErrNumberNotOwned), http.StatusBadRequest},
		{campaign.ErrInvalidState, http.StatusConflict},
		{conversation.ErrOptedOut, http.StatusUnprocessableEntity},
		{campaign.ErrUpstream, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
