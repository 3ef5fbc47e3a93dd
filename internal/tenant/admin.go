package tenant

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"switchboard/pkg/logger"

	"github.com/google/uuid"
)

// Actor identifies the operator performing an administrative action.
type Actor struct {
	ID   string
	Role string
	IP   string
}

// AuditLogger records operator actions. Failures are logged, never fatal.
type AuditLogger interface {
	LogAdminAction(ctx context.Context, tenantID, actorID, actorRole, ip, message string, metadata any) error
}

// NumberProvisioner buys and releases numbers at the telephony provider.
type NumberProvisioner interface {
	PurchaseNumber(ctx context.Context, req PurchaseRequest) (PurchasedNumber, error)
	ReleaseNumber(ctx context.Context, providerRef string) error
}

type PurchaseRequest struct {
	Kind         NumberKind
	CountryISO2  string
	AreaCode     string
	FriendlyName string

	VoiceURL  string
	SMSURL    string
	StatusURL string
}

type PurchasedNumber struct {
	E164        string
	ProviderRef string
}

// WebhookURLs builds the provider callback URLs stamped with a tenant id.
type WebhookURLs interface {
	VoiceURL(tenantID string) string
	SMSURL(tenantID string) string
	StatusURL(tenantID string) string
}

// AdminService implements operator-only provisioning.
type AdminService struct {
	repo     Repository
	registry *Registry
	provider NumberProvisioner
	hooks    WebhookURLs
	audit    AuditLogger

	now    func() time.Time
	newKey func() (string, error)
}

func NewAdminService(repo Repository, registry *Registry, provider NumberProvisioner, hooks WebhookURLs, audit AuditLogger) *AdminService {
	return &AdminService{
		repo:     repo,
		registry: registry,
		provider: provider,
		hooks:    hooks,
		audit:    audit,
		now:      time.Now,
		newKey:   generateAPIKey,
	}
}

type CreateTenantInput struct {
	DisplayName    string `json:"display_name"`
	CompanyName    string `json:"company_name"`
	Plan           string `json:"plan"`
	GreetingScript string `json:"greeting_script"`
}

// CreateTenant stores an active tenant and returns its API key. The key is
// only ever available here; the store keeps a hash.
func (s *AdminService) CreateTenant(ctx context.Context, actor Actor, in CreateTenantInput) (Tenant, string, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	if in.DisplayName == "" || in.CompanyName == "" {
		return Tenant{}, "", fmt.Errorf("%w: display_name and company_name are required", ErrInvalidArgument)
	}
	if in.Plan == "" {
		in.Plan = "standard"
	}

	key, err := s.newKey()
	if err != nil {
		return Tenant{}, "", err
	}
	now := s.now().UTC()
	t := Tenant{
		ID:             uuid.NewString(),
		DisplayName:    in.DisplayName,
		CompanyName:    in.CompanyName,
		APIKeyHash:     s.registry.HashAPIKey(key),
		Status:         StatusActive,
		Plan:           in.Plan,
		GreetingScript: strings.TrimSpace(in.GreetingScript),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertTenant(ctx, t); err != nil {
		return Tenant{}, "", err
	}
	s.logAction(ctx, t.ID, actor, "tenant created", map[string]string{"plan": t.Plan})
	return t, key, nil
}

// SetStatus suspends, reactivates or cancels a tenant. Cancelled is final.
func (s *AdminService) SetStatus(ctx context.Context, actor Actor, tenantID string, status Status) (Tenant, error) {
	if !status.Valid() {
		return Tenant{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}
	t, err := s.repo.TenantByID(ctx, tenantID)
	if err != nil {
		return Tenant{}, err
	}
	if t.Status == StatusCancelled && status != StatusCancelled {
		return Tenant{}, fmt.Errorf("%w: cancelled tenants cannot be reactivated", ErrInvalidArgument)
	}
	if t.Status == status {
		return t, nil
	}
	if err := s.repo.UpdateTenantStatus(ctx, tenantID, status); err != nil {
		return Tenant{}, err
	}
	s.logAction(ctx, tenantID, actor, "tenant status changed", map[string]string{"from": string(t.Status), "to": string(status)})
	t.Status = status
	return t, nil
}

// RotateAPIKey replaces the tenant key; the old key stops resolving immediately.
func (s *AdminService) RotateAPIKey(ctx context.Context, actor Actor, tenantID string) (string, error) {
	if _, err := s.repo.TenantByID(ctx, tenantID); err != nil {
		return "", err
	}
	key, err := s.newKey()
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateAPIKeyHash(ctx, tenantID, s.registry.HashAPIKey(key)); err != nil {
		return "", err
	}
	s.logAction(ctx, tenantID, actor, "api key rotated", nil)
	return key, nil
}

type ProvisionNumberInput struct {
	Kind        NumberKind `json:"kind"`
	AreaCode    string     `json:"area_code"`
	CountryISO2 string     `json:"country"`
}

// ProvisionNumber buys a number whose webhooks carry the tenant id, then records it.
func (s *AdminService) ProvisionNumber(ctx context.Context, actor Actor, tenantID string, in ProvisionNumberInput) (PhoneNumber, error) {
	if !in.Kind.Valid() {
		return PhoneNumber{}, fmt.Errorf("%w: kind must be toll_free or local", ErrInvalidArgument)
	}
	in.AreaCode = strings.TrimSpace(in.AreaCode)
	if in.Kind == NumberKindLocal && in.AreaCode == "" {
		return PhoneNumber{}, fmt.Errorf("%w: area_code is required for local numbers", ErrInvalidArgument)
	}
	if in.CountryISO2 == "" {
		in.CountryISO2 = "US"
	}

	t, err := s.repo.TenantByID(ctx, tenantID)
	if err != nil {
		return PhoneNumber{}, err
	}
	if t.Status == StatusCancelled {
		return PhoneNumber{}, ErrTenantInactive
	}

	bought, err := s.provider.PurchaseNumber(ctx, PurchaseRequest{
		Kind:         in.Kind,
		CountryISO2:  in.CountryISO2,
		AreaCode:     in.AreaCode,
		FriendlyName: t.DisplayName,
		VoiceURL:     s.hooks.VoiceURL(tenantID),
		SMSURL:       s.hooks.SMSURL(tenantID),
		StatusURL:    s.hooks.StatusURL(tenantID),
	})
	if err != nil {
		return PhoneNumber{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	n := PhoneNumber{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		E164:        bought.E164,
		ProviderRef: bought.ProviderRef,
		Kind:        in.Kind,
		AreaCode:    in.AreaCode,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.InsertNumber(ctx, n); err != nil {
		// Purchased but unrecorded; needs manual reconciliation at the provider.
		logger.From(ctx).Error("number purchased but not recorded", "tenant_id", tenantID, "e164", n.E164, "provider_ref", n.ProviderRef, "err", err)
		return PhoneNumber{}, err
	}
	s.logAction(ctx, tenantID, actor, "number provisioned", map[string]string{"e164": n.E164, "kind": string(n.Kind)})
	return n, nil
}

// ReleaseNumber returns a number to the provider and soft-deletes it.
// Releasing an already inactive number is a no-op.
func (s *AdminService) ReleaseNumber(ctx context.Context, actor Actor, tenantID, numberID string) (PhoneNumber, error) {
	n, err := s.repo.NumberByID(ctx, tenantID, numberID)
	if err != nil {
		return PhoneNumber{}, err
	}
	if !n.Active {
		return n, nil
	}
	if err := s.provider.ReleaseNumber(ctx, n.ProviderRef); err != nil {
		return PhoneNumber{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if err := s.repo.DeactivateNumber(ctx, tenantID, numberID); err != nil {
		return PhoneNumber{}, err
	}
	s.logAction(ctx, tenantID, actor, "number released", map[string]string{"e164": n.E164})
	n.Active = false
	return n, nil
}

func (s *AdminService) logAction(ctx context.Context, tenantID string, actor Actor, message string, metadata any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogAdminAction(ctx, tenantID, actor.ID, actor.Role, actor.IP, message, metadata); err != nil {
		logger.From(ctx).Warn("audit append failed", "tenant_id", tenantID, "message", message, "err", err)
	}
}

func generateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.New("tenant: could not generate api key")
	}
	return "sb_" + hex.EncodeToString(b), nil
}
