package tenant

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// ValidE164 reports whether s is a plausible E.164 number.
func ValidE164(s string) bool { return e164Pattern.MatchString(s) }

// Registry resolves tenants and answers tenant-scoped directory lookups.
// It is read-only.
type Registry struct {
	repo   Repository
	pepper []byte
}

func NewRegistry(repo Repository, pepper string) *Registry {
	return &Registry{repo: repo, pepper: []byte(pepper)}
}

// HashAPIKey derives the stored lookup hash for a raw API key.
func (r *Registry) HashAPIKey(key string) string {
	mac := hmac.New(sha256.New, r.pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// ResolveByAPIKey fails closed: unknown keys yield ErrUnauthorized and
// non-active tenants yield ErrTenantInactive.
func (r *Registry) ResolveByAPIKey(ctx context.Context, key string) (Tenant, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Tenant{}, ErrUnauthorized
	}
	t, err := r.repo.TenantByAPIKeyHash(ctx, r.HashAPIKey(key))
	return requireActive(t, err)
}

// ResolveByID resolves the opaque tenant id carried on provider webhook URLs.
func (r *Registry) ResolveByID(ctx context.Context, tenantID string) (Tenant, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Tenant{}, ErrUnauthorized
	}
	t, err := r.repo.TenantByID(ctx, tenantID)
	return requireActive(t, err)
}

func requireActive(t Tenant, err error) (Tenant, error) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Tenant{}, ErrUnauthorized
		}
		return Tenant{}, fmt.Errorf("tenant lookup: %w", err)
	}
	if !t.IsActive() {
		return Tenant{}, ErrTenantInactive
	}
	return t, nil
}

// OwnedNumber returns the tenant's active number with the given E.164 value.
func (r *Registry) OwnedNumber(ctx context.Context, tenantID, e164 string) (PhoneNumber, error) {
	n, err := r.repo.NumberByE164(ctx, tenantID, strings.TrimSpace(e164))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PhoneNumber{}, ErrNumberNotOwned
		}
		return PhoneNumber{}, err
	}
	if !n.Active {
		return PhoneNumber{}, ErrNumberNotOwned
	}
	return n, nil
}

// OldestActiveNumber is the default sender for outbound traffic.
func (r *Registry) OldestActiveNumber(ctx context.Context, tenantID string) (PhoneNumber, error) {
	nums, err := r.repo.ListNumbers(ctx, tenantID, true)
	if err != nil {
		return PhoneNumber{}, err
	}
	if len(nums) == 0 {
		return PhoneNumber{}, ErrNoActiveNumber
	}
	return nums[0], nil
}

func (r *Registry) Numbers(ctx context.Context, tenantID string) ([]PhoneNumber, error) {
	return r.repo.ListNumbers(ctx, tenantID, false)
}

// Directory lists the tenant's active extensions ordered by code.
func (r *Registry) Directory(ctx context.Context, tenantID string) ([]Extension, error) {
	return r.repo.ListExtensions(ctx, tenantID, true)
}

// ActiveExtension looks up an extension by code; inactive ones report false.
func (r *Registry) ActiveExtension(ctx context.Context, tenantID, code string) (Extension, bool, error) {
	e, err := r.repo.ExtensionByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Extension{}, false, nil
		}
		return Extension{}, false, err
	}
	if !e.Active {
		return Extension{}, false, nil
	}
	return e, true, nil
}

// DirectDialExtension returns the extension bound to a non-toll-free number.
// Toll-free numbers always go through the main menu.
func (r *Registry) DirectDialExtension(ctx context.Context, n PhoneNumber) (Extension, bool, error) {
	if n.Kind == NumberKindTollFree {
		return Extension{}, false, nil
	}
	e, err := r.repo.ExtensionByAssignedNumber(ctx, n.TenantID, n.E164)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Extension{}, false, nil
		}
		return Extension{}, false, err
	}
	return e, e.Active, nil
}
