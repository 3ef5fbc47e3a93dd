package tenant

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// It enforces the same tenant scoping as the postgres implementation.
type MemoryRepo struct {
	mu         sync.Mutex
	tenants    map[string]Tenant
	numbers    map[string]PhoneNumber
	extensions map[string]Extension // key: tenant_id|code
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tenants:    map[string]Tenant{},
		numbers:    map[string]PhoneNumber{},
		extensions: map[string]Extension{},
	}
}

func (r *MemoryRepo) TenantByAPIKeyHash(ctx context.Context, hash string) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if t.APIKeyHash == hash {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (r *MemoryRepo) TenantByID(ctx context.Context, id string) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) InsertTenant(ctx context.Context, t Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID] = t
	return nil
}

func (r *MemoryRepo) UpdateTenantStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	r.tenants[id] = t
	return nil
}

func (r *MemoryRepo) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.APIKeyHash = hash
	r.tenants[id] = t
	return nil
}

func (r *MemoryRepo) ListNumbers(ctx context.Context, tenantID string, activeOnly bool) ([]PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PhoneNumber, 0)
	for _, n := range r.numbers {
		if n.TenantID != tenantID || (activeOnly && !n.Active) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) NumberByID(ctx context.Context, tenantID, id string) (PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.numbers[id]
	if !ok || n.TenantID != tenantID {
		return PhoneNumber{}, ErrNotFound
	}
	return n, nil
}

func (r *MemoryRepo) NumberByE164(ctx context.Context, tenantID, e164 string) (PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best PhoneNumber
	found := false
	for _, n := range r.numbers {
		if n.TenantID != tenantID || n.E164 != e164 {
			continue
		}
		if !found || (n.Active && !best.Active) || (n.Active == best.Active && n.CreatedAt.After(best.CreatedAt)) {
			best, found = n, true
		}
	}
	if !found {
		return PhoneNumber{}, ErrNotFound
	}
	return best, nil
}

func (r *MemoryRepo) InsertNumber(ctx context.Context, n PhoneNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.numbers[n.ID] = n
	return nil
}

func (r *MemoryRepo) DeactivateNumber(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.numbers[id]
	if !ok || n.TenantID != tenantID {
		return ErrNotFound
	}
	n.Active = false
	r.numbers[id] = n
	return nil
}

func (r *MemoryRepo) ListExtensions(ctx context.Context, tenantID string, activeOnly bool) ([]Extension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Extension, 0)
	for _, e := range r.extensions {
		if e.TenantID != tenantID || (activeOnly && !e.Active) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *MemoryRepo) ExtensionByCode(ctx context.Context, tenantID, code string) (Extension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.extensions[tenantID+"|"+code]
	if !ok {
		return Extension{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) ExtensionByAssignedNumber(ctx context.Context, tenantID, e164 string) (Extension, error) {
	exts, _ := r.ListExtensions(ctx, tenantID, true)
	for _, e := range exts {
		if e.AssignedNumber == e164 {
			return e, nil
		}
	}
	return Extension{}, ErrNotFound
}

func (r *MemoryRepo) InsertExtension(ctx context.Context, e Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := e.TenantID + "|" + e.Code
	if _, exists := r.extensions[key]; exists {
		return ErrDuplicateExtension
	}
	r.extensions[key] = e
	return nil
}

func (r *MemoryRepo) UpdateExtension(ctx context.Context, e Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := e.TenantID + "|" + e.Code
	cur, ok := r.extensions[key]
	if !ok {
		return ErrNotFound
	}
	e.ID = cur.ID
	e.CreatedAt = cur.CreatedAt
	r.extensions[key] = e
	return nil
}
