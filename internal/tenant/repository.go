package tenant

import "context"

// Repository is the persistence contract for tenants, numbers and extensions.
// Every number and extension method is scoped by tenantID.
type Repository interface {
	TenantByAPIKeyHash(ctx context.Context, hash string) (Tenant, error)
	TenantByID(ctx context.Context, id string) (Tenant, error)
	InsertTenant(ctx context.Context, t Tenant) error
	UpdateTenantStatus(ctx context.Context, id string, status Status) error
	UpdateAPIKeyHash(ctx context.Context, id, hash string) error

	// ListNumbers returns numbers oldest first.
	ListNumbers(ctx context.Context, tenantID string, activeOnly bool) ([]PhoneNumber, error)
	NumberByID(ctx context.Context, tenantID, id string) (PhoneNumber, error)
	NumberByE164(ctx context.Context, tenantID, e164 string) (PhoneNumber, error)
	InsertNumber(ctx context.Context, n PhoneNumber) error
	DeactivateNumber(ctx context.Context, tenantID, id string) error

	ListExtensions(ctx context.Context, tenantID string, activeOnly bool) ([]Extension, error)
	ExtensionByCode(ctx context.Context, tenantID, code string) (Extension, error)
	ExtensionByAssignedNumber(ctx context.Context, tenantID, e164 string) (Extension, error)
	InsertExtension(ctx context.Context, e Extension) error
	UpdateExtension(ctx context.Context, e Extension) error
}
