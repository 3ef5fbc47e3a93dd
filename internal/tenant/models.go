package tenant

import "time"

// Tenant is the root of isolation: every other record carries its ID.
type Tenant struct {
	ID             string    `json:"id" db:"id"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	CompanyName    string    `json:"company_name" db:"company_name"`
	APIKeyHash     string    `json:"-" db:"api_key_hash"`
	Status         Status    `json:"status" db:"status"`
	Plan           string    `json:"plan" db:"plan"`
	GreetingScript string    `json:"greeting_script" db:"greeting_script"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusCancelled:
		return true
	default:
		return false
	}
}

func (t Tenant) IsActive() bool { return t.Status == StatusActive }

// PhoneNumber is owned by exactly one tenant. Release is a soft delete.
type PhoneNumber struct {
	ID          string     `json:"id" db:"id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	E164        string     `json:"e164" db:"e164"`
	ProviderRef string     `json:"provider_ref" db:"provider_ref"`
	Kind        NumberKind `json:"kind" db:"kind"`
	AreaCode    string     `json:"area_code,omitempty" db:"area_code"`
	Active      bool       `json:"active" db:"active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

type NumberKind string

const (
	NumberKindTollFree NumberKind = "toll_free"
	NumberKindLocal    NumberKind = "local"
)

func (k NumberKind) Valid() bool {
	return k == NumberKindTollFree || k == NumberKindLocal
}

// Extension is a dialable internal line. Code is unique per tenant.
type Extension struct {
	ID             string    `json:"id" db:"id"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	Code           string    `json:"code" db:"code"`
	Name           string    `json:"name" db:"name"`
	Department     string    `json:"department" db:"department"`
	AssignedNumber string    `json:"assigned_number,omitempty" db:"assigned_number"`
	ForwardTarget  string    `json:"forward_target,omitempty" db:"forward_target"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ClientIdentity is the softphone identity that rings alongside ForwardTarget.
func (e Extension) ClientIdentity() string {
	return e.TenantID + "-" + e.Code
}

// DisplayName is what callers hear, e.g. "Jane Smith in Billing".
func (e Extension) DisplayName() string {
	if e.Department == "" {
		return e.Name
	}
	if e.Name == "" {
		return e.Department
	}
	return e.Name + " in " + e.Department
}
