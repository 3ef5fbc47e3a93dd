package tenant

import "errors"

var (
	// ErrUnauthorized covers an unknown API key or tenant id. Callers must not
	// reveal which of the two it was.
	ErrUnauthorized = errors.New("tenant: unknown credentials")
	// ErrTenantInactive is returned for suspended or cancelled tenants.
	ErrTenantInactive = errors.New("tenant: account is not active")

	ErrNotFound           = errors.New("tenant: not found")
	ErrInvalidArgument    = errors.New("tenant: invalid argument")
	ErrDuplicateExtension = errors.New("tenant: extension code already in use")
	ErrNumberNotOwned     = errors.New("tenant: phone number not owned by tenant")
	ErrUpstream           = errors.New("tenant: provider request failed")
)

var ErrNoActiveNumber = errors.New("tenant: no active phone number")
