package telephony

import (
	"context"

	"switchboard/internal/tenant"
)

// Provider is the provider-agnostic surface used by business logic.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Numbers are bought with tenant-stamped webhook URLs; see tenant.AdminService.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	SendSMS(ctx context.Context, from, to, body string) (providerRef string, err error)

	PurchaseNumber(ctx context.Context, req tenant.PurchaseRequest) (tenant.PurchasedNumber, error)
	ReleaseNumber(ctx context.Context, providerRef string) error
}

var _ Provider = (*TwilioProvider)(nil)
