package auth

import (
	"context"
	"errors"

	"switchboard/internal/tenant"
)

type ctxKey int

const (
	ctxOperatorID ctxKey = iota
	ctxRole
	ctxTenant
	ctxClientIP
)

func WithOperator(ctx context.Context, operatorID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxOperatorID, operatorID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func OperatorID(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxOperatorID).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("operator_id not in context")
}

func Role(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxRole).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// WithTenant stores the tenant resolved from the request's API key.
func WithTenant(ctx context.Context, t tenant.Tenant) context.Context {
	return context.WithValue(ctx, ctxTenant, t)
}

func Tenant(ctx context.Context) (tenant.Tenant, error) {
	if t, ok := ctx.Value(ctxTenant).(tenant.Tenant); ok && t.ID != "" {
		return t, nil
	}
	return tenant.Tenant{}, errors.New("tenant not in context")
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxClientIP, ip)
}

func ClientIP(ctx context.Context) string {
	s, _ := ctx.Value(ctxClientIP).(string)
	return s
}

// Actor describes the authenticated operator for audit records.
func Actor(ctx context.Context) tenant.Actor {
	id, _ := OperatorID(ctx)
	role, _ := Role(ctx)
	return tenant.Actor{ID: id, Role: role, IP: ClientIP(ctx)}
}
