package calls

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

type Repository interface {
	// Insert is idempotent on ProviderCallSid; created is false for a replay.
	Insert(ctx context.Context, e CallEvent) (created bool, err error)
	// Complete applies the single terminal write. A second call is a no-op.
	Complete(ctx context.Context, tenantID, callSid string, status CallStatus, durationSeconds int, endedAt time.Time) (applied bool, err error)
	ByCallSid(ctx context.Context, tenantID, callSid string) (CallEvent, error)
	List(ctx context.Context, tenantID string, since time.Time, limit int) ([]CallEvent, error)
}
