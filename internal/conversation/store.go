package conversation

import (
	"context"
	"time"
)

// Store persists conversations with an inactivity TTL. Every key includes
// the tenant id so one tenant cannot read another's thread by guessing a
// number pair.
type Store interface {
	Get(ctx context.Context, tenantID, counterpart, ours string) (Conversation, bool, error)
	Put(ctx context.Context, c Conversation, ttl time.Duration) error
}

func storeKey(tenantID, counterpart, ours string) string {
	return "conv:" + tenantID + ":" + counterpart + ":" + ours
}
