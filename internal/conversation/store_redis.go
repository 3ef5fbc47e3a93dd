package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each conversation as one JSON value; every Put refreshes
// the TTL so it measures inactivity.
type RedisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Get(ctx context.Context, tenantID, counterpart, ours string) (Conversation, bool, error) {
	b, err := s.rdb.Get(ctx, storeKey(tenantID, counterpart, ours)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Conversation{}, false, nil
	}
	if err != nil {
		return Conversation{}, false, err
	}
	var c Conversation
	if err := json.Unmarshal(b, &c); err != nil {
		return Conversation{}, false, fmt.Errorf("decode conversation: %w", err)
	}
	return c, true, nil
}

func (s *RedisStore) Put(ctx context.Context, c Conversation, ttl time.Duration) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, storeKey(c.TenantID, c.Counterpart, c.OurNumber), b, ttl).Err()
}
