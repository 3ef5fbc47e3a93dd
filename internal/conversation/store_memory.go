package conversation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	c         Conversation
	expiresAt time.Time
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, counterpart, ours string) (Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(tenantID, counterpart, ours)
	e, ok := s.data[key]
	if !ok {
		return Conversation{}, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return Conversation{}, false, nil
	}
	return e.c, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, c Conversation, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{c: c}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[storeKey(c.TenantID, c.Counterpart, c.OurNumber)] = e
	return nil
}
