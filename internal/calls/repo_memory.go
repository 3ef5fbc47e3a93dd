package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu     sync.Mutex
	events map[string]CallEvent // key: provider_call_sid
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{events: map[string]CallEvent{}}
}

func (r *MemoryRepo) Insert(ctx context.Context, e CallEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.ProviderCallSid]; ok {
		return false, nil
	}
	r.events[e.ProviderCallSid] = e
	return true, nil
}

func (r *MemoryRepo) Complete(ctx context.Context, tenantID, callSid string, status CallStatus, durationSeconds int, endedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[callSid]
	if !ok || e.TenantID != tenantID || e.EndedAt != nil {
		return false, nil
	}
	e.Status = status
	e.DurationSeconds = durationSeconds
	e.EndedAt = &endedAt
	r.events[callSid] = e
	return true, nil
}

func (r *MemoryRepo) ByCallSid(ctx context.Context, tenantID, callSid string) (CallEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[callSid]
	if !ok || e.TenantID != tenantID {
		return CallEvent{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, since time.Time, limit int) ([]CallEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallEvent, 0)
	for _, e := range r.events {
		if e.TenantID == tenantID && !e.StartedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
