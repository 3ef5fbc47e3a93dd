package compliance

import (
	"context"
	"sync"
	"time"
)

type MemoryLedger struct {
	mu  sync.RWMutex
	out map[string]time.Time // key: tenant_id|phone
	now func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{out: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryLedger) IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error) {
	if err := validate(tenantID, phone); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.out[tenantID+"|"+phone]
	return ok, nil
}

func (l *MemoryLedger) OptOut(ctx context.Context, tenantID, phone string) error {
	if err := validate(tenantID, phone); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.out[tenantID+"|"+phone]; !ok {
		l.out[tenantID+"|"+phone] = l.now().UTC()
	}
	return nil
}

func (l *MemoryLedger) OptIn(ctx context.Context, tenantID, phone string) error {
	if err := validate(tenantID, phone); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.out, tenantID+"|"+phone)
	return nil
}

func (l *MemoryLedger) OptedOutAmong(ctx context.Context, tenantID string, phones []string) (map[string]bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make(map[string]bool)
	for _, p := range phones {
		if _, ok := l.out[tenantID+"|"+p]; ok {
			res[p] = true
		}
	}
	return res, nil
}
