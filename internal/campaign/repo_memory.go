package campaign

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo mirrors the postgres semantics, including batch idempotency.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	batches   map[string]struct{}
	outcomes  map[string][]RecipientOutcome // key: campaign id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		campaigns: map[string]Campaign{},
		batches:   map[string]struct{}{},
		outcomes:  map[string][]RecipientOutcome{},
	}
}

func (r *MemoryRepo) Insert(ctx context.Context, c Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Recipients = append([]string(nil), c.Recipients...)
	r.campaigns[c.ID] = c
	return nil
}

func (r *MemoryRepo) ByID(ctx context.Context, tenantID, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, limit int) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, 0)
	for _, c := range r.campaigns {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, tenantID, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	r.campaigns[id] = c
	return nil
}

func (r *MemoryRepo) RecordBatchResult(ctx context.Context, br BatchResult) (Campaign, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[br.CampaignID]
	if !ok || c.TenantID != br.TenantID {
		return Campaign{}, false, ErrNotFound
	}
	if _, seen := r.batches[br.BatchID]; seen {
		return c, false, nil
	}
	r.batches[br.BatchID] = struct{}{}
	r.outcomes[c.ID] = append(r.outcomes[c.ID], br.Outcomes...)

	c.SentCount += br.Sent
	c.FailedCount += br.Failed
	if c.Status == StatusSending && c.Done() {
		c.Status = StatusSent
	}
	c.UpdatedAt = time.Now().UTC()
	r.campaigns[c.ID] = c
	return c, true, nil
}

// Outcomes returns the recorded per-recipient outcomes for a campaign.
func (r *MemoryRepo) Outcomes(campaignID string) []RecipientOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecipientOutcome(nil), r.outcomes[campaignID]...)
}
