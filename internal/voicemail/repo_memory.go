package voicemail

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Voicemail
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Voicemail{}}
}

func (r *MemoryRepo) Insert(ctx context.Context, v Voicemail) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.byID {
		if cur.RecordingSid == v.RecordingSid {
			return false, nil
		}
	}
	r.byID[v.ID] = v
	return true, nil
}

func (r *MemoryRepo) ByID(ctx context.Context, tenantID, id string) (Voicemail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok || v.TenantID != tenantID {
		return Voicemail{}, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepo) ByRecordingSid(ctx context.Context, tenantID, recordingSid string) (Voicemail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.byID {
		if v.TenantID == tenantID && v.RecordingSid == recordingSid {
			return v, nil
		}
	}
	return Voicemail{}, ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context, tenantID, extensionCode string, limit int) ([]Voicemail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Voicemail, 0)
	for _, v := range r.byID {
		if v.TenantID != tenantID || (extensionCode != "" && v.ExtensionCode != extensionCode) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) SetTranscript(ctx context.Context, tenantID, recordingSid, transcript string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range r.byID {
		if v.TenantID == tenantID && v.RecordingSid == recordingSid {
			v.Transcript = transcript
			r.byID[id] = v
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) MarkListened(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok || v.TenantID != tenantID {
		return ErrNotFound
	}
	v.Listened = true
	r.byID[id] = v
	return nil
}
