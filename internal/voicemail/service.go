package voicemail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"switchboard/internal/calls"
	"switchboard/pkg/logger"
	"switchboard/pkg/objectstore"

	"github.com/google/uuid"
)

// CallLookup finds the CallEvent a recording belongs to.
type CallLookup interface {
	ByCallSid(ctx context.Context, tenantID, callSid string) (calls.CallEvent, error)
}

type RecordingEvent struct {
	CallSid         string
	RecordingSid    string
	RecordingURL    string
	DurationSeconds int
	ExtensionCode   string
}

type TranscriptionEvent struct {
	RecordingSid string
	Text         string
	Status       string
}

type Service struct {
	repo   Repository
	store  objectstore.Store
	fetch  Fetcher
	calls  CallLookup
	urlTTL time.Duration
	now    func() time.Time
}

func NewService(repo Repository, store objectstore.Store, fetch Fetcher, calls CallLookup, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &Service{repo: repo, store: store, fetch: fetch, calls: calls, urlTTL: urlTTL, now: time.Now}
}

// RecordingCompleted copies the recording into tenant-namespaced storage and
// stores exactly one row per recording sid.
func (s *Service) RecordingCompleted(ctx context.Context, tenantID string, ev RecordingEvent) (Voicemail, error) {
	if tenantID == "" || ev.RecordingSid == "" || ev.RecordingURL == "" {
		return Voicemail{}, ErrInvalidArgument
	}
	if existing, err := s.repo.ByRecordingSid(ctx, tenantID, ev.RecordingSid); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Voicemail{}, err
	}

	audio, err := s.fetch.Fetch(ctx, ev.RecordingURL)
	if err != nil {
		return Voicemail{}, err
	}
	key := StorageKey(tenantID, ev.ExtensionCode, ev.RecordingSid)
	if err := s.store.Put(ctx, key, "audio/mpeg", bytes.NewReader(audio)); err != nil {
		return Voicemail{}, fmt.Errorf("store recording: %w", err)
	}

	v := Voicemail{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		RecordingSid:    ev.RecordingSid,
		CallSid:         ev.CallSid,
		ExtensionCode:   ev.ExtensionCode,
		StorageKey:      key,
		DurationSeconds: ev.DurationSeconds,
		CreatedAt:       s.now().UTC(),
	}
	if call, err := s.calls.ByCallSid(ctx, tenantID, ev.CallSid); err == nil {
		v.From = call.From
	} else {
		logger.From(ctx).Warn("voicemail without call event", "tenant_id", tenantID, "call_sid", ev.CallSid, "err", err)
	}

	created, err := s.repo.Insert(ctx, v)
	if err != nil {
		return Voicemail{}, err
	}
	if !created {
		// a concurrent delivery of the same callback won
		return s.repo.ByRecordingSid(ctx, tenantID, ev.RecordingSid)
	}
	logger.From(ctx).Info("voicemail stored", "tenant_id", tenantID, "recording_sid", ev.RecordingSid, "extension", ev.ExtensionCode)
	return v, nil
}

func (s *Service) TranscriptionCompleted(ctx context.Context, tenantID string, ev TranscriptionEvent) error {
	if ev.Status != "" && ev.Status != "completed" {
		logger.From(ctx).Info("transcription not completed", "tenant_id", tenantID, "recording_sid", ev.RecordingSid, "status", ev.Status)
		return nil
	}
	return s.repo.SetTranscript(ctx, tenantID, ev.RecordingSid, ev.Text)
}

func (s *Service) List(ctx context.Context, tenantID, extensionCode string, limit int) ([]Voicemail, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, tenantID, extensionCode, limit)
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (Voicemail, error) {
	return s.repo.ByID(ctx, tenantID, id)
}

// PlaybackURL returns a short-lived signed URL for the tenant's own recording.
func (s *Service) PlaybackURL(ctx context.Context, tenantID, id string) (string, error) {
	v, err := s.repo.ByID(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	u, err := s.store.SignedURL(ctx, v.StorageKey, s.urlTTL)
	if errors.Is(err, objectstore.ErrNotFound) {
		return "", ErrNotFound
	}
	return u, err
}

func (s *Service) MarkListened(ctx context.Context, tenantID, id string) error {
	return s.repo.MarkListened(ctx, tenantID, id)
}
