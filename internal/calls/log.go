package calls

import (
	"context"
	"errors"
	"time"

	"switchboard/pkg/logger"

	"github.com/google/uuid"
)

// Log writes CallEvent rows: one insert at arrival, one terminal update.
type Log struct {
	repo Repository
	now  func() time.Time
}

func NewLog(repo Repository) *Log {
	return &Log{repo: repo, now: time.Now}
}

// Started records an inbound call. Provider retries of the same webhook
// do not create a second row.
func (l *Log) Started(ctx context.Context, tenantID, callSid, from, to string) error {
	if tenantID == "" || callSid == "" {
		return errors.New("calls: tenant id and call sid are required")
	}
	created, err := l.repo.Insert(ctx, CallEvent{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		ProviderCallSid: callSid,
		From:            from,
		To:              to,
		Direction:       DirectionInbound,
		Status:          CallStatusRinging,
		StartedAt:       l.now().UTC(),
	})
	if err != nil {
		return err
	}
	if !created {
		logger.From(ctx).Debug("call event already recorded", "call_sid", callSid)
	}
	return nil
}

// Finished applies the terminal status. Non-terminal provider statuses are ignored.
func (l *Log) Finished(ctx context.Context, tenantID, callSid, providerStatus string, durationSeconds int) error {
	status := StatusFromProvider(providerStatus)
	if !status.Terminal() {
		return nil
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	applied, err := l.repo.Complete(ctx, tenantID, callSid, status, durationSeconds, l.now().UTC())
	if err != nil {
		return err
	}
	if !applied {
		logger.From(ctx).Debug("call already completed or unknown", "call_sid", callSid, "status", status)
	}
	return nil
}

func (l *Log) List(ctx context.Context, tenantID string, since time.Time, limit int) ([]CallEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return l.repo.List(ctx, tenantID, since, limit)
}
