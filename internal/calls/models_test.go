package calls

import (
	"context"
	"testing"
	"time"
)

func TestStatusFromProvider(t *testing.T) {
	cases := map[string]CallStatus{
		"ringing":     CallStatusRinging,
		"in-progress": CallStatusInProgress,
		"completed":   CallStatusCompleted,
		"busy":        CallStatusBusy,
		"no-answer":   CallStatusNoAnswer,
		"canceled":    CallStatusCanceled,
		"failed":      CallStatusFailed,
		"weird":       CallStatusFailed,
	}
	for in, want := range cases {
		if got := StatusFromProvider(in); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
	if CallStatusRinging.Terminal() || !CallStatusBusy.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

func TestLog_StartedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	l := NewLog(repo)

	for i := 0; i < 3; i++ {
		if err := l.Started(ctx, "t1", "CA1", "+15125550101", "+18005550100"); err != nil {
			t.Fatalf("started: %v", err)
		}
	}
	list, err := l.List(ctx, "t1", time.Time{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one call event, got %d", len(list))
	}
	if err := l.Started(ctx, "", "CA2", "", ""); err == nil {
		t.Fatalf("expected error for missing tenant")
	}
}

func TestLog_FinishedAppliesOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	l := NewLog(repo)
	if err := l.Started(ctx, "t1", "CA1", "+15125550101", "+18005550100"); err != nil {
		t.Fatalf("started: %v", err)
	}

	if err := l.Finished(ctx, "t1", "CA1", "in-progress", 0); err != nil {
		t.Fatalf("finished: %v", err)
	}
	e, _ := repo.ByCallSid(ctx, "t1", "CA1")
	if e.EndedAt != nil {
		t.Fatalf("non-terminal status must not complete the call")
	}

	if err := l.Finished(ctx, "t1", "CA1", "completed", 42); err != nil {
		t.Fatalf("finished: %v", err)
	}
	if err := l.Finished(ctx, "t1", "CA1", "failed", 99); err != nil {
		t.Fatalf("finished replay: %v", err)
	}
	e, _ = repo.ByCallSid(ctx, "t1", "CA1")
	if e.Status != CallStatusCompleted || e.DurationSeconds != 42 {
		t.Fatalf("expected first terminal write to stick, got %+v", e)
	}

	if _, err := repo.ByCallSid(ctx, "t2", "CA1"); err != ErrNotFound {
		t.Fatalf("expected tenant-scoped lookup to miss, got %v", err)
	}
}
