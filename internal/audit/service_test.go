package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestService_AppendRequiresTenantAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminAction}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{TenantID: "t1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_LogAdminAction(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminAction(context.Background(), "t1", "op-1", "super_admin", "1.2.3.4", "tenant suspended", map[string]string{"status": "suspended"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" || evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected defaults and ip captured: %+v", evs[0])
	}
	if evs[0].Metadata != `{"status":"suspended"}` {
		t.Fatalf("unexpected metadata %q", evs[0].Metadata)
	}
}

func TestService_LogRoutingDecisionKeepsSpeech(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	rec := RoutingDecisionRecord{Speech: "I need billing help", Raw: "{oops", Action: "info", Fallback: true, Turn: 1}
	if err := svc.LogRoutingDecision(context.Background(), "t1", "CA1", rec); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs, err := svc.List(context.Background(), "t1", EventTypeRoutingDecision, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 1 || evs[0].CallSid != "CA1" {
		t.Fatalf("unexpected events %+v", evs)
	}
	var got RoutingDecisionRecord
	if err := json.Unmarshal([]byte(evs[0].Metadata), &got); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if got.Speech != rec.Speech || !got.Fallback {
		t.Fatalf("unexpected record %+v", got)
	}

	other, _ := svc.List(context.Background(), "t2", "", 10)
	if len(other) != 0 {
		t.Fatalf("expected tenant isolation")
	}
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec(`INSERT INTO audit_events`).
		WithArgs("e1", "t1", EventTypeAgentHandoff, "", "", "", "", "", "+15550001111", "handoff", "{}", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	err = repo.Append(context.Background(), Event{ID: "e1", TenantID: "t1", Type: EventTypeAgentHandoff, Counterpart: "+15550001111", Message: "handoff", Metadata: "{}", CreatedAt: now})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
