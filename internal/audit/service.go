package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, tenantID string, typ EventType, limit int) ([]Event, error)
}

// Service records audit information. Audit is internal-only.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) List(ctx context.Context, tenantID string, typ EventType, limit int) ([]Event, error) {
	if tenantID == "" {
		return nil, ErrInvalidEvent
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, tenantID, typ, limit)
}

// LogAdminAction records an operator action against a tenant.
func (s *Service) LogAdminAction(ctx context.Context, tenantID, actorID, actorRole, ip, message string, metadata any) error {
	return s.Append(ctx, Event{
		TenantID:  tenantID,
		Type:      EventTypeAdminAction,
		ActorID:   actorID,
		ActorRole: actorRole,
		IPAddress: ip,
		Message:   message,
		Metadata:  encodeMetadata(metadata),
	})
}

// RoutingDecisionRecord is the audit payload for one AI receptionist turn.
type RoutingDecisionRecord struct {
	Speech   string `json:"speech"`
	Raw      string `json:"raw_output"`
	Action   string `json:"action"`
	Target   string `json:"target_extension,omitempty"`
	Spoken   string `json:"spoken_message"`
	Reason   string `json:"rationale,omitempty"`
	Fallback bool   `json:"fallback"`
	Turn     int    `json:"turn"`
}

// LogRoutingDecision stores the decision alongside the speech that triggered it.
func (s *Service) LogRoutingDecision(ctx context.Context, tenantID, callSid string, rec RoutingDecisionRecord) error {
	return s.Append(ctx, Event{
		TenantID: tenantID,
		Type:     EventTypeRoutingDecision,
		CallSid:  callSid,
		Message:  rec.Action,
		Metadata: encodeMetadata(rec),
	})
}

// LogAgentHandoff records a conversation switching to human mode.
func (s *Service) LogAgentHandoff(ctx context.Context, tenantID, counterpart, ours, trigger string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeAgentHandoff,
		Counterpart: counterpart,
		Message:     "conversation handed to a human agent",
		Metadata:    encodeMetadata(map[string]string{"our_number": ours, "trigger": trigger}),
	})
}

func encodeMetadata(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
