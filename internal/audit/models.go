package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
// - audit writes are best-effort from live call and SMS paths.
type Event struct {
	ID       string    `json:"id" db:"id"`
	TenantID string    `json:"tenant_id" db:"tenant_id"`
	Type     EventType `json:"type" db:"type"`

	// ActorID is the operator or agent causing the event, empty for system events.
	ActorID   string `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	CallSid     string `json:"call_sid,omitempty" db:"call_sid"`
	CampaignID  string `json:"campaign_id,omitempty" db:"campaign_id"`
	Counterpart string `json:"counterpart,omitempty" db:"counterpart"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction     EventType = "admin_action"
	EventTypeRoutingDecision EventType = "routing_decision"
	EventTypeAgentHandoff    EventType = "agent_handoff"
)
