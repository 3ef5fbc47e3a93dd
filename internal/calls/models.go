package calls

import "time"

// CallEvent is the append-only log row for one call.
//
// Multi-tenant invariant: TenantID is required on every row.
// Only Status, DurationSeconds and EndedAt change after insert, and only once.
type CallEvent struct {
	ID              string     `json:"id" db:"id"`
	TenantID        string     `json:"tenant_id" db:"tenant_id"`
	ProviderCallSid string     `json:"provider_call_sid" db:"provider_call_sid"`
	From            string     `json:"from" db:"from_number"`
	To              string     `json:"to" db:"to_number"`
	Direction       Direction  `json:"direction" db:"direction"`
	Status          CallStatus `json:"status" db:"status"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is INT in Postgres; kept as int for JSON friendliness.
	DurationSeconds int `json:"duration" db:"duration_seconds"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallStatus string

const (
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
	CallStatusCanceled   CallStatus = "canceled"
)

// Terminal reports whether no further status updates are expected.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy, CallStatusCanceled:
		return true
	default:
		return false
	}
}

// StatusFromProvider maps Twilio CallStatus values onto ours.
func StatusFromProvider(s string) CallStatus {
	switch s {
	case "queued", "ringing", "initiated":
		return CallStatusRinging
	case "in-progress", "answered":
		return CallStatusInProgress
	case "completed":
		return CallStatusCompleted
	case "busy":
		return CallStatusBusy
	case "no-answer":
		return CallStatusNoAnswer
	case "canceled":
		return CallStatusCanceled
	default:
		return CallStatusFailed
	}
}
