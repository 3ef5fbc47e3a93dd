// Package campaign creates outbound SMS campaigns, splits them into queue
// batches and aggregates per-batch send results.
package campaign

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
)

// MaxBatchSize bounds recipients per queue message.
const MaxBatchSize = 10

type Campaign struct {
	ID              string     `json:"id" db:"id"`
	TenantID        string     `json:"tenant_id" db:"tenant_id"`
	Name            string     `json:"name" db:"name"`
	MessageTemplate string     `json:"message_template" db:"message_template"`
	Recipients      []string   `json:"recipients" db:"recipients"`
	FromNumber      string     `json:"from_number" db:"from_number"`
	Status          Status     `json:"status" db:"status"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	TotalRecipients int        `json:"total_recipients" db:"total_recipients"`
	SentCount       int        `json:"sent_count" db:"sent_count"`
	FailedCount     int        `json:"failed_count" db:"failed_count"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Done reports whether every recipient has a recorded outcome.
func (c Campaign) Done() bool {
	return c.SentCount+c.FailedCount >= c.TotalRecipients
}

// Batch is one queue message. It is not persisted outside the queue.
type Batch struct {
	ID              string   `json:"id"`
	CampaignID      string   `json:"campaign_id"`
	TenantID        string   `json:"tenant_id"`
	MessageTemplate string   `json:"message_template"`
	FromNumber      string   `json:"from_number"`
	Recipients      []string `json:"recipients"`
}

type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// RecipientOutcome is the result of one send attempt.
type RecipientOutcome struct {
	Phone      string        `json:"phone"`
	Status     OutcomeStatus `json:"status"`
	MessageSid string        `json:"message_sid,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type BatchResult struct {
	BatchID    string
	CampaignID string
	TenantID   string
	Outcomes   []RecipientOutcome
	Sent       int
	Failed     int
}

var (
	ErrNotFound        = errors.New("campaign: not found")
	ErrInvalidArgument = errors.New("campaign: invalid argument")
	ErrInvalidState    = errors.New("campaign: invalid state")
	ErrUpstream        = errors.New("campaign: enqueue failed")
)
