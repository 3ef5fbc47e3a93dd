// Package conversation tracks inbound SMS threads and decides whether the
// platform or a human answers them.
package conversation

import (
	"errors"
	"time"
)

type Mode string

const (
	ModeAutomated Mode = "automated"
	ModeHuman     Mode = "human"
)

// Message roles stored in a thread.
const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
	RoleAgent     = "agent"
)

type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"ts"`
}

// Conversation is keyed by (TenantID, Counterpart, OurNumber).
type Conversation struct {
	TenantID     string    `json:"tenant_id"`
	Counterpart  string    `json:"counterpart"`
	OurNumber    string    `json:"our_number"`
	Messages     []Message `json:"messages"`
	Mode         Mode      `json:"mode"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Append adds a message and keeps at most limit recent messages.
func (c *Conversation) Append(role, content string, at time.Time, limit int) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, At: at})
	if limit > 0 && len(c.Messages) > limit {
		c.Messages = append([]Message(nil), c.Messages[len(c.Messages)-limit:]...)
	}
	c.LastActiveAt = at
}

// InboundSMS is a validated inbound message for a resolved tenant.
type InboundSMS struct {
	MessageSid string
	From       string
	To         string
	Body       string
}

// Reply is what to send back on the inbound webhook. An empty Body means
// send nothing.
type Reply struct {
	Body string
	Kind string
}

// Reply kinds, used for logging and metrics.
const (
	ReplyCompliance = "compliance"
	ReplyHandoff    = "handoff"
	ReplyAutomated  = "automated"
	ReplyFallback   = "fallback"
	ReplyNone       = "none"
)

var (
	ErrNotFound        = errors.New("conversation: not found")
	ErrOptedOut        = errors.New("conversation: recipient has opted out")
	ErrUpstream        = errors.New("conversation: provider request failed")
	ErrInvalidArgument = errors.New("conversation: invalid argument")
)
