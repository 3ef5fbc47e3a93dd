// Package compliance holds the per-tenant SMS opt-out ledger.
package compliance

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrInvalidArgument = errors.New("compliance: tenant id and phone are required")

// Ledger is the opt-out set. Presence excludes a number from all outbound
// contact for that tenant.
type Ledger interface {
	IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error)
	OptOut(ctx context.Context, tenantID, phone string) error
	OptIn(ctx context.Context, tenantID, phone string) error
	// OptedOutAmong returns the subset of phones currently opted out.
	OptedOutAmong(ctx context.Context, tenantID string, phones []string) (map[string]bool, error)
}

type Record struct {
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	Phone      string    `json:"phone" db:"phone"`
	OptedOutAt time.Time `json:"opted_out_at" db:"opted_out_at"`
}

type Keyword int

const (
	KeywordNone Keyword = iota
	KeywordStop
	KeywordStart
)

func (k Keyword) String() string {
	switch k {
	case KeywordStop:
		return "stop"
	case KeywordStart:
		return "start"
	default:
		return "none"
	}
}

var stopWords = map[string]struct{}{
	"stop":        {},
	"unsubscribe": {},
	"quit":        {},
	"cancel":      {},
	"end":         {},
}

// ClassifyKeyword matches the whole trimmed body, case-insensitively.
// "Please stop calling" is conversation, not a compliance command.
func ClassifyKeyword(body string) Keyword {
	w := strings.ToLower(strings.TrimSpace(body))
	w = strings.TrimRight(w, ".!")
	if _, ok := stopWords[w]; ok {
		return KeywordStop
	}
	if w == "start" {
		return KeywordStart
	}
	return KeywordNone
}

const (
	StopConfirmation  = "You have been unsubscribed and will receive no further messages. Reply START to resubscribe."
	StartConfirmation = "You have been resubscribed. Reply STOP at any time to opt out."
)

// FilterRecipients drops opted-out phones while keeping input order.
func FilterRecipients(ctx context.Context, l Ledger, tenantID string, phones []string) (kept []string, excluded int, err error) {
	if len(phones) == 0 {
		return nil, 0, nil
	}
	out, err := l.OptedOutAmong(ctx, tenantID, phones)
	if err != nil {
		return nil, 0, err
	}
	kept = make([]string, 0, len(phones))
	for _, p := range phones {
		if out[p] {
			excluded++
			continue
		}
		kept = append(kept, p)
	}
	return kept, excluded, nil
}

func validate(tenantID, phone string) error {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(phone) == "" {
		return ErrInvalidArgument
	}
	return nil
}
