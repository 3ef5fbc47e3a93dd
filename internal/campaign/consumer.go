package campaign

import (
	"context"
	"fmt"
	"time"

	"switchboard/internal/compliance"
	"switchboard/pkg/logger"
	"switchboard/pkg/metrics"
)

// Sender delivers one SMS and returns the provider message id.
type Sender interface {
	SendSMS(ctx context.Context, from, to, body string) (string, error)
}

type Consumer struct {
	repo   Repository
	sender Sender
	pacer  *Pacer

	// ledger is set only when opt-outs are rechecked at send time.
	ledger compliance.Ledger
}

// NewConsumer builds the batch handler. Pass a nil ledger to trust the
// filtering done at creation time.
func NewConsumer(repo Repository, sender Sender, pacer *Pacer, ledger compliance.Ledger) *Consumer {
	if pacer == nil {
		pacer = NewPacer(time.Second, nil)
	}
	return &Consumer{repo: repo, sender: sender, pacer: pacer, ledger: ledger}
}

// HandleBatch sends to each recipient in order and records the outcome.
// A per-recipient failure is counted and does not stop the batch. An error
// is returned only when the result could not be made durable, in which case
// the batch must not be acknowledged.
func (c *Consumer) HandleBatch(ctx context.Context, b Batch) (BatchResult, error) {
	start := time.Now()
	log := logger.From(ctx).With("tenant_id", b.TenantID, "campaign_id", b.CampaignID, "batch_id", b.ID)

	res := BatchResult{
		BatchID:    b.ID,
		CampaignID: b.CampaignID,
		TenantID:   b.TenantID,
		Outcomes:   make([]RecipientOutcome, 0, len(b.Recipients)),
	}
	for _, to := range b.Recipients {
		if err := c.pacer.Wait(ctx, b.FromNumber); err != nil {
			return BatchResult{}, fmt.Errorf("pacing interrupted: %w", err)
		}
		o := c.sendOne(ctx, b, to)
		if o.Status == OutcomeSent {
			res.Sent++
		} else {
			res.Failed++
			log.Warn("campaign send failed", "to", to, "status", o.Status, "err", o.Error)
		}
		metrics.CampaignSends.WithLabelValues(string(o.Status)).Inc()
		res.Outcomes = append(res.Outcomes, o)
	}

	camp, applied, err := c.repo.RecordBatchResult(ctx, res)
	if err != nil {
		return BatchResult{}, fmt.Errorf("record batch result: %w", err)
	}
	metrics.CampaignBatchDuration.Observe(time.Since(start).Seconds())
	log.Info("campaign batch processed",
		"sent", res.Sent,
		"failed", res.Failed,
		"applied", applied,
		"campaign_status", camp.Status,
	)
	return res, nil
}

func (c *Consumer) sendOne(ctx context.Context, b Batch, to string) RecipientOutcome {
	if c.ledger != nil {
		opted, err := c.ledger.IsOptedOut(ctx, b.TenantID, to)
		if err != nil {
			return RecipientOutcome{Phone: to, Status: OutcomeFailed, Error: "opt-out check: " + err.Error()}
		}
		if opted {
			return RecipientOutcome{Phone: to, Status: OutcomeSkipped, Error: "opted out"}
		}
	}
	sid, err := c.sender.SendSMS(ctx, b.FromNumber, to, b.MessageTemplate)
	if err != nil {
		return RecipientOutcome{Phone: to, Status: OutcomeFailed, Error: err.Error()}
	}
	return RecipientOutcome{Phone: to, Status: OutcomeSent, MessageSid: sid}
}
