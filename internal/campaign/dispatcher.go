package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"switchboard/internal/compliance"
	"switchboard/internal/tenant"
	"switchboard/pkg/logger"

	"github.com/google/uuid"
)

const (
	maxTemplateLength = 1600
	maxRecipients     = 10000
)

// Publisher enqueues one batch on the work queue.
type Publisher interface {
	PublishBatch(ctx context.Context, b Batch) error
}

type NumberDirectory interface {
	OwnedNumber(ctx context.Context, tenantID, e164 string) (tenant.PhoneNumber, error)
	OldestActiveNumber(ctx context.Context, tenantID string) (tenant.PhoneNumber, error)
}

type Dispatcher struct {
	repo      Repository
	ledger    compliance.Ledger
	numbers   NumberDirectory
	pub       Publisher
	batchSize int
	now       func() time.Time
}

func NewDispatcher(repo Repository, ledger compliance.Ledger, numbers NumberDirectory, pub Publisher, batchSize int) *Dispatcher {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Dispatcher{
		repo:      repo,
		ledger:    ledger,
		numbers:   numbers,
		pub:       pub,
		batchSize: batchSize,
		now:       time.Now,
	}
}

type CreateRequest struct {
	Name            string     `json:"name"`
	MessageTemplate string     `json:"message_template"`
	Recipients      []string   `json:"recipients"`
	FromNumber      string     `json:"from_number"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

// Create validates, filters opted-out recipients, persists the campaign and
// enqueues its batches unless it is scheduled for later.
func (d *Dispatcher) Create(ctx context.Context, tenantID string, req CreateRequest) (Campaign, error) {
	name := strings.TrimSpace(req.Name)
	body := strings.TrimSpace(req.MessageTemplate)
	if name == "" {
		return Campaign{}, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if body == "" || len(body) > maxTemplateLength {
		return Campaign{}, fmt.Errorf("%w: message_template must be 1-%d characters", ErrInvalidArgument, maxTemplateLength)
	}
	recipients, err := normalizeRecipients(req.Recipients)
	if err != nil {
		return Campaign{}, err
	}
	now := d.now().UTC()
	if req.ScheduledAt != nil && !req.ScheduledAt.After(now) {
		return Campaign{}, fmt.Errorf("%w: scheduled_at must be in the future", ErrInvalidArgument)
	}

	from, err := d.fromNumber(ctx, tenantID, req.FromNumber)
	if err != nil {
		return Campaign{}, err
	}

	kept, excluded, err := compliance.FilterRecipients(ctx, d.ledger, tenantID, recipients)
	if err != nil {
		return Campaign{}, fmt.Errorf("filter recipients: %w", err)
	}

	c := Campaign{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Name:            name,
		MessageTemplate: body,
		Recipients:      kept,
		FromNumber:      from,
		Status:          StatusPending,
		ScheduledAt:     req.ScheduledAt,
		TotalRecipients: len(kept),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	switch {
	case req.ScheduledAt != nil:
		c.Status = StatusScheduled
	case len(kept) == 0:
		// Nothing left to send after filtering.
		c.Status = StatusSent
	}
	if err := d.repo.Insert(ctx, c); err != nil {
		return Campaign{}, err
	}

	log := logger.From(ctx).With("tenant_id", tenantID, "campaign_id", c.ID)
	log.Info("campaign created", "recipients", len(kept), "excluded_opt_out", excluded, "status", c.Status)
	if c.Status != StatusPending {
		return c, nil
	}
	return d.enqueue(ctx, c)
}

// DispatchScheduled enqueues a campaign that was created with a schedule.
// Deciding when to call it belongs to the scheduler.
func (d *Dispatcher) DispatchScheduled(ctx context.Context, tenantID, campaignID string) (Campaign, error) {
	c, err := d.repo.ByID(ctx, tenantID, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if c.Status != StatusScheduled {
		return Campaign{}, fmt.Errorf("%w: campaign is %s", ErrInvalidState, c.Status)
	}
	if c.TotalRecipients == 0 {
		if err := d.repo.SetStatus(ctx, tenantID, c.ID, StatusSent); err != nil {
			return Campaign{}, err
		}
		c.Status = StatusSent
		return c, nil
	}
	return d.enqueue(ctx, c)
}

// enqueue flips the campaign to sending before publishing so a fast
// consumer can complete it.
func (d *Dispatcher) enqueue(ctx context.Context, c Campaign) (Campaign, error) {
	log := logger.From(ctx).With("tenant_id", c.TenantID, "campaign_id", c.ID)
	if err := d.repo.SetStatus(ctx, c.TenantID, c.ID, StatusSending); err != nil {
		return Campaign{}, err
	}
	c.Status = StatusSending

	batches := SplitBatches(c, d.batchSize)
	for _, b := range batches {
		if err := d.pub.PublishBatch(ctx, b); err != nil {
			log.Error("failed to enqueue campaign batch", "batch_id", b.ID, "err", err)
			if serr := d.repo.SetStatus(ctx, c.TenantID, c.ID, StatusFailed); serr != nil {
				log.Error("failed to mark campaign failed", "err", serr)
			}
			return Campaign{}, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}
	log.Info("campaign enqueued", "batches", len(batches))
	return c, nil
}

func (d *Dispatcher) fromNumber(ctx context.Context, tenantID, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		n, err := d.numbers.OldestActiveNumber(ctx, tenantID)
		if err != nil {
			return "", err
		}
		return n.E164, nil
	}
	n, err := d.numbers.OwnedNumber(ctx, tenantID, requested)
	if err != nil {
		return "", err
	}
	return n.E164, nil
}

func (d *Dispatcher) Get(ctx context.Context, tenantID, id string) (Campaign, error) {
	return d.repo.ByID(ctx, tenantID, id)
}

func (d *Dispatcher) List(ctx context.Context, tenantID string, limit int) ([]Campaign, error) {
	return d.repo.List(ctx, tenantID, limit)
}

// SplitBatches chunks the campaign's recipients. Batch ids are derived from
// the campaign id and position so a re-enqueue produces the same ids.
func SplitBatches(c Campaign, size int) []Batch {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	out := make([]Batch, 0, (len(c.Recipients)+size-1)/size)
	for i := 0; i < len(c.Recipients); i += size {
		end := min(i+size, len(c.Recipients))
		out = append(out, Batch{
			ID:              fmt.Sprintf("%s-%04d", c.ID, i/size),
			CampaignID:      c.ID,
			TenantID:        c.TenantID,
			MessageTemplate: c.MessageTemplate,
			FromNumber:      c.FromNumber,
			Recipients:      append([]string(nil), c.Recipients[i:end]...),
		})
	}
	return out
}

func normalizeRecipients(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !tenant.ValidE164(r) {
			return nil, fmt.Errorf("%w: recipient %q is not E.164", ErrInvalidArgument, r)
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidArgument)
	}
	if len(out) > maxRecipients {
		return nil, fmt.Errorf("%w: at most %d recipients", ErrInvalidArgument, maxRecipients)
	}
	return out, nil
}
