package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"switchboard/pkg/utils"

	"github.com/google/uuid"
)

type PostgresRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db, now: time.Now} }

const campaignColumns = `id, tenant_id, name, message_template, recipients, from_number, status, scheduled_at, total_recipients, sent_count, failed_count, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (Campaign, error) {
	var c Campaign
	var recipients []byte
	var scheduled sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.Name,
		&c.MessageTemplate,
		&recipients,
		&c.FromNumber,
		&c.Status,
		&scheduled,
		&c.TotalRecipients,
		&c.SentCount,
		&c.FailedCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	if scheduled.Valid {
		t := scheduled.Time
		c.ScheduledAt = &t
	}
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &c.Recipients); err != nil {
			return Campaign{}, err
		}
	}
	return c, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, c Campaign) error {
	recipients, err := json.Marshal(c.Recipients)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO campaigns (` + campaignColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err = r.db.ExecContext(ctx, q,
		c.ID,
		c.TenantID,
		c.Name,
		c.MessageTemplate,
		recipients,
		c.FromNumber,
		c.Status,
		c.ScheduledAt,
		c.TotalRecipients,
		c.SentCount,
		c.FailedCount,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) ByID(ctx context.Context, tenantID, id string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id = $1 AND id = $2`
	return scanCampaign(r.db.QueryRowContext(ctx, q, tenantID, id))
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, limit int) ([]Campaign, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetStatus(ctx context.Context, tenantID, id string, status Status) error {
	const q = `UPDATE campaigns SET status = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, tenantID, id, status, r.now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) RecordBatchResult(ctx context.Context, br BatchResult) (Campaign, bool, error) {
	var out Campaign
	applied := false
	now := r.now().UTC()

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO campaign_batches (id, tenant_id, campaign_id, sent_count, failed_count, processed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`, br.BatchID, br.TenantID, br.CampaignID, br.Sent, br.Failed, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Redelivery of a batch whose result is already durable.
			q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id = $1 AND id = $2`
			out, err = scanCampaign(tx.QueryRowContext(ctx, q, br.TenantID, br.CampaignID))
			return err
		}

		for _, o := range br.Outcomes {
			_, err := tx.ExecContext(ctx, `
INSERT INTO campaign_messages (id, tenant_id, campaign_id, batch_id, recipient, status, provider_message_sid, error, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, uuid.NewString(), br.TenantID, br.CampaignID, br.BatchID, o.Phone, o.Status, o.MessageSid, o.Error, now)
			if err != nil {
				return err
			}
		}

		q := `
UPDATE campaigns
SET sent_count = sent_count + $3,
    failed_count = failed_count + $4,
    status = CASE
      WHEN status = 'sending' AND sent_count + failed_count + $3 + $4 >= total_recipients THEN 'sent'
      ELSE status
    END,
    updated_at = $5
WHERE tenant_id = $1 AND id = $2
RETURNING ` + campaignColumns
		out, err = scanCampaign(tx.QueryRowContext(ctx, q, br.TenantID, br.CampaignID, br.Sent, br.Failed, now))
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return Campaign{}, false, err
	}
	return out, applied, nil
}
