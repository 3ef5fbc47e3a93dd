package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo writes to audit_events. The table carries an INSERT-only grant.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, tenant_id, type, actor_id, actor_role, ip_address, call_sid, campaign_id, counterpart, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.Type,
		e.ActorID,
		e.ActorRole,
		e.IPAddress,
		e.CallSid,
		e.CampaignID,
		e.Counterpart,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, typ EventType, limit int) ([]Event, error) {
	const q = `
SELECT id, tenant_id, type, actor_id, actor_role, ip_address, call_sid, campaign_id, counterpart, message, metadata, created_at
FROM audit_events
WHERE tenant_id = $1 AND ($2 = '' OR type = $2)
ORDER BY created_at DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, string(typ), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.Type,
			&e.ActorID,
			&e.ActorRole,
			&e.IPAddress,
			&e.CallSid,
			&e.CampaignID,
			&e.Counterpart,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
