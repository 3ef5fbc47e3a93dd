package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, e CallEvent) (bool, error) {
	const q = `
INSERT INTO call_events (
  id, tenant_id, provider_call_sid, from_number, to_number, direction, status, started_at, duration_seconds
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,0
)
ON CONFLICT (provider_call_sid) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.ProviderCallSid,
		e.From,
		e.To,
		e.Direction,
		e.Status,
		e.StartedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *PostgresRepo) Complete(ctx context.Context, tenantID, callSid string, status CallStatus, durationSeconds int, endedAt time.Time) (bool, error) {
	const q = `
UPDATE call_events
SET status = $3, duration_seconds = $4, ended_at = $5
WHERE tenant_id = $1 AND provider_call_sid = $2 AND ended_at IS NULL
`
	res, err := r.db.ExecContext(ctx, q, tenantID, callSid, status, durationSeconds, endedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const eventColumns = `id, tenant_id, provider_call_sid, from_number, to_number, direction, status, started_at, ended_at, duration_seconds`

func scanEvent(row interface{ Scan(...any) error }) (CallEvent, error) {
	var e CallEvent
	var ended sql.NullTime
	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.ProviderCallSid,
		&e.From,
		&e.To,
		&e.Direction,
		&e.Status,
		&e.StartedAt,
		&ended,
		&e.DurationSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CallEvent{}, ErrNotFound
	}
	if ended.Valid {
		t := ended.Time
		e.EndedAt = &t
	}
	return e, err
}

func (r *PostgresRepo) ByCallSid(ctx context.Context, tenantID, callSid string) (CallEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM call_events WHERE tenant_id = $1 AND provider_call_sid = $2`
	return scanEvent(r.db.QueryRowContext(ctx, q, tenantID, callSid))
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, since time.Time, limit int) ([]CallEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM call_events
WHERE tenant_id = $1 AND started_at >= $2
ORDER BY started_at DESC
LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
