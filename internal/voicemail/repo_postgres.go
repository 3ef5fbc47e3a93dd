package voicemail

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, v Voicemail) (bool, error) {
	const q = `
INSERT INTO voicemails (
  id, tenant_id, recording_sid, call_sid, from_number, extension_code, storage_key, duration_seconds, transcript, listened, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (recording_sid) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		v.ID,
		v.TenantID,
		v.RecordingSid,
		v.CallSid,
		v.From,
		v.ExtensionCode,
		v.StorageKey,
		v.DurationSeconds,
		v.Transcript,
		v.Listened,
		v.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const columns = `id, tenant_id, recording_sid, call_sid, from_number, extension_code, storage_key, duration_seconds, transcript, listened, created_at`

func scan(row interface{ Scan(...any) error }) (Voicemail, error) {
	var v Voicemail
	err := row.Scan(
		&v.ID,
		&v.TenantID,
		&v.RecordingSid,
		&v.CallSid,
		&v.From,
		&v.ExtensionCode,
		&v.StorageKey,
		&v.DurationSeconds,
		&v.Transcript,
		&v.Listened,
		&v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Voicemail{}, ErrNotFound
	}
	return v, err
}

func (r *PostgresRepo) ByID(ctx context.Context, tenantID, id string) (Voicemail, error) {
	q := `SELECT ` + columns + ` FROM voicemails WHERE tenant_id = $1 AND id = $2`
	return scan(r.db.QueryRowContext(ctx, q, tenantID, id))
}

func (r *PostgresRepo) ByRecordingSid(ctx context.Context, tenantID, recordingSid string) (Voicemail, error) {
	q := `SELECT ` + columns + ` FROM voicemails WHERE tenant_id = $1 AND recording_sid = $2`
	return scan(r.db.QueryRowContext(ctx, q, tenantID, recordingSid))
}

func (r *PostgresRepo) List(ctx context.Context, tenantID, extensionCode string, limit int) ([]Voicemail, error) {
	q := `SELECT ` + columns + ` FROM voicemails
WHERE tenant_id = $1 AND ($2 = '' OR extension_code = $2)
ORDER BY created_at DESC
LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, tenantID, extensionCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Voicemail
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetTranscript(ctx context.Context, tenantID, recordingSid, transcript string) error {
	const q = `UPDATE voicemails SET transcript = $3 WHERE tenant_id = $1 AND recording_sid = $2`
	return expectOneRow(r.db.ExecContext(ctx, q, tenantID, recordingSid, transcript))
}

func (r *PostgresRepo) MarkListened(ctx context.Context, tenantID, id string) error {
	const q = `UPDATE voicemails SET listened = TRUE WHERE tenant_id = $1 AND id = $2`
	return expectOneRow(r.db.ExecContext(ctx, q, tenantID, id))
}

func expectOneRow(res sql.Result, err error) error {
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
