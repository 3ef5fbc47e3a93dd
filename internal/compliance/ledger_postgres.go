package compliance

import (
	"context"
	"database/sql"
)

// PostgresLedger stores opt-outs in opt_outs keyed by (tenant_id, phone).
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger { return &PostgresLedger{db: db} }

func (l *PostgresLedger) IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error) {
	if err := validate(tenantID, phone); err != nil {
		return false, err
	}
	const q = `SELECT EXISTS (SELECT 1 FROM opt_outs WHERE tenant_id = $1 AND phone = $2)`
	var out bool
	if err := l.db.QueryRowContext(ctx, q, tenantID, phone).Scan(&out); err != nil {
		return false, err
	}
	return out, nil
}

func (l *PostgresLedger) OptOut(ctx context.Context, tenantID, phone string) error {
	if err := validate(tenantID, phone); err != nil {
		return err
	}
	const q = `
INSERT INTO opt_outs (tenant_id, phone, opted_out_at)
VALUES ($1, $2, now())
ON CONFLICT (tenant_id, phone) DO NOTHING
`
	_, err := l.db.ExecContext(ctx, q, tenantID, phone)
	return err
}

func (l *PostgresLedger) OptIn(ctx context.Context, tenantID, phone string) error {
	if err := validate(tenantID, phone); err != nil {
		return err
	}
	const q = `DELETE FROM opt_outs WHERE tenant_id = $1 AND phone = $2`
	_, err := l.db.ExecContext(ctx, q, tenantID, phone)
	return err
}

func (l *PostgresLedger) OptedOutAmong(ctx context.Context, tenantID string, phones []string) (map[string]bool, error) {
	res := make(map[string]bool)
	if len(phones) == 0 {
		return res, nil
	}
	const q = `SELECT phone FROM opt_outs WHERE tenant_id = $1 AND phone = ANY($2)`
	rows, err := l.db.QueryContext(ctx, q, tenantID, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		res[p] = true
	}
	return res, rows.Err()
}
