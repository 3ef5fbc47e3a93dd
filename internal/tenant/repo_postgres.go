package tenant

import (
	"context"
	"database/sql"
	"errors"

	"switchboard/pkg/utils"
)

const extensionCodeConstraint = "extensions_tenant_code_key"

// PostgresRepo implements Repository on database/sql (pgx driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const tenantColumns = `id, display_name, company_name, api_key_hash, status, plan, greeting_script, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID,
		&t.DisplayName,
		&t.CompanyName,
		&t.APIKeyHash,
		&t.Status,
		&t.Plan,
		&t.GreetingScript,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	return t, err
}

func (r *PostgresRepo) TenantByAPIKeyHash(ctx context.Context, hash string) (Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE api_key_hash = $1`
	return scanTenant(r.db.QueryRowContext(ctx, q, hash))
}

func (r *PostgresRepo) TenantByID(ctx context.Context, id string) (Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) InsertTenant(ctx context.Context, t Tenant) error {
	const q = `
INSERT INTO tenants (
  id, display_name, company_name, api_key_hash, status, plan, greeting_script, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err := r.db.ExecContext(ctx, q,
		t.ID,
		t.DisplayName,
		t.CompanyName,
		t.APIKeyHash,
		t.Status,
		t.Plan,
		t.GreetingScript,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) UpdateTenantStatus(ctx context.Context, id string, status Status) error {
	const q = `UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`
	return expectOneRow(r.db.ExecContext(ctx, q, id, status))
}

func (r *PostgresRepo) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	const q = `UPDATE tenants SET api_key_hash = $2, updated_at = now() WHERE id = $1`
	return expectOneRow(r.db.ExecContext(ctx, q, id, hash))
}

const numberColumns = `id, tenant_id, e164, provider_ref, kind, area_code, active, created_at`

func scanNumber(row interface{ Scan(...any) error }) (PhoneNumber, error) {
	var n PhoneNumber
	err := row.Scan(
		&n.ID,
		&n.TenantID,
		&n.E164,
		&n.ProviderRef,
		&n.Kind,
		&n.AreaCode,
		&n.Active,
		&n.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PhoneNumber{}, ErrNotFound
	}
	return n, err
}

func (r *PostgresRepo) ListNumbers(ctx context.Context, tenantID string, activeOnly bool) ([]PhoneNumber, error) {
	q := `SELECT ` + numberColumns + ` FROM phone_numbers
WHERE tenant_id = $1 AND (NOT $2 OR active)
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PhoneNumber
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) NumberByID(ctx context.Context, tenantID, id string) (PhoneNumber, error) {
	q := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE tenant_id = $1 AND id = $2`
	return scanNumber(r.db.QueryRowContext(ctx, q, tenantID, id))
}

// NumberByE164 prefers the active row; released numbers that were bought
// again leave inactive rows with the same e164 behind.
func (r *PostgresRepo) NumberByE164(ctx context.Context, tenantID, e164 string) (PhoneNumber, error) {
	q := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE tenant_id = $1 AND e164 = $2
ORDER BY active DESC, created_at DESC LIMIT 1`
	return scanNumber(r.db.QueryRowContext(ctx, q, tenantID, e164))
}

func (r *PostgresRepo) InsertNumber(ctx context.Context, n PhoneNumber) error {
	const q = `
INSERT INTO phone_numbers (
  id, tenant_id, e164, provider_ref, kind, area_code, active, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		n.ID,
		n.TenantID,
		n.E164,
		n.ProviderRef,
		n.Kind,
		n.AreaCode,
		n.Active,
		n.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) DeactivateNumber(ctx context.Context, tenantID, id string) error {
	const q = `UPDATE phone_numbers SET active = FALSE WHERE tenant_id = $1 AND id = $2`
	return expectOneRow(r.db.ExecContext(ctx, q, tenantID, id))
}

const extensionColumns = `id, tenant_id, code, name, department, assigned_number, forward_target, active, created_at, updated_at`

func scanExtension(row interface{ Scan(...any) error }) (Extension, error) {
	var e Extension
	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.Code,
		&e.Name,
		&e.Department,
		&e.AssignedNumber,
		&e.ForwardTarget,
		&e.Active,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Extension{}, ErrNotFound
	}
	return e, err
}

func (r *PostgresRepo) ListExtensions(ctx context.Context, tenantID string, activeOnly bool) ([]Extension, error) {
	q := `SELECT ` + extensionColumns + ` FROM extensions
WHERE tenant_id = $1 AND (NOT $2 OR active)
ORDER BY code ASC`
	rows, err := r.db.QueryContext(ctx, q, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extension
	for rows.Next() {
		e, err := scanExtension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ExtensionByCode(ctx context.Context, tenantID, code string) (Extension, error) {
	q := `SELECT ` + extensionColumns + ` FROM extensions WHERE tenant_id = $1 AND code = $2`
	return scanExtension(r.db.QueryRowContext(ctx, q, tenantID, code))
}

func (r *PostgresRepo) ExtensionByAssignedNumber(ctx context.Context, tenantID, e164 string) (Extension, error) {
	q := `SELECT ` + extensionColumns + ` FROM extensions
WHERE tenant_id = $1 AND assigned_number = $2 AND active
ORDER BY code ASC
LIMIT 1`
	return scanExtension(r.db.QueryRowContext(ctx, q, tenantID, e164))
}

func (r *PostgresRepo) InsertExtension(ctx context.Context, e Extension) error {
	const q = `
INSERT INTO extensions (
  id, tenant_id, code, name, department, assigned_number, forward_target, active, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.Code,
		e.Name,
		e.Department,
		e.AssignedNumber,
		e.ForwardTarget,
		e.Active,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if utils.IsUniqueViolation(err, extensionCodeConstraint) {
		return ErrDuplicateExtension
	}
	return err
}

func (r *PostgresRepo) UpdateExtension(ctx context.Context, e Extension) error {
	const q = `
UPDATE extensions
SET name = $3, department = $4, assigned_number = $5, forward_target = $6, active = $7, updated_at = $8
WHERE tenant_id = $1 AND code = $2
`
	return expectOneRow(r.db.ExecContext(ctx, q,
		e.TenantID,
		e.Code,
		e.Name,
		e.Department,
		e.AssignedNumber,
		e.ForwardTarget,
		e.Active,
		e.UpdatedAt,
	))
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
