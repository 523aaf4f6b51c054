package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/persistence/models"
	"github.com/omnierp/controlplane/pkg/composables"
)

const (
	tenantFindQuery = `SELECT id, code, name, domain, status, failure_reason, database_name, database_host, conn_string_encrypted, conn_string, conn_rotate_after, api_key_hash, created_at, updated_at FROM tenants`
)

type TenantRepository struct{}

func NewTenantRepository() tenant.Repository {
	return &TenantRepository{}
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, tenant.ErrNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) GetByCode(ctx context.Context, code string) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE code = $1", code)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, tenant.ErrNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE domain = $1", strings.ToLower(strings.TrimSpace(domain)))
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, tenant.ErrNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE api_key_hash = $1", hash)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, tenant.ErrNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) GetAll(ctx context.Context) ([]*tenant.Tenant, error) {
	return r.queryTenants(ctx, tenantFindQuery+" ORDER BY code")
}

func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBTenant(t)
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO tenants (id, code, name, domain, status, failure_reason, database_name, database_host, conn_string_encrypted, conn_string, conn_rotate_after, api_key_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		row.ID,
		row.Code,
		row.Name,
		row.Domain,
		row.Status,
		row.FailureReason,
		row.DatabaseName,
		row.DatabaseHost,
		row.ConnStringEncrypted,
		row.ConnString,
		row.ConnRotateAfter,
		row.APIKeyHash,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, t.ID())
}

func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBTenant(t)
	if _, err := tx.Exec(
		ctx,
		`UPDATE tenants
		 SET code = $1, name = $2, domain = $3, status = $4, failure_reason = $5, database_name = $6, database_host = $7, conn_string_encrypted = $8, conn_string = $9, conn_rotate_after = $10, api_key_hash = $11, updated_at = $12
		 WHERE id = $13`,
		row.Code,
		row.Name,
		row.Domain,
		row.Status,
		row.FailureReason,
		row.DatabaseName,
		row.DatabaseHost,
		row.ConnStringEncrypted,
		row.ConnString,
		row.ConnRotateAfter,
		row.APIKeyHash,
		row.UpdatedAt,
		row.ID,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, t.ID())
}

func (r *TenantRepository) ScrubSecrets(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		ctx,
		`UPDATE tenants SET conn_string_encrypted = NULL, conn_string = NULL, conn_rotate_after = NULL, api_key_hash = NULL, updated_at = NOW() WHERE id = $1`,
		id.String(),
	)
	return err
}

func (r *TenantRepository) queryTenants(ctx context.Context, query string, args ...interface{}) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var row models.Tenant
		if err := rows.Scan(
			&row.ID,
			&row.Code,
			&row.Name,
			&row.Domain,
			&row.Status,
			&row.FailureReason,
			&row.DatabaseName,
			&row.DatabaseHost,
			&row.ConnStringEncrypted,
			&row.ConnString,
			&row.ConnRotateAfter,
			&row.APIKeyHash,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		t, err := ToDomainTenant(&row)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tenants, nil
}
