package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
)

type TenantRepository struct {
	provider *ppostgres.Provider
}

const tenantColumns = `id, name, slug, is_active, created_at, updated_at`

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *TenantRepository) Insert(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO tenants (id, name, slug, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+tenantColumns,
		tenant.ID, tenant.Name, tenant.Slug, tenant.IsActive, tenant.CreatedAt, tenant.UpdatedAt)
	created, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.insert", err)
	}
	return created, nil
}

func (r *TenantRepository) Update(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE tenants
		SET name = $2, slug = $3, is_active = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+tenantColumns,
		tenant.ID, tenant.Name, tenant.Slug, tenant.IsActive, tenant.UpdatedAt)
	updated, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.update", err)
	}
	return updated, nil
}

func (r *TenantRepository) SetActive(ctx context.Context, tenantID string, active bool, updatedAt time.Time) (domain.Tenant, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.setActive", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE tenants
		SET is_active = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+tenantColumns,
		tenantID, active, updatedAt)
	updated, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.setActive", err)
	}
	return updated, nil
}

func (r *TenantRepository) FindByID(ctx context.Context, tenantID string) (domain.Tenant, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.findByID", err)
	}
	row := q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, tenantID)
	tenant, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.findByID", err)
	}
	return tenant, nil
}

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.findBySlug", err)
	}
	row := q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	tenant, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, ppostgres.WrapError("tenants.findBySlug", err)
	}
	return tenant, nil
}

func (r *TenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("tenants.list", err)
	}
	rows, err := q.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, ppostgres.WrapError("tenants.list", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, ppostgres.WrapError("tenants.list", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, ppostgres.WrapError("tenants.list", err)
	}
	return tenants, nil
}
