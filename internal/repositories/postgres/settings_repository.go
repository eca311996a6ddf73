package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
)

type SettingsRepository struct {
	provider *ppostgres.Provider
}

const settingsColumns = `id, tenant_id, company_name, company_logo_url, currency, locale, timezone, invoice_prefix, created_at, updated_at`

func scanSettings(row pgx.Row) (domain.Settings, error) {
	var s domain.Settings
	err := row.Scan(&s.ID, &s.TenantID, &s.CompanyName, &s.CompanyLogoURL, &s.Currency,
		&s.Locale, &s.Timezone, &s.InvoicePrefix, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *SettingsRepository) Insert(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Settings{}, ppostgres.WrapError("settings.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO settings (id, tenant_id, company_name, company_logo_url, currency, locale, timezone, invoice_prefix, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+settingsColumns,
		settings.ID, settings.TenantID, settings.CompanyName, settings.CompanyLogoURL,
		settings.Currency, settings.Locale, settings.Timezone, settings.InvoicePrefix,
		settings.CreatedAt, settings.UpdatedAt)
	created, err := scanSettings(row)
	if err != nil {
		return domain.Settings{}, ppostgres.WrapError("settings.insert", err)
	}
	return created, nil
}

func (r *SettingsRepository) Update(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Settings{}, ppostgres.WrapError("settings.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE settings
		SET company_name = $2, company_logo_url = $3, currency = $4, locale = $5,
		    timezone = $6, invoice_prefix = $7, updated_at = $8
		WHERE tenant_id = $1
		RETURNING `+settingsColumns,
		settings.TenantID, settings.CompanyName, settings.CompanyLogoURL, settings.Currency,
		settings.Locale, settings.Timezone, settings.InvoicePrefix, settings.UpdatedAt)
	updated, err := scanSettings(row)
	if err != nil {
		return domain.Settings{}, ppostgres.WrapError("settings.update", err)
	}
	return updated, nil
}

func (r *SettingsRepository) FindByTenant(ctx context.Context, tenantID string) (domain.Settings, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Settings{}, ppostgres.WrapError("settings.findByTenant", err)
	}
	row := q.QueryRow(ctx, `SELECT `+settingsColumns+` FROM settings WHERE tenant_id = $1`, tenantID)
	settings, err := scanSettings(row)
	if err != nil {
		return domain.Settings{}, ppostgres.WrapError("settings.findByTenant", err)
	}
	return settings, nil
}

func (r *SettingsRepository) Delete(ctx context.Context, tenantID string) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("settings.delete", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM settings WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return ppostgres.WrapError("settings.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("settings.delete", "settings not found for tenant "+tenantID)
	}
	return nil
}
