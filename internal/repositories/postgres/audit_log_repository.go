package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/repositories"
)

type AuditLogRepository struct {
	provider *ppostgres.Provider
}

const auditLogColumns = `id, tenant_id, user_id, user_email, user_name, action, resource, resource_id, metadata, ip_address, user_agent, created_at`

func scanAuditLog(row pgx.Row) (domain.AuditLogEntry, error) {
	var e domain.AuditLogEntry
	var metadata []byte
	err := row.Scan(&e.ID, &e.TenantID, &e.UserID, &e.UserEmail, &e.UserName,
		&e.Action, &e.Resource, &e.ResourceID, &metadata, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
	if err != nil {
		return domain.AuditLogEntry{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return domain.AuditLogEntry{}, fmt.Errorf("decode audit metadata %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("auditLogs.append", err)
	}
	var metadata []byte
	if entry.Metadata != nil {
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO audit_logs (id, tenant_id, user_id, user_email, user_name, action, resource, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.TenantID, entry.UserID, entry.UserEmail, entry.UserName,
		entry.Action, entry.Resource, entry.ResourceID, metadata,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt); err != nil {
		return ppostgres.WrapError("auditLogs.append", err)
	}
	return nil
}

func buildAuditWhere(tenantID string, filter repositories.AuditLogFilter) (string, []any) {
	where := `WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Action != "" {
		args = append(args, "%"+filter.Action+"%")
		where += ` AND action ILIKE $` + argn(len(args))
	}
	if filter.Resource != "" {
		args = append(args, filter.Resource)
		where += ` AND resource = $` + argn(len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += ` AND user_id = $` + argn(len(args))
	}
	if filter.DateRange.From != nil {
		args = append(args, *filter.DateRange.From)
		where += ` AND created_at >= $` + argn(len(args))
	}
	if filter.DateRange.To != nil {
		args = append(args, *filter.DateRange.To)
		where += ` AND created_at <= $` + argn(len(args))
	}
	return where, args
}

func (r *AuditLogRepository) List(ctx context.Context, tenantID string, filter repositories.AuditLogFilter) ([]domain.AuditLogEntry, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("auditLogs.list", err)
	}
	where, args := buildAuditWhere(tenantID, filter)
	rows, err := q.Query(ctx, `SELECT `+auditLogColumns+` FROM audit_logs `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, ppostgres.WrapError("auditLogs.list", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, ppostgres.WrapError("auditLogs.list", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, ppostgres.WrapError("auditLogs.list", err)
	}
	return entries, nil
}

func (r *AuditLogRepository) ListPaginated(ctx context.Context, tenantID string, filter repositories.AuditLogFilter, pager domain.Pagination) (domain.Page[domain.AuditLogEntry], error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Page[domain.AuditLogEntry]{}, ppostgres.WrapError("auditLogs.listPaginated", err)
	}
	where, args := buildAuditWhere(tenantID, filter)

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM audit_logs `+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.AuditLogEntry]{}, ppostgres.WrapError("auditLogs.listPaginated", err)
	}

	args = append(args, pager.Limit, offset(pager))
	rows, err := q.Query(ctx, `SELECT `+auditLogColumns+` FROM audit_logs `+where+
		` ORDER BY created_at DESC LIMIT $`+argn(len(args)-1)+` OFFSET $`+argn(len(args)), args...)
	if err != nil {
		return domain.Page[domain.AuditLogEntry]{}, ppostgres.WrapError("auditLogs.listPaginated", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return domain.Page[domain.AuditLogEntry]{}, ppostgres.WrapError("auditLogs.listPaginated", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.AuditLogEntry]{}, ppostgres.WrapError("auditLogs.listPaginated", err)
	}
	return domain.Page[domain.AuditLogEntry]{Items: entries, Meta: domain.NewPageMeta(pager.Page, pager.Limit, total)}, nil
}
