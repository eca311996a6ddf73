package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/repositories"
)

type DiscountRepository struct {
	provider *ppostgres.Provider
}

const discountColumns = `id, tenant_id, code, description, type, value, active, start_date, end_date, usage_limit, used_count, minimum_order_amount, created_at, updated_at`

func scanDiscount(row pgx.Row) (domain.Discount, error) {
	var d domain.Discount
	err := row.Scan(&d.ID, &d.TenantID, &d.Code, &d.Description, &d.Type, &d.Value,
		&d.Active, &d.StartDate, &d.EndDate, &d.UsageLimit, &d.UsedCount,
		&d.MinimumOrderAmount, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO discounts (id, tenant_id, code, description, type, value, active, start_date, end_date, usage_limit, used_count, minimum_order_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+discountColumns,
		discount.ID, discount.TenantID, discount.Code, discount.Description, discount.Type,
		discount.Value, discount.Active, discount.StartDate, discount.EndDate,
		discount.UsageLimit, discount.UsedCount, discount.MinimumOrderAmount,
		discount.CreatedAt, discount.UpdatedAt)
	created, err := scanDiscount(row)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.insert", err)
	}
	return created, nil
}

func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE discounts
		SET code = $3, description = $4, type = $5, value = $6, active = $7,
		    start_date = $8, end_date = $9, usage_limit = $10, minimum_order_amount = $11,
		    updated_at = $12
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+discountColumns,
		discount.TenantID, discount.ID, discount.Code, discount.Description, discount.Type,
		discount.Value, discount.Active, discount.StartDate, discount.EndDate,
		discount.UsageLimit, discount.MinimumOrderAmount, discount.UpdatedAt)
	updated, err := scanDiscount(row)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.update", err)
	}
	return updated, nil
}

func (r *DiscountRepository) Delete(ctx context.Context, tenantID, discountID string) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("discounts.delete", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM discounts WHERE tenant_id = $1 AND id = $2`, tenantID, discountID)
	if err != nil {
		return ppostgres.WrapError("discounts.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("discounts.delete", "discount "+discountID+" not found")
	}
	return nil
}

func (r *DiscountRepository) FindByID(ctx context.Context, tenantID, discountID string) (domain.Discount, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.findByID", err)
	}
	row := q.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE tenant_id = $1 AND id = $2`, tenantID, discountID)
	discount, err := scanDiscount(row)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.findByID", err)
	}
	return discount, nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, tenantID, code string) (domain.Discount, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.findByCode", err)
	}
	row := q.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE tenant_id = $1 AND code = $2`, tenantID, code)
	discount, err := scanDiscount(row)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.findByCode", err)
	}
	return discount, nil
}

func (r *DiscountRepository) List(ctx context.Context, tenantID string, filter repositories.DiscountListFilter) (domain.Page[domain.Discount], error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Page[domain.Discount]{}, ppostgres.WrapError("discounts.list", err)
	}

	where := `WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where += ` AND active = $` + argn(len(args))
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM discounts `+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.Discount]{}, ppostgres.WrapError("discounts.list", err)
	}

	pager := filter.Pagination
	args = append(args, pager.Limit, offset(pager))
	rows, err := q.Query(ctx, `SELECT `+discountColumns+` FROM discounts `+where+
		` ORDER BY created_at DESC LIMIT $`+argn(len(args)-1)+` OFFSET $`+argn(len(args)), args...)
	if err != nil {
		return domain.Page[domain.Discount]{}, ppostgres.WrapError("discounts.list", err)
	}
	defer rows.Close()

	var discounts []domain.Discount
	for rows.Next() {
		discount, err := scanDiscount(rows)
		if err != nil {
			return domain.Page[domain.Discount]{}, ppostgres.WrapError("discounts.list", err)
		}
		discounts = append(discounts, discount)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Discount]{}, ppostgres.WrapError("discounts.list", err)
	}
	return domain.Page[domain.Discount]{Items: discounts, Meta: domain.NewPageMeta(pager.Page, pager.Limit, total)}, nil
}

func (r *DiscountRepository) LockForUpdate(ctx context.Context, discountID string) (domain.Discount, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.lock", err)
	}
	row := q.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1 FOR UPDATE`, discountID)
	discount, err := scanDiscount(row)
	if err != nil {
		return domain.Discount{}, ppostgres.WrapError("discounts.lock", err)
	}
	return discount, nil
}

func (r *DiscountRepository) AdjustUsedCount(ctx context.Context, discountID string, delta int) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("discounts.adjustUsedCount", err)
	}
	tag, err := q.Exec(ctx, `
		UPDATE discounts SET used_count = used_count + $2, updated_at = now() WHERE id = $1`,
		discountID, delta)
	if err != nil {
		return ppostgres.WrapError("discounts.adjustUsedCount", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("discounts.adjustUsedCount", "discount "+discountID+" not found")
	}
	return nil
}

func (r *DiscountRepository) CountOrders(ctx context.Context, tenantID, discountID string) (int, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return 0, ppostgres.WrapError("discounts.countOrders", err)
	}
	var count int
	if err := q.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE tenant_id = $1 AND discount_id = $2`,
		tenantID, discountID).Scan(&count); err != nil {
		return 0, ppostgres.WrapError("discounts.countOrders", err)
	}
	return count, nil
}

func (r *DiscountRepository) OrderStats(ctx context.Context, tenantID, discountID string, limit int) ([]repositories.DiscountOrderStat, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("discounts.orderStats", err)
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := q.Query(ctx, `
		SELECT id, total, COALESCE(discount_amount, 0), status, created_at
		FROM orders
		WHERE tenant_id = $1 AND discount_id = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		tenantID, discountID, limit)
	if err != nil {
		return nil, ppostgres.WrapError("discounts.orderStats", err)
	}
	defer rows.Close()

	var stats []repositories.DiscountOrderStat
	for rows.Next() {
		var stat repositories.DiscountOrderStat
		if err := rows.Scan(&stat.OrderID, &stat.Total, &stat.DiscountAmount, &stat.Status, &stat.CreatedAt); err != nil {
			return nil, ppostgres.WrapError("discounts.orderStats", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, ppostgres.WrapError("discounts.orderStats", err)
	}
	return stats, nil
}
