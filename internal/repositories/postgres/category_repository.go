package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
)

type CategoryRepository struct {
	provider *ppostgres.Provider
}

const categoryColumns = `id, tenant_id, name, description, created_at, updated_at`

func scanCategory(row pgx.Row) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) (domain.Category, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Category{}, ppostgres.WrapError("categories.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO categories (id, tenant_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+categoryColumns,
		category.ID, category.TenantID, category.Name, category.Description,
		category.CreatedAt, category.UpdatedAt)
	created, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, ppostgres.WrapError("categories.insert", err)
	}
	return created, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Category{}, ppostgres.WrapError("categories.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE categories
		SET name = $3, description = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+categoryColumns,
		category.TenantID, category.ID, category.Name, category.Description, category.UpdatedAt)
	updated, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, ppostgres.WrapError("categories.update", err)
	}
	return updated, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, tenantID, categoryID string) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("categories.delete", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM categories WHERE tenant_id = $1 AND id = $2`, tenantID, categoryID)
	if err != nil {
		return ppostgres.WrapError("categories.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("categories.delete", "category "+categoryID+" not found")
	}
	return nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, tenantID, categoryID string) (domain.Category, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Category{}, ppostgres.WrapError("categories.findByID", err)
	}
	row := q.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE tenant_id = $1 AND id = $2`, tenantID, categoryID)
	category, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, ppostgres.WrapError("categories.findByID", err)
	}
	return category, nil
}

func (r *CategoryRepository) List(ctx context.Context, tenantID string, pager domain.Pagination) (domain.Page[domain.Category], error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Page[domain.Category]{}, ppostgres.WrapError("categories.list", err)
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM categories WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return domain.Page[domain.Category]{}, ppostgres.WrapError("categories.list", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE tenant_id = $1
		ORDER BY name ASC
		LIMIT $2 OFFSET $3`,
		tenantID, pager.Limit, offset(pager))
	if err != nil {
		return domain.Page[domain.Category]{}, ppostgres.WrapError("categories.list", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return domain.Page[domain.Category]{}, ppostgres.WrapError("categories.list", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Category]{}, ppostgres.WrapError("categories.list", err)
	}
	return domain.Page[domain.Category]{Items: categories, Meta: domain.NewPageMeta(pager.Page, pager.Limit, total)}, nil
}

func (r *CategoryRepository) CountProducts(ctx context.Context, tenantID, categoryID string) (int, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return 0, ppostgres.WrapError("categories.countProducts", err)
	}
	var count int
	if err := q.QueryRow(ctx, `
		SELECT count(*) FROM products WHERE tenant_id = $1 AND category_id = $2`,
		tenantID, categoryID).Scan(&count); err != nil {
		return 0, ppostgres.WrapError("categories.countProducts", err)
	}
	return count, nil
}
