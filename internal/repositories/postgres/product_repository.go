package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/repositories"
)

type ProductRepository struct {
	provider *ppostgres.Provider
}

const productColumns = `p.id, p.tenant_id, p.name, p.description, p.price, p.stock, p.min_stock, p.sku, p.image_url, p.is_published, p.category_id, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.MinStock, &p.SKU, &p.ImageURL, &p.IsPublished, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// scanProductWithCategory expects productColumns followed by the joined
// category name and description.
func scanProductWithCategory(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var catName, catDescription *string
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.MinStock, &p.SKU, &p.ImageURL, &p.IsPublished, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
		&catName, &catDescription)
	if err != nil {
		return domain.Product{}, err
	}
	if p.CategoryID != nil && catName != nil {
		p.Category = &domain.Category{
			ID:          *p.CategoryID,
			TenantID:    p.TenantID,
			Name:        *catName,
			Description: catDescription,
		}
	}
	return p, nil
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) (domain.Product, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO products AS p (id, tenant_id, name, description, price, stock, min_stock, sku, image_url, is_published, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+productColumns,
		product.ID, product.TenantID, product.Name, product.Description, product.Price,
		product.Stock, product.MinStock, product.SKU, product.ImageURL, product.IsPublished,
		product.CategoryID, product.CreatedAt, product.UpdatedAt)
	created, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.insert", err)
	}
	return created, nil
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE products AS p
		SET name = $3, description = $4, price = $5, min_stock = $6, sku = $7,
		    image_url = $8, is_published = $9, category_id = $10, updated_at = $11
		WHERE p.tenant_id = $1 AND p.id = $2
		RETURNING `+productColumns,
		product.TenantID, product.ID, product.Name, product.Description, product.Price,
		product.MinStock, product.SKU, product.ImageURL, product.IsPublished,
		product.CategoryID, product.UpdatedAt)
	updated, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.update", err)
	}
	return updated, nil
}

func (r *ProductRepository) Delete(ctx context.Context, tenantID, productID string) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("products.delete", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, productID)
	if err != nil {
		return ppostgres.WrapError("products.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("products.delete", "product "+productID+" not found")
	}
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, tenantID, productID string) (domain.Product, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.findByID", err)
	}
	row := q.QueryRow(ctx, `
		SELECT `+productColumns+`, c.name, c.description
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = $1 AND p.id = $2`,
		tenantID, productID)
	product, err := scanProductWithCategory(row)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.findByID", err)
	}
	return product, nil
}

func (r *ProductRepository) List(ctx context.Context, tenantID string, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Page[domain.Product]{}, ppostgres.WrapError("products.list", err)
	}

	where := `WHERE p.tenant_id = $1`
	args := []any{tenantID}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		where += ` AND p.category_id = $` + argn(len(args))
	}
	if filter.IsPublished != nil {
		args = append(args, *filter.IsPublished)
		where += ` AND p.is_published = $` + argn(len(args))
	}
	if filter.LowStock {
		where += ` AND p.min_stock IS NOT NULL AND p.stock <= p.min_stock`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := argn(len(args))
		where += ` AND (p.name ILIKE $` + n + ` OR p.sku ILIKE $` + n + `)`
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM products p `+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.Product]{}, ppostgres.WrapError("products.list", err)
	}

	pager := filter.Pagination
	args = append(args, pager.Limit, offset(pager))
	rows, err := q.Query(ctx, `
		SELECT `+productColumns+`, c.name, c.description
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		`+where+`
		ORDER BY p.created_at DESC
		LIMIT $`+argn(len(args)-1)+` OFFSET $`+argn(len(args)), args...)
	if err != nil {
		return domain.Page[domain.Product]{}, ppostgres.WrapError("products.list", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := scanProductWithCategory(rows)
		if err != nil {
			return domain.Page[domain.Product]{}, ppostgres.WrapError("products.list", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Product]{}, ppostgres.WrapError("products.list", err)
	}
	return domain.Page[domain.Product]{Items: products, Meta: domain.NewPageMeta(pager.Page, pager.Limit, total)}, nil
}

func (r *ProductRepository) CountOrderItems(ctx context.Context, tenantID, productID string) (int, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return 0, ppostgres.WrapError("products.countOrderItems", err)
	}
	var count int
	if err := q.QueryRow(ctx, `
		SELECT count(*) FROM order_items WHERE tenant_id = $1 AND product_id = $2`,
		tenantID, productID).Scan(&count); err != nil {
		return 0, ppostgres.WrapError("products.countOrderItems", err)
	}
	return count, nil
}

func (r *ProductRepository) LockForUpdate(ctx context.Context, tenantID, productID string) (domain.Product, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.lock", err)
	}
	row := q.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.tenant_id = $1 AND p.id = $2
		FOR UPDATE`,
		tenantID, productID)
	product, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.lock", err)
	}
	return product, nil
}

func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("products.adjustStock", err)
	}
	tag, err := q.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		productID, delta)
	if err != nil {
		return ppostgres.WrapError("products.adjustStock", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("products.adjustStock", "product "+productID+" not found")
	}
	return nil
}

func (r *ProductRepository) SetStock(ctx context.Context, tenantID, productID string, stock int, updatedAt time.Time) (domain.Product, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.setStock", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE products AS p
		SET stock = $3, updated_at = $4
		WHERE p.tenant_id = $1 AND p.id = $2
		RETURNING `+productColumns,
		tenantID, productID, stock, updatedAt)
	product, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.setStock", err)
	}
	return product, nil
}

func (r *ProductRepository) SetPublished(ctx context.Context, tenantID, productID string, published bool, updatedAt time.Time) (domain.Product, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.setPublished", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE products AS p
		SET is_published = $3, updated_at = $4
		WHERE p.tenant_id = $1 AND p.id = $2
		RETURNING `+productColumns,
		tenantID, productID, published, updatedAt)
	product, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, ppostgres.WrapError("products.setPublished", err)
	}
	return product, nil
}
