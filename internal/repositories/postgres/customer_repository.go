package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/repositories"
)

type CustomerRepository struct {
	provider *ppostgres.Provider
}

const customerColumns = `id, tenant_id, email, name, phone, address, created_at, updated_at`

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Email, &c.Name, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CustomerRepository) Insert(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO customers (id, tenant_id, email, name, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+customerColumns,
		customer.ID, customer.TenantID, customer.Email, customer.Name, customer.Phone,
		customer.Address, customer.CreatedAt, customer.UpdatedAt)
	created, err := scanCustomer(row)
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.insert", err)
	}
	return created, nil
}

func (r *CustomerRepository) Update(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE customers
		SET email = $3, name = $4, phone = $5, address = $6, updated_at = $7
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+customerColumns,
		customer.TenantID, customer.ID, customer.Email, customer.Name, customer.Phone,
		customer.Address, customer.UpdatedAt)
	updated, err := scanCustomer(row)
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.update", err)
	}
	return updated, nil
}

func (r *CustomerRepository) Delete(ctx context.Context, tenantID, customerID string) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("customers.delete", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, customerID)
	if err != nil {
		return ppostgres.WrapError("customers.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("customers.delete", "customer "+customerID+" not found")
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, tenantID, customerID string) (domain.Customer, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.findByID", err)
	}
	row := q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, customerID)
	customer, err := scanCustomer(row)
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.findByID", err)
	}
	return customer, nil
}

func (r *CustomerRepository) List(ctx context.Context, tenantID string, filter repositories.CustomerListFilter) (domain.Page[domain.Customer], error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Page[domain.Customer]{}, ppostgres.WrapError("customers.list", err)
	}

	where := `WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := argn(len(args))
		where += ` AND (name ILIKE $` + n + ` OR email ILIKE $` + n + `)`
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM customers `+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.Customer]{}, ppostgres.WrapError("customers.list", err)
	}

	pager := filter.Pagination
	args = append(args, pager.Limit, offset(pager))
	rows, err := q.Query(ctx, `SELECT `+customerColumns+` FROM customers `+where+
		` ORDER BY created_at DESC LIMIT $`+argn(len(args)-1)+` OFFSET $`+argn(len(args)), args...)
	if err != nil {
		return domain.Page[domain.Customer]{}, ppostgres.WrapError("customers.list", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return domain.Page[domain.Customer]{}, ppostgres.WrapError("customers.list", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Customer]{}, ppostgres.WrapError("customers.list", err)
	}
	return domain.Page[domain.Customer]{Items: customers, Meta: domain.NewPageMeta(pager.Page, pager.Limit, total)}, nil
}
