package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/repositories"
)

type OrderRepository struct {
	provider *ppostgres.Provider
}

const orderColumns = `o.id, o.tenant_id, o.customer_name, o.customer_email, o.customer_id, o.status, o.subtotal, o.discount_id, o.discount_amount, o.total, o.shipping_address, o.notes, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.TenantID, &o.CustomerName, &o.CustomerEmail, &o.CustomerID,
		&o.Status, &o.Subtotal, &o.DiscountID, &o.DiscountAmount, &o.Total,
		&o.ShippingAddress, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO orders AS o (id, tenant_id, customer_name, customer_email, customer_id, status, subtotal, discount_id, discount_amount, total, shipping_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+orderColumns,
		order.ID, order.TenantID, order.CustomerName, order.CustomerEmail, order.CustomerID,
		order.Status, order.Subtotal, order.DiscountID, order.DiscountAmount, order.Total,
		order.ShippingAddress, order.Notes, order.CreatedAt, order.UpdatedAt)
	created, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.insert", err)
	}
	return created, nil
}

func (r *OrderRepository) InsertItems(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("orders.insertItems", err)
	}
	for _, item := range items {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, tenant_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.OrderID, item.ProductID, item.TenantID,
			item.Quantity, item.UnitPrice, item.TotalPrice); err != nil {
			return ppostgres.WrapError("orders.insertItems", err)
		}
	}
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE orders AS o
		SET customer_name = $3, customer_email = $4, shipping_address = $5, notes = $6, updated_at = $7
		WHERE o.tenant_id = $1 AND o.id = $2
		RETURNING `+orderColumns,
		order.TenantID, order.ID, order.CustomerName, order.CustomerEmail,
		order.ShippingAddress, order.Notes, order.UpdatedAt)
	updated, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.update", err)
	}
	return updated, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tenantID, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("orders.updateStatus", err)
	}
	tag, err := q.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`,
		tenantID, orderID, status, updatedAt)
	if err != nil {
		return ppostgres.WrapError("orders.updateStatus", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("orders.updateStatus", "order "+orderID+" not found")
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.findByID", err)
	}
	row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.tenant_id = $1 AND o.id = $2`, tenantID, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.findByID", err)
	}
	if err := r.loadItems(ctx, q, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) List(ctx context.Context, tenantID string, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Page[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}

	where := `WHERE o.tenant_id = $1`
	args := []any{tenantID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += ` AND o.status = $` + argn(len(args))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		where += ` AND o.customer_id = $` + argn(len(args))
	}
	if filter.DateRange.From != nil {
		args = append(args, *filter.DateRange.From)
		where += ` AND o.created_at >= $` + argn(len(args))
	}
	if filter.DateRange.To != nil {
		args = append(args, *filter.DateRange.To)
		where += ` AND o.created_at <= $` + argn(len(args))
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM orders o `+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}

	pager := filter.Pagination
	args = append(args, pager.Limit, offset(pager))
	rows, err := q.Query(ctx, `
		SELECT `+orderColumns+`, (SELECT count(*) FROM order_items i WHERE i.order_id = o.id)
		FROM orders o
		`+where+`
		ORDER BY o.created_at DESC
		LIMIT $`+argn(len(args)-1)+` OFFSET $`+argn(len(args)), args...)
	if err != nil {
		return domain.Page[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.TenantID, &o.CustomerName, &o.CustomerEmail, &o.CustomerID,
			&o.Status, &o.Subtotal, &o.DiscountID, &o.DiscountAmount, &o.Total,
			&o.ShippingAddress, &o.Notes, &o.CreatedAt, &o.UpdatedAt, &o.ItemCount); err != nil {
			return domain.Page[domain.Order]{}, ppostgres.WrapError("orders.list", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}
	return domain.Page[domain.Order]{Items: orders, Meta: domain.NewPageMeta(pager.Page, pager.Limit, total)}, nil
}

func (r *OrderRepository) LockForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.lock", err)
	}
	row := q.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.tenant_id = $1 AND o.id = $2
		FOR UPDATE`,
		tenantID, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.lock", err)
	}
	if err := r.loadItems(ctx, q, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, q ppostgres.Querier, order *domain.Order) error {
	rows, err := q.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.tenant_id, i.quantity, i.unit_price, i.total_price, p.name
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.id`,
		order.ID)
	if err != nil {
		return ppostgres.WrapError("orders.loadItems", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var productName string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.TenantID,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &productName); err != nil {
			return ppostgres.WrapError("orders.loadItems", err)
		}
		item.Product = &domain.Product{ID: item.ProductID, TenantID: item.TenantID, Name: productName}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return ppostgres.WrapError("orders.loadItems", err)
	}
	order.Items = items
	order.ItemCount = len(items)
	return nil
}
