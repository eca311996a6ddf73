package repositories

import (
	"context"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Tenants() TenantRepository
	Settings() SettingsRepository
	Users() UserRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Customers() CustomerRepository
	Discounts() DiscountRepository
	Orders() OrderRepository
	AuditLogs() AuditLogRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations into a single transactional boundary.
// Repository calls made with the context passed to fn join the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TenantRepository persists tenants. Removal is a soft delete (deactivation).
type TenantRepository interface {
	Insert(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)
	Update(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)
	SetActive(ctx context.Context, tenantID string, active bool, updatedAt time.Time) (domain.Tenant, error)
	FindByID(ctx context.Context, tenantID string) (domain.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (domain.Tenant, error)
	List(ctx context.Context) ([]domain.Tenant, error)
}

// SettingsRepository stores the single settings row per tenant.
type SettingsRepository interface {
	Insert(ctx context.Context, settings domain.Settings) (domain.Settings, error)
	Update(ctx context.Context, settings domain.Settings) (domain.Settings, error)
	FindByTenant(ctx context.Context, tenantID string) (domain.Settings, error)
	Delete(ctx context.Context, tenantID string) error
}

// UserRepository stores back-office users. Removal is a soft delete.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	SetActive(ctx context.Context, tenantID, userID string, active bool, updatedAt time.Time) (domain.User, error)
	RecordLogin(ctx context.Context, tenantID, userID string, at time.Time) error
	FindByID(ctx context.Context, tenantID, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, tenantID, email string) (domain.User, error)
	List(ctx context.Context, tenantID string, filter UserListFilter) (domain.Page[domain.User], error)
}

// CategoryRepository persists catalog categories.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) (domain.Category, error)
	Update(ctx context.Context, category domain.Category) (domain.Category, error)
	Delete(ctx context.Context, tenantID, categoryID string) error
	FindByID(ctx context.Context, tenantID, categoryID string) (domain.Category, error)
	List(ctx context.Context, tenantID string, pager domain.Pagination) (domain.Page[domain.Category], error)
	CountProducts(ctx context.Context, tenantID, categoryID string) (int, error)
}

// ProductRepository persists products and owns all stock arithmetic.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, tenantID, productID string) error
	FindByID(ctx context.Context, tenantID, productID string) (domain.Product, error)
	List(ctx context.Context, tenantID string, filter ProductListFilter) (domain.Page[domain.Product], error)
	CountOrderItems(ctx context.Context, tenantID, productID string) (int, error)

	// LockForUpdate loads a product row with a row-level write lock. Must be
	// called inside a transaction; the lock is held until commit or rollback.
	LockForUpdate(ctx context.Context, tenantID, productID string) (domain.Product, error)
	// AdjustStock applies an unconditional stock delta (positive or negative).
	AdjustStock(ctx context.Context, productID string, delta int) error
	// SetStock overwrites the absolute stock level.
	SetStock(ctx context.Context, tenantID, productID string, stock int, updatedAt time.Time) (domain.Product, error)
	SetPublished(ctx context.Context, tenantID, productID string, published bool, updatedAt time.Time) (domain.Product, error)
}

// CustomerRepository persists customers.
type CustomerRepository interface {
	Insert(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	Update(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	Delete(ctx context.Context, tenantID, customerID string) error
	FindByID(ctx context.Context, tenantID, customerID string) (domain.Customer, error)
	List(ctx context.Context, tenantID string, filter CustomerListFilter) (domain.Page[domain.Customer], error)
}

// DiscountRepository maintains discount definitions and usage counters.
type DiscountRepository interface {
	Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	Update(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	Delete(ctx context.Context, tenantID, discountID string) error
	FindByID(ctx context.Context, tenantID, discountID string) (domain.Discount, error)
	FindByCode(ctx context.Context, tenantID, code string) (domain.Discount, error)
	List(ctx context.Context, tenantID string, filter DiscountListFilter) (domain.Page[domain.Discount], error)

	// LockForUpdate loads a discount row with a row-level write lock inside
	// the enclosing transaction.
	LockForUpdate(ctx context.Context, discountID string) (domain.Discount, error)
	// AdjustUsedCount applies a usage-counter delta (+1 on apply, -1 on cancel).
	AdjustUsedCount(ctx context.Context, discountID string, delta int) error
	CountOrders(ctx context.Context, tenantID, discountID string) (int, error)
	OrderStats(ctx context.Context, tenantID, discountID string, limit int) ([]DiscountOrderStat, error)
}

// DiscountOrderStat is a projection of an order that used a discount.
type DiscountOrderStat struct {
	OrderID        string
	Total          float64
	DiscountAmount float64
	Status         domain.OrderStatus
	CreatedAt      time.Time
}

// OrderRepository persists order headers and line items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	InsertItems(ctx context.Context, items []domain.OrderItem) error
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	UpdateStatus(ctx context.Context, tenantID, orderID string, status domain.OrderStatus, updatedAt time.Time) error
	FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	List(ctx context.Context, tenantID string, filter OrderListFilter) (domain.Page[domain.Order], error)

	// LockForUpdate loads an order header together with its items, holding a
	// row-level write lock on the header inside the enclosing transaction.
	LockForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, tenantID string, filter AuditLogFilter) ([]domain.AuditLogEntry, error)
	ListPaginated(ctx context.Context, tenantID string, filter AuditLogFilter, pager domain.Pagination) (domain.Page[domain.AuditLogEntry], error)
}

// Filter DTOs shared across repositories ------------------------------------

type UserListFilter struct {
	Role       *domain.UserRole
	IsActive   *bool
	Pagination domain.Pagination
}

type ProductListFilter struct {
	CategoryID  *string
	IsPublished *bool
	LowStock    bool
	Search      string
	Pagination  domain.Pagination
}

type CustomerListFilter struct {
	Search     string
	Pagination domain.Pagination
}

type DiscountListFilter struct {
	Active     *bool
	Pagination domain.Pagination
}

type OrderListFilter struct {
	Status     *domain.OrderStatus
	CustomerID *string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type AuditLogFilter struct {
	Action    string
	Resource  string
	UserID    string
	DateRange domain.RangeQuery[time.Time]
}
