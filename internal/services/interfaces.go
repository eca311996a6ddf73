package services

import (
	"context"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	Tenant        = domain.Tenant
	Settings      = domain.Settings
	User          = domain.User
	UserRole      = domain.UserRole
	Category      = domain.Category
	Product       = domain.Product
	Customer      = domain.Customer
	Discount      = domain.Discount
	DiscountType  = domain.DiscountType
	Order         = domain.Order
	OrderItem     = domain.OrderItem
	OrderStatus   = domain.OrderStatus
	AuditLogEntry = domain.AuditLogEntry
)

// TenantService manages tenant lifecycle including default settings provisioning.
type TenantService interface {
	CreateTenant(ctx context.Context, cmd CreateTenantCommand) (Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	UpdateTenant(ctx context.Context, cmd UpdateTenantCommand) (Tenant, error)
	DeactivateTenant(ctx context.Context, cmd TenantActivationCommand) (Tenant, error)
	ActivateTenant(ctx context.Context, cmd TenantActivationCommand) (Tenant, error)
}

// SettingsService reads and mutates per-tenant preferences.
type SettingsService interface {
	GetSettings(ctx context.Context, tenantID string) (Settings, error)
	UpdateSettings(ctx context.Context, cmd UpdateSettingsCommand) (Settings, error)
}

// CatalogService manages categories and products.
type CatalogService interface {
	CreateCategory(ctx context.Context, cmd CreateCategoryCommand) (Category, error)
	GetCategory(ctx context.Context, tenantID, categoryID string) (Category, error)
	ListCategories(ctx context.Context, tenantID string, pager Pagination) (domain.Page[Category], error)
	UpdateCategory(ctx context.Context, cmd UpdateCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) error

	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	GetProduct(ctx context.Context, tenantID, productID string) (Product, error)
	ListProducts(ctx context.Context, tenantID string, filter ProductListFilter) (domain.Page[Product], error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, cmd DeleteProductCommand) error
	SetProductPublished(ctx context.Context, cmd PublishProductCommand) (Product, error)
}

// InventoryService owns all stock arithmetic. Decrement and Restore must be
// called inside an enclosing transaction so row locks span the whole order
// mutation.
type InventoryService interface {
	Decrement(ctx context.Context, tenantID string, lines []StockLine) ([]Product, error)
	Restore(ctx context.Context, tenantID string, lines []StockLine) error
	SetStock(ctx context.Context, cmd SetStockCommand) (Product, error)
	ListLowStock(ctx context.Context, tenantID string, pager Pagination) (domain.Page[Product], error)
}

// StockLine names a quantity against a product.
type StockLine struct {
	ProductID string
	Quantity  int
}

// DiscountService manages discount codes and standalone validation.
type DiscountService interface {
	CreateDiscount(ctx context.Context, cmd CreateDiscountCommand) (Discount, error)
	GetDiscount(ctx context.Context, tenantID, discountID string) (Discount, error)
	ListDiscounts(ctx context.Context, tenantID string, filter DiscountListFilter) (domain.Page[Discount], error)
	UpdateDiscount(ctx context.Context, cmd UpdateDiscountCommand) (Discount, error)
	DeleteDiscount(ctx context.Context, cmd DeleteDiscountCommand) error
	ValidateDiscount(ctx context.Context, query ValidateDiscountQuery) (DiscountValidation, error)
	DiscountStats(ctx context.Context, tenantID, discountID string) (DiscountStats, error)
}

// OrderService orchestrates the order workflow.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (Order, error)
	ListOrders(ctx context.Context, tenantID string, filter OrderListFilter) (domain.Page[Order], error)
	UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// CustomerService manages the customer directory.
type CustomerService interface {
	CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (Customer, error)
	GetCustomer(ctx context.Context, tenantID, customerID string) (Customer, error)
	ListCustomers(ctx context.Context, tenantID string, filter CustomerListFilter) (domain.Page[Customer], error)
	UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error)
	DeleteCustomer(ctx context.Context, cmd DeleteCustomerCommand) error
}

// UserService manages back-office operator accounts.
type UserService interface {
	CreateUser(ctx context.Context, cmd CreateUserCommand) (User, error)
	GetUser(ctx context.Context, tenantID, userID string) (User, error)
	ListUsers(ctx context.Context, tenantID string, filter UserListFilter) (domain.Page[User], error)
	UpdateUser(ctx context.Context, cmd UpdateUserCommand) (User, error)
	DeactivateUser(ctx context.Context, cmd DeactivateUserCommand) (User, error)
}

// AuthService issues and revokes API tokens.
type AuthService interface {
	Login(ctx context.Context, cmd LoginCommand) (TokenPair, error)
	Refresh(ctx context.Context, cmd RefreshCommand) (TokenPair, error)
	Logout(ctx context.Context, cmd LogoutCommand) error
}

// UploadService stores tenant-scoped images and returns public URLs.
type UploadService interface {
	UploadImage(ctx context.Context, cmd UploadImageCommand) (string, error)
	DeleteImage(ctx context.Context, tenantID, objectName string) error
}

// AuditLogService records and queries the immutable audit trail.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	RecordFailure(ctx context.Context, record AuditLogRecord, cause error)
	RecordUpdate(ctx context.Context, record AuditLogRecord, before, after any)
	RecordDelete(ctx context.Context, record AuditLogRecord, deleted any)
	List(ctx context.Context, tenantID string, filter AuditLogFilter) ([]AuditLogEntry, error)
	ListPaginated(ctx context.Context, tenantID string, filter AuditLogFilter, pager Pagination) (domain.Page[AuditLogEntry], error)
}

// AuditLogFilter narrows audit trail reads.
type AuditLogFilter struct {
	Action    string
	Resource  string
	UserID    string
	DateRange domain.RangeQuery[time.Time]
}
