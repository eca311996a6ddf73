package domain

import "time"

// Tenant represents an isolated store whose data is never visible to another tenant.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Settings stores per-tenant preferences. Exactly one row exists per tenant.
type Settings struct {
	ID             string
	TenantID       string
	CompanyName    string
	CompanyLogoURL *string
	Currency       string
	Locale         string
	Timezone       string
	InvoicePrefix  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserRole enumerates back-office user roles.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleStaff UserRole = "staff"
)

// User is a back-office operator belonging to a single tenant.
type User struct {
	ID              string
	TenantID        string
	Email           string
	PasswordHash    string
	Name            string
	Role            UserRole
	IsActive        bool
	LastLoginAt     *time.Time
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Category groups products for navigation. Names are unique per tenant.
type Category struct {
	ID          string
	TenantID    string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Product is a sellable item. Stock is only mutated through the inventory
// ledger inside an order transaction or the explicit stock endpoint.
type Product struct {
	ID          string
	TenantID    string
	Name        string
	Description *string
	Price       float64
	Stock       int
	MinStock    *int
	SKU         *string
	ImageURL    *string
	IsPublished bool
	CategoryID  *string
	Category    *Category
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Customer places orders with a tenant. Emails are unique per tenant.
type Customer struct {
	ID        string
	TenantID  string
	Email     string
	Name      string
	Phone     *string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DiscountType selects how a discount value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a promotional code redeemable against an order subtotal.
// Codes are stored upper-case and are unique per tenant.
type Discount struct {
	ID                 string
	TenantID           string
	Code               string
	Description        *string
	Type               DiscountType
	Value              float64
	Active             bool
	StartDate          *time.Time
	EndDate            *time.Time
	UsageLimit         *int
	UsedCount          int
	MinimumOrderAmount *float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderStatus is the explicit order lifecycle state.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a customer purchase. Monetary fields are snapshots taken at
// creation time; Total = Subtotal - DiscountAmount.
type Order struct {
	ID              string
	TenantID        string
	CustomerName    string
	CustomerEmail   *string
	CustomerID      *string
	Customer        *Customer
	Status          OrderStatus
	Subtotal        float64
	DiscountID      *string
	Discount        *Discount
	DiscountAmount  *float64
	Total           float64
	ShippingAddress *string
	Notes           *string
	Items           []OrderItem
	ItemCount       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is one product line within an order, priced at purchase time.
// Immutable once created.
type OrderItem struct {
	ID         string
	OrderID    string
	ProductID  string
	Product    *Product
	TenantID   string
	Quantity   int
	UnitPrice  float64
	TotalPrice float64
}

// AuditLogEntry records a state-changing action. Append-only; the core never
// updates or deletes entries.
type AuditLogEntry struct {
	ID         string
	TenantID   string
	UserID     *string
	UserEmail  *string
	UserName   *string
	Action     string
	Resource   string
	ResourceID *string
	Metadata   map[string]any
	IPAddress  *string
	UserAgent  *string
	CreatedAt  time.Time
}

// RangeQuery represents inclusive range filters for timestamp fields; a nil
// bound leaves that side open.
type RangeQuery[T any] struct {
	From *T
	To   *T
}

// Pagination carries offset paging parameters for list operations.
type Pagination struct {
	Page  int
	Limit int
}

// PageMeta describes an offset-paginated result set.
type PageMeta struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	ItemsPerPage    int  `json:"itemsPerPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Page bundles items with their pagination metadata.
type Page[T any] struct {
	Items []T
	Meta  PageMeta
}

// NewPageMeta computes pagination metadata from totals.
func NewPageMeta(page, limit, total int) PageMeta {
	if limit <= 0 {
		limit = 1
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (total + limit - 1) / limit
	return PageMeta{
		CurrentPage:     page,
		TotalPages:      totalPages,
		TotalItems:      total,
		ItemsPerPage:    limit,
		HasNextPage:     page*limit < total,
		HasPreviousPage: page > 1,
	}
}
