package postgres

import (
	"context"
	"errors"

	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/repositories"
)

// Registry bundles the Postgres backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *ppostgres.Provider

	tenants    *TenantRepository
	settings   *SettingsRepository
	users      *UserRepository
	categories *CategoryRepository
	products   *ProductRepository
	customers  *CustomerRepository
	discounts  *DiscountRepository
	orders     *OrderRepository
	auditLogs  *AuditLogRepository
}

// NewRegistry wires every repository onto the shared provider.
func NewRegistry(provider *ppostgres.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires postgres provider")
	}
	return &Registry{
		provider:   provider,
		tenants:    &TenantRepository{provider: provider},
		settings:   &SettingsRepository{provider: provider},
		users:      &UserRepository{provider: provider},
		categories: &CategoryRepository{provider: provider},
		products:   &ProductRepository{provider: provider},
		customers:  &CustomerRepository{provider: provider},
		discounts:  &DiscountRepository{provider: provider},
		orders:     &OrderRepository{provider: provider},
		auditLogs:  &AuditLogRepository{provider: provider},
	}, nil
}

func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}

func (r *Registry) Tenants() repositories.TenantRepository      { return r.tenants }
func (r *Registry) Settings() repositories.SettingsRepository   { return r.settings }
func (r *Registry) Users() repositories.UserRepository          { return r.users }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Products() repositories.ProductRepository    { return r.products }
func (r *Registry) Customers() repositories.CustomerRepository  { return r.customers }
func (r *Registry) Discounts() repositories.DiscountRepository  { return r.discounts }
func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) AuditLogs() repositories.AuditLogRepository  { return r.auditLogs }

var _ repositories.Registry = (*Registry)(nil)
