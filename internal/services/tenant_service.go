package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

const (
	tenantIDPrefix   = "tnt_"
	settingsIDPrefix = "set_"

	defaultCurrency      = "COP"
	defaultLocale        = "es-CO"
	defaultTimezone      = "UTC"
	defaultInvoicePrefix = "INV-"
)

var (
	// ErrTenantInvalidInput signals the caller provided invalid data.
	ErrTenantInvalidInput = errors.New("tenant: invalid input")
	// ErrTenantNotFound indicates the tenant could not be located.
	ErrTenantNotFound = errors.New("tenant: not found")
	// ErrTenantConflict indicates a duplicate slug.
	ErrTenantConflict = errors.New("tenant: conflict")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CreateTenantCommand captures inputs for provisioning a new tenant.
type CreateTenantCommand struct {
	Name  string
	Slug  string
	Actor AuditActor
}

// UpdateTenantCommand mutates an existing tenant.
type UpdateTenantCommand struct {
	TenantID string
	Name     *string
	Slug     *string
	Actor    AuditActor
}

// TenantActivationCommand toggles a tenant's active flag.
type TenantActivationCommand struct {
	TenantID string
	Actor    AuditActor
}

// TenantServiceDeps bundles collaborators required to construct the tenant service.
type TenantServiceDeps struct {
	Tenants     repositories.TenantRepository
	Settings    repositories.SettingsRepository
	Audit       AuditLogService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
}

type tenantService struct {
	tenants  repositories.TenantRepository
	settings repositories.SettingsRepository
	audit    AuditLogService
	uow      repositories.UnitOfWork
	clock    func() time.Time
	newID    func() string
}

// NewTenantService wires dependencies into a concrete TenantService implementation.
func NewTenantService(deps TenantServiceDeps) (TenantService, error) {
	if deps.Tenants == nil {
		return nil, errors.New("tenant service: tenant repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("tenant service: settings repository is required")
	}
	uow := deps.UnitOfWork
	if uow == nil {
		uow = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return tenantIDPrefix + ulid.Make().String() }
	}
	return &tenantService{
		tenants:  deps.Tenants,
		settings: deps.Settings,
		audit:    deps.Audit,
		uow:      uow,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
	}, nil
}

// CreateTenant provisions the tenant together with its default settings row
// in a single transaction so a tenant never exists without settings.
func (s *tenantService) CreateTenant(ctx context.Context, cmd CreateTenantCommand) (Tenant, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Tenant{}, fmt.Errorf("%w: name is required", ErrTenantInvalidInput)
	}
	slug := normalizeSlug(cmd.Slug)
	if !slugPattern.MatchString(slug) {
		return Tenant{}, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrTenantInvalidInput)
	}

	var created Tenant
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		now := s.clock()
		tenant, err := s.tenants.Insert(ctx, domain.Tenant{
			ID:        s.newID(),
			Name:      name,
			Slug:      slug,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return s.mapRepositoryError(err)
		}

		invoicePrefix := defaultInvoicePrefix
		if _, err := s.settings.Insert(ctx, domain.Settings{
			ID:            settingsIDPrefix + ulid.Make().String(),
			TenantID:      tenant.ID,
			CompanyName:   name,
			Currency:      defaultCurrency,
			Locale:        defaultLocale,
			Timezone:      defaultTimezone,
			InvoicePrefix: &invoicePrefix,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return s.mapRepositoryError(err)
		}

		created = tenant
		return nil
	})
	if err != nil {
		return Tenant{}, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   created.ID,
			Actor:      cmd.Actor,
			Action:     domain.ActionTenantCreate,
			Resource:   domain.ResourceTenant,
			ResourceID: created.ID,
			Metadata:   map[string]any{"name": created.Name, "slug": created.Slug},
		})
	}
	return created, nil
}

func (s *tenantService) GetTenant(ctx context.Context, tenantID string) (Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return Tenant{}, s.mapRepositoryError(err)
	}
	return tenant, nil
}

func (s *tenantService) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	tenant, err := s.tenants.FindBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		return Tenant{}, s.mapRepositoryError(err)
	}
	return tenant, nil
}

func (s *tenantService) ListTenants(ctx context.Context) ([]Tenant, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return tenants, nil
}

func (s *tenantService) UpdateTenant(ctx context.Context, cmd UpdateTenantCommand) (Tenant, error) {
	current, err := s.tenants.FindByID(ctx, cmd.TenantID)
	if err != nil {
		return Tenant{}, s.mapRepositoryError(err)
	}
	before := current

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Tenant{}, fmt.Errorf("%w: name must not be empty", ErrTenantInvalidInput)
		}
		current.Name = name
	}
	if cmd.Slug != nil {
		slug := normalizeSlug(*cmd.Slug)
		if !slugPattern.MatchString(slug) {
			return Tenant{}, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrTenantInvalidInput)
		}
		current.Slug = slug
	}
	current.UpdatedAt = s.clock()

	updated, err := s.tenants.Update(ctx, current)
	if err != nil {
		return Tenant{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   updated.ID,
			Actor:      cmd.Actor,
			Action:     domain.ActionTenantUpdate,
			Resource:   domain.ResourceTenant,
			ResourceID: updated.ID,
		}, map[string]any{"name": before.Name, "slug": before.Slug},
			map[string]any{"name": updated.Name, "slug": updated.Slug})
	}
	return updated, nil
}

// DeactivateTenant soft deletes the tenant. All data stays in place and the
// tenant can be reactivated later.
func (s *tenantService) DeactivateTenant(ctx context.Context, cmd TenantActivationCommand) (Tenant, error) {
	return s.setActive(ctx, cmd, false, domain.ActionTenantDeactivate)
}

func (s *tenantService) ActivateTenant(ctx context.Context, cmd TenantActivationCommand) (Tenant, error) {
	return s.setActive(ctx, cmd, true, domain.ActionTenantActivate)
}

func (s *tenantService) setActive(ctx context.Context, cmd TenantActivationCommand, active bool, action string) (Tenant, error) {
	tenant, err := s.tenants.SetActive(ctx, cmd.TenantID, active, s.clock())
	if err != nil {
		return Tenant{}, s.mapRepositoryError(err)
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   tenant.ID,
			Actor:      cmd.Actor,
			Action:     action,
			Resource:   domain.ResourceTenant,
			ResourceID: tenant.ID,
		})
	}
	return tenant, nil
}

func (s *tenantService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrTenantNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrTenantConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("tenant: repository unavailable: %w", err)
		}
	}
	return err
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
