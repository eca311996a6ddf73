package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

const customerIDPrefix = "cus_"

var (
	// ErrCustomerInvalidInput signals the caller provided invalid data.
	ErrCustomerInvalidInput = errors.New("customer: invalid input")
	// ErrCustomerNotFound indicates the customer could not be located.
	ErrCustomerNotFound = errors.New("customer: not found")
	// ErrCustomerConflict indicates a duplicate email within the tenant.
	ErrCustomerConflict = errors.New("customer: conflict")
)

// CreateCustomerCommand captures inputs for a new customer.
type CreateCustomerCommand struct {
	TenantID string
	Email    string
	Name     string
	Phone    *string
	Address  *string
	Actor    AuditActor
}

// UpdateCustomerCommand mutates an existing customer.
type UpdateCustomerCommand struct {
	TenantID   string
	CustomerID string
	Email      *string
	Name       *string
	Phone      *string
	Address    *string
	Actor      AuditActor
}

// DeleteCustomerCommand removes a customer. Orders keep their snapshot of the
// customer name and email.
type DeleteCustomerCommand struct {
	TenantID   string
	CustomerID string
	Actor      AuditActor
}

// CustomerListFilter narrows customer listings.
type CustomerListFilter struct {
	Search     string
	Pagination Pagination
}

// CustomerServiceDeps bundles collaborators required to construct the customer service.
type CustomerServiceDeps struct {
	Customers   repositories.CustomerRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
}

type customerService struct {
	customers repositories.CustomerRepository
	audit     AuditLogService
	clock     func() time.Time
	newID     func() string
}

// NewCustomerService wires dependencies into a concrete CustomerService implementation.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: customer repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return customerIDPrefix + ulid.Make().String() }
	}
	return &customerService{
		customers: deps.Customers,
		audit:     deps.Audit,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
	}, nil
}

func (s *customerService) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (Customer, error) {
	email, err := normalizeEmail(cmd.Email)
	if err != nil {
		return Customer{}, fmt.Errorf("%w: %v", ErrCustomerInvalidInput, err)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: name is required", ErrCustomerInvalidInput)
	}

	now := s.clock()
	created, err := s.customers.Insert(ctx, domain.Customer{
		ID:        s.newID(),
		TenantID:  cmd.TenantID,
		Email:     email,
		Name:      name,
		Phone:     cmd.Phone,
		Address:   cmd.Address,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID: cmd.TenantID,
				Actor:    cmd.Actor,
				Action:   domain.ActionCustomerCreate,
				Resource: domain.ResourceCustomer,
				Metadata: map[string]any{"email": email},
			}, mapped)
		}
		return Customer{}, mapped
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionCustomerCreate,
			Resource:   domain.ResourceCustomer,
			ResourceID: created.ID,
			Metadata:   map[string]any{"email": created.Email, "name": created.Name},
		})
	}
	return created, nil
}

func (s *customerService) GetCustomer(ctx context.Context, tenantID, customerID string) (Customer, error) {
	customer, err := s.customers.FindByID(ctx, tenantID, customerID)
	if err != nil {
		return Customer{}, s.mapRepositoryError(err)
	}
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, tenantID string, filter CustomerListFilter) (domain.Page[Customer], error) {
	page, err := s.customers.List(ctx, tenantID, repositories.CustomerListFilter{
		Search:     strings.TrimSpace(filter.Search),
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.Page[Customer]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error) {
	current, err := s.customers.FindByID(ctx, cmd.TenantID, cmd.CustomerID)
	if err != nil {
		return Customer{}, s.mapRepositoryError(err)
	}
	before := current

	if cmd.Email != nil {
		email, err := normalizeEmail(*cmd.Email)
		if err != nil {
			return Customer{}, fmt.Errorf("%w: %v", ErrCustomerInvalidInput, err)
		}
		current.Email = email
	}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Customer{}, fmt.Errorf("%w: name must not be empty", ErrCustomerInvalidInput)
		}
		current.Name = name
	}
	if cmd.Phone != nil {
		current.Phone = cmd.Phone
	}
	if cmd.Address != nil {
		current.Address = cmd.Address
	}
	current.UpdatedAt = s.clock()

	updated, err := s.customers.Update(ctx, current)
	if err != nil {
		return Customer{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionCustomerUpdate,
			Resource:   domain.ResourceCustomer,
			ResourceID: updated.ID,
		}, map[string]any{"email": before.Email, "name": before.Name},
			map[string]any{"email": updated.Email, "name": updated.Name})
	}
	return updated, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, cmd DeleteCustomerCommand) error {
	customer, err := s.customers.FindByID(ctx, cmd.TenantID, cmd.CustomerID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	if err := s.customers.Delete(ctx, cmd.TenantID, cmd.CustomerID); err != nil {
		return s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordDelete(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionCustomerDelete,
			Resource:   domain.ResourceCustomer,
			ResourceID: cmd.CustomerID,
		}, map[string]any{"email": customer.Email, "name": customer.Name})
	}
	return nil
}

func (s *customerService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCustomerNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCustomerConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("customer: repository unavailable: %w", err)
		}
	}
	return err
}

// normalizeEmail lower-cases and validates an address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("invalid email %q", email)
	}
	return email, nil
}
