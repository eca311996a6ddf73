package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
)

func newTestCustomerService(t *testing.T, repo *stubCustomerRepository) CustomerService {
	t.Helper()
	service, err := NewCustomerService(CustomerServiceDeps{
		Customers: repo,
		Clock:     func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing customer service: %v", err)
	}
	return service
}

func TestCustomerServiceCreateCustomerNormalisesEmail(t *testing.T) {
	var inserted domain.Customer
	repo := &stubCustomerRepository{
		insertFunc: func(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
			inserted = customer
			return customer, nil
		},
	}

	service := newTestCustomerService(t, repo)
	created, err := service.CreateCustomer(context.Background(), CreateCustomerCommand{
		TenantID: "tnt_1",
		Email:    " Maria@Example.COM ",
		Name:     " Maria Lopez ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.Email != "maria@example.com" {
		t.Fatalf("expected normalised email, got %q", created.Email)
	}
	if created.Name != "Maria Lopez" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if !strings.HasPrefix(inserted.ID, "cus_") {
		t.Fatalf("expected cus_ id prefix, got %q", inserted.ID)
	}
}

func TestCustomerServiceCreateCustomerValidation(t *testing.T) {
	service := newTestCustomerService(t, &stubCustomerRepository{})

	cases := []struct {
		name string
		cmd  CreateCustomerCommand
	}{
		{"missing email", CreateCustomerCommand{TenantID: "tnt_1", Name: "Maria"}},
		{"bad email", CreateCustomerCommand{TenantID: "tnt_1", Email: "not-an-email", Name: "Maria"}},
		{"missing name", CreateCustomerCommand{TenantID: "tnt_1", Email: "m@example.com"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateCustomer(context.Background(), tc.cmd)
			if !errors.Is(err, ErrCustomerInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestCustomerServiceCreateCustomerMapsDuplicateEmail(t *testing.T) {
	repo := &stubCustomerRepository{
		insertFunc: func(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
			return domain.Customer{}, &repositoryErrorStub{conflict: true}
		},
	}

	service := newTestCustomerService(t, repo)
	_, err := service.CreateCustomer(context.Background(), CreateCustomerCommand{
		TenantID: "tnt_1",
		Email:    "dup@example.com",
		Name:     "Dup",
	})
	if !errors.Is(err, ErrCustomerConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCustomerServiceUpdateCustomerAppliesPartialChanges(t *testing.T) {
	phone := "+57 300 000 0000"
	var updated domain.Customer
	repo := &stubCustomerRepository{
		findByIDFunc: func(ctx context.Context, tenantID, customerID string) (domain.Customer, error) {
			return domain.Customer{
				ID: customerID, TenantID: tenantID,
				Email: "maria@example.com", Name: "Maria Lopez",
			}, nil
		},
		updateFunc: func(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
			updated = customer
			return customer, nil
		},
	}

	service := newTestCustomerService(t, repo)
	_, err := service.UpdateCustomer(context.Background(), UpdateCustomerCommand{
		TenantID:   "tnt_1",
		CustomerID: "cus_1",
		Phone:      &phone,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Phone == nil || *updated.Phone != phone {
		t.Fatalf("expected phone set, got %v", updated.Phone)
	}
	if updated.Email != "maria@example.com" || updated.Name != "Maria Lopez" {
		t.Fatalf("untouched fields must be preserved: %+v", updated)
	}
}

func TestCustomerServiceGetCustomerMapsNotFound(t *testing.T) {
	repo := &stubCustomerRepository{
		findByIDFunc: func(ctx context.Context, tenantID, customerID string) (domain.Customer, error) {
			return domain.Customer{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestCustomerService(t, repo)
	if _, err := service.GetCustomer(context.Background(), "tnt_1", "cus_missing"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
