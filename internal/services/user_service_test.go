package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

type stubUserRepository struct {
	insertFunc      func(ctx context.Context, user domain.User) (domain.User, error)
	updateFunc      func(ctx context.Context, user domain.User) (domain.User, error)
	setActiveFunc   func(ctx context.Context, tenantID, userID string, active bool, updatedAt time.Time) (domain.User, error)
	recordLoginFunc func(ctx context.Context, tenantID, userID string, at time.Time) error
	findByIDFunc    func(ctx context.Context, tenantID, userID string) (domain.User, error)
	findByEmailFunc func(ctx context.Context, tenantID, email string) (domain.User, error)
	listFunc        func(ctx context.Context, tenantID string, filter repositories.UserListFilter) (domain.Page[domain.User], error)
}

func (s *stubUserRepository) Insert(ctx context.Context, user domain.User) (domain.User, error) {
	if s.insertFunc == nil {
		return domain.User{}, errUnexpectedCall
	}
	return s.insertFunc(ctx, user)
}

func (s *stubUserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	if s.updateFunc == nil {
		return domain.User{}, errUnexpectedCall
	}
	return s.updateFunc(ctx, user)
}

func (s *stubUserRepository) SetActive(ctx context.Context, tenantID, userID string, active bool, updatedAt time.Time) (domain.User, error) {
	if s.setActiveFunc == nil {
		return domain.User{}, errUnexpectedCall
	}
	return s.setActiveFunc(ctx, tenantID, userID, active, updatedAt)
}

func (s *stubUserRepository) RecordLogin(ctx context.Context, tenantID, userID string, at time.Time) error {
	if s.recordLoginFunc == nil {
		return errUnexpectedCall
	}
	return s.recordLoginFunc(ctx, tenantID, userID, at)
}

func (s *stubUserRepository) FindByID(ctx context.Context, tenantID, userID string) (domain.User, error) {
	if s.findByIDFunc == nil {
		return domain.User{}, errUnexpectedCall
	}
	return s.findByIDFunc(ctx, tenantID, userID)
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, tenantID, email string) (domain.User, error) {
	if s.findByEmailFunc == nil {
		return domain.User{}, errUnexpectedCall
	}
	return s.findByEmailFunc(ctx, tenantID, email)
}

func (s *stubUserRepository) List(ctx context.Context, tenantID string, filter repositories.UserListFilter) (domain.Page[domain.User], error) {
	if s.listFunc == nil {
		return domain.Page[domain.User]{}, errUnexpectedCall
	}
	return s.listFunc(ctx, tenantID, filter)
}

func newTestUserService(t *testing.T, repo *stubUserRepository) UserService {
	t.Helper()
	service, err := NewUserService(UserServiceDeps{
		Users: repo,
		// MinCost keeps the hashing fast in tests.
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing user service: %v", err)
	}
	return service
}

func TestUserServiceCreateUserHashesPassword(t *testing.T) {
	var inserted domain.User
	repo := &stubUserRepository{
		insertFunc: func(ctx context.Context, user domain.User) (domain.User, error) {
			inserted = user
			return user, nil
		},
	}

	service := newTestUserService(t, repo)
	created, err := service.CreateUser(context.Background(), CreateUserCommand{
		TenantID: "tnt_1",
		Email:    " Staff@Example.COM ",
		Password: "s3cret-pass",
		Name:     "Laura Gomez",
		Role:     domain.RoleStaff,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.Email != "staff@example.com" {
		t.Fatalf("expected normalised email, got %q", created.Email)
	}
	if inserted.PasswordHash == "s3cret-pass" || inserted.PasswordHash == "" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(inserted.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
	if !inserted.IsActive {
		t.Fatalf("expected new user to be active")
	}
	if !strings.HasPrefix(inserted.ID, "usr_") {
		t.Fatalf("expected usr_ id prefix, got %q", inserted.ID)
	}
}

func TestUserServiceCreateUserValidation(t *testing.T) {
	service := newTestUserService(t, &stubUserRepository{})

	cases := []struct {
		name string
		cmd  CreateUserCommand
	}{
		{"bad email", CreateUserCommand{Email: "not-an-email", Password: "longenough", Name: "A", Role: domain.RoleStaff}},
		{"short password", CreateUserCommand{Email: "a@example.com", Password: "short", Name: "A", Role: domain.RoleStaff}},
		{"missing name", CreateUserCommand{Email: "a@example.com", Password: "longenough", Role: domain.RoleStaff}},
		{"unknown role", CreateUserCommand{Email: "a@example.com", Password: "longenough", Name: "A", Role: domain.UserRole("owner")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateUser(context.Background(), tc.cmd)
			if !errors.Is(err, ErrUserInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestUserServiceCreateUserMapsDuplicateEmail(t *testing.T) {
	repo := &stubUserRepository{
		insertFunc: func(ctx context.Context, user domain.User) (domain.User, error) {
			return domain.User{}, &repositoryErrorStub{conflict: true}
		},
	}

	service := newTestUserService(t, repo)
	_, err := service.CreateUser(context.Background(), CreateUserCommand{
		TenantID: "tnt_1",
		Email:    "dup@example.com",
		Password: "longenough",
		Name:     "Dup",
		Role:     domain.RoleAdmin,
	})
	if !errors.Is(err, ErrUserConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestUserServiceDeactivateUserIsSoftDelete(t *testing.T) {
	repo := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, tenantID, userID string) (domain.User, error) {
			return domain.User{ID: userID, TenantID: tenantID, Email: "a@example.com", IsActive: true}, nil
		},
		setActiveFunc: func(ctx context.Context, tenantID, userID string, active bool, updatedAt time.Time) (domain.User, error) {
			if active {
				t.Fatalf("expected deactivation")
			}
			return domain.User{ID: userID, TenantID: tenantID, Email: "a@example.com", IsActive: false}, nil
		},
	}

	service := newTestUserService(t, repo)
	user, err := service.DeactivateUser(context.Background(), DeactivateUserCommand{
		TenantID: "tnt_1",
		UserID:   "usr_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.IsActive {
		t.Fatalf("expected inactive user")
	}
}
