package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

const (
	userIDPrefix      = "usr_"
	defaultBcryptCost = 12
	minPasswordLength = 8
)

var (
	// ErrUserInvalidInput signals the caller provided invalid data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the user could not be located.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUserConflict indicates a duplicate email within the tenant.
	ErrUserConflict = errors.New("user: conflict")
)

// CreateUserCommand captures inputs for a new back-office user.
type CreateUserCommand struct {
	TenantID string
	Email    string
	Password string
	Name     string
	Role     UserRole
	Actor    AuditActor
}

// UpdateUserCommand mutates an existing user. A non-nil Password rotates the
// stored hash.
type UpdateUserCommand struct {
	TenantID string
	UserID   string
	Email    *string
	Password *string
	Name     *string
	Role     *UserRole
	Actor    AuditActor
}

// DeactivateUserCommand soft deletes a user account.
type DeactivateUserCommand struct {
	TenantID string
	UserID   string
	Actor    AuditActor
}

// UserListFilter narrows user listings.
type UserListFilter struct {
	Role       *UserRole
	IsActive   *bool
	Pagination Pagination
}

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
	BcryptCost  int
}

type userService struct {
	users      repositories.UserRepository
	audit      AuditLogService
	clock      func() time.Time
	newID      func() string
	bcryptCost int
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return userIDPrefix + ulid.Make().String() }
	}
	cost := deps.BcryptCost
	if cost == 0 {
		cost = defaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("user service: bcrypt cost %d out of range", cost)
	}
	return &userService{
		users:      deps.Users,
		audit:      deps.Audit,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		bcryptCost: cost,
	}, nil
}

func (s *userService) CreateUser(ctx context.Context, cmd CreateUserCommand) (User, error) {
	email, err := normalizeEmail(cmd.Email)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUserInvalidInput, err)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrUserInvalidInput)
	}
	role, err := validateUserRole(cmd.Role)
	if err != nil {
		return User{}, err
	}
	hash, err := s.hashPassword(cmd.Password)
	if err != nil {
		return User{}, err
	}

	now := s.clock()
	created, err := s.users.Insert(ctx, domain.User{
		ID:           s.newID(),
		TenantID:     cmd.TenantID,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID: cmd.TenantID,
				Actor:    cmd.Actor,
				Action:   domain.ActionUserCreate,
				Resource: domain.ResourceUser,
				Metadata: map[string]any{"email": email},
			}, mapped)
		}
		return User{}, mapped
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionUserCreate,
			Resource:   domain.ResourceUser,
			ResourceID: created.ID,
			Metadata:   map[string]any{"email": created.Email, "role": string(created.Role)},
		})
	}
	return created, nil
}

func (s *userService) GetUser(ctx context.Context, tenantID, userID string) (User, error) {
	user, err := s.users.FindByID(ctx, tenantID, userID)
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, tenantID string, filter UserListFilter) (domain.Page[User], error) {
	page, err := s.users.List(ctx, tenantID, repositories.UserListFilter{
		Role:       filter.Role,
		IsActive:   filter.IsActive,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.Page[User]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *userService) UpdateUser(ctx context.Context, cmd UpdateUserCommand) (User, error) {
	current, err := s.users.FindByID(ctx, cmd.TenantID, cmd.UserID)
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}
	before := current

	if cmd.Email != nil {
		email, err := normalizeEmail(*cmd.Email)
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrUserInvalidInput, err)
		}
		current.Email = email
	}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name must not be empty", ErrUserInvalidInput)
		}
		current.Name = name
	}
	if cmd.Role != nil {
		role, err := validateUserRole(*cmd.Role)
		if err != nil {
			return User{}, err
		}
		current.Role = role
	}
	if cmd.Password != nil {
		hash, err := s.hashPassword(*cmd.Password)
		if err != nil {
			return User{}, err
		}
		current.PasswordHash = hash
	}
	current.UpdatedAt = s.clock()

	updated, err := s.users.Update(ctx, current)
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionUserUpdate,
			Resource:   domain.ResourceUser,
			ResourceID: updated.ID,
			Metadata:   map[string]any{"passwordChanged": cmd.Password != nil},
		}, userAuditView(before), userAuditView(updated))
	}
	return updated, nil
}

// DeactivateUser soft deletes the account. The row stays so audit entries and
// orders keep a resolvable author.
func (s *userService) DeactivateUser(ctx context.Context, cmd DeactivateUserCommand) (User, error) {
	user, err := s.users.SetActive(ctx, cmd.TenantID, cmd.UserID, false, s.clock())
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordDelete(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionUserDelete,
			Resource:   domain.ResourceUser,
			ResourceID: user.ID,
		}, userAuditView(user))
	}
	return user, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrUserInvalidInput, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("user: hash password: %w", err)
	}
	return string(hash), nil
}

func (s *userService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrUserConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("user: repository unavailable: %w", err)
		}
	}
	return err
}

func validateUserRole(role UserRole) (UserRole, error) {
	switch role {
	case domain.RoleAdmin, domain.RoleStaff:
		return role, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, role)
	}
}

func userAuditView(u User) map[string]any {
	return map[string]any{
		"email":    u.Email,
		"name":     u.Name,
		"role":     string(u.Role),
		"isActive": u.IsActive,
	}
}
