package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/auth"
	"github.com/quadro-commerce/api/internal/repositories"
)

const tokenIDPrefix = "tok_"

var (
	// ErrAuthInvalidCredentials covers unknown emails and wrong passwords alike
	// so responses do not reveal which one failed.
	ErrAuthInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAuthInactiveUser rejects sign-in for deactivated accounts.
	ErrAuthInactiveUser = errors.New("auth: user is inactive")
	// ErrAuthInvalidToken rejects malformed, expired, or mistyped tokens.
	ErrAuthInvalidToken = errors.New("auth: invalid token")
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             User
}

// LoginCommand carries sign-in credentials for a tenant.
type LoginCommand struct {
	TenantID string
	Email    string
	Password string
	Actor    AuditActor
}

// RefreshCommand exchanges a refresh token for a new token pair.
type RefreshCommand struct {
	RefreshToken string
	Actor        AuditActor
}

// LogoutCommand revokes the presented tokens.
type LogoutCommand struct {
	AccessToken  string
	RefreshToken string
	Actor        AuditActor
}

// TokenRevoker denylists token ids until their natural expiry.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// AuthServiceDeps bundles collaborators required to construct the auth service.
type AuthServiceDeps struct {
	Users       repositories.UserRepository
	Issuer      *auth.TokenIssuer
	Revocations TokenRevoker
	Audit       AuditLogService
	Clock       func() time.Time
	Logger      AuditLogger
}

type authService struct {
	users       repositories.UserRepository
	issuer      *auth.TokenIssuer
	revocations TokenRevoker
	audit       AuditLogService
	clock       func() time.Time
	logger      AuditLogger
}

// NewAuthService wires dependencies into a concrete AuthService implementation.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Users == nil {
		return nil, errors.New("auth service: user repository is required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("auth service: token issuer is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopAuditLogger{}
	}
	return &authService{
		users:       deps.Users,
		issuer:      deps.Issuer,
		revocations: deps.Revocations,
		audit:       deps.Audit,
		clock:       func() time.Time { return clock().UTC() },
		logger:      logger,
	}, nil
}

func (s *authService) Login(ctx context.Context, cmd LoginCommand) (TokenPair, error) {
	email, err := normalizeEmail(cmd.Email)
	if err != nil {
		return TokenPair{}, ErrAuthInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, cmd.TenantID, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			s.recordLoginFailure(ctx, cmd, email, ErrAuthInvalidCredentials)
			return TokenPair{}, ErrAuthInvalidCredentials
		}
		return TokenPair{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)) != nil {
		s.recordLoginFailure(ctx, cmd, email, ErrAuthInvalidCredentials)
		return TokenPair{}, ErrAuthInvalidCredentials
	}
	if !user.IsActive {
		s.recordLoginFailure(ctx, cmd, email, ErrAuthInactiveUser)
		return TokenPair{}, ErrAuthInactiveUser
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.users.RecordLogin(ctx, user.TenantID, user.ID, s.clock()); err != nil {
		s.logger.Warnf("record login for %s failed: %v", user.ID, err)
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   user.TenantID,
			Actor:      loginActor(cmd.Actor, user),
			Action:     domain.ActionUserLogin,
			Resource:   domain.ResourceUser,
			ResourceID: user.ID,
		})
	}
	return pair, nil
}

// Refresh rotates the token pair: the presented refresh token is verified,
// denylisted for its remaining lifetime, and replaced.
func (s *authService) Refresh(ctx context.Context, cmd RefreshCommand) (TokenPair, error) {
	claims, err := s.issuer.Verify(cmd.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrAuthInvalidToken, err)
	}

	user, err := s.users.FindByID(ctx, claims.TenantID, claims.Subject)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return TokenPair{}, ErrAuthInvalidToken
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrAuthInactiveUser
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}
	s.revokeClaims(ctx, claims)

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   user.TenantID,
			Actor:      loginActor(cmd.Actor, user),
			Action:     domain.ActionUserRefreshToken,
			Resource:   domain.ResourceUser,
			ResourceID: user.ID,
		})
	}
	return pair, nil
}

// Logout denylists whichever tokens are presented. Invalid or already expired
// tokens are ignored so logout never fails for the client.
func (s *authService) Logout(ctx context.Context, cmd LogoutCommand) error {
	var tenantID, userID string
	if cmd.AccessToken != "" {
		if claims, err := s.issuer.Verify(cmd.AccessToken, auth.TokenTypeAccess); err == nil {
			s.revokeClaims(ctx, claims)
			tenantID, userID = claims.TenantID, claims.Subject
		}
	}
	if cmd.RefreshToken != "" {
		if claims, err := s.issuer.Verify(cmd.RefreshToken, auth.TokenTypeRefresh); err == nil {
			s.revokeClaims(ctx, claims)
			tenantID, userID = claims.TenantID, claims.Subject
		}
	}

	if s.audit != nil && tenantID != "" {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   tenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionUserLogout,
			Resource:   domain.ResourceUser,
			ResourceID: userID,
		})
	}
	return nil
}

func (s *authService) issuePair(user User) (TokenPair, error) {
	access, accessExp, err := s.issuer.IssueAccess(user.ID, user.Email, user.TenantID, string(user.Role), newTokenID())
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(user.ID, user.Email, user.TenantID, string(user.Role), newTokenID())
	if err != nil {
		return TokenPair{}, err
	}
	user.PasswordHash = ""
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		User:             user,
	}, nil
}

func (s *authService) revokeClaims(ctx context.Context, claims *auth.Claims) {
	if s.revocations == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	ttl := claims.ExpiresAt.Time.Sub(s.clock())
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		s.logger.Warnf("token revocation for %s failed: %v", claims.ID, err)
	}
}

func (s *authService) recordLoginFailure(ctx context.Context, cmd LoginCommand, email string, cause error) {
	if s.audit == nil {
		return
	}
	actor := cmd.Actor
	actor.Email = email
	s.audit.RecordFailure(ctx, AuditLogRecord{
		TenantID: cmd.TenantID,
		Actor:    actor,
		Action:   domain.ActionUserLogin,
		Resource: domain.ResourceUser,
	}, cause)
}

func loginActor(actor AuditActor, user User) AuditActor {
	actor.UserID = user.ID
	actor.Email = user.Email
	actor.Name = user.Name
	return actor
}

func newTokenID() string {
	return tokenIDPrefix + ulid.Make().String()
}
