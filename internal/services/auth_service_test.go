package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/auth"
)

type stubTokenRevoker struct {
	revoked map[string]time.Duration
}

func (s *stubTokenRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if s.revoked == nil {
		s.revoked = map[string]time.Duration{}
	}
	s.revoked[tokenID] = ttl
	return nil
}

func testIssuer(t *testing.T, now time.Time) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("test-secret-0123456789", "test-issuer",
		auth.WithAccessTTL(15*time.Minute),
		auth.WithRefreshTTL(7*24*time.Hour),
		auth.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("unexpected error constructing issuer: %v", err)
	}
	return issuer
}

func activeUser(t *testing.T, password string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %v", err)
	}
	return domain.User{
		ID:           "usr_1",
		TenantID:     "tnt_1",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Name:         "Admin",
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
}

func newTestAuthService(t *testing.T, users *stubUserRepository, issuer *auth.TokenIssuer, revoker TokenRevoker, now time.Time) AuthService {
	t.Helper()
	service, err := NewAuthService(AuthServiceDeps{
		Users:       users,
		Issuer:      issuer,
		Revocations: revoker,
		Clock:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing auth service: %v", err)
	}
	return service
}

func TestAuthServiceLoginIssuesVerifiableTokenPair(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	user := activeUser(t, "correct-horse")
	var loginRecorded bool

	users := &stubUserRepository{
		findByEmailFunc: func(ctx context.Context, tenantID, email string) (domain.User, error) {
			if email != "admin@example.com" {
				t.Fatalf("expected normalised email, got %q", email)
			}
			return user, nil
		},
		recordLoginFunc: func(ctx context.Context, tenantID, userID string, at time.Time) error {
			loginRecorded = true
			return nil
		},
	}
	issuer := testIssuer(t, now)

	service := newTestAuthService(t, users, issuer, nil, now)
	pair, err := service.Login(context.Background(), LoginCommand{
		TenantID: "tnt_1",
		Email:    " Admin@Example.com ",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := issuer.Verify(pair.AccessToken, auth.TokenTypeAccess)
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if claims.Subject != "usr_1" || claims.TenantID != "tnt_1" || claims.Role != "admin" {
		t.Fatalf("unexpected access claims: %+v", claims)
	}
	if _, err := issuer.Verify(pair.RefreshToken, auth.TokenTypeRefresh); err != nil {
		t.Fatalf("refresh token does not verify: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", pair.AccessExpiresAt)
	}
	if pair.User.PasswordHash != "" {
		t.Fatalf("password hash must not leak in token pair")
	}
	if !loginRecorded {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestAuthServiceLoginFailuresAreIndistinguishable(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	user := activeUser(t, "correct-horse")
	issuer := testIssuer(t, now)

	unknown := &stubUserRepository{
		findByEmailFunc: func(ctx context.Context, tenantID, email string) (domain.User, error) {
			return domain.User{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestAuthService(t, unknown, issuer, nil, now)
	_, errUnknown := service.Login(context.Background(), LoginCommand{
		TenantID: "tnt_1", Email: "nobody@example.com", Password: "whatever",
	})

	known := &stubUserRepository{
		findByEmailFunc: func(ctx context.Context, tenantID, email string) (domain.User, error) {
			return user, nil
		},
	}
	service = newTestAuthService(t, known, issuer, nil, now)
	_, errWrongPass := service.Login(context.Background(), LoginCommand{
		TenantID: "tnt_1", Email: "admin@example.com", Password: "wrong",
	})

	if !errors.Is(errUnknown, ErrAuthInvalidCredentials) || !errors.Is(errWrongPass, ErrAuthInvalidCredentials) {
		t.Fatalf("expected identical invalid credential errors, got %v and %v", errUnknown, errWrongPass)
	}
}

func TestAuthServiceLoginRejectsInactiveUser(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	user := activeUser(t, "correct-horse")
	user.IsActive = false

	users := &stubUserRepository{
		findByEmailFunc: func(ctx context.Context, tenantID, email string) (domain.User, error) {
			return user, nil
		},
	}

	service := newTestAuthService(t, users, testIssuer(t, now), nil, now)
	_, err := service.Login(context.Background(), LoginCommand{
		TenantID: "tnt_1", Email: "admin@example.com", Password: "correct-horse",
	})
	if !errors.Is(err, ErrAuthInactiveUser) {
		t.Fatalf("expected inactive user error, got %v", err)
	}
}

func TestAuthServiceRefreshRotatesAndRevokesOldToken(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	user := activeUser(t, "correct-horse")
	issuer := testIssuer(t, now)
	revoker := &stubTokenRevoker{}

	refresh, _, err := issuer.IssueRefresh(user.ID, user.Email, user.TenantID, string(user.Role), "tok_old")
	if err != nil {
		t.Fatalf("unexpected error issuing refresh token: %v", err)
	}

	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, tenantID, userID string) (domain.User, error) {
			if tenantID != "tnt_1" || userID != "usr_1" {
				t.Fatalf("unexpected lookup %s/%s", tenantID, userID)
			}
			return user, nil
		},
	}

	service := newTestAuthService(t, users, issuer, revoker, now)
	pair, err := service.Refresh(context.Background(), RefreshCommand{RefreshToken: refresh})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pair.RefreshToken == refresh {
		t.Fatalf("expected a rotated refresh token")
	}
	ttl, ok := revoker.revoked["tok_old"]
	if !ok {
		t.Fatalf("expected old refresh token to be revoked")
	}
	if ttl != 7*24*time.Hour {
		t.Fatalf("expected remaining lifetime as ttl, got %v", ttl)
	}
}

func TestAuthServiceRefreshRejectsAccessToken(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	user := activeUser(t, "correct-horse")
	issuer := testIssuer(t, now)

	access, _, err := issuer.IssueAccess(user.ID, user.Email, user.TenantID, string(user.Role), "tok_acc")
	if err != nil {
		t.Fatalf("unexpected error issuing access token: %v", err)
	}

	service := newTestAuthService(t, &stubUserRepository{}, issuer, nil, now)
	_, err = service.Refresh(context.Background(), RefreshCommand{RefreshToken: access})
	if !errors.Is(err, ErrAuthInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestAuthServiceLogoutRevokesBothTokensAndNeverFails(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	user := activeUser(t, "correct-horse")
	issuer := testIssuer(t, now)
	revoker := &stubTokenRevoker{}

	access, _, err := issuer.IssueAccess(user.ID, user.Email, user.TenantID, string(user.Role), "tok_a")
	if err != nil {
		t.Fatalf("unexpected error issuing access token: %v", err)
	}
	refresh, _, err := issuer.IssueRefresh(user.ID, user.Email, user.TenantID, string(user.Role), "tok_r")
	if err != nil {
		t.Fatalf("unexpected error issuing refresh token: %v", err)
	}

	service := newTestAuthService(t, &stubUserRepository{}, issuer, revoker, now)
	if err := service.Logout(context.Background(), LogoutCommand{AccessToken: access, RefreshToken: refresh}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := revoker.revoked["tok_a"]; !ok {
		t.Fatalf("expected access token revoked")
	}
	if _, ok := revoker.revoked["tok_r"]; !ok {
		t.Fatalf("expected refresh token revoked")
	}

	// Garbage tokens are ignored.
	if err := service.Logout(context.Background(), LogoutCommand{AccessToken: "garbage"}); err != nil {
		t.Fatalf("logout must not fail on invalid tokens, got %v", err)
	}
}
