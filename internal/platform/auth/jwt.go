package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token kinds carried in the custom "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrTokenExpired signals that the presented token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals a malformed, mis-signed, or mistyped token.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT payload issued for back-office users.
type Claims struct {
	Email     string `json:"email"`
	TenantID  string `json:"tenantId"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens for the API.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      func() time.Time
}

// IssuerOption customises TokenIssuer behaviour.
type IssuerOption func(*TokenIssuer)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
	}
}

// WithClock injects the time source, primarily for tests.
func WithClock(clock func() time.Time) IssuerOption {
	return func(t *TokenIssuer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer with the shared signing secret.
func NewTokenIssuer(secret, issuer string, opts ...IssuerOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	t := &TokenIssuer{
		secret:     []byte(secret),
		issuer:     strings.TrimSpace(issuer),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// AccessTTL exposes the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL exposes the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccess signs a short-lived access token for the subject.
func (t *TokenIssuer) IssueAccess(subject, email, tenantID, role, tokenID string) (string, time.Time, error) {
	return t.issue(subject, email, tenantID, role, tokenID, TokenTypeAccess, t.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the subject.
func (t *TokenIssuer) IssueRefresh(subject, email, tenantID, role, tokenID string) (string, time.Time, error) {
	return t.issue(subject, email, tenantID, role, tokenID, TokenTypeRefresh, t.refreshTTL)
}

func (t *TokenIssuer) issue(subject, email, tenantID, role, tokenID, tokenType string, ttl time.Duration) (string, time.Time, error) {
	if t == nil {
		return "", time.Time{}, errors.New("auth: token issuer not initialised")
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("auth: token subject is required")
	}

	now := t.clock().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email:     email,
		TenantID:  tenantID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses the compact token, checks the signature and expiry, and
// ensures the token is of the expected type.
func (t *TokenIssuer) Verify(tokenStr, expectedType string) (*Claims, error) {
	if t == nil {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	// Time claims are checked against the issuer clock, not the package time
	// source, so verification and issuance share one notion of now.
	now := t.clock().UTC()
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, ErrTokenInvalid
	}
	if expectedType != "" && claims.TokenType != expectedType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
