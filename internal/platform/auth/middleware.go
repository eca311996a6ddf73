package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultVerifyTimeout = 5 * time.Second

// TokenRevocations reports whether a token has been revoked (logged out)
// before its natural expiry.
type TokenRevocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Authenticator wires access token verification into HTTP middleware.
type Authenticator struct {
	issuer      *TokenIssuer
	revocations TokenRevocations
	timeout     time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRevocations enables revoked-token rejection against the supplied store.
func WithRevocations(store TokenRevocations) Option {
	return func(a *Authenticator) {
		a.revocations = store
	}
}

// WithVerificationTimeout sets the timeout used when checking revocations.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(issuer *TokenIssuer, opts ...Option) *Authenticator {
	a := &Authenticator{
		issuer:  issuer,
		timeout: defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth verifies the Authorization bearer token and ensures allowed roles.
// With no roles listed, any authenticated user passes.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.issuer == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			claims, err := a.issuer.Verify(tokenStr, TokenTypeAccess)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			if a.revocations != nil && claims.ID != "" {
				ctx, cancel := a.contextWithTimeout(r.Context())
				if cancel != nil {
					defer cancel()
				}
				revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "token verification failed")
					return
				}
				if revoked {
					respondAuthError(w, http.StatusUnauthorized, "token_revoked", "token has been revoked")
					return
				}
			}

			identity := &Identity{
				UserID:   claims.Subject,
				Email:    claims.Email,
				TenantID: claims.TenantID,
				Role:     normaliseRole(claims.Role),
				TokenID:  claims.ID,
				RawToken: tokenStr,
			}

			if identity.Role == "" {
				respondAuthError(w, http.StatusUnauthorized, "missing_role", "no role associated with identity")
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[identity.Role]; !ok {
					respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
					return
				}
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests whose tenant URL parameter does not match the
// authenticated identity's tenant. Must run after RequireAuth.
func RequireTenant(urlParam string) func(http.Handler) http.Handler {
	if strings.TrimSpace(urlParam) == "" {
		urlParam = "tenantID"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			tenantID := strings.TrimSpace(chi.URLParam(r, urlParam))
			if tenantID == "" || !strings.EqualFold(tenantID, identity.TenantID) {
				respondAuthError(w, http.StatusForbidden, "tenant_mismatch", "access to this tenant is not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, a.timeout)
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}

	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "access token expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "access token invalid")
	}
}
