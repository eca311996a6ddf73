package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[tokenID], nil
}

func issueTestToken(t *testing.T, issuer *TokenIssuer, role, tokenID string) string {
	t.Helper()
	signed, _, err := issuer.IssueAccess("usr_1", "a@example.com", "tnt_1", role, tokenID)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	return signed
}

func okHandler(identityChecked *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); ok && identityChecked != nil {
			*identityChecked = true
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeAuthError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	return body.Error
}

func TestRequireAuthAcceptsValidBearerToken(t *testing.T) {
	now := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, now)
	authn := NewAuthenticator(issuer)

	var sawIdentity bool
	handler := authn.RequireAuth()(okHandler(&sawIdentity))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, issuer, "staff", "tok_1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !sawIdentity {
		t.Fatalf("expected identity in request context")
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	now := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	authn := NewAuthenticator(newIssuer(t, now))
	handler := authn.RequireAuth()(okHandler(nil))

	for _, header := range []string{"", "Bearer", "Basic dXNlcg==", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
		if code := decodeAuthError(t, rec); code != "unauthenticated" {
			t.Fatalf("header %q: unexpected error code %q", header, code)
		}
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, now)
	token := issueTestToken(t, issuer, "staff", "tok_1")

	later, err := NewTokenIssuer("unit-test-secret", "unit-test",
		WithClock(func() time.Time { return now.Add(time.Hour) }),
	)
	if err != nil {
		t.Fatalf("unexpected error constructing issuer: %v", err)
	}
	authn := NewAuthenticator(later)
	handler := authn.RequireAuth()(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := decodeAuthError(t, rec); code != "token_expired" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestRequireAuthRejectsRevokedToken(t *testing.T) {
	now := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, now)
	authn := NewAuthenticator(issuer, WithRevocations(&stubRevocations{
		revoked: map[string]bool{"tok_1": true},
	}))
	handler := authn.RequireAuth()(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, issuer, "staff", "tok_1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := decodeAuthError(t, rec); code != "token_revoked" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestRequireAuthEnforcesRoles(t *testing.T) {
	now := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, now)
	authn := NewAuthenticator(issuer)
	handler := authn.RequireAuth(RoleAdmin)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, issuer, "staff", "tok_1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}
	if code := decodeAuthError(t, rec); code != "insufficient_role" {
		t.Fatalf("unexpected error code %q", code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, issuer, "Admin", "tok_2"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", rec.Code)
	}
}

func TestRequireTenantMatchesURLParameter(t *testing.T) {
	now := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, now)
	authn := NewAuthenticator(issuer)

	router := chi.NewRouter()
	router.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Use(authn.RequireAuth(), RequireTenant("tenantID"))
		r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	token := issueTestToken(t, issuer, "staff", "tok_1")

	req := httptest.NewRequest(http.MethodGet, "/tenants/tnt_1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for own tenant, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/tenants/tnt_other/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign tenant, got %d", rec.Code)
	}
	if code := decodeAuthError(t, rec); code != "tenant_mismatch" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestRequireTenantComparisonIsCaseInsensitive(t *testing.T) {
	now := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, now)
	authn := NewAuthenticator(issuer)

	router := chi.NewRouter()
	router.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Use(authn.RequireAuth(), RequireTenant("tenantID"))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/TNT_1/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, issuer, "staff", "tok_1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for case-insensitive match, got %d", rec.Code)
	}
}

func TestRequireTenantNeedsAuthenticatedIdentity(t *testing.T) {
	handler := RequireTenant("tenantID")(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
}
