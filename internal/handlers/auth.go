package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quadro-commerce/api/internal/platform/httpx"
	"github.com/quadro-commerce/api/internal/services"
)

const maxAuthBodySize = 8 * 1024

// AuthHandlers exposes login, refresh, and logout endpoints.
type AuthHandlers struct {
	auth    services.AuthService
	tenants services.TenantService
}

// NewAuthHandlers constructs handlers delegating to the auth service. The
// tenant service resolves slugs presented instead of tenant ids.
func NewAuthHandlers(auth services.AuthService, tenants services.TenantService) *AuthHandlers {
	return &AuthHandlers{auth: auth, tenants: tenants}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantID   string `json:"tenantId"`
	TenantSlug string `json:"tenantSlug"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairPayload struct {
	AccessToken      string      `json:"accessToken"`
	RefreshToken     string      `json:"refreshToken"`
	AccessExpiresAt  string      `json:"accessExpiresAt"`
	RefreshExpiresAt string      `json:"refreshExpiresAt"`
	User             userPayload `json:"user"`
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req loginRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" && strings.TrimSpace(req.TenantSlug) != "" {
		if h.tenants == nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tenantId is required", http.StatusBadRequest))
			return
		}
		tenant, err := h.tenants.GetTenantBySlug(ctx, req.TenantSlug)
		if err != nil {
			// Slug resolution failures look like bad credentials to avoid
			// disclosing which tenants exist.
			httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid email or password", http.StatusUnauthorized))
			return
		}
		tenantID = tenant.ID
	}
	if tenantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tenantId or tenantSlug is required", http.StatusBadRequest))
		return
	}

	pair, err := h.auth.Login(ctx, services.LoginCommand{
		TenantID: tenantID,
		Email:    req.Email,
		Password: req.Password,
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTokenPairPayload(pair))
}

func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req refreshRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "refreshToken is required", http.StatusBadRequest))
		return
	}

	pair, err := h.auth.Refresh(ctx, services.RefreshCommand{
		RefreshToken: req.RefreshToken,
		Actor:        actorFromRequest(r),
	})
	if err != nil {
		h.writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTokenPairPayload(pair))
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req logoutRequest
	// An empty body is fine; logout may carry only the bearer token.
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.auth.Logout(ctx, services.LogoutCommand{
		AccessToken:  bearerToken(r),
		RefreshToken: req.RefreshToken,
		Actor:        actorFromRequest(r),
	}); err != nil {
		h.writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandlers) writeAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAuthInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid email or password", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAuthInactiveUser):
		httpx.WriteError(ctx, w, httpx.NewError("user_inactive", "user account is deactivated", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAuthInvalidToken):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "token is invalid or expired", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "authentication failed", http.StatusInternalServerError))
	}
}

func buildTokenPairPayload(pair services.TokenPair) tokenPairPayload {
	return tokenPairPayload{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  formatTime(pair.AccessExpiresAt),
		RefreshExpiresAt: formatTime(pair.RefreshExpiresAt),
		User:             buildUserPayload(pair.User),
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
