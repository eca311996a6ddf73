package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/auth"
	"github.com/quadro-commerce/api/internal/platform/httpx"
	"github.com/quadro-commerce/api/internal/services"
)

const maxTenantBodySize = 16 * 1024

// TenantHandlers exposes tenant provisioning and management endpoints.
type TenantHandlers struct {
	authn   *auth.Authenticator
	tenants services.TenantService
}

// NewTenantHandlers constructs handlers delegating to the tenant service.
func NewTenantHandlers(authn *auth.Authenticator, tenants services.TenantService) *TenantHandlers {
	return &TenantHandlers{authn: authn, tenants: tenants}
}

// Routes wires the /tenants collection endpoints onto the provided router.
// Tenant creation is open for onboarding; listing requires an admin.
func (h *TenantHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createTenant)
	r.Get("/slug/{slug}", h.getTenantBySlug)
	if h.authn != nil {
		r.With(h.authn.RequireAuth(auth.RoleAdmin)).Get("/", h.listTenants)
	} else {
		r.Get("/", h.listTenants)
	}
}

// ScopedRoutes wires the per-tenant management endpoints. The caller mounts
// these inside the authenticated /{tenantID} group.
func (h *TenantHandlers) ScopedRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getTenant)
	if h.authn != nil {
		admin := h.authn.RequireAuth(auth.RoleAdmin)
		r.With(admin).Patch("/", h.updateTenant)
		r.With(admin).Post("/activate", h.activateTenant)
		r.With(admin).Post("/deactivate", h.deactivateTenant)
		return
	}
	r.Patch("/", h.updateTenant)
	r.Post("/activate", h.activateTenant)
	r.Post("/deactivate", h.deactivateTenant)
}

type tenantPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type createTenantRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type updateTenantRequest struct {
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

func (h *TenantHandlers) createTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tenants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tenant_service_unavailable", "tenant service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createTenantRequest
	if err := decodeJSONBody(r, maxTenantBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	tenant, err := h.tenants.CreateTenant(ctx, services.CreateTenantCommand{
		Name:  req.Name,
		Slug:  req.Slug,
		Actor: actorFromRequest(r),
	})
	if err != nil {
		h.writeTenantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildTenantPayload(tenant))
}

func (h *TenantHandlers) listTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tenants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tenant_service_unavailable", "tenant service is unavailable", http.StatusServiceUnavailable))
		return
	}

	tenants, err := h.tenants.ListTenants(ctx)
	if err != nil {
		h.writeTenantError(ctx, w, err)
		return
	}

	payload := make([]tenantPayload, 0, len(tenants))
	for _, tenant := range tenants {
		payload = append(payload, buildTenantPayload(tenant))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"tenants": payload})
}

func (h *TenantHandlers) getTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant, err := h.tenants.GetTenant(ctx, urlTenantID(r))
	if err != nil {
		h.writeTenantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTenantPayload(tenant))
}

// getTenantBySlug resolves a tenant by its slug, used by storefront clients
// before they know the tenant id.
func (h *TenantHandlers) getTenantBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant, err := h.tenants.GetTenantBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeTenantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTenantPayload(tenant))
}

func (h *TenantHandlers) updateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateTenantRequest
	if err := decodeJSONBody(r, maxTenantBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	tenant, err := h.tenants.UpdateTenant(ctx, services.UpdateTenantCommand{
		TenantID: urlTenantID(r),
		Name:     req.Name,
		Slug:     req.Slug,
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeTenantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTenantPayload(tenant))
}

func (h *TenantHandlers) activateTenant(w http.ResponseWriter, r *http.Request) {
	h.setTenantActive(w, r, true)
}

func (h *TenantHandlers) deactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.setTenantActive(w, r, false)
}

func (h *TenantHandlers) setTenantActive(w http.ResponseWriter, r *http.Request, active bool) {
	ctx := r.Context()
	cmd := services.TenantActivationCommand{
		TenantID: urlTenantID(r),
		Actor:    actorFromRequest(r),
	}

	var (
		tenant domain.Tenant
		err    error
	)
	if active {
		tenant, err = h.tenants.ActivateTenant(ctx, cmd)
	} else {
		tenant, err = h.tenants.DeactivateTenant(ctx, cmd)
	}
	if err != nil {
		h.writeTenantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTenantPayload(tenant))
}

func (h *TenantHandlers) writeTenantError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTenantInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTenantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("tenant_not_found", "tenant not found", http.StatusNotFound))
	case errors.Is(err, services.ErrTenantConflict):
		httpx.WriteError(ctx, w, httpx.NewError("tenant_conflict", "tenant slug already in use", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("tenant_error", "tenant operation failed", http.StatusInternalServerError))
	}
}

func buildTenantPayload(tenant domain.Tenant) tenantPayload {
	return tenantPayload{
		ID:        tenant.ID,
		Name:      strings.TrimSpace(tenant.Name),
		Slug:      tenant.Slug,
		IsActive:  tenant.IsActive,
		CreatedAt: formatTime(tenant.CreatedAt),
		UpdatedAt: formatTime(tenant.UpdatedAt),
	}
}
