package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/auth"
	"github.com/quadro-commerce/api/internal/platform/httpx"
	"github.com/quadro-commerce/api/internal/platform/storage"
	"github.com/quadro-commerce/api/internal/services"
)

const maxSettingsBodySize = 16 * 1024

// SettingsHandlers exposes per-tenant preference endpoints.
type SettingsHandlers struct {
	authn    *auth.Authenticator
	settings services.SettingsService
	uploads  services.UploadService
}

// NewSettingsHandlers constructs handlers delegating to the settings service.
func NewSettingsHandlers(authn *auth.Authenticator, settings services.SettingsService, uploads services.UploadService) *SettingsHandlers {
	return &SettingsHandlers{authn: authn, settings: settings, uploads: uploads}
}

// Routes wires the /settings endpoints. Reads are open to both roles;
// mutations require an admin.
func (h *SettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/settings", func(sr chi.Router) {
		sr.Get("/", h.getSettings)
		if h.authn != nil {
			admin := h.authn.RequireAuth(auth.RoleAdmin)
			sr.With(admin).Patch("/", h.updateSettings)
			sr.With(admin).Post("/logo", h.uploadLogo)
			return
		}
		sr.Patch("/", h.updateSettings)
		sr.Post("/logo", h.uploadLogo)
	})
}

type settingsPayload struct {
	ID             string  `json:"id"`
	TenantID       string  `json:"tenantId"`
	CompanyName    string  `json:"companyName"`
	CompanyLogoURL *string `json:"companyLogoUrl,omitempty"`
	Currency       string  `json:"currency"`
	Locale         string  `json:"locale"`
	Timezone       string  `json:"timezone"`
	InvoicePrefix  *string `json:"invoicePrefix,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

type updateSettingsRequest struct {
	CompanyName    *string `json:"companyName"`
	CompanyLogoURL *string `json:"companyLogoUrl"`
	Currency       *string `json:"currency"`
	Locale         *string `json:"locale"`
	Timezone       *string `json:"timezone"`
	InvoicePrefix  *string `json:"invoicePrefix"`
}

func (h *SettingsHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_service_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.settings.GetSettings(ctx, urlTenantID(r))
	if err != nil {
		h.writeSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSettingsPayload(settings))
}

func (h *SettingsHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_service_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateSettingsRequest
	if err := decodeJSONBody(r, maxSettingsBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	settings, err := h.settings.UpdateSettings(ctx, services.UpdateSettingsCommand{
		TenantID:       urlTenantID(r),
		CompanyName:    req.CompanyName,
		CompanyLogoURL: req.CompanyLogoURL,
		Currency:       req.Currency,
		Locale:         req.Locale,
		Timezone:       req.Timezone,
		InvoicePrefix:  req.InvoicePrefix,
		Actor:          actorFromRequest(r),
	})
	if err != nil {
		h.writeSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSettingsPayload(settings))
}

// uploadLogo stores the company logo and persists its public URL on the
// tenant settings in one step.
func (h *SettingsHandlers) uploadLogo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.uploads == nil || h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("upload_service_unavailable", "upload service is unavailable", http.StatusServiceUnavailable))
		return
	}

	tenantID := urlTenantID(r)
	url, err := h.uploads.UploadImage(ctx, services.UploadImageCommand{
		TenantID:    tenantID,
		Folder:      services.UploadFolderLogos,
		ContentType: r.Header.Get("Content-Type"),
		Body:        r.Body,
		Size:        r.ContentLength,
	})
	if err != nil {
		writeUploadError(ctx, w, err)
		return
	}

	settings, err := h.settings.UpdateSettings(ctx, services.UpdateSettingsCommand{
		TenantID:       tenantID,
		CompanyLogoURL: &url,
		Actor:          actorFromRequest(r),
	})
	if err != nil {
		h.writeSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSettingsPayload(settings))
}

func (h *SettingsHandlers) writeSettingsError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSettingsInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSettingsNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("settings_not_found", "settings not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "settings operation failed", http.StatusInternalServerError))
	}
}

func writeUploadError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUploadInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUploadTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "upload exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, storage.ErrUnsupportedContentType):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_media_type", "only jpeg, png, webp, and gif images are accepted", http.StatusUnsupportedMediaType))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("upload_error", "upload failed", http.StatusInternalServerError))
	}
}

func buildSettingsPayload(settings domain.Settings) settingsPayload {
	return settingsPayload{
		ID:             settings.ID,
		TenantID:       settings.TenantID,
		CompanyName:    settings.CompanyName,
		CompanyLogoURL: settings.CompanyLogoURL,
		Currency:       settings.Currency,
		Locale:         settings.Locale,
		Timezone:       settings.Timezone,
		InvoicePrefix:  settings.InvoicePrefix,
		CreatedAt:      formatTime(settings.CreatedAt),
		UpdatedAt:      formatTime(settings.UpdatedAt),
	}
}
