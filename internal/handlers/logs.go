package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/auth"
	"github.com/quadro-commerce/api/internal/platform/httpx"
	"github.com/quadro-commerce/api/internal/platform/pagination"
	"github.com/quadro-commerce/api/internal/services"
)

// AuditLogHandlers exposes the audit trail for a tenant. Admin only.
type AuditLogHandlers struct {
	authn *auth.Authenticator
	logs  services.AuditLogService
}

// NewAuditLogHandlers constructs handlers delegating to the audit log service.
func NewAuditLogHandlers(authn *auth.Authenticator, logs services.AuditLogService) *AuditLogHandlers {
	return &AuditLogHandlers{authn: authn, logs: logs}
}

// Routes wires the audit trail endpoints onto the provided router. The
// endpoints live under both /logs and /audit-logs: /logs is the surface
// dashboard clients were built against, /audit-logs reads better in links.
func (h *AuditLogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	register := func(lr chi.Router) {
		if h.authn != nil {
			lr.Use(h.authn.RequireAuth(auth.RoleAdmin))
		}
		lr.Get("/", h.listAll)
		lr.Get("/paginated", h.listPaginated)
		lr.Get("/export", h.listAll)
	}
	r.Route("/logs", register)
	r.Route("/audit-logs", register)
}

type auditLogPayload struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	UserID     *string        `json:"userId,omitempty"`
	UserEmail  *string        `json:"userEmail,omitempty"`
	UserName   *string        `json:"userName,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID *string        `json:"resourceId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IPAddress  *string        `json:"ipAddress,omitempty"`
	UserAgent  *string        `json:"userAgent,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

func (h *AuditLogHandlers) listPaginated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, ok := h.parseFilter(ctx, w, r)
	if !ok {
		return
	}

	page, err := h.logs.ListPaginated(ctx, urlTenantID(r), filter, pagination.FromRequest(r))
	if err != nil {
		h.writeAuditError(ctx, w, err)
		return
	}

	items := make([]auditLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, buildAuditLogPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"logs": items,
		"meta": buildPageMeta(page.Meta),
	})
}

// listAll returns the unbounded filtered trail, also served at /export for
// offline analysis.
func (h *AuditLogHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, ok := h.parseFilter(ctx, w, r)
	if !ok {
		return
	}

	entries, err := h.logs.List(ctx, urlTenantID(r), filter)
	if err != nil {
		h.writeAuditError(ctx, w, err)
		return
	}

	items := make([]auditLogPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, buildAuditLogPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"logs": items})
}

func (h *AuditLogHandlers) parseFilter(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.AuditLogFilter, bool) {
	query := r.URL.Query()
	filter := services.AuditLogFilter{
		Action:   strings.TrimSpace(query.Get("action")),
		Resource: strings.TrimSpace(query.Get("resource")),
		UserID:   strings.TrimSpace(query.Get("userId")),
	}

	from, err := parseTimeParam(query.Get("from"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be RFC 3339", http.StatusBadRequest))
		return filter, false
	}
	to, err := parseTimeParam(query.Get("to"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be RFC 3339", http.StatusBadRequest))
		return filter, false
	}
	filter.DateRange = domain.RangeQuery[time.Time]{From: from, To: to}
	return filter, true
}

func (h *AuditLogHandlers) writeAuditError(ctx context.Context, w http.ResponseWriter, err error) {
	httpx.WriteError(ctx, w, httpx.NewError("audit_log_error", "audit log query failed", http.StatusInternalServerError))
}

func buildAuditLogPayload(entry domain.AuditLogEntry) auditLogPayload {
	return auditLogPayload{
		ID:         entry.ID,
		TenantID:   entry.TenantID,
		UserID:     entry.UserID,
		UserEmail:  entry.UserEmail,
		UserName:   entry.UserName,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		Metadata:   entry.Metadata,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		CreatedAt:  formatTime(entry.CreatedAt),
	}
}
