package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/auth"
	"github.com/quadro-commerce/api/internal/services"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body exceeds allowed size")
)

const defaultMaxBodySize = 32 * 1024

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func decodeJSONBody(r *http.Request, limit int64, dst any) error {
	data, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.New("invalid JSON payload")
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}

func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.New("timestamps must be RFC 3339")
	}
	return &parsed, nil
}

func urlTenantID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "tenantID"))
}

// actorFromRequest assembles audit attribution from the verified identity and
// request metadata.
func actorFromRequest(r *http.Request) services.AuditActor {
	actor := services.AuditActor{
		IPAddress: strings.TrimSpace(r.RemoteAddr),
		UserAgent: strings.TrimSpace(r.UserAgent()),
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil {
		actor.UserID = identity.UserID
		actor.Email = identity.Email
	}
	return actor
}

type pageMetaPayload struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	ItemsPerPage    int  `json:"itemsPerPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

func buildPageMeta(meta domain.PageMeta) pageMetaPayload {
	return pageMetaPayload{
		CurrentPage:     meta.CurrentPage,
		TotalPages:      meta.TotalPages,
		TotalItems:      meta.TotalItems,
		ItemsPerPage:    meta.ItemsPerPage,
		HasNextPage:     meta.HasNextPage,
		HasPreviousPage: meta.HasPreviousPage,
	}
}
