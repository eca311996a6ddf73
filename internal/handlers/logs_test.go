package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/services"
)

type stubAuditLogService struct {
	listFunc          func(ctx context.Context, tenantID string, filter services.AuditLogFilter) ([]services.AuditLogEntry, error)
	listPaginatedFunc func(ctx context.Context, tenantID string, filter services.AuditLogFilter, pager services.Pagination) (domain.Page[services.AuditLogEntry], error)
}

func (s *stubAuditLogService) Record(ctx context.Context, record services.AuditLogRecord) {}

func (s *stubAuditLogService) RecordFailure(ctx context.Context, record services.AuditLogRecord, cause error) {
}

func (s *stubAuditLogService) RecordUpdate(ctx context.Context, record services.AuditLogRecord, before, after any) {
}

func (s *stubAuditLogService) RecordDelete(ctx context.Context, record services.AuditLogRecord, deleted any) {
}

func (s *stubAuditLogService) List(ctx context.Context, tenantID string, filter services.AuditLogFilter) ([]services.AuditLogEntry, error) {
	if s.listFunc == nil {
		return nil, errUnexpectedServiceCall
	}
	return s.listFunc(ctx, tenantID, filter)
}

func (s *stubAuditLogService) ListPaginated(ctx context.Context, tenantID string, filter services.AuditLogFilter, pager services.Pagination) (domain.Page[services.AuditLogEntry], error) {
	if s.listPaginatedFunc == nil {
		return domain.Page[services.AuditLogEntry]{}, errUnexpectedServiceCall
	}
	return s.listPaginatedFunc(ctx, tenantID, filter, pager)
}

func auditEntry(id string) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:        id,
		TenantID:  "tnt_1",
		Action:    "ORDER_CREATE",
		Resource:  "order",
		CreatedAt: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAuditLogRoutesServeBothPrefixes(t *testing.T) {
	logs := &stubAuditLogService{
		listFunc: func(ctx context.Context, tenantID string, filter services.AuditLogFilter) ([]services.AuditLogEntry, error) {
			if tenantID != "tnt_1" {
				t.Fatalf("unexpected tenant %q", tenantID)
			}
			return []domain.AuditLogEntry{auditEntry("alg_1"), auditEntry("alg_2")}, nil
		},
		listPaginatedFunc: func(ctx context.Context, tenantID string, filter services.AuditLogFilter, pager services.Pagination) (domain.Page[services.AuditLogEntry], error) {
			return domain.Page[services.AuditLogEntry]{
				Items: []domain.AuditLogEntry{auditEntry("alg_1")},
				Meta:  domain.NewPageMeta(1, 10, 1),
			}, nil
		},
	}
	router := newTenantScopedRouter(NewAuditLogHandlers(nil, logs).Routes)

	fullList := []string{
		"/tenants/tnt_1/logs",
		"/tenants/tnt_1/logs/export",
		"/tenants/tnt_1/audit-logs",
	}
	for _, path := range fullList {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: expected status 200, got %d", path, rec.Code)
		}
		var body struct {
			Logs []auditLogPayload `json:"logs"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("GET %s: unexpected error decoding body: %v", path, err)
		}
		if len(body.Logs) != 2 {
			t.Fatalf("GET %s: expected 2 entries, got %d", path, len(body.Logs))
		}
	}

	paginated := []string{
		"/tenants/tnt_1/logs/paginated",
		"/tenants/tnt_1/audit-logs/paginated",
	}
	for _, path := range paginated {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: expected status 200, got %d", path, rec.Code)
		}
		var body struct {
			Logs []auditLogPayload `json:"logs"`
			Meta pageMetaPayload   `json:"meta"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("GET %s: unexpected error decoding body: %v", path, err)
		}
		if len(body.Logs) != 1 || body.Meta.TotalItems != 1 {
			t.Fatalf("GET %s: unexpected page %+v", path, body)
		}
	}
}
