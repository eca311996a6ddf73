package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

type stubAuditLogRepository struct {
	appendFunc        func(ctx context.Context, entry domain.AuditLogEntry) error
	listFunc          func(ctx context.Context, tenantID string, filter repositories.AuditLogFilter) ([]domain.AuditLogEntry, error)
	listPaginatedFunc func(ctx context.Context, tenantID string, filter repositories.AuditLogFilter, pager domain.Pagination) (domain.Page[domain.AuditLogEntry], error)
}

func (s *stubAuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if s.appendFunc == nil {
		return errUnexpectedCall
	}
	return s.appendFunc(ctx, entry)
}

func (s *stubAuditLogRepository) List(ctx context.Context, tenantID string, filter repositories.AuditLogFilter) ([]domain.AuditLogEntry, error) {
	if s.listFunc == nil {
		return nil, errUnexpectedCall
	}
	return s.listFunc(ctx, tenantID, filter)
}

func (s *stubAuditLogRepository) ListPaginated(ctx context.Context, tenantID string, filter repositories.AuditLogFilter, pager domain.Pagination) (domain.Page[domain.AuditLogEntry], error) {
	if s.listPaginatedFunc == nil {
		return domain.Page[domain.AuditLogEntry]{}, errUnexpectedCall
	}
	return s.listPaginatedFunc(ctx, tenantID, filter, pager)
}

type captureLogger struct {
	messages []string
}

func (l *captureLogger) Warnf(format string, args ...any) {
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func newTestAuditService(t *testing.T, repo *stubAuditLogRepository, logger AuditLogger) AuditLogService {
	t.Helper()
	service, err := NewAuditLogService(AuditLogServiceDeps{
		Repository:  repo,
		Clock:       func() time.Time { return time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC) },
		IDGenerator: func() string { return "alg_test" },
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing audit log service: %v", err)
	}
	return service
}

func TestAuditLogServiceRecordBuildsEntry(t *testing.T) {
	var appended domain.AuditLogEntry
	repo := &stubAuditLogRepository{
		appendFunc: func(ctx context.Context, entry domain.AuditLogEntry) error {
			appended = entry
			return nil
		},
	}

	service := newTestAuditService(t, repo, nil)
	service.Record(context.Background(), AuditLogRecord{
		TenantID: "tnt_1",
		Actor: AuditActor{
			UserID:    "usr_1",
			Email:     "admin@example.com",
			IPAddress: "10.0.0.9",
			UserAgent: "curl/8.0",
		},
		Action:     domain.ActionOrderCreate,
		Resource:   domain.ResourceOrder,
		ResourceID: "ord_1",
		Metadata:   map[string]any{"total": 45.0},
	})

	if appended.ID != "alg_test" {
		t.Fatalf("expected generated id, got %q", appended.ID)
	}
	if appended.Action != "ORDER_CREATE" || appended.Resource != "Order" {
		t.Fatalf("unexpected action/resource: %q/%q", appended.Action, appended.Resource)
	}
	if appended.UserID == nil || *appended.UserID != "usr_1" {
		t.Fatalf("expected actor user id, got %v", appended.UserID)
	}
	if appended.IPAddress == nil || *appended.IPAddress != "10.0.0.9" {
		t.Fatalf("expected actor ip, got %v", appended.IPAddress)
	}
	if appended.Metadata["total"] != 45.0 {
		t.Fatalf("expected metadata to pass through, got %v", appended.Metadata)
	}
	if !appended.CreatedAt.Equal(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected clock timestamp, got %v", appended.CreatedAt)
	}
}

func TestAuditLogServiceRecordSkipsIncompleteRecords(t *testing.T) {
	repo := &stubAuditLogRepository{
		appendFunc: func(ctx context.Context, entry domain.AuditLogEntry) error {
			t.Fatalf("incomplete record must not be appended")
			return nil
		},
	}

	service := newTestAuditService(t, repo, nil)
	service.Record(context.Background(), AuditLogRecord{Action: "ORPHANED"})
	service.Record(context.Background(), AuditLogRecord{TenantID: "tnt_1"})
}

func TestAuditLogServiceRecordFailureAppendsSuffixAndCause(t *testing.T) {
	var appended domain.AuditLogEntry
	repo := &stubAuditLogRepository{
		appendFunc: func(ctx context.Context, entry domain.AuditLogEntry) error {
			appended = entry
			return nil
		},
	}

	service := newTestAuditService(t, repo, nil)
	service.RecordFailure(context.Background(), AuditLogRecord{
		TenantID: "tnt_1",
		Action:   domain.ActionOrderCreate,
		Resource: domain.ResourceOrder,
	}, errors.New("stock exhausted"))

	if appended.Action != "ORDER_CREATE_FAILED" {
		t.Fatalf("expected failure suffix, got %q", appended.Action)
	}
	if appended.Metadata["error"] != "stock exhausted" {
		t.Fatalf("expected cause in metadata, got %v", appended.Metadata)
	}
}

func TestAuditLogServiceRecordSwallowsRepositoryFailure(t *testing.T) {
	logger := &captureLogger{}
	repo := &stubAuditLogRepository{
		appendFunc: func(ctx context.Context, entry domain.AuditLogEntry) error {
			return errors.New("connection refused")
		},
	}

	service := newTestAuditService(t, repo, logger)
	service.Record(context.Background(), AuditLogRecord{
		TenantID: "tnt_1",
		Action:   domain.ActionOrderCreate,
		Resource: domain.ResourceOrder,
	})

	if len(logger.messages) != 1 {
		t.Fatalf("expected one warning, got %v", logger.messages)
	}
}

func TestAuditLogServiceRecordUpdateCapturesSnapshots(t *testing.T) {
	var appended domain.AuditLogEntry
	repo := &stubAuditLogRepository{
		appendFunc: func(ctx context.Context, entry domain.AuditLogEntry) error {
			appended = entry
			return nil
		},
	}

	service := newTestAuditService(t, repo, nil)
	service.RecordUpdate(context.Background(), AuditLogRecord{
		TenantID: "tnt_1",
		Action:   "SETTINGS_UPDATE",
		Resource: "Settings",
	}, map[string]any{"currency": "COP"}, map[string]any{"currency": "USD"})

	before, ok := appended.Metadata["before"].(map[string]any)
	if !ok || before["currency"] != "COP" {
		t.Fatalf("expected before snapshot, got %v", appended.Metadata)
	}
	after, ok := appended.Metadata["after"].(map[string]any)
	if !ok || after["currency"] != "USD" {
		t.Fatalf("expected after snapshot, got %v", appended.Metadata)
	}
}

func TestAuditLogServiceListRequiresTenant(t *testing.T) {
	service := newTestAuditService(t, &stubAuditLogRepository{}, nil)
	if _, err := service.List(context.Background(), "  ", AuditLogFilter{}); err == nil {
		t.Fatalf("expected error for missing tenant id")
	}
}
