package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

const auditLogIDPrefix = "alg_"

// AuditLogger defines the logging contract used by the audit writer service.
type AuditLogger interface {
	Warnf(format string, args ...any)
}

// AuditActor identifies who performed an audited action and from where.
type AuditActor struct {
	UserID    string
	Email     string
	Name      string
	IPAddress string
	UserAgent string
}

// AuditLogRecord carries a single audit trail event.
type AuditLogRecord struct {
	TenantID   string
	Actor      AuditActor
	Action     string
	Resource   string
	ResourceID string
	Metadata   map[string]any
	OccurredAt time.Time
}

type auditLogService struct {
	repo   repositories.AuditLogRepository
	clock  func() time.Time
	newID  func() string
	logger AuditLogger
}

// AuditLogServiceDeps bundles constructor inputs for the audit writer service.
type AuditLogServiceDeps struct {
	Repository  repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      AuditLogger
}

// NewAuditLogService creates an audit log writer backed by the supplied repository.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, errors.New("audit log service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return auditLogIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopAuditLogger{}
	}

	return &auditLogService{
		repo:   deps.Repository,
		clock:  func() time.Time { return clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

// Record persists an audit log entry. Repository failures are logged but never
// bubble up to callers so the primary mutation flow is not interrupted.
func (s *auditLogService) Record(ctx context.Context, record AuditLogRecord) {
	if s.repo == nil {
		return
	}
	entry := s.buildEntry(record)
	if entry.TenantID == "" || entry.Action == "" {
		return
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warnf("audit log append failed: %v", err)
	}
}

// RecordFailure writes the failure variant of the action with the cause attached.
func (s *auditLogService) RecordFailure(ctx context.Context, record AuditLogRecord, cause error) {
	record.Action = record.Action + domain.FailedActionSuffix
	metadata := make(map[string]any, len(record.Metadata)+1)
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	if cause != nil {
		metadata["error"] = sanitizeAuditText(cause.Error(), 512)
	}
	record.Metadata = metadata
	s.Record(ctx, record)
}

// RecordUpdate captures before/after snapshots alongside the action.
func (s *auditLogService) RecordUpdate(ctx context.Context, record AuditLogRecord, before, after any) {
	metadata := make(map[string]any, len(record.Metadata)+2)
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	metadata["before"] = before
	metadata["after"] = after
	record.Metadata = metadata
	s.Record(ctx, record)
}

// RecordDelete captures the removed entity alongside the action.
func (s *auditLogService) RecordDelete(ctx context.Context, record AuditLogRecord, deleted any) {
	metadata := make(map[string]any, len(record.Metadata)+1)
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	metadata["deletedData"] = deleted
	record.Metadata = metadata
	s.Record(ctx, record)
}

// List retrieves the unbounded filtered audit trail.
func (s *auditLogService) List(ctx context.Context, tenantID string, filter AuditLogFilter) ([]AuditLogEntry, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errors.New("audit log service: tenant id is required")
	}
	entries, err := s.repo.List(ctx, tenantID, repositories.AuditLogFilter{
		Action:    strings.TrimSpace(filter.Action),
		Resource:  strings.TrimSpace(filter.Resource),
		UserID:    strings.TrimSpace(filter.UserID),
		DateRange: filter.DateRange,
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListPaginated retrieves a page of the filtered audit trail.
func (s *auditLogService) ListPaginated(ctx context.Context, tenantID string, filter AuditLogFilter, pager Pagination) (domain.Page[AuditLogEntry], error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.Page[AuditLogEntry]{}, errors.New("audit log service: tenant id is required")
	}
	return s.repo.ListPaginated(ctx, tenantID, repositories.AuditLogFilter{
		Action:    strings.TrimSpace(filter.Action),
		Resource:  strings.TrimSpace(filter.Resource),
		UserID:    strings.TrimSpace(filter.UserID),
		DateRange: filter.DateRange,
	}, pager)
}

func (s *auditLogService) buildEntry(record AuditLogRecord) domain.AuditLogEntry {
	occurred := record.OccurredAt
	if occurred.IsZero() {
		occurred = s.clock()
	} else {
		occurred = occurred.UTC()
	}

	entry := domain.AuditLogEntry{
		ID:        s.newID(),
		TenantID:  strings.TrimSpace(record.TenantID),
		Action:    sanitizeAuditText(record.Action, 120),
		Resource:  sanitizeAuditText(record.Resource, 80),
		CreatedAt: occurred,
	}
	if id := strings.TrimSpace(record.ResourceID); id != "" {
		entry.ResourceID = &id
	}
	if v := sanitizeAuditText(record.Actor.UserID, 80); v != "" {
		entry.UserID = &v
	}
	if v := sanitizeAuditText(record.Actor.Email, 160); v != "" {
		entry.UserEmail = &v
	}
	if v := sanitizeAuditText(record.Actor.Name, 160); v != "" {
		entry.UserName = &v
	}
	if v := sanitizeAuditText(record.Actor.IPAddress, 64); v != "" {
		entry.IPAddress = &v
	}
	if v := sanitizeAuditText(record.Actor.UserAgent, 256); v != "" {
		entry.UserAgent = &v
	}
	if len(record.Metadata) > 0 {
		metadata := make(map[string]any, len(record.Metadata))
		for key, value := range record.Metadata {
			trimmed := sanitizeAuditText(key, 80)
			if trimmed == "" {
				continue
			}
			metadata[trimmed] = sanitizeAuditValue(value)
		}
		entry.Metadata = metadata
	}
	return entry
}

type noopAuditLogger struct{}

func (noopAuditLogger) Warnf(string, ...any) {}

func sanitizeAuditValue(value any) any {
	switch v := value.(type) {
	case string:
		return sanitizeAuditText(v, 512)
	default:
		return v
	}
}

func sanitizeAuditText(input string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	var builder strings.Builder
	for _, r := range input {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		builder.WriteRune(r)
		if builder.Len() >= limit {
			break
		}
	}
	return builder.String()
}
