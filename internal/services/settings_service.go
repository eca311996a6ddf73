package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

var (
	// ErrSettingsInvalidInput signals the caller provided invalid data.
	ErrSettingsInvalidInput = errors.New("settings: invalid input")
	// ErrSettingsNotFound indicates no settings row exists for the tenant.
	ErrSettingsNotFound = errors.New("settings: not found")
)

// UpdateSettingsCommand mutates per-tenant preferences.
type UpdateSettingsCommand struct {
	TenantID       string
	CompanyName    *string
	CompanyLogoURL *string
	Currency       *string
	Locale         *string
	Timezone       *string
	InvoicePrefix  *string
	Actor          AuditActor
}

// SettingsServiceDeps bundles collaborators required to construct the settings service.
type SettingsServiceDeps struct {
	Settings repositories.SettingsRepository
	Audit    AuditLogService
	Clock    func() time.Time
}

type settingsService struct {
	settings repositories.SettingsRepository
	audit    AuditLogService
	clock    func() time.Time
}

// NewSettingsService wires dependencies into a concrete SettingsService implementation.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &settingsService{
		settings: deps.Settings,
		audit:    deps.Audit,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

func (s *settingsService) GetSettings(ctx context.Context, tenantID string) (Settings, error) {
	settings, err := s.settings.FindByTenant(ctx, tenantID)
	if err != nil {
		return Settings{}, s.mapRepositoryError(err)
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, cmd UpdateSettingsCommand) (Settings, error) {
	current, err := s.settings.FindByTenant(ctx, cmd.TenantID)
	if err != nil {
		return Settings{}, s.mapRepositoryError(err)
	}
	before := current

	if cmd.CompanyName != nil {
		name := strings.TrimSpace(*cmd.CompanyName)
		if name == "" {
			return Settings{}, fmt.Errorf("%w: company name must not be empty", ErrSettingsInvalidInput)
		}
		current.CompanyName = name
	}
	if cmd.CompanyLogoURL != nil {
		current.CompanyLogoURL = cmd.CompanyLogoURL
	}
	if cmd.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*cmd.Currency))
		if len(currency) != 3 {
			return Settings{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrSettingsInvalidInput)
		}
		current.Currency = currency
	}
	if cmd.Locale != nil {
		locale := strings.TrimSpace(*cmd.Locale)
		if locale == "" {
			return Settings{}, fmt.Errorf("%w: locale must not be empty", ErrSettingsInvalidInput)
		}
		current.Locale = locale
	}
	if cmd.Timezone != nil {
		tz := strings.TrimSpace(*cmd.Timezone)
		if _, err := time.LoadLocation(tz); err != nil {
			return Settings{}, fmt.Errorf("%w: unknown timezone %q", ErrSettingsInvalidInput, tz)
		}
		current.Timezone = tz
	}
	if cmd.InvoicePrefix != nil {
		current.InvoicePrefix = cmd.InvoicePrefix
	}
	current.UpdatedAt = s.clock()

	updated, err := s.settings.Update(ctx, current)
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID: cmd.TenantID,
				Actor:    cmd.Actor,
				Action:   domain.ActionSettingsUpdate,
				Resource: domain.ResourceSettings,
			}, mapped)
		}
		return Settings{}, mapped
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionSettingsUpdate,
			Resource:   domain.ResourceSettings,
			ResourceID: updated.ID,
		}, settingsAuditView(before), settingsAuditView(updated))
	}
	return updated, nil
}

func (s *settingsService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrSettingsNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("settings: repository unavailable: %w", err)
		}
	}
	return err
}

func settingsAuditView(s Settings) map[string]any {
	view := map[string]any{
		"companyName": s.CompanyName,
		"currency":    s.Currency,
		"locale":      s.Locale,
		"timezone":    s.Timezone,
	}
	if s.InvoicePrefix != nil {
		view["invoicePrefix"] = *s.InvoicePrefix
	}
	if s.CompanyLogoURL != nil {
		view["companyLogoUrl"] = *s.CompanyLogoURL
	}
	return view
}
