package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
)

func newTestSettingsService(t *testing.T, repo *stubSettingsRepository) SettingsService {
	t.Helper()
	service, err := NewSettingsService(SettingsServiceDeps{
		Settings: repo,
		Clock:    func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing settings service: %v", err)
	}
	return service
}

func storedSettings(tenantID string) domain.Settings {
	prefix := "INV-"
	return domain.Settings{
		ID:            "set_1",
		TenantID:      tenantID,
		CompanyName:   "Tienda Central",
		Currency:      "COP",
		Locale:        "es-CO",
		Timezone:      "UTC",
		InvoicePrefix: &prefix,
	}
}

func TestSettingsServiceUpdateNormalisesCurrency(t *testing.T) {
	var updated domain.Settings
	repo := &stubSettingsRepository{
		findByTenantFunc: func(ctx context.Context, tenantID string) (domain.Settings, error) {
			return storedSettings(tenantID), nil
		},
		updateFunc: func(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
			updated = settings
			return settings, nil
		},
	}

	service := newTestSettingsService(t, repo)
	result, err := service.UpdateSettings(context.Background(), UpdateSettingsCommand{
		TenantID: "tnt_1",
		Currency: valuePtr(" usd "),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Currency != "USD" || updated.Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", updated.Currency)
	}
	if updated.Locale != "es-CO" {
		t.Fatalf("untouched fields must be preserved: %+v", updated)
	}
}

func TestSettingsServiceUpdateValidation(t *testing.T) {
	repo := &stubSettingsRepository{
		findByTenantFunc: func(ctx context.Context, tenantID string) (domain.Settings, error) {
			return storedSettings(tenantID), nil
		},
	}
	service := newTestSettingsService(t, repo)

	cases := []struct {
		name string
		cmd  UpdateSettingsCommand
	}{
		{"empty company name", UpdateSettingsCommand{TenantID: "tnt_1", CompanyName: valuePtr("  ")}},
		{"short currency", UpdateSettingsCommand{TenantID: "tnt_1", Currency: valuePtr("US")}},
		{"long currency", UpdateSettingsCommand{TenantID: "tnt_1", Currency: valuePtr("PESOS")}},
		{"empty locale", UpdateSettingsCommand{TenantID: "tnt_1", Locale: valuePtr("")}},
		{"unknown timezone", UpdateSettingsCommand{TenantID: "tnt_1", Timezone: valuePtr("Mars/Olympus")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.UpdateSettings(context.Background(), tc.cmd)
			if !errors.Is(err, ErrSettingsInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestSettingsServiceUpdateAcceptsValidTimezone(t *testing.T) {
	var updated domain.Settings
	repo := &stubSettingsRepository{
		findByTenantFunc: func(ctx context.Context, tenantID string) (domain.Settings, error) {
			return storedSettings(tenantID), nil
		},
		updateFunc: func(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
			updated = settings
			return settings, nil
		},
	}

	service := newTestSettingsService(t, repo)
	if _, err := service.UpdateSettings(context.Background(), UpdateSettingsCommand{
		TenantID: "tnt_1",
		Timezone: valuePtr("America/Bogota"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Timezone != "America/Bogota" {
		t.Fatalf("unexpected timezone %q", updated.Timezone)
	}
}

func TestSettingsServiceGetMapsNotFound(t *testing.T) {
	repo := &stubSettingsRepository{
		findByTenantFunc: func(ctx context.Context, tenantID string) (domain.Settings, error) {
			return domain.Settings{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestSettingsService(t, repo)
	if _, err := service.GetSettings(context.Background(), "tnt_missing"); !errors.Is(err, ErrSettingsNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
