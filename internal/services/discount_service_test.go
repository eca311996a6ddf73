package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

func newTestDiscountService(t *testing.T, repo *stubDiscountRepository, now time.Time) DiscountService {
	t.Helper()
	service, err := NewDiscountService(DiscountServiceDeps{
		Discounts: repo,
		Clock:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing discount service: %v", err)
	}
	return service
}

func TestEvaluateDiscountRejectionReasons(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	limit := 3
	minimum := 100.0

	cases := []struct {
		name     string
		discount domain.Discount
		subtotal float64
		want     error
	}{
		{
			name:     "inactive",
			discount: domain.Discount{Active: false, Type: domain.DiscountPercentage, Value: 10},
			subtotal: 50,
			want:     ErrDiscountInactive,
		},
		{
			name:     "not started",
			discount: domain.Discount{Active: true, StartDate: &future},
			subtotal: 50,
			want:     ErrDiscountNotStarted,
		},
		{
			name:     "expired",
			discount: domain.Discount{Active: true, EndDate: &past},
			subtotal: 50,
			want:     ErrDiscountExpired,
		},
		{
			name:     "exhausted",
			discount: domain.Discount{Active: true, UsageLimit: &limit, UsedCount: 3},
			subtotal: 50,
			want:     ErrDiscountExhausted,
		},
		{
			name:     "below minimum",
			discount: domain.Discount{Active: true, MinimumOrderAmount: &minimum},
			subtotal: 99.99,
			want:     ErrDiscountMinimumNotMet,
		},
		{
			name:     "valid",
			discount: domain.Discount{Active: true, StartDate: &past, EndDate: &future, UsageLimit: &limit, UsedCount: 2, MinimumOrderAmount: &minimum},
			subtotal: 100,
			want:     nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := evaluateDiscount(tc.discount, tc.subtotal, now)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected acceptance, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDiscountAmountArithmetic(t *testing.T) {
	cases := []struct {
		name     string
		discount domain.Discount
		subtotal float64
		want     float64
	}{
		{"percentage", domain.Discount{Type: domain.DiscountPercentage, Value: 10}, 50, 5},
		{"percentage full", domain.Discount{Type: domain.DiscountPercentage, Value: 100}, 80, 80},
		{"fixed below subtotal", domain.Discount{Type: domain.DiscountFixed, Value: 20}, 50, 20},
		{"fixed capped at subtotal", domain.Discount{Type: domain.DiscountFixed, Value: 70}, 50, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := discountAmount(tc.discount, tc.subtotal); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDiscountServiceCreateDiscountNormalisesCode(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var inserted domain.Discount
	repo := &stubDiscountRepository{
		insertFunc: func(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
			inserted = discount
			return discount, nil
		},
	}

	service := newTestDiscountService(t, repo, now)
	created, err := service.CreateDiscount(context.Background(), CreateDiscountCommand{
		TenantID: "tnt_1",
		Code:     "  save10 ",
		Type:     domain.DiscountPercentage,
		Value:    10,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Code != "SAVE10" || inserted.Code != "SAVE10" {
		t.Fatalf("expected normalised code SAVE10, got %q", inserted.Code)
	}
	if inserted.UsedCount != 0 {
		t.Fatalf("expected zero initial usage, got %d", inserted.UsedCount)
	}
	if !strings.HasPrefix(inserted.ID, "dsc_") {
		t.Fatalf("expected dsc_ id prefix, got %q", inserted.ID)
	}
}

func TestDiscountServiceCreateDiscountValidation(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	start := now
	end := now.Add(-time.Hour)

	cases := []struct {
		name string
		cmd  CreateDiscountCommand
	}{
		{"missing code", CreateDiscountCommand{Type: domain.DiscountPercentage, Value: 10}},
		{"percentage over 100", CreateDiscountCommand{Code: "X", Type: domain.DiscountPercentage, Value: 150}},
		{"percentage zero", CreateDiscountCommand{Code: "X", Type: domain.DiscountPercentage, Value: 0}},
		{"fixed negative", CreateDiscountCommand{Code: "X", Type: domain.DiscountFixed, Value: -5}},
		{"unknown type", CreateDiscountCommand{Code: "X", Type: domain.DiscountType("bogo"), Value: 1}},
		{"usage limit zero", CreateDiscountCommand{Code: "X", Type: domain.DiscountFixed, Value: 5, UsageLimit: valuePtr(0)}},
		{"end before start", CreateDiscountCommand{Code: "X", Type: domain.DiscountFixed, Value: 5, StartDate: &start, EndDate: &end}},
	}

	service := newTestDiscountService(t, &stubDiscountRepository{}, now)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateDiscount(context.Background(), tc.cmd)
			if !errors.Is(err, ErrDiscountInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestDiscountServiceValidateDiscountUnknownCodeIsNotAnError(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubDiscountRepository{
		findByCodeFunc: func(ctx context.Context, tenantID, code string) (domain.Discount, error) {
			return domain.Discount{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestDiscountService(t, repo, now)
	result, err := service.ValidateDiscount(context.Background(), ValidateDiscountQuery{
		TenantID: "tnt_1",
		Code:     "NOPE",
		Subtotal: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if result.Reason != "code not found" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
	if result.Total != 50 {
		t.Fatalf("expected unchanged total 50, got %v", result.Total)
	}
}

func TestDiscountServiceValidateDiscountComputesTotals(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubDiscountRepository{
		findByCodeFunc: func(ctx context.Context, tenantID, code string) (domain.Discount, error) {
			return domain.Discount{ID: "dsc_1", Code: code, Type: domain.DiscountFixed, Value: 15, Active: true}, nil
		},
	}

	service := newTestDiscountService(t, repo, now)
	result, err := service.ValidateDiscount(context.Background(), ValidateDiscountQuery{
		TenantID: "tnt_1",
		Code:     "FLAT15",
		Subtotal: 60,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, reason %q", result.Reason)
	}
	if result.DiscountAmount != 15 || result.Total != 45 {
		t.Fatalf("expected amount 15 and total 45, got %v and %v", result.DiscountAmount, result.Total)
	}
}

func TestDiscountServiceDeleteDiscountBlockedWhenReferenced(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	deleted := false
	repo := &stubDiscountRepository{
		findByIDFunc: func(ctx context.Context, tenantID, discountID string) (domain.Discount, error) {
			return domain.Discount{ID: discountID, Code: "SAVE10"}, nil
		},
		countOrdersFunc: func(ctx context.Context, tenantID, discountID string) (int, error) {
			return 4, nil
		},
		deleteFunc: func(ctx context.Context, tenantID, discountID string) error {
			deleted = true
			return nil
		},
	}

	service := newTestDiscountService(t, repo, now)
	err := service.DeleteDiscount(context.Background(), DeleteDiscountCommand{
		TenantID:   "tnt_1",
		DiscountID: "dsc_1",
	})
	if !errors.Is(err, ErrDiscountInUse) {
		t.Fatalf("expected in-use error, got %v", err)
	}
	if deleted {
		t.Fatalf("referenced discount must not be deleted")
	}
}

func TestDiscountServiceUpdateDiscountRejectsInvertedWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	start := now.Add(48 * time.Hour)
	repo := &stubDiscountRepository{
		findByIDFunc: func(ctx context.Context, tenantID, discountID string) (domain.Discount, error) {
			end := now.Add(24 * time.Hour)
			return domain.Discount{ID: discountID, Code: "SAVE10", Type: domain.DiscountPercentage, Value: 10, EndDate: &end}, nil
		},
	}

	service := newTestDiscountService(t, repo, now)
	_, err := service.UpdateDiscount(context.Background(), UpdateDiscountCommand{
		TenantID:   "tnt_1",
		DiscountID: "dsc_1",
		StartDate:  &start,
	})
	if !errors.Is(err, ErrDiscountInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestDiscountServiceStatsReportsRemainingUses(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	limit := 10
	repo := &stubDiscountRepository{
		findByIDFunc: func(ctx context.Context, tenantID, discountID string) (domain.Discount, error) {
			return domain.Discount{ID: discountID, Code: "SAVE10", UsageLimit: &limit, UsedCount: 7}, nil
		},
		countOrdersFunc: func(ctx context.Context, tenantID, discountID string) (int, error) {
			return 7, nil
		},
		orderStatsFunc: func(ctx context.Context, tenantID, discountID string, limit int) ([]repositories.DiscountOrderStat, error) {
			return []repositories.DiscountOrderStat{{OrderID: "ord_1", Total: 45, DiscountAmount: 5}}, nil
		},
	}

	service := newTestDiscountService(t, repo, now)
	stats, err := service.DiscountStats(context.Background(), "tnt_1", "dsc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.OrderCount != 7 {
		t.Fatalf("expected 7 orders, got %d", stats.OrderCount)
	}
	if stats.Remaining == nil || *stats.Remaining != 3 {
		t.Fatalf("expected 3 remaining uses, got %v", stats.Remaining)
	}
	if len(stats.RecentOrders) != 1 {
		t.Fatalf("expected one recent order, got %d", len(stats.RecentOrders))
	}
}
