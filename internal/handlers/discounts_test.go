package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/services"
)

type stubDiscountService struct {
	createFunc   func(ctx context.Context, cmd services.CreateDiscountCommand) (services.Discount, error)
	getFunc      func(ctx context.Context, tenantID, discountID string) (services.Discount, error)
	listFunc     func(ctx context.Context, tenantID string, filter services.DiscountListFilter) (domain.Page[services.Discount], error)
	updateFunc   func(ctx context.Context, cmd services.UpdateDiscountCommand) (services.Discount, error)
	deleteFunc   func(ctx context.Context, cmd services.DeleteDiscountCommand) error
	validateFunc func(ctx context.Context, query services.ValidateDiscountQuery) (services.DiscountValidation, error)
	statsFunc    func(ctx context.Context, tenantID, discountID string) (services.DiscountStats, error)
}

func (s *stubDiscountService) CreateDiscount(ctx context.Context, cmd services.CreateDiscountCommand) (services.Discount, error) {
	if s.createFunc == nil {
		return services.Discount{}, errUnexpectedServiceCall
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubDiscountService) GetDiscount(ctx context.Context, tenantID, discountID string) (services.Discount, error) {
	if s.getFunc == nil {
		return services.Discount{}, errUnexpectedServiceCall
	}
	return s.getFunc(ctx, tenantID, discountID)
}

func (s *stubDiscountService) ListDiscounts(ctx context.Context, tenantID string, filter services.DiscountListFilter) (domain.Page[services.Discount], error) {
	if s.listFunc == nil {
		return domain.Page[services.Discount]{}, errUnexpectedServiceCall
	}
	return s.listFunc(ctx, tenantID, filter)
}

func (s *stubDiscountService) UpdateDiscount(ctx context.Context, cmd services.UpdateDiscountCommand) (services.Discount, error) {
	if s.updateFunc == nil {
		return services.Discount{}, errUnexpectedServiceCall
	}
	return s.updateFunc(ctx, cmd)
}

func (s *stubDiscountService) DeleteDiscount(ctx context.Context, cmd services.DeleteDiscountCommand) error {
	if s.deleteFunc == nil {
		return errUnexpectedServiceCall
	}
	return s.deleteFunc(ctx, cmd)
}

func (s *stubDiscountService) ValidateDiscount(ctx context.Context, query services.ValidateDiscountQuery) (services.DiscountValidation, error) {
	if s.validateFunc == nil {
		return services.DiscountValidation{}, errUnexpectedServiceCall
	}
	return s.validateFunc(ctx, query)
}

func (s *stubDiscountService) DiscountStats(ctx context.Context, tenantID, discountID string) (services.DiscountStats, error) {
	if s.statsFunc == nil {
		return services.DiscountStats{}, errUnexpectedServiceCall
	}
	return s.statsFunc(ctx, tenantID, discountID)
}

func TestValidateDiscountReturnsProjectionForValidCode(t *testing.T) {
	var received services.ValidateDiscountQuery
	discount := domain.Discount{ID: "dsc_1", TenantID: "tnt_1", Code: "SAVE10"}
	discounts := &stubDiscountService{
		validateFunc: func(ctx context.Context, query services.ValidateDiscountQuery) (services.DiscountValidation, error) {
			received = query
			return services.DiscountValidation{
				Valid:          true,
				Discount:       &discount,
				DiscountAmount: 10,
				Total:          90,
			}, nil
		},
	}
	router := newTenantScopedRouter(NewDiscountHandlers(nil, discounts).Routes)

	body := `{"code":"SAVE10","orderAmount":100}`
	req := httptest.NewRequest(http.MethodPost, "/tenants/tnt_1/discounts/validate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if received.TenantID != "tnt_1" || received.Code != "SAVE10" || received.Subtotal != 100 {
		t.Fatalf("unexpected query: %+v", received)
	}

	var payload discountValidationPayload
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	if !payload.Valid || payload.DiscountAmount != 10 || payload.Total != 90 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Discount == nil || payload.Discount.ID != "dsc_1" {
		t.Fatalf("expected discount in payload, got %+v", payload.Discount)
	}
}

func TestValidateDiscountReturnsNotFoundForUnusableCode(t *testing.T) {
	discounts := &stubDiscountService{
		validateFunc: func(ctx context.Context, query services.ValidateDiscountQuery) (services.DiscountValidation, error) {
			return services.DiscountValidation{Valid: false, Reason: "code not found", Total: query.Subtotal}, nil
		},
	}
	router := newTenantScopedRouter(NewDiscountHandlers(nil, discounts).Routes)

	body := `{"code":"NOPE","orderAmount":100}`
	req := httptest.NewRequest(http.MethodPost, "/tenants/tnt_1/discounts/validate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	envelope := decodeErrorEnvelope(t, rec)
	if envelope.Code != "discount_not_found" {
		t.Fatalf("unexpected error code %q", envelope.Code)
	}
	if envelope.Message != "code not found" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
}

func TestValidateDiscountRequiresOrderAmount(t *testing.T) {
	router := newTenantScopedRouter(NewDiscountHandlers(nil, &stubDiscountService{}).Routes)

	req := httptest.NewRequest(http.MethodPost, "/tenants/tnt_1/discounts/validate", strings.NewReader(`{"code":"SAVE10"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if envelope := decodeErrorEnvelope(t, rec); envelope.Code != "invalid_request" {
		t.Fatalf("unexpected error code %q", envelope.Code)
	}
}
