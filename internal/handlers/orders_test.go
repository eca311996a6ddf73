package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/services"
)

var errUnexpectedServiceCall = errors.New("unexpected service call")

type stubOrderService struct {
	createFunc       func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFunc          func(ctx context.Context, tenantID, orderID string) (services.Order, error)
	listFunc         func(ctx context.Context, tenantID string, filter services.OrderListFilter) (domain.Page[services.Order], error)
	updateFunc       func(ctx context.Context, cmd services.UpdateOrderCommand) (services.Order, error)
	updateStatusFunc func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error)
	cancelFunc       func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFunc == nil {
		return services.Order{}, errUnexpectedServiceCall
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, tenantID, orderID string) (services.Order, error) {
	if s.getFunc == nil {
		return services.Order{}, errUnexpectedServiceCall
	}
	return s.getFunc(ctx, tenantID, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, tenantID string, filter services.OrderListFilter) (domain.Page[services.Order], error) {
	if s.listFunc == nil {
		return domain.Page[services.Order]{}, errUnexpectedServiceCall
	}
	return s.listFunc(ctx, tenantID, filter)
}

func (s *stubOrderService) UpdateOrder(ctx context.Context, cmd services.UpdateOrderCommand) (services.Order, error) {
	if s.updateFunc == nil {
		return services.Order{}, errUnexpectedServiceCall
	}
	return s.updateFunc(ctx, cmd)
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateStatusFunc == nil {
		return services.Order{}, errUnexpectedServiceCall
	}
	return s.updateStatusFunc(ctx, cmd)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFunc == nil {
		return services.Order{}, errUnexpectedServiceCall
	}
	return s.cancelFunc(ctx, cmd)
}

func newTenantScopedRouter(register func(r chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Route("/tenants/{tenantID}", func(tr chi.Router) {
		register(tr)
	})
	return r
}

type errorEnvelope struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var envelope errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	return envelope
}

func TestOrderRoutesDeleteCancelsOrder(t *testing.T) {
	var cancelled services.CancelOrderCommand
	orders := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			cancelled = cmd
			return services.Order{
				ID:       cmd.OrderID,
				TenantID: cmd.TenantID,
				Status:   domain.OrderStatusCancelled,
			}, nil
		},
	}
	router := newTenantScopedRouter(NewOrderHandlers(orders).Routes)

	req := httptest.NewRequest(http.MethodDelete, "/tenants/tnt_1/orders/ord_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if cancelled.TenantID != "tnt_1" || cancelled.OrderID != "ord_1" {
		t.Fatalf("unexpected cancel command: %+v", cancelled)
	}

	var payload orderPayload
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	if payload.Status != string(domain.OrderStatusCancelled) {
		t.Fatalf("expected cancelled status, got %q", payload.Status)
	}
}

func TestCreateOrderMapsRejectionsToBadRequest(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "insufficient stock",
			err:      fmt.Errorf("%w: product prd_1", services.ErrInventoryInsufficientStock),
			wantCode: "insufficient_stock",
		},
		{
			name:     "discount rejected",
			err:      fmt.Errorf("%w: code expired", services.ErrOrderDiscountRejected),
			wantCode: "discount_rejected",
		},
		{
			name:     "unpublished product",
			err:      fmt.Errorf("%w: product prd_1", services.ErrInventoryProductUnpublished),
			wantCode: "product_unpublished",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderService{
				createFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			router := newTenantScopedRouter(NewOrderHandlers(orders).Routes)

			body := `{"customerName":"Ana","items":[{"productId":"prd_1","quantity":1}]}`
			req := httptest.NewRequest(http.MethodPost, "/tenants/tnt_1/orders", strings.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if envelope := decodeErrorEnvelope(t, rec); envelope.Code != tc.wantCode {
				t.Fatalf("expected error code %q, got %q", tc.wantCode, envelope.Code)
			}
		})
	}
}

func TestWriteOrderErrorKeepsTransitionConflicts(t *testing.T) {
	orders := &stubOrderService{
		updateStatusFunc: func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: cancelled -> paid", services.ErrOrderInvalidTransition)
		},
	}
	router := newTenantScopedRouter(NewOrderHandlers(orders).Routes)

	req := httptest.NewRequest(http.MethodPatch, "/tenants/tnt_1/orders/ord_1/status", strings.NewReader(`{"status":"paid"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	if envelope := decodeErrorEnvelope(t, rec); envelope.Code != "invalid_status_transition" {
		t.Fatalf("unexpected error code %q", envelope.Code)
	}
}
