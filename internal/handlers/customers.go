package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/httpx"
	"github.com/quadro-commerce/api/internal/platform/pagination"
	"github.com/quadro-commerce/api/internal/services"
)

const maxCustomerBodySize = 16 * 1024

// CustomerHandlers exposes the customer directory endpoints for a tenant.
type CustomerHandlers struct {
	customers services.CustomerService
}

// NewCustomerHandlers constructs handlers delegating to the customer service.
func NewCustomerHandlers(customers services.CustomerService) *CustomerHandlers {
	return &CustomerHandlers{customers: customers}
}

// Routes wires the /customers endpoints onto the provided router.
func (h *CustomerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/customers", func(cr chi.Router) {
		cr.Get("/", h.listCustomers)
		cr.Post("/", h.createCustomer)
		cr.Get("/{customerID}", h.getCustomer)
		cr.Patch("/{customerID}", h.updateCustomer)
		cr.Delete("/{customerID}", h.deleteCustomer)
	})
}

type customerPayload struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenantId"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type createCustomerRequest struct {
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type updateCustomerRequest struct {
	Email   *string `json:"email"`
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (h *CustomerHandlers) listCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.customers.ListCustomers(ctx, urlTenantID(r), services.CustomerListFilter{
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: pagination.FromRequest(r),
	})
	if err != nil {
		h.writeCustomerError(ctx, w, err)
		return
	}

	items := make([]customerPayload, 0, len(page.Items))
	for _, customer := range page.Items {
		items = append(items, buildCustomerPayload(customer))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"customers": items,
		"meta":      buildPageMeta(page.Meta),
	})
}

func (h *CustomerHandlers) createCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createCustomerRequest
	if err := decodeJSONBody(r, maxCustomerBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	customer, err := h.customers.CreateCustomer(ctx, services.CreateCustomerCommand{
		TenantID: urlTenantID(r),
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customer, err := h.customers.GetCustomer(ctx, urlTenantID(r), chi.URLParam(r, "customerID"))
	if err != nil {
		h.writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) updateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateCustomerRequest
	if err := decodeJSONBody(r, maxCustomerBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	customer, err := h.customers.UpdateCustomer(ctx, services.UpdateCustomerCommand{
		TenantID:   urlTenantID(r),
		CustomerID: chi.URLParam(r, "customerID"),
		Email:      req.Email,
		Name:       req.Name,
		Phone:      req.Phone,
		Address:    req.Address,
		Actor:      actorFromRequest(r),
	})
	if err != nil {
		h.writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.customers.DeleteCustomer(ctx, services.DeleteCustomerCommand{
		TenantID:   urlTenantID(r),
		CustomerID: chi.URLParam(r, "customerID"),
		Actor:      actorFromRequest(r),
	})
	if err != nil {
		h.writeCustomerError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CustomerHandlers) writeCustomerError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCustomerInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("customer_not_found", "customer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCustomerConflict):
		httpx.WriteError(ctx, w, httpx.NewError("customer_conflict", "customer email already in use", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("customer_error", "customer operation failed", http.StatusInternalServerError))
	}
}

func buildCustomerPayload(customer domain.Customer) customerPayload {
	return customerPayload{
		ID:        customer.ID,
		TenantID:  customer.TenantID,
		Email:     customer.Email,
		Name:      customer.Name,
		Phone:     customer.Phone,
		Address:   customer.Address,
		CreatedAt: formatTime(customer.CreatedAt),
		UpdatedAt: formatTime(customer.UpdatedAt),
	}
}
