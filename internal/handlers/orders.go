package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/httpx"
	"github.com/quadro-commerce/api/internal/platform/pagination"
	"github.com/quadro-commerce/api/internal/services"
)

const maxOrderBodySize = 64 * 1024

// OrderHandlers exposes the order workflow endpoints for a tenant.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs handlers delegating to the order service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/orders", func(or chi.Router) {
		or.Get("/", h.listOrders)
		or.Post("/", h.createOrder)
		or.Get("/{orderID}", h.getOrder)
		or.Patch("/{orderID}", h.updateOrder)
		or.Patch("/{orderID}/status", h.updateOrderStatus)
		or.Post("/{orderID}/cancel", h.cancelOrder)
		// DELETE cancels rather than removes: order rows are never deleted.
		or.Delete("/{orderID}", h.cancelOrder)
	})
}

type orderItemPayload struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"productId"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	TenantID        string             `json:"tenantId"`
	CustomerName    string             `json:"customerName"`
	CustomerEmail   *string            `json:"customerEmail,omitempty"`
	CustomerID      *string            `json:"customerId,omitempty"`
	Status          string             `json:"status"`
	Subtotal        float64            `json:"subtotal"`
	DiscountID      *string            `json:"discountId,omitempty"`
	DiscountAmount  *float64           `json:"discountAmount,omitempty"`
	Total           float64            `json:"total"`
	ShippingAddress *string            `json:"shippingAddress,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	Items           []orderItemPayload `json:"items,omitempty"`
	ItemCount       int                `json:"itemCount"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName    string             `json:"customerName"`
	CustomerEmail   *string            `json:"customerEmail"`
	CustomerID      *string            `json:"customerId"`
	Items           []orderItemRequest `json:"items"`
	DiscountCode    *string            `json:"discountCode"`
	ShippingAddress *string            `json:"shippingAddress"`
	Notes           *string            `json:"notes"`
}

type updateOrderRequest struct {
	CustomerName    *string `json:"customerName"`
	CustomerEmail   *string `json:"customerEmail"`
	ShippingAddress *string `json:"shippingAddress"`
	Notes           *string `json:"notes"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := services.OrderListFilter{Pagination: pagination.FromRequest(r)}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := domain.OrderStatus(raw)
		switch status {
		case domain.OrderStatusPending, domain.OrderStatusPaid, domain.OrderStatusCancelled:
			filter.Status = &status
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be pending, paid, or cancelled", http.StatusBadRequest))
			return
		}
	}
	if customerID := strings.TrimSpace(query.Get("customerId")); customerID != "" {
		filter.CustomerID = &customerID
	}
	from, err := parseTimeParam(query.Get("from"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be RFC 3339", http.StatusBadRequest))
		return
	}
	to, err := parseTimeParam(query.Get("to"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be RFC 3339", http.StatusBadRequest))
		return
	}
	filter.DateRange = domain.RangeQuery[time.Time]{From: from, To: to}

	page, err := h.orders.ListOrders(ctx, urlTenantID(r), filter)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"orders": items,
		"meta":   buildPageMeta(page.Meta),
	})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	items := make([]services.OrderLineInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderLineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		TenantID:        urlTenantID(r),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerID:      req.CustomerID,
		Items:           items,
		DiscountCode:    req.DiscountCode,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		Actor:           actorFromRequest(r),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, urlTenantID(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.UpdateOrder(ctx, services.UpdateOrderCommand{
		TenantID:        urlTenantID(r),
		OrderID:         chi.URLParam(r, "orderID"),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		Actor:           actorFromRequest(r),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateOrderStatusRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		TenantID: urlTenantID(r),
		OrderID:  chi.URLParam(r, "orderID"),
		Status:   domain.OrderStatus(strings.TrimSpace(req.Status)),
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		TenantID: urlTenantID(r),
		OrderID:  chi.URLParam(r, "orderID"),
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("customer_not_found", "customer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryProductUnpublished):
		httpx.WriteError(ctx, w, httpx.NewError("product_unpublished", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderDiscountRejected):
		httpx.WriteError(ctx, w, httpx.NewError("discount_rejected", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		TenantID:        order.TenantID,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerID:      order.CustomerID,
		Status:          string(order.Status),
		Subtotal:        order.Subtotal,
		DiscountID:      order.DiscountID,
		DiscountAmount:  order.DiscountAmount,
		Total:           order.Total,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		ItemCount:       order.ItemCount,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
	if len(order.Items) > 0 {
		payload.Items = make([]orderItemPayload, 0, len(order.Items))
		for _, item := range order.Items {
			payload.Items = append(payload.Items, orderItemPayload{
				ID:         item.ID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.TotalPrice,
			})
		}
		payload.ItemCount = len(order.Items)
	}
	return payload
}
