package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/auth"
	"github.com/quadro-commerce/api/internal/platform/httpx"
	"github.com/quadro-commerce/api/internal/platform/pagination"
	"github.com/quadro-commerce/api/internal/services"
)

const maxDiscountBodySize = 16 * 1024

// DiscountHandlers exposes discount code endpoints for a tenant.
type DiscountHandlers struct {
	authn     *auth.Authenticator
	discounts services.DiscountService
}

// NewDiscountHandlers constructs handlers delegating to the discount service.
func NewDiscountHandlers(authn *auth.Authenticator, discounts services.DiscountService) *DiscountHandlers {
	return &DiscountHandlers{authn: authn, discounts: discounts}
}

// Routes wires the /discounts endpoints. Code management requires an admin;
// validation and reads are open to both roles.
func (h *DiscountHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/discounts", func(dr chi.Router) {
		dr.Get("/", h.listDiscounts)
		dr.Post("/validate", h.validateDiscount)
		dr.Get("/{discountID}", h.getDiscount)
		dr.Get("/{discountID}/stats", h.discountStats)
		if h.authn != nil {
			admin := h.authn.RequireAuth(auth.RoleAdmin)
			dr.With(admin).Post("/", h.createDiscount)
			dr.With(admin).Patch("/{discountID}", h.updateDiscount)
			dr.With(admin).Delete("/{discountID}", h.deleteDiscount)
			return
		}
		dr.Post("/", h.createDiscount)
		dr.Patch("/{discountID}", h.updateDiscount)
		dr.Delete("/{discountID}", h.deleteDiscount)
	})
}

type discountPayload struct {
	ID                 string   `json:"id"`
	TenantID           string   `json:"tenantId"`
	Code               string   `json:"code"`
	Description        *string  `json:"description,omitempty"`
	Type               string   `json:"type"`
	Value              float64  `json:"value"`
	Active             bool     `json:"active"`
	StartDate          *string  `json:"startDate,omitempty"`
	EndDate            *string  `json:"endDate,omitempty"`
	UsageLimit         *int     `json:"usageLimit,omitempty"`
	UsedCount          int      `json:"usedCount"`
	MinimumOrderAmount *float64 `json:"minimumOrderAmount,omitempty"`
	CreatedAt          string   `json:"createdAt"`
	UpdatedAt          string   `json:"updatedAt"`
}

type discountRequest struct {
	Code               *string  `json:"code"`
	Description        *string  `json:"description"`
	Type               *string  `json:"type"`
	Value              *float64 `json:"value"`
	Active             *bool    `json:"active"`
	StartDate          *string  `json:"startDate"`
	EndDate            *string  `json:"endDate"`
	UsageLimit         *int     `json:"usageLimit"`
	MinimumOrderAmount *float64 `json:"minimumOrderAmount"`
}

type validateDiscountRequest struct {
	Code        string   `json:"code"`
	OrderAmount *float64 `json:"orderAmount"`
}

type discountValidationPayload struct {
	Valid          bool             `json:"valid"`
	Reason         string           `json:"reason,omitempty"`
	Discount       *discountPayload `json:"discount,omitempty"`
	DiscountAmount float64          `json:"discountAmount"`
	Total          float64          `json:"total"`
}

func (h *DiscountHandlers) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := services.DiscountListFilter{Pagination: pagination.FromRequest(r)}
	if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "active must be a boolean", http.StatusBadRequest))
			return
		}
		filter.Active = &active
	}

	page, err := h.discounts.ListDiscounts(ctx, urlTenantID(r), filter)
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	items := make([]discountPayload, 0, len(page.Items))
	for _, discount := range page.Items {
		items = append(items, buildDiscountPayload(discount))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"discounts": items,
		"meta":      buildPageMeta(page.Meta),
	})
}

func (h *DiscountHandlers) createDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req discountRequest
	if err := decodeJSONBody(r, maxDiscountBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.CreateDiscountCommand{
		TenantID:           urlTenantID(r),
		Description:        req.Description,
		UsageLimit:         req.UsageLimit,
		MinimumOrderAmount: req.MinimumOrderAmount,
		Actor:              actorFromRequest(r),
	}
	if req.Code != nil {
		cmd.Code = *req.Code
	}
	if req.Type != nil {
		cmd.Type = domain.DiscountType(*req.Type)
	}
	if req.Value != nil {
		cmd.Value = *req.Value
	}
	if req.Active != nil {
		cmd.Active = *req.Active
	} else {
		cmd.Active = true
	}

	var err error
	if cmd.StartDate, err = parseTimeParam(stringValue(req.StartDate)); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "startDate must be RFC 3339", http.StatusBadRequest))
		return
	}
	if cmd.EndDate, err = parseTimeParam(stringValue(req.EndDate)); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "endDate must be RFC 3339", http.StatusBadRequest))
		return
	}

	discount, err := h.discounts.CreateDiscount(ctx, cmd)
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildDiscountPayload(discount))
}

func (h *DiscountHandlers) getDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	discount, err := h.discounts.GetDiscount(ctx, urlTenantID(r), chi.URLParam(r, "discountID"))
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDiscountPayload(discount))
}

func (h *DiscountHandlers) updateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req discountRequest
	if err := decodeJSONBody(r, maxDiscountBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateDiscountCommand{
		TenantID:           urlTenantID(r),
		DiscountID:         chi.URLParam(r, "discountID"),
		Code:               req.Code,
		Description:        req.Description,
		Value:              req.Value,
		Active:             req.Active,
		UsageLimit:         req.UsageLimit,
		MinimumOrderAmount: req.MinimumOrderAmount,
		Actor:              actorFromRequest(r),
	}
	if req.Type != nil {
		discountType := domain.DiscountType(*req.Type)
		cmd.Type = &discountType
	}

	var err error
	if cmd.StartDate, err = parseTimeParam(stringValue(req.StartDate)); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "startDate must be RFC 3339", http.StatusBadRequest))
		return
	}
	if cmd.EndDate, err = parseTimeParam(stringValue(req.EndDate)); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "endDate must be RFC 3339", http.StatusBadRequest))
		return
	}

	discount, err := h.discounts.UpdateDiscount(ctx, cmd)
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDiscountPayload(discount))
}

func (h *DiscountHandlers) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.discounts.DeleteDiscount(ctx, services.DeleteDiscountCommand{
		TenantID:   urlTenantID(r),
		DiscountID: chi.URLParam(r, "discountID"),
		Actor:      actorFromRequest(r),
	})
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscountHandlers) validateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateDiscountRequest
	if err := decodeJSONBody(r, maxDiscountBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.OrderAmount == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderAmount is required", http.StatusBadRequest))
		return
	}

	result, err := h.discounts.ValidateDiscount(ctx, services.ValidateDiscountQuery{
		TenantID: urlTenantID(r),
		Code:     req.Code,
		Subtotal: *req.OrderAmount,
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}
	if !result.Valid {
		// Unknown and currently unusable codes both surface as not found so
		// callers cannot distinguish disabled codes from nonexistent ones.
		httpx.WriteError(ctx, w, httpx.NewError("discount_not_found", result.Reason, http.StatusNotFound))
		return
	}

	payload := discountValidationPayload{
		Valid:          result.Valid,
		Reason:         result.Reason,
		DiscountAmount: result.DiscountAmount,
		Total:          result.Total,
	}
	if result.Discount != nil {
		discount := buildDiscountPayload(*result.Discount)
		payload.Discount = &discount
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *DiscountHandlers) discountStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.discounts.DiscountStats(ctx, urlTenantID(r), chi.URLParam(r, "discountID"))
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	orders := make([]map[string]any, 0, len(stats.RecentOrders))
	for _, order := range stats.RecentOrders {
		orders = append(orders, map[string]any{
			"orderId":        order.OrderID,
			"total":          order.Total,
			"discountAmount": order.DiscountAmount,
			"status":         string(order.Status),
			"createdAt":      formatTime(order.CreatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"discount":     buildDiscountPayload(stats.Discount),
		"orderCount":   stats.OrderCount,
		"remaining":    stats.Remaining,
		"recentOrders": orders,
	})
}

func (h *DiscountHandlers) writeDiscountError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDiscountInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDiscountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("discount_not_found", "discount not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDiscountInUse):
		httpx.WriteError(ctx, w, httpx.NewError("discount_in_use", "discount is referenced by orders", http.StatusConflict))
	case errors.Is(err, services.ErrDiscountConflict):
		httpx.WriteError(ctx, w, httpx.NewError("discount_conflict", "discount code already in use", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("discount_error", "discount operation failed", http.StatusInternalServerError))
	}
}

func buildDiscountPayload(discount domain.Discount) discountPayload {
	return discountPayload{
		ID:                 discount.ID,
		TenantID:           discount.TenantID,
		Code:               discount.Code,
		Description:        discount.Description,
		Type:               string(discount.Type),
		Value:              discount.Value,
		Active:             discount.Active,
		StartDate:          formatTimePtr(discount.StartDate),
		EndDate:            formatTimePtr(discount.EndDate),
		UsageLimit:         discount.UsageLimit,
		UsedCount:          discount.UsedCount,
		MinimumOrderAmount: discount.MinimumOrderAmount,
		CreatedAt:          formatTime(discount.CreatedAt),
		UpdatedAt:          formatTime(discount.UpdatedAt),
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
