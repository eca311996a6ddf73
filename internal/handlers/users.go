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

const maxUserBodySize = 16 * 1024

// UserHandlers exposes back-office account management for a tenant. All
// routes are admin only.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewUserHandlers constructs handlers delegating to the user service.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService) *UserHandlers {
	return &UserHandlers{authn: authn, users: users}
}

// Routes wires the /users endpoints onto the provided router.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/users", func(ur chi.Router) {
		if h.authn != nil {
			ur.Use(h.authn.RequireAuth(auth.RoleAdmin))
		}
		ur.Get("/", h.listUsers)
		ur.Post("/", h.createUser)
		ur.Get("/{userID}", h.getUser)
		ur.Patch("/{userID}", h.updateUser)
		ur.Delete("/{userID}", h.deactivateUser)
	})
}

type userPayload struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenantId"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	IsActive    bool    `json:"isActive"`
	LastLoginAt *string `json:"lastLoginAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Role     *string `json:"role"`
}

func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := services.UserListFilter{Pagination: pagination.FromRequest(r)}
	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		role := domain.UserRole(raw)
		filter.Role = &role
	}
	if raw := strings.TrimSpace(query.Get("isActive")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "isActive must be a boolean", http.StatusBadRequest))
			return
		}
		filter.IsActive = &active
	}

	page, err := h.users.ListUsers(ctx, urlTenantID(r), filter)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}

	items := make([]userPayload, 0, len(page.Items))
	for _, user := range page.Items {
		items = append(items, buildUserPayload(user))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"users": items,
		"meta":  buildPageMeta(page.Meta),
	})
}

func (h *UserHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := decodeJSONBody(r, maxUserBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	user, err := h.users.CreateUser(ctx, services.CreateUserCommand{
		TenantID: urlTenantID(r),
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     domain.UserRole(req.Role),
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildUserPayload(user))
}

func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.users.GetUser(ctx, urlTenantID(r), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateUserRequest
	if err := decodeJSONBody(r, maxUserBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateUserCommand{
		TenantID: urlTenantID(r),
		UserID:   chi.URLParam(r, "userID"),
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Actor:    actorFromRequest(r),
	}
	if req.Role != nil {
		role := domain.UserRole(*req.Role)
		cmd.Role = &role
	}

	user, err := h.users.UpdateUser(ctx, cmd)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

func (h *UserHandlers) deactivateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.users.DeactivateUser(ctx, services.DeactivateUserCommand{
		TenantID: urlTenantID(r),
		UserID:   chi.URLParam(r, "userID"),
		Actor:    actorFromRequest(r),
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

func (h *UserHandlers) writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserConflict):
		httpx.WriteError(ctx, w, httpx.NewError("user_conflict", "user email already in use", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "user operation failed", http.StatusInternalServerError))
	}
}

func buildUserPayload(user domain.User) userPayload {
	return userPayload{
		ID:          user.ID,
		TenantID:    user.TenantID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		LastLoginAt: formatTimePtr(user.LastLoginAt),
		CreatedAt:   formatTime(user.CreatedAt),
		UpdatedAt:   formatTime(user.UpdatedAt),
	}
}
