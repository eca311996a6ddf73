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

const maxCatalogBodySize = 32 * 1024

// CatalogHandlers exposes category and product endpoints for a tenant.
type CatalogHandlers struct {
	authn     *auth.Authenticator
	catalog   services.CatalogService
	inventory services.InventoryService
	uploads   services.UploadService
}

// NewCatalogHandlers constructs handlers delegating to the catalog and
// inventory services.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService, inventory services.InventoryService, uploads services.UploadService) *CatalogHandlers {
	return &CatalogHandlers{authn: authn, catalog: catalog, inventory: inventory, uploads: uploads}
}

// Routes wires the /categories and /products endpoints. Destructive
// operations require an admin; everything else is open to both roles.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	var admin func(http.Handler) http.Handler
	if h.authn != nil {
		admin = h.authn.RequireAuth(auth.RoleAdmin)
	}

	r.Route("/categories", func(cr chi.Router) {
		cr.Get("/", h.listCategories)
		cr.Post("/", h.createCategory)
		cr.Get("/{categoryID}", h.getCategory)
		cr.Patch("/{categoryID}", h.updateCategory)
		if admin != nil {
			cr.With(admin).Delete("/{categoryID}", h.deleteCategory)
		} else {
			cr.Delete("/{categoryID}", h.deleteCategory)
		}
	})

	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", h.listProducts)
		pr.Post("/", h.createProduct)
		pr.Get("/low-stock", h.listLowStock)
		pr.Get("/{productID}", h.getProduct)
		pr.Patch("/{productID}", h.updateProduct)
		pr.Patch("/{productID}/publish", h.publishProduct)
		pr.Patch("/{productID}/stock", h.setStock)
		pr.Post("/{productID}/image", h.uploadProductImage)
		if admin != nil {
			pr.With(admin).Delete("/{productID}", h.deleteProduct)
		} else {
			pr.Delete("/{productID}", h.deleteProduct)
		}
	})
}

type categoryPayload struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenantId"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type productPayload struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenantId"`
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	Price       float64          `json:"price"`
	Stock       int              `json:"stock"`
	MinStock    *int             `json:"minStock,omitempty"`
	SKU         *string          `json:"sku,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
	IsPublished bool             `json:"isPublished"`
	CategoryID  *string          `json:"categoryId,omitempty"`
	Category    *categoryPayload `json:"category,omitempty"`
	CreatedAt   string           `json:"createdAt"`
	UpdatedAt   string           `json:"updatedAt"`
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type createProductRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	MinStock    *int     `json:"minStock"`
	SKU         *string  `json:"sku"`
	ImageURL    *string  `json:"imageUrl"`
	IsPublished bool     `json:"isPublished"`
	CategoryID  *string  `json:"categoryId"`
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	MinStock    *int     `json:"minStock"`
	SKU         *string  `json:"sku"`
	ImageURL    *string  `json:"imageUrl"`
	CategoryID  *string  `json:"categoryId"`
}

type publishProductRequest struct {
	IsPublished *bool `json:"isPublished"`
}

type setStockRequest struct {
	Stock *int `json:"stock"`
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.catalog.ListCategories(ctx, urlTenantID(r), pagination.FromRequest(r))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	items := make([]categoryPayload, 0, len(page.Items))
	for _, category := range page.Items {
		items = append(items, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"categories": items,
		"meta":       buildPageMeta(page.Meta),
	})
}

func (h *CatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req categoryRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}

	category, err := h.catalog.CreateCategory(ctx, services.CreateCategoryCommand{
		TenantID:    urlTenantID(r),
		Name:        name,
		Description: req.Description,
		Actor:       actorFromRequest(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCategoryPayload(category))
}

func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category, err := h.catalog.GetCategory(ctx, urlTenantID(r), chi.URLParam(r, "categoryID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req categoryRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	category, err := h.catalog.UpdateCategory(ctx, services.UpdateCategoryCommand{
		TenantID:    urlTenantID(r),
		CategoryID:  chi.URLParam(r, "categoryID"),
		Name:        req.Name,
		Description: req.Description,
		Actor:       actorFromRequest(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.catalog.DeleteCategory(ctx, services.DeleteCategoryCommand{
		TenantID:   urlTenantID(r),
		CategoryID: chi.URLParam(r, "categoryID"),
		Actor:      actorFromRequest(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := services.ProductListFilter{
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: pagination.FromRequest(r),
	}
	if categoryID := strings.TrimSpace(r.URL.Query().Get("categoryId")); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("isPublished")); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "isPublished must be a boolean", http.StatusBadRequest))
			return
		}
		filter.IsPublished = &published
	}

	page, err := h.catalog.ListProducts(ctx, urlTenantID(r), filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeProductPage(w, page)
}

func (h *CatalogHandlers) listLowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
		return
	}

	page, err := h.inventory.ListLowStock(ctx, urlTenantID(r), pagination.FromRequest(r))
	if err != nil {
		h.writeInventoryError(ctx, w, err)
		return
	}
	writeProductPage(w, page)
}

func (h *CatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createProductRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Price == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price is required", http.StatusBadRequest))
		return
	}

	cmd := services.CreateProductCommand{
		TenantID:    urlTenantID(r),
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		MinStock:    req.MinStock,
		SKU:         req.SKU,
		ImageURL:    req.ImageURL,
		IsPublished: req.IsPublished,
		CategoryID:  req.CategoryID,
		Actor:       actorFromRequest(r),
	}
	if req.Stock != nil {
		cmd.Stock = *req.Stock
	}

	product, err := h.catalog.CreateProduct(ctx, cmd)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, err := h.catalog.GetProduct(ctx, urlTenantID(r), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateProductRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		TenantID:    urlTenantID(r),
		ProductID:   chi.URLParam(r, "productID"),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		MinStock:    req.MinStock,
		SKU:         req.SKU,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		Actor:       actorFromRequest(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.catalog.DeleteProduct(ctx, services.DeleteProductCommand{
		TenantID:  urlTenantID(r),
		ProductID: chi.URLParam(r, "productID"),
		Actor:     actorFromRequest(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) publishProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req publishProductRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.IsPublished == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "isPublished is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.SetProductPublished(ctx, services.PublishProductCommand{
		TenantID:  urlTenantID(r),
		ProductID: chi.URLParam(r, "productID"),
		Published: *req.IsPublished,
		Actor:     actorFromRequest(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req setStockRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stock is required", http.StatusBadRequest))
		return
	}

	product, err := h.inventory.SetStock(ctx, services.SetStockCommand{
		TenantID:  urlTenantID(r),
		ProductID: chi.URLParam(r, "productID"),
		Stock:     *req.Stock,
		Actor:     actorFromRequest(r),
	})
	if err != nil {
		h.writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

// uploadProductImage stores the image and persists its public URL on the
// product in one step.
func (h *CatalogHandlers) uploadProductImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.uploads == nil {
		httpx.WriteError(ctx, w, httpx.NewError("upload_service_unavailable", "upload service is unavailable", http.StatusServiceUnavailable))
		return
	}

	tenantID := urlTenantID(r)
	url, err := h.uploads.UploadImage(ctx, services.UploadImageCommand{
		TenantID:    tenantID,
		Folder:      services.UploadFolderProducts,
		ContentType: r.Header.Get("Content-Type"),
		Body:        r.Body,
		Size:        r.ContentLength,
	})
	if err != nil {
		writeUploadError(ctx, w, err)
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		TenantID:  tenantID,
		ProductID: chi.URLParam(r, "productID"),
		ImageURL:  &url,
		Actor:     actorFromRequest(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCategoryInUse):
		httpx.WriteError(ctx, w, httpx.NewError("category_in_use", "category still has products", http.StatusConflict))
	case errors.Is(err, services.ErrProductInUse):
		httpx.WriteError(ctx, w, httpx.NewError("product_in_use", "product is referenced by orders", http.StatusConflict))
	case errors.Is(err, services.ErrCategoryConflict):
		httpx.WriteError(ctx, w, httpx.NewError("category_conflict", "category name already in use", http.StatusConflict))
	case errors.Is(err, services.ErrProductConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", "product sku already in use", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

func (h *CatalogHandlers) writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "inventory operation failed", http.StatusInternalServerError))
	}
}

func writeProductPage(w http.ResponseWriter, page domain.Page[domain.Product]) {
	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"products": items,
		"meta":     buildPageMeta(page.Meta),
	})
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	return categoryPayload{
		ID:          category.ID,
		TenantID:    category.TenantID,
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   formatTime(category.CreatedAt),
		UpdatedAt:   formatTime(category.UpdatedAt),
	}
}

func buildProductPayload(product domain.Product) productPayload {
	payload := productPayload{
		ID:          product.ID,
		TenantID:    product.TenantID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		MinStock:    product.MinStock,
		SKU:         product.SKU,
		ImageURL:    product.ImageURL,
		IsPublished: product.IsPublished,
		CategoryID:  product.CategoryID,
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
	if product.Category != nil {
		category := buildCategoryPayload(*product.Category)
		payload.Category = &category
	}
	return payload
}
