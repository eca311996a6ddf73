package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

const (
	categoryIDPrefix = "cat_"
	productIDPrefix  = "prd_"
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCategoryNotFound indicates the category could not be located.
	ErrCategoryNotFound = errors.New("catalog: category not found")
	// ErrCategoryConflict indicates a duplicate category name within the tenant.
	ErrCategoryConflict = errors.New("catalog: category conflict")
	// ErrCategoryInUse blocks deletion of a category still holding products.
	ErrCategoryInUse = errors.New("catalog: category has products")
	// ErrProductNotFound indicates the product could not be located.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrProductConflict indicates a duplicate SKU within the tenant.
	ErrProductConflict = errors.New("catalog: product conflict")
	// ErrProductInUse blocks deletion of a product referenced by order items.
	ErrProductInUse = errors.New("catalog: product referenced by orders")
)

// CreateCategoryCommand captures inputs for a new category.
type CreateCategoryCommand struct {
	TenantID    string
	Name        string
	Description *string
	Actor       AuditActor
}

// UpdateCategoryCommand mutates an existing category.
type UpdateCategoryCommand struct {
	TenantID    string
	CategoryID  string
	Name        *string
	Description *string
	Actor       AuditActor
}

// DeleteCategoryCommand removes an empty category.
type DeleteCategoryCommand struct {
	TenantID   string
	CategoryID string
	Actor      AuditActor
}

// CreateProductCommand captures inputs for a new product.
type CreateProductCommand struct {
	TenantID    string
	Name        string
	Description *string
	Price       float64
	Stock       int
	MinStock    *int
	SKU         *string
	ImageURL    *string
	IsPublished bool
	CategoryID  *string
	Actor       AuditActor
}

// UpdateProductCommand mutates an existing product. Stock is excluded; stock
// changes go through the inventory service.
type UpdateProductCommand struct {
	TenantID    string
	ProductID   string
	Name        *string
	Description *string
	Price       *float64
	MinStock    *int
	SKU         *string
	ImageURL    *string
	CategoryID  *string
	Actor       AuditActor
}

// DeleteProductCommand removes a product not referenced by any order.
type DeleteProductCommand struct {
	TenantID  string
	ProductID string
	Actor     AuditActor
}

// PublishProductCommand toggles product visibility.
type PublishProductCommand struct {
	TenantID  string
	ProductID string
	Published bool
	Actor     AuditActor
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	CategoryID  *string
	IsPublished *bool
	LowStock    bool
	Search      string
	Pagination  Pagination
}

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Categories  repositories.CategoryRepository
	Products    repositories.ProductRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	categories repositories.CategoryRepository
	products   repositories.ProductRepository
	audit      AuditLogService
	clock      func() time.Time
	newID      func() string
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return productIDPrefix + ulid.Make().String() }
	}
	return &catalogService{
		categories: deps.Categories,
		products:   deps.Products,
		audit:      deps.Audit,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
	}, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd CreateCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}

	now := s.clock()
	created, err := s.categories.Insert(ctx, domain.Category{
		ID:          categoryIDPrefix + ulid.Make().String(),
		TenantID:    cmd.TenantID,
		Name:        name,
		Description: cmd.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		mapped := s.mapCategoryError(err)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID: cmd.TenantID,
				Actor:    cmd.Actor,
				Action:   domain.ActionCategoryCreate,
				Resource: domain.ResourceCategory,
				Metadata: map[string]any{"name": name},
			}, mapped)
		}
		return Category{}, mapped
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionCategoryCreate,
			Resource:   domain.ResourceCategory,
			ResourceID: created.ID,
			Metadata:   map[string]any{"name": created.Name},
		})
	}
	return created, nil
}

func (s *catalogService) GetCategory(ctx context.Context, tenantID, categoryID string) (Category, error) {
	category, err := s.categories.FindByID(ctx, tenantID, categoryID)
	if err != nil {
		return Category{}, s.mapCategoryError(err)
	}
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context, tenantID string, pager Pagination) (domain.Page[Category], error) {
	page, err := s.categories.List(ctx, tenantID, pager)
	if err != nil {
		return domain.Page[Category]{}, s.mapCategoryError(err)
	}
	return page, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, cmd UpdateCategoryCommand) (Category, error) {
	current, err := s.categories.FindByID(ctx, cmd.TenantID, cmd.CategoryID)
	if err != nil {
		return Category{}, s.mapCategoryError(err)
	}
	before := current

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Category{}, fmt.Errorf("%w: category name must not be empty", ErrCatalogInvalidInput)
		}
		current.Name = name
	}
	if cmd.Description != nil {
		current.Description = cmd.Description
	}
	current.UpdatedAt = s.clock()

	updated, err := s.categories.Update(ctx, current)
	if err != nil {
		return Category{}, s.mapCategoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionCategoryUpdate,
			Resource:   domain.ResourceCategory,
			ResourceID: updated.ID,
		}, map[string]any{"name": before.Name}, map[string]any{"name": updated.Name})
	}
	return updated, nil
}

// DeleteCategory refuses to remove a category that still has products so no
// product is ever left pointing at a missing category.
func (s *catalogService) DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) error {
	category, err := s.categories.FindByID(ctx, cmd.TenantID, cmd.CategoryID)
	if err != nil {
		return s.mapCategoryError(err)
	}

	count, err := s.categories.CountProducts(ctx, cmd.TenantID, cmd.CategoryID)
	if err != nil {
		return s.mapCategoryError(err)
	}
	if count > 0 {
		err := fmt.Errorf("%w: %d products in %s", ErrCategoryInUse, count, category.Name)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID:   cmd.TenantID,
				Actor:      cmd.Actor,
				Action:     domain.ActionCategoryDelete,
				Resource:   domain.ResourceCategory,
				ResourceID: cmd.CategoryID,
			}, err)
		}
		return err
	}

	if err := s.categories.Delete(ctx, cmd.TenantID, cmd.CategoryID); err != nil {
		return s.mapCategoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordDelete(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionCategoryDelete,
			Resource:   domain.ResourceCategory,
			ResourceID: cmd.CategoryID,
		}, map[string]any{"name": category.Name})
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrCatalogInvalidInput)
	}
	if cmd.Price <= 0 {
		return Product{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must be >= 0", ErrCatalogInvalidInput)
	}
	if cmd.MinStock != nil && *cmd.MinStock < 0 {
		return Product{}, fmt.Errorf("%w: min stock must be >= 0", ErrCatalogInvalidInput)
	}
	if cmd.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, cmd.TenantID, *cmd.CategoryID); err != nil {
			return Product{}, s.mapCategoryError(err)
		}
	}

	now := s.clock()
	created, err := s.products.Insert(ctx, domain.Product{
		ID:          s.newID(),
		TenantID:    cmd.TenantID,
		Name:        name,
		Description: cmd.Description,
		Price:       cmd.Price,
		Stock:       cmd.Stock,
		MinStock:    cmd.MinStock,
		SKU:         cmd.SKU,
		ImageURL:    cmd.ImageURL,
		IsPublished: cmd.IsPublished,
		CategoryID:  cmd.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		mapped := s.mapProductError(err)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID: cmd.TenantID,
				Actor:    cmd.Actor,
				Action:   domain.ActionProductCreate,
				Resource: domain.ResourceProduct,
				Metadata: map[string]any{"name": name},
			}, mapped)
		}
		return Product{}, mapped
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionProductCreate,
			Resource:   domain.ResourceProduct,
			ResourceID: created.ID,
			Metadata:   map[string]any{"name": created.Name, "price": created.Price, "stock": created.Stock},
		})
	}
	return created, nil
}

func (s *catalogService) GetProduct(ctx context.Context, tenantID, productID string) (Product, error) {
	product, err := s.products.FindByID(ctx, tenantID, productID)
	if err != nil {
		return Product{}, s.mapProductError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, tenantID string, filter ProductListFilter) (domain.Page[Product], error) {
	page, err := s.products.List(ctx, tenantID, repositories.ProductListFilter{
		CategoryID:  filter.CategoryID,
		IsPublished: filter.IsPublished,
		LowStock:    filter.LowStock,
		Search:      strings.TrimSpace(filter.Search),
		Pagination:  filter.Pagination,
	})
	if err != nil {
		return domain.Page[Product]{}, s.mapProductError(err)
	}
	return page, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	current, err := s.products.FindByID(ctx, cmd.TenantID, cmd.ProductID)
	if err != nil {
		return Product{}, s.mapProductError(err)
	}
	before := current

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: product name must not be empty", ErrCatalogInvalidInput)
		}
		current.Name = name
	}
	if cmd.Description != nil {
		current.Description = cmd.Description
	}
	if cmd.Price != nil {
		if *cmd.Price <= 0 {
			return Product{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
		}
		current.Price = *cmd.Price
	}
	if cmd.MinStock != nil {
		if *cmd.MinStock < 0 {
			return Product{}, fmt.Errorf("%w: min stock must be >= 0", ErrCatalogInvalidInput)
		}
		current.MinStock = cmd.MinStock
	}
	if cmd.SKU != nil {
		current.SKU = cmd.SKU
	}
	if cmd.ImageURL != nil {
		current.ImageURL = cmd.ImageURL
	}
	if cmd.CategoryID != nil {
		if *cmd.CategoryID != "" {
			if _, err := s.categories.FindByID(ctx, cmd.TenantID, *cmd.CategoryID); err != nil {
				return Product{}, s.mapCategoryError(err)
			}
			current.CategoryID = cmd.CategoryID
		} else {
			current.CategoryID = nil
		}
	}
	current.UpdatedAt = s.clock()

	updated, err := s.products.Update(ctx, current)
	if err != nil {
		return Product{}, s.mapProductError(err)
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionProductUpdate,
			Resource:   domain.ResourceProduct,
			ResourceID: updated.ID,
		}, productAuditView(before), productAuditView(updated))
	}
	return updated, nil
}

// DeleteProduct refuses to remove a product referenced by order items so
// historical orders keep their line items intact.
func (s *catalogService) DeleteProduct(ctx context.Context, cmd DeleteProductCommand) error {
	product, err := s.products.FindByID(ctx, cmd.TenantID, cmd.ProductID)
	if err != nil {
		return s.mapProductError(err)
	}

	count, err := s.products.CountOrderItems(ctx, cmd.TenantID, cmd.ProductID)
	if err != nil {
		return s.mapProductError(err)
	}
	if count > 0 {
		err := fmt.Errorf("%w: %d order items reference %s", ErrProductInUse, count, product.Name)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID:   cmd.TenantID,
				Actor:      cmd.Actor,
				Action:     domain.ActionProductDelete,
				Resource:   domain.ResourceProduct,
				ResourceID: cmd.ProductID,
			}, err)
		}
		return err
	}

	if err := s.products.Delete(ctx, cmd.TenantID, cmd.ProductID); err != nil {
		return s.mapProductError(err)
	}

	if s.audit != nil {
		s.audit.RecordDelete(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionProductDelete,
			Resource:   domain.ResourceProduct,
			ResourceID: cmd.ProductID,
		}, productAuditView(product))
	}
	return nil
}

func (s *catalogService) SetProductPublished(ctx context.Context, cmd PublishProductCommand) (Product, error) {
	updated, err := s.products.SetPublished(ctx, cmd.TenantID, cmd.ProductID, cmd.Published, s.clock())
	if err != nil {
		return Product{}, s.mapProductError(err)
	}

	action := domain.ActionProductPublish
	if !cmd.Published {
		action = domain.ActionProductUnpublish
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     action,
			Resource:   domain.ResourceProduct,
			ResourceID: updated.ID,
		})
	}
	return updated, nil
}

func (s *catalogService) mapCategoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCategoryNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCategoryConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *catalogService) mapProductError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrProductConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}
	return err
}

func productAuditView(p Product) map[string]any {
	view := map[string]any{
		"name":        p.Name,
		"price":       p.Price,
		"stock":       p.Stock,
		"isPublished": p.IsPublished,
	}
	if p.SKU != nil {
		view["sku"] = *p.SKU
	}
	if p.CategoryID != nil {
		view["categoryId"] = *p.CategoryID
	}
	return view
}
