package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
)

type stubCategoryRepository struct {
	insertFunc        func(ctx context.Context, category domain.Category) (domain.Category, error)
	updateFunc        func(ctx context.Context, category domain.Category) (domain.Category, error)
	deleteFunc        func(ctx context.Context, tenantID, categoryID string) error
	findByIDFunc      func(ctx context.Context, tenantID, categoryID string) (domain.Category, error)
	listFunc          func(ctx context.Context, tenantID string, pager domain.Pagination) (domain.Page[domain.Category], error)
	countProductsFunc func(ctx context.Context, tenantID, categoryID string) (int, error)
}

func (s *stubCategoryRepository) Insert(ctx context.Context, category domain.Category) (domain.Category, error) {
	if s.insertFunc == nil {
		return domain.Category{}, errUnexpectedCall
	}
	return s.insertFunc(ctx, category)
}

func (s *stubCategoryRepository) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	if s.updateFunc == nil {
		return domain.Category{}, errUnexpectedCall
	}
	return s.updateFunc(ctx, category)
}

func (s *stubCategoryRepository) Delete(ctx context.Context, tenantID, categoryID string) error {
	if s.deleteFunc == nil {
		return errUnexpectedCall
	}
	return s.deleteFunc(ctx, tenantID, categoryID)
}

func (s *stubCategoryRepository) FindByID(ctx context.Context, tenantID, categoryID string) (domain.Category, error) {
	if s.findByIDFunc == nil {
		return domain.Category{}, errUnexpectedCall
	}
	return s.findByIDFunc(ctx, tenantID, categoryID)
}

func (s *stubCategoryRepository) List(ctx context.Context, tenantID string, pager domain.Pagination) (domain.Page[domain.Category], error) {
	if s.listFunc == nil {
		return domain.Page[domain.Category]{}, errUnexpectedCall
	}
	return s.listFunc(ctx, tenantID, pager)
}

func (s *stubCategoryRepository) CountProducts(ctx context.Context, tenantID, categoryID string) (int, error) {
	if s.countProductsFunc == nil {
		return 0, errUnexpectedCall
	}
	return s.countProductsFunc(ctx, tenantID, categoryID)
}

func newTestCatalogService(t *testing.T, categories *stubCategoryRepository, products *stubProductRepository) CatalogService {
	t.Helper()
	service, err := NewCatalogService(CatalogServiceDeps{
		Categories: categories,
		Products:   products,
		Clock:      func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing catalog service: %v", err)
	}
	return service
}

func TestCatalogServiceCreateProductValidation(t *testing.T) {
	service := newTestCatalogService(t, &stubCategoryRepository{}, &stubProductRepository{})

	cases := []struct {
		name string
		cmd  CreateProductCommand
	}{
		{"missing name", CreateProductCommand{TenantID: "tnt_1", Price: 10, Stock: 1}},
		{"zero price", CreateProductCommand{TenantID: "tnt_1", Name: "Mug", Price: 0, Stock: 1}},
		{"negative price", CreateProductCommand{TenantID: "tnt_1", Name: "Mug", Price: -5, Stock: 1}},
		{"negative stock", CreateProductCommand{TenantID: "tnt_1", Name: "Mug", Price: 10, Stock: -1}},
		{"negative min stock", CreateProductCommand{TenantID: "tnt_1", Name: "Mug", Price: 10, Stock: 1, MinStock: valuePtr(-1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateProduct(context.Background(), tc.cmd)
			if !errors.Is(err, ErrCatalogInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestCatalogServiceCreateProductChecksCategoryExists(t *testing.T) {
	categories := &stubCategoryRepository{
		findByIDFunc: func(ctx context.Context, tenantID, categoryID string) (domain.Category, error) {
			return domain.Category{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestCatalogService(t, categories, &stubProductRepository{})
	_, err := service.CreateProduct(context.Background(), CreateProductCommand{
		TenantID:   "tnt_1",
		Name:       "Mug",
		Price:      10,
		Stock:      5,
		CategoryID: valuePtr("cat_missing"),
	})
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected category not found, got %v", err)
	}
}

func TestCatalogServiceCreateProductDefaults(t *testing.T) {
	var inserted domain.Product
	products := &stubProductRepository{
		insertFunc: func(ctx context.Context, product domain.Product) (domain.Product, error) {
			inserted = product
			return product, nil
		},
	}

	service := newTestCatalogService(t, &stubCategoryRepository{}, products)
	created, err := service.CreateProduct(context.Background(), CreateProductCommand{
		TenantID: "tnt_1",
		Name:     "  Ceramic Mug  ",
		Price:    25.5,
		Stock:    12,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.Name != "Ceramic Mug" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if !strings.HasPrefix(inserted.ID, "prd_") {
		t.Fatalf("expected prd_ id prefix, got %q", inserted.ID)
	}
	if inserted.IsPublished {
		t.Fatalf("expected new product unpublished by default")
	}
	if !inserted.CreatedAt.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected clock timestamp, got %v", inserted.CreatedAt)
	}
}

func TestCatalogServiceDeleteCategoryBlockedWhenNotEmpty(t *testing.T) {
	deleted := false
	categories := &stubCategoryRepository{
		findByIDFunc: func(ctx context.Context, tenantID, categoryID string) (domain.Category, error) {
			return domain.Category{ID: categoryID, TenantID: tenantID, Name: "Drinks"}, nil
		},
		countProductsFunc: func(ctx context.Context, tenantID, categoryID string) (int, error) {
			return 2, nil
		},
		deleteFunc: func(ctx context.Context, tenantID, categoryID string) error {
			deleted = true
			return nil
		},
	}

	service := newTestCatalogService(t, categories, &stubProductRepository{})
	err := service.DeleteCategory(context.Background(), DeleteCategoryCommand{
		TenantID:   "tnt_1",
		CategoryID: "cat_1",
	})
	if !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected in-use error, got %v", err)
	}
	if deleted {
		t.Fatalf("non-empty category must not be deleted")
	}
}

func TestCatalogServiceDeleteProductBlockedWhenOrdered(t *testing.T) {
	deleted := false
	products := &stubProductRepository{
		findFunc: func(ctx context.Context, tenantID, productID string) (domain.Product, error) {
			return domain.Product{ID: productID, TenantID: tenantID, Name: "Mug"}, nil
		},
		countOrderItemsFunc: func(ctx context.Context, tenantID, productID string) (int, error) {
			return 3, nil
		},
		deleteFunc: func(ctx context.Context, tenantID, productID string) error {
			deleted = true
			return nil
		},
	}

	service := newTestCatalogService(t, &stubCategoryRepository{}, products)
	err := service.DeleteProduct(context.Background(), DeleteProductCommand{
		TenantID:  "tnt_1",
		ProductID: "prd_1",
	})
	if !errors.Is(err, ErrProductInUse) {
		t.Fatalf("expected in-use error, got %v", err)
	}
	if deleted {
		t.Fatalf("referenced product must not be deleted")
	}
}

func TestCatalogServiceUpdateProductClearsCategory(t *testing.T) {
	category := "cat_1"
	var updated domain.Product
	products := &stubProductRepository{
		findFunc: func(ctx context.Context, tenantID, productID string) (domain.Product, error) {
			return domain.Product{ID: productID, TenantID: tenantID, Name: "Mug", Price: 10, CategoryID: &category}, nil
		},
		updateFunc: func(ctx context.Context, product domain.Product) (domain.Product, error) {
			updated = product
			return product, nil
		},
	}

	service := newTestCatalogService(t, &stubCategoryRepository{}, products)
	_, err := service.UpdateProduct(context.Background(), UpdateProductCommand{
		TenantID:   "tnt_1",
		ProductID:  "prd_1",
		CategoryID: valuePtr(""),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.CategoryID != nil {
		t.Fatalf("expected category cleared, got %v", *updated.CategoryID)
	}
}

func TestCatalogServiceDuplicateSKUMapsToConflict(t *testing.T) {
	products := &stubProductRepository{
		insertFunc: func(ctx context.Context, product domain.Product) (domain.Product, error) {
			return domain.Product{}, &repositoryErrorStub{conflict: true}
		},
	}

	service := newTestCatalogService(t, &stubCategoryRepository{}, products)
	_, err := service.CreateProduct(context.Background(), CreateProductCommand{
		TenantID: "tnt_1",
		Name:     "Mug",
		Price:    10,
		Stock:    1,
		SKU:      valuePtr("MUG-001"),
	})
	if !errors.Is(err, ErrProductConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}
