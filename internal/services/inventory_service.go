package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid data.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryProductNotFound indicates the product could not be located.
	ErrInventoryProductNotFound = errors.New("inventory: product not found")
	// ErrInventoryInsufficientStock indicates a decrement would drive stock negative.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryProductUnpublished indicates the product is not available for sale.
	ErrInventoryProductUnpublished = errors.New("inventory: product not published")
)

// SetStockCommand overwrites the absolute stock level for a product.
type SetStockCommand struct {
	TenantID  string
	ProductID string
	Stock     int
	Actor     AuditActor
}

// InventoryServiceDeps bundles collaborators required to construct the inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Audit    AuditLogService
	Clock    func() time.Time
}

type inventoryService struct {
	products repositories.ProductRepository
	audit    AuditLogService
	clock    func() time.Time
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &inventoryService{
		products: deps.Products,
		audit:    deps.Audit,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

// Decrement locks each product row, validates availability, and subtracts the
// requested quantities. Any rejection aborts the enclosing transaction so no
// partial decrement survives. Returns the locked product snapshots taken
// before the decrement.
func (s *inventoryService) Decrement(ctx context.Context, tenantID string, lines []StockLine) ([]Product, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}

	snapshots := make([]Product, 0, len(lines))
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInventoryInvalidInput, productID)
		}

		product, err := s.products.LockForUpdate(ctx, tenantID, productID)
		if err != nil {
			return nil, s.mapRepositoryError(productID, err)
		}
		if !product.IsPublished {
			return nil, fmt.Errorf("%w: %s", ErrInventoryProductUnpublished, productID)
		}
		if product.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: product %s has %d, requested %d",
				ErrInventoryInsufficientStock, productID, product.Stock, line.Quantity)
		}
		if err := s.products.AdjustStock(ctx, productID, -line.Quantity); err != nil {
			return nil, s.mapRepositoryError(productID, err)
		}
		snapshots = append(snapshots, product)
	}
	return snapshots, nil
}

// Restore adds quantities back after a cancellation. Rows are locked so
// concurrent decrements observe the restored stock.
func (s *inventoryService) Restore(ctx context.Context, tenantID string, lines []StockLine) error {
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" || line.Quantity <= 0 {
			return fmt.Errorf("%w: restore line for %q with quantity %d", ErrInventoryInvalidInput, productID, line.Quantity)
		}
		if _, err := s.products.LockForUpdate(ctx, tenantID, productID); err != nil {
			return s.mapRepositoryError(productID, err)
		}
		if err := s.products.AdjustStock(ctx, productID, line.Quantity); err != nil {
			return s.mapRepositoryError(productID, err)
		}
	}
	return nil
}

func (s *inventoryService) SetStock(ctx context.Context, cmd SetStockCommand) (Product, error) {
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must be >= 0", ErrInventoryInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}

	previous, err := s.products.FindByID(ctx, cmd.TenantID, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(productID, err)
	}

	updated, err := s.products.SetStock(ctx, cmd.TenantID, productID, cmd.Stock, s.clock())
	if err != nil {
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID:   cmd.TenantID,
				Actor:      cmd.Actor,
				Action:     domain.ActionProductStockUpdate,
				Resource:   domain.ResourceProduct,
				ResourceID: productID,
			}, err)
		}
		return Product{}, s.mapRepositoryError(productID, err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionProductStockUpdate,
			Resource:   domain.ResourceProduct,
			ResourceID: productID,
			Metadata: map[string]any{
				"previousStock": previous.Stock,
				"newStock":      cmd.Stock,
			},
		})
	}
	return updated, nil
}

func (s *inventoryService) ListLowStock(ctx context.Context, tenantID string, pager Pagination) (domain.Page[Product], error) {
	return s.products.List(ctx, tenantID, repositories.ProductListFilter{
		LowStock:   true,
		Pagination: pager,
	})
}

func (s *inventoryService) mapRepositoryError(productID string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s", ErrInventoryProductNotFound, productID)
	}
	return err
}
