package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/quadro-commerce/api/internal/domain"
	"github.com/quadro-commerce/api/internal/platform/events"
	"github.com/quadro-commerce/api/internal/repositories"
)

const (
	orderIDPrefix     = "ord_"
	orderItemIDPrefix = "itm_"

	orderEventCreated       = "order.created"
	orderEventStatusUpdated = "order.status_updated"
	orderEventCancelled     = "order.cancelled"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a persistence conflict.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderInvalidTransition rejects a status change the lifecycle does not allow.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderCustomerNotFound indicates the referenced customer does not exist.
	ErrOrderCustomerNotFound = errors.New("order: customer not found")
	// ErrOrderDiscountRejected wraps the specific reason a discount code was refused.
	ErrOrderDiscountRejected = errors.New("order: discount rejected")
)

// orderStatusTransitions defines the allowed lifecycle edges. Cancelled is
// terminal; nothing leaves it.
var orderStatusTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusPaid, domain.OrderStatusCancelled},
	domain.OrderStatusPaid:      {domain.OrderStatusCancelled},
	domain.OrderStatusCancelled: {},
}

func canTransition(from, to domain.OrderStatus) bool {
	return slices.Contains(orderStatusTransitions[from], to)
}

// OrderLineInput names a requested quantity of a product.
type OrderLineInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand captures inputs for a new order. Either CustomerID or
// CustomerName must be provided; a linked customer supplies name and email.
type CreateOrderCommand struct {
	TenantID        string
	CustomerName    string
	CustomerEmail   *string
	CustomerID      *string
	Items           []OrderLineInput
	DiscountCode    *string
	ShippingAddress *string
	Notes           *string
	Actor           AuditActor
}

// UpdateOrderCommand mutates non-monetary order fields. Status changes go
// through UpdateOrderStatus or CancelOrder.
type UpdateOrderCommand struct {
	TenantID        string
	OrderID         string
	CustomerName    *string
	CustomerEmail   *string
	ShippingAddress *string
	Notes           *string
	Actor           AuditActor
}

// UpdateOrderStatusCommand moves an order along the lifecycle.
type UpdateOrderStatusCommand struct {
	TenantID string
	OrderID  string
	Status   OrderStatus
	Actor    AuditActor
}

// CancelOrderCommand cancels an order, restoring stock and discount usage.
type CancelOrderCommand struct {
	TenantID string
	OrderID  string
	Actor    AuditActor
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Status     *OrderStatus
	CustomerID *string
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

// OrderEventPublisher emits order lifecycle events to downstream consumers.
type OrderEventPublisher interface {
	Publish(ctx context.Context, event events.OrderEvent) error
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Discounts   repositories.DiscountRepository
	Customers   repositories.CustomerRepository
	Inventory   InventoryService
	Audit       AuditLogService
	UnitOfWork  repositories.UnitOfWork
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      AuditLogger
}

type orderService struct {
	orders    repositories.OrderRepository
	discounts repositories.DiscountRepository
	customers repositories.CustomerRepository
	inventory InventoryService
	audit     AuditLogService
	uow       repositories.UnitOfWork
	events    OrderEventPublisher
	clock     func() time.Time
	newID     func() string
	newItemID func() string
	logger    AuditLogger
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("order service: discount repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}
	uow := deps.UnitOfWork
	if uow == nil {
		uow = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return orderIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopAuditLogger{}
	}
	return &orderService{
		orders:    deps.Orders,
		discounts: deps.Discounts,
		customers: deps.Customers,
		inventory: deps.Inventory,
		audit:     deps.Audit,
		uow:       uow,
		events:    deps.Events,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		newItemID: func() string { return orderItemIDPrefix + ulid.Make().String() },
		logger:    logger,
	}, nil
}

// CreateOrder runs the whole order workflow in one transaction: stock is
// decremented under row locks, the discount is re-validated under its own
// lock, and monetary snapshots are taken from the locked product rows. Any
// failure rolls everything back.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}

	var created Order
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		now := s.clock()

		customerName := strings.TrimSpace(cmd.CustomerName)
		customerEmail := cmd.CustomerEmail
		if cmd.CustomerID != nil {
			customer, err := s.customers.FindByID(ctx, cmd.TenantID, *cmd.CustomerID)
			if err != nil {
				return s.mapCustomerError(err)
			}
			customerName = customer.Name
			customerEmail = &customer.Email
		}
		if customerName == "" {
			return fmt.Errorf("%w: customer name or customer id is required", ErrOrderInvalidInput)
		}

		lines := make([]StockLine, 0, len(cmd.Items))
		for _, item := range cmd.Items {
			lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		products, err := s.inventory.Decrement(ctx, cmd.TenantID, lines)
		if err != nil {
			return err
		}

		orderID := s.newID()
		items := make([]domain.OrderItem, 0, len(cmd.Items))
		var subtotal float64
		for i, item := range cmd.Items {
			lineTotal := products[i].Price * float64(item.Quantity)
			subtotal += lineTotal
			items = append(items, domain.OrderItem{
				ID:         s.newItemID(),
				OrderID:    orderID,
				ProductID:  products[i].ID,
				TenantID:   cmd.TenantID,
				Quantity:   item.Quantity,
				UnitPrice:  products[i].Price,
				TotalPrice: lineTotal,
			})
		}

		order := domain.Order{
			ID:              orderID,
			TenantID:        cmd.TenantID,
			CustomerName:    customerName,
			CustomerEmail:   customerEmail,
			CustomerID:      cmd.CustomerID,
			Status:          domain.OrderStatusPending,
			Subtotal:        subtotal,
			Total:           subtotal,
			ShippingAddress: cmd.ShippingAddress,
			Notes:           cmd.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if cmd.DiscountCode != nil && strings.TrimSpace(*cmd.DiscountCode) != "" {
			discount, amount, err := s.applyDiscount(ctx, cmd.TenantID, *cmd.DiscountCode, subtotal, now)
			if err != nil {
				return err
			}
			order.DiscountID = &discount.ID
			order.DiscountAmount = &amount
			order.Total = subtotal - amount
		}

		inserted, err := s.orders.Insert(ctx, order)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.InsertItems(ctx, items); err != nil {
			return s.mapRepositoryError(err)
		}
		inserted.Items = items
		inserted.ItemCount = len(items)
		created = inserted
		return nil
	})
	if err != nil {
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID: cmd.TenantID,
				Actor:    cmd.Actor,
				Action:   domain.ActionOrderCreate,
				Resource: domain.ResourceOrder,
			}, err)
		}
		return Order{}, err
	}

	if s.audit != nil {
		metadata := map[string]any{
			"total":     created.Total,
			"subtotal":  created.Subtotal,
			"itemCount": created.ItemCount,
		}
		if cmd.DiscountCode != nil && created.DiscountID != nil {
			metadata["discountCode"] = normalizeDiscountCode(*cmd.DiscountCode)
			metadata["discountAmount"] = *created.DiscountAmount
		}
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionOrderCreate,
			Resource:   domain.ResourceOrder,
			ResourceID: created.ID,
			Metadata:   metadata,
		})
	}
	s.publishEvent(ctx, orderEventCreated, created)
	return created, nil
}

// applyDiscount locks the discount row, re-checks every redemption rule
// against the final subtotal, and bumps the usage counter. The lock holds
// until the order transaction commits so concurrent redemptions of a
// usage-limited code serialise.
func (s *orderService) applyDiscount(ctx context.Context, tenantID, code string, subtotal float64, now time.Time) (domain.Discount, float64, error) {
	normalized := normalizeDiscountCode(code)
	discount, err := s.discounts.FindByCode(ctx, tenantID, normalized)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Discount{}, 0, fmt.Errorf("%w: code %s not found", ErrOrderDiscountRejected, normalized)
		}
		return domain.Discount{}, 0, err
	}

	locked, err := s.discounts.LockForUpdate(ctx, discount.ID)
	if err != nil {
		return domain.Discount{}, 0, err
	}
	if err := evaluateDiscount(locked, subtotal, now); err != nil {
		return domain.Discount{}, 0, fmt.Errorf("%w: %w", ErrOrderDiscountRejected, err)
	}
	if err := s.discounts.AdjustUsedCount(ctx, locked.ID, 1); err != nil {
		return domain.Discount{}, 0, err
	}
	return locked, discountAmount(locked, subtotal), nil
}

func (s *orderService) GetOrder(ctx context.Context, tenantID, orderID string) (Order, error) {
	order, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, tenantID string, filter OrderListFilter) (domain.Page[Order], error) {
	page, err := s.orders.List(ctx, tenantID, repositories.OrderListFilter{
		Status:     filter.Status,
		CustomerID: filter.CustomerID,
		DateRange:  filter.DateRange,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.Page[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	current, err := s.orders.FindByID(ctx, cmd.TenantID, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	before := current

	if cmd.CustomerName != nil {
		name := strings.TrimSpace(*cmd.CustomerName)
		if name == "" {
			return Order{}, fmt.Errorf("%w: customer name must not be empty", ErrOrderInvalidInput)
		}
		current.CustomerName = name
	}
	if cmd.CustomerEmail != nil {
		current.CustomerEmail = cmd.CustomerEmail
	}
	if cmd.ShippingAddress != nil {
		current.ShippingAddress = cmd.ShippingAddress
	}
	if cmd.Notes != nil {
		current.Notes = cmd.Notes
	}
	current.UpdatedAt = s.clock()

	updated, err := s.orders.Update(ctx, current)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionOrderUpdate,
			Resource:   domain.ResourceOrder,
			ResourceID: updated.ID,
		}, orderAuditView(before), orderAuditView(updated))
	}
	return updated, nil
}

// UpdateOrderStatus moves the order along the lifecycle under a row lock.
// Requesting the status the order already has is a no-op, so repeated
// identical requests stay idempotent. A transition into cancelled routes
// through the full cancellation path so stock and discount usage are restored.
func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	switch cmd.Status {
	case domain.OrderStatusPending, domain.OrderStatusPaid:
	case domain.OrderStatusCancelled:
		return s.CancelOrder(ctx, CancelOrderCommand{
			TenantID: cmd.TenantID,
			OrderID:  cmd.OrderID,
			Actor:    cmd.Actor,
		})
	default:
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	var (
		updated Order
		noop    bool
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.LockForUpdate(ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.Status == cmd.Status {
			updated = order
			noop = true
			return nil
		}
		if !canTransition(order.Status, cmd.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, cmd.Status)
		}
		now := s.clock()
		if err := s.orders.UpdateStatus(ctx, cmd.TenantID, cmd.OrderID, cmd.Status, now); err != nil {
			return s.mapRepositoryError(err)
		}
		order.Status = cmd.Status
		order.UpdatedAt = now
		updated = order
		return nil
	})
	if err != nil {
		if s.audit != nil && errors.Is(err, ErrOrderInvalidTransition) {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID:   cmd.TenantID,
				Actor:      cmd.Actor,
				Action:     domain.ActionOrderStatusUpdate,
				Resource:   domain.ResourceOrder,
				ResourceID: cmd.OrderID,
				Metadata:   map[string]any{"requestedStatus": string(cmd.Status)},
			}, err)
		}
		return Order{}, err
	}
	if noop {
		return updated, nil
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionOrderStatusUpdate,
			Resource:   domain.ResourceOrder,
			ResourceID: updated.ID,
			Metadata:   map[string]any{"status": string(updated.Status)},
		})
	}
	s.publishEvent(ctx, orderEventStatusUpdated, updated)
	return updated, nil
}

// CancelOrder is idempotent: cancelling an already cancelled order returns it
// unchanged. The row lock on the order header guarantees the compensation
// (stock restore, discount usage decrement) runs exactly once even under
// concurrent cancel requests.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	var (
		cancelled Order
		noop      bool
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.LockForUpdate(ctx, cmd.TenantID, cmd.OrderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.Status == domain.OrderStatusCancelled {
			cancelled = order
			noop = true
			return nil
		}
		if !canTransition(order.Status, domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, domain.OrderStatusCancelled)
		}

		lines := make([]StockLine, 0, len(order.Items))
		for _, item := range order.Items {
			lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := s.inventory.Restore(ctx, cmd.TenantID, lines); err != nil {
			return err
		}
		if order.DiscountID != nil {
			if err := s.discounts.AdjustUsedCount(ctx, *order.DiscountID, -1); err != nil {
				return err
			}
		}

		now := s.clock()
		if err := s.orders.UpdateStatus(ctx, cmd.TenantID, cmd.OrderID, domain.OrderStatusCancelled, now); err != nil {
			return s.mapRepositoryError(err)
		}
		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = now
		cancelled = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if noop {
		return cancelled, nil
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionOrderCancel,
			Resource:   domain.ResourceOrder,
			ResourceID: cancelled.ID,
			Metadata:   map[string]any{"restoredItems": len(cancelled.Items)},
		})
	}
	s.publishEvent(ctx, orderEventCancelled, cancelled)
	return cancelled, nil
}

// publishEvent is best-effort; delivery failures are logged and never fail
// the committed order mutation.
func (s *orderService) publishEvent(ctx context.Context, eventType string, order Order) {
	if s.events == nil {
		return
	}
	event := events.OrderEvent{
		Type:       eventType,
		TenantID:   order.TenantID,
		OrderID:    order.ID,
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: s.clock(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warnf("order event %s publish failed for %s: %v", eventType, order.ID, err)
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *orderService) mapCustomerError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrOrderCustomerNotFound, err)
	}
	return err
}

func orderAuditView(o Order) map[string]any {
	view := map[string]any{
		"customerName": o.CustomerName,
		"status":       string(o.Status),
		"total":        o.Total,
	}
	if o.CustomerEmail != nil {
		view["customerEmail"] = *o.CustomerEmail
	}
	if o.ShippingAddress != nil {
		view["shippingAddress"] = *o.ShippingAddress
	}
	if o.Notes != nil {
		view["notes"] = *o.Notes
	}
	return view
}

// noopUnitOfWork runs the function directly without transactional guarantees.
// Used when no unit of work is injected, mainly in tests.
type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func valuePtr[T any](v T) *T {
	return &v
}
