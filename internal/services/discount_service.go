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

const discountIDPrefix = "dsc_"

var (
	// ErrDiscountInvalidInput signals the caller provided invalid data.
	ErrDiscountInvalidInput = errors.New("discount: invalid input")
	// ErrDiscountNotFound indicates the discount could not be located.
	ErrDiscountNotFound = errors.New("discount: not found")
	// ErrDiscountConflict indicates a duplicate code within the tenant.
	ErrDiscountConflict = errors.New("discount: conflict")
	// ErrDiscountInUse blocks deletion of a discount referenced by orders.
	ErrDiscountInUse = errors.New("discount: referenced by orders")

	// Rejection reasons produced during validation against an order subtotal.
	ErrDiscountInactive      = errors.New("discount: not active")
	ErrDiscountNotStarted    = errors.New("discount: not started yet")
	ErrDiscountExpired       = errors.New("discount: expired")
	ErrDiscountExhausted     = errors.New("discount: usage limit reached")
	ErrDiscountMinimumNotMet = errors.New("discount: minimum order amount not met")
)

// CreateDiscountCommand captures inputs for a new discount code.
type CreateDiscountCommand struct {
	TenantID           string
	Code               string
	Description        *string
	Type               DiscountType
	Value              float64
	Active             bool
	StartDate          *time.Time
	EndDate            *time.Time
	UsageLimit         *int
	MinimumOrderAmount *float64
	Actor              AuditActor
}

// UpdateDiscountCommand mutates an existing discount.
type UpdateDiscountCommand struct {
	TenantID           string
	DiscountID         string
	Code               *string
	Description        *string
	Type               *DiscountType
	Value              *float64
	Active             *bool
	StartDate          *time.Time
	EndDate            *time.Time
	UsageLimit         *int
	MinimumOrderAmount *float64
	Actor              AuditActor
}

// DeleteDiscountCommand removes an unused discount.
type DeleteDiscountCommand struct {
	TenantID   string
	DiscountID string
	Actor      AuditActor
}

// ValidateDiscountQuery checks a code against a prospective subtotal.
// The result is advisory; order creation re-validates under lock.
type ValidateDiscountQuery struct {
	TenantID string
	Code     string
	Subtotal float64
	Actor    AuditActor
}

// DiscountValidation is the standalone validation outcome.
type DiscountValidation struct {
	Valid          bool
	Reason         string
	Discount       *Discount
	DiscountAmount float64
	Total          float64
}

// DiscountStats summarises usage of a discount.
type DiscountStats struct {
	Discount     Discount
	OrderCount   int
	Remaining    *int
	RecentOrders []repositories.DiscountOrderStat
}

// DiscountServiceDeps bundles collaborators required to construct the discount service.
type DiscountServiceDeps struct {
	Discounts   repositories.DiscountRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
}

type discountService struct {
	discounts repositories.DiscountRepository
	audit     AuditLogService
	clock     func() time.Time
	newID     func() string
}

// DiscountListFilter narrows discount listings.
type DiscountListFilter struct {
	Active     *bool
	Pagination Pagination
}

// NewDiscountService wires dependencies into a concrete DiscountService implementation.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.Discounts == nil {
		return nil, errors.New("discount service: discount repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return discountIDPrefix + ulid.Make().String() }
	}
	return &discountService{
		discounts: deps.Discounts,
		audit:     deps.Audit,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
	}, nil
}

func (s *discountService) CreateDiscount(ctx context.Context, cmd CreateDiscountCommand) (Discount, error) {
	code := normalizeDiscountCode(cmd.Code)
	if code == "" {
		return Discount{}, fmt.Errorf("%w: code is required", ErrDiscountInvalidInput)
	}
	if err := validateDiscountValue(cmd.Type, cmd.Value); err != nil {
		return Discount{}, err
	}
	if cmd.UsageLimit != nil && *cmd.UsageLimit <= 0 {
		return Discount{}, fmt.Errorf("%w: usage limit must be positive", ErrDiscountInvalidInput)
	}
	if cmd.MinimumOrderAmount != nil && *cmd.MinimumOrderAmount < 0 {
		return Discount{}, fmt.Errorf("%w: minimum order amount must be >= 0", ErrDiscountInvalidInput)
	}
	if cmd.StartDate != nil && cmd.EndDate != nil && cmd.EndDate.Before(*cmd.StartDate) {
		return Discount{}, fmt.Errorf("%w: end date precedes start date", ErrDiscountInvalidInput)
	}

	now := s.clock()
	discount := domain.Discount{
		ID:                 s.newID(),
		TenantID:           cmd.TenantID,
		Code:               code,
		Description:        cmd.Description,
		Type:               cmd.Type,
		Value:              cmd.Value,
		Active:             cmd.Active,
		StartDate:          cmd.StartDate,
		EndDate:            cmd.EndDate,
		UsageLimit:         cmd.UsageLimit,
		UsedCount:          0,
		MinimumOrderAmount: cmd.MinimumOrderAmount,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := s.discounts.Insert(ctx, discount)
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID: cmd.TenantID,
				Actor:    cmd.Actor,
				Action:   domain.ActionDiscountCreate,
				Resource: domain.ResourceDiscount,
				Metadata: map[string]any{"code": code},
			}, mapped)
		}
		return Discount{}, mapped
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionDiscountCreate,
			Resource:   domain.ResourceDiscount,
			ResourceID: created.ID,
			Metadata:   map[string]any{"code": created.Code, "type": string(created.Type), "value": created.Value},
		})
	}
	return created, nil
}

func (s *discountService) GetDiscount(ctx context.Context, tenantID, discountID string) (Discount, error) {
	discount, err := s.discounts.FindByID(ctx, tenantID, discountID)
	if err != nil {
		return Discount{}, s.mapRepositoryError(err)
	}
	return discount, nil
}

func (s *discountService) ListDiscounts(ctx context.Context, tenantID string, filter DiscountListFilter) (domain.Page[Discount], error) {
	page, err := s.discounts.List(ctx, tenantID, repositories.DiscountListFilter{
		Active:     filter.Active,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.Page[Discount]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *discountService) UpdateDiscount(ctx context.Context, cmd UpdateDiscountCommand) (Discount, error) {
	current, err := s.discounts.FindByID(ctx, cmd.TenantID, cmd.DiscountID)
	if err != nil {
		return Discount{}, s.mapRepositoryError(err)
	}
	before := current

	if cmd.Code != nil {
		code := normalizeDiscountCode(*cmd.Code)
		if code == "" {
			return Discount{}, fmt.Errorf("%w: code is required", ErrDiscountInvalidInput)
		}
		current.Code = code
	}
	if cmd.Description != nil {
		current.Description = cmd.Description
	}
	if cmd.Type != nil {
		current.Type = *cmd.Type
	}
	if cmd.Value != nil {
		current.Value = *cmd.Value
	}
	if err := validateDiscountValue(current.Type, current.Value); err != nil {
		return Discount{}, err
	}
	if cmd.Active != nil {
		current.Active = *cmd.Active
	}
	if cmd.StartDate != nil {
		current.StartDate = cmd.StartDate
	}
	if cmd.EndDate != nil {
		current.EndDate = cmd.EndDate
	}
	if current.StartDate != nil && current.EndDate != nil && current.EndDate.Before(*current.StartDate) {
		return Discount{}, fmt.Errorf("%w: end date precedes start date", ErrDiscountInvalidInput)
	}
	if cmd.UsageLimit != nil {
		if *cmd.UsageLimit <= 0 {
			return Discount{}, fmt.Errorf("%w: usage limit must be positive", ErrDiscountInvalidInput)
		}
		current.UsageLimit = cmd.UsageLimit
	}
	if cmd.MinimumOrderAmount != nil {
		if *cmd.MinimumOrderAmount < 0 {
			return Discount{}, fmt.Errorf("%w: minimum order amount must be >= 0", ErrDiscountInvalidInput)
		}
		current.MinimumOrderAmount = cmd.MinimumOrderAmount
	}
	current.UpdatedAt = s.clock()

	updated, err := s.discounts.Update(ctx, current)
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID:   cmd.TenantID,
				Actor:      cmd.Actor,
				Action:     domain.ActionDiscountUpdate,
				Resource:   domain.ResourceDiscount,
				ResourceID: cmd.DiscountID,
			}, mapped)
		}
		return Discount{}, mapped
	}

	if s.audit != nil {
		s.audit.RecordUpdate(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionDiscountUpdate,
			Resource:   domain.ResourceDiscount,
			ResourceID: updated.ID,
		}, discountAuditView(before), discountAuditView(updated))
	}
	return updated, nil
}

func (s *discountService) DeleteDiscount(ctx context.Context, cmd DeleteDiscountCommand) error {
	discount, err := s.discounts.FindByID(ctx, cmd.TenantID, cmd.DiscountID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	count, err := s.discounts.CountOrders(ctx, cmd.TenantID, cmd.DiscountID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if count > 0 {
		err := fmt.Errorf("%w: %d orders reference %s", ErrDiscountInUse, count, discount.Code)
		if s.audit != nil {
			s.audit.RecordFailure(ctx, AuditLogRecord{
				TenantID:   cmd.TenantID,
				Actor:      cmd.Actor,
				Action:     domain.ActionDiscountDelete,
				Resource:   domain.ResourceDiscount,
				ResourceID: cmd.DiscountID,
			}, err)
		}
		return err
	}

	if err := s.discounts.Delete(ctx, cmd.TenantID, cmd.DiscountID); err != nil {
		return s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.RecordDelete(ctx, AuditLogRecord{
			TenantID:   cmd.TenantID,
			Actor:      cmd.Actor,
			Action:     domain.ActionDiscountDelete,
			Resource:   domain.ResourceDiscount,
			ResourceID: cmd.DiscountID,
		}, discountAuditView(discount))
	}
	return nil
}

// ValidateDiscount evaluates a code outside any order transaction. The answer
// can go stale immediately; order creation repeats the checks under a row lock.
func (s *discountService) ValidateDiscount(ctx context.Context, query ValidateDiscountQuery) (DiscountValidation, error) {
	code := normalizeDiscountCode(query.Code)
	if code == "" {
		return DiscountValidation{}, fmt.Errorf("%w: code is required", ErrDiscountInvalidInput)
	}
	if query.Subtotal < 0 {
		return DiscountValidation{}, fmt.Errorf("%w: subtotal must be >= 0", ErrDiscountInvalidInput)
	}

	discount, err := s.discounts.FindByCode(ctx, query.TenantID, code)
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if errors.Is(mapped, ErrDiscountNotFound) {
			return DiscountValidation{Valid: false, Reason: "code not found", Total: query.Subtotal}, nil
		}
		return DiscountValidation{}, mapped
	}

	if err := evaluateDiscount(discount, query.Subtotal, s.clock()); err != nil {
		return DiscountValidation{Valid: false, Reason: err.Error(), Discount: &discount, Total: query.Subtotal}, nil
	}

	amount := discountAmount(discount, query.Subtotal)
	return DiscountValidation{
		Valid:          true,
		Discount:       &discount,
		DiscountAmount: amount,
		Total:          query.Subtotal - amount,
	}, nil
}

func (s *discountService) DiscountStats(ctx context.Context, tenantID, discountID string) (DiscountStats, error) {
	discount, err := s.discounts.FindByID(ctx, tenantID, discountID)
	if err != nil {
		return DiscountStats{}, s.mapRepositoryError(err)
	}
	count, err := s.discounts.CountOrders(ctx, tenantID, discountID)
	if err != nil {
		return DiscountStats{}, s.mapRepositoryError(err)
	}
	recent, err := s.discounts.OrderStats(ctx, tenantID, discountID, 10)
	if err != nil {
		return DiscountStats{}, s.mapRepositoryError(err)
	}

	stats := DiscountStats{Discount: discount, OrderCount: count, RecentOrders: recent}
	if discount.UsageLimit != nil {
		remaining := *discount.UsageLimit - discount.UsedCount
		if remaining < 0 {
			remaining = 0
		}
		stats.Remaining = &remaining
	}
	return stats, nil
}

func (s *discountService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrDiscountNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrDiscountConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("discount: repository unavailable: %w", err)
		}
	}
	return err
}

// evaluateDiscount checks every redemption precondition against the subtotal.
// Each rejection is independent of the others.
func evaluateDiscount(d Discount, subtotal float64, now time.Time) error {
	if !d.Active {
		return ErrDiscountInactive
	}
	if d.StartDate != nil && now.Before(*d.StartDate) {
		return ErrDiscountNotStarted
	}
	if d.EndDate != nil && now.After(*d.EndDate) {
		return ErrDiscountExpired
	}
	if d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit {
		return ErrDiscountExhausted
	}
	if d.MinimumOrderAmount != nil && subtotal < *d.MinimumOrderAmount {
		return fmt.Errorf("%w: subtotal %.2f below minimum %.2f", ErrDiscountMinimumNotMet, subtotal, *d.MinimumOrderAmount)
	}
	return nil
}

// discountAmount computes the reduction for a subtotal. Percentage discounts
// take a proportional cut; fixed discounts never exceed the subtotal.
func discountAmount(d Discount, subtotal float64) float64 {
	switch d.Type {
	case domain.DiscountPercentage:
		return subtotal * d.Value / 100
	case domain.DiscountFixed:
		if d.Value > subtotal {
			return subtotal
		}
		return d.Value
	default:
		return 0
	}
}

func validateDiscountValue(discountType DiscountType, value float64) error {
	switch discountType {
	case domain.DiscountPercentage:
		if value <= 0 || value > 100 {
			return fmt.Errorf("%w: percentage value must be in (0, 100]", ErrDiscountInvalidInput)
		}
	case domain.DiscountFixed:
		if value <= 0 {
			return fmt.Errorf("%w: fixed value must be positive", ErrDiscountInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrDiscountInvalidInput, discountType)
	}
	return nil
}

func normalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func discountAuditView(d Discount) map[string]any {
	view := map[string]any{
		"code":      d.Code,
		"type":      string(d.Type),
		"value":     d.Value,
		"active":    d.Active,
		"usedCount": d.UsedCount,
	}
	if d.UsageLimit != nil {
		view["usageLimit"] = *d.UsageLimit
	}
	if d.MinimumOrderAmount != nil {
		view["minimumOrderAmount"] = *d.MinimumOrderAmount
	}
	return view
}
