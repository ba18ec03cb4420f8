package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rosegold-gallery/storefront/internal/auth"
)

var (
	ErrInvalidCart       = errors.New("order must contain at least one item")
	ErrInvalidAmount     = errors.New("total amount must be greater than zero")
	ErrTotalMismatch     = errors.New("total amount does not match order items")
	ErrInvalidAddress    = errors.New("shipping address requires city and street")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrForbidden         = errors.New("access to this order is forbidden")
)

// EventPublisher receives order lifecycle notifications after the store
// write succeeds. Implementations must not block the request path on
// broker trouble; a nil publisher disables events entirely.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderStatusChanged(ctx context.Context, o *Order, from Status)
}

type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, items []Item, addr ShippingAddress, claimedTotal float64) (*Order, error)
	Get(ctx context.Context, id uuid.UUID, requester auth.Identity) (*Order, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context, requester auth.Identity) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status, force bool, requester auth.Identity) (*Order, error)
	UpdateShippingAddress(ctx context.Context, id uuid.UUID, addr ShippingAddress, requester auth.Identity) (*Order, error)
	BulkUpdateAddress(ctx context.Context, ownerID uuid.UUID, addr ShippingAddress) (int64, error)
	Delete(ctx context.Context, id uuid.UUID, requester auth.Identity) error
}

type service struct {
	repo   Repository
	events EventPublisher
}

func NewService(repo Repository, events EventPublisher) Service {
	return &service{repo: repo, events: events}
}

// Create persists a pending order from a frozen cart snapshot. The total is
// recomputed server-side from the items and must equal claimedTotal exactly;
// the client value is never trusted on its own for financial integrity.
func (s *service) Create(ctx context.Context, ownerID uuid.UUID, items []Item, addr ShippingAddress, claimedTotal float64) (*Order, error) {
	if len(items) == 0 {
		log.Warn().Stringer("owner_id", ownerID).Msg("service: attempt to create order with no items")
		return nil, ErrInvalidCart
	}
	if claimedTotal <= 0 {
		return nil, ErrInvalidAmount
	}
	if !addr.Complete() {
		return nil, ErrInvalidAddress
	}

	computedTotal := 0.0
	for i := range items {
		item := &items[i]
		if item.ProductID == "" || item.Name == "" {
			return nil, fmt.Errorf("%w: item %d is missing product id or name", ErrInvalidCart, i)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for product %s must be at least 1", ErrInvalidCart, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price for product %s cannot be negative", ErrInvalidCart, item.ProductID)
		}
		computedTotal += item.UnitPrice * float64(item.Quantity)
	}
	if computedTotal != claimedTotal {
		log.Warn().Stringer("owner_id", ownerID).
			Float64("claimed", claimedTotal).Float64("computed", computedTotal).
			Msg("service: claimed total rejected")
		return nil, ErrTotalMismatch
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order id: %w", err)
	}
	trackingCode, err := NewTrackingCode()
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	order := &Order{
		ID:              id,
		OwnerID:         ownerID,
		Items:           items,
		TotalAmount:     computedTotal,
		Status:          StatusPending,
		ShippingAddress: addr.Trimmed(),
		TrackingCode:    trackingCode,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		log.Error().Err(err).Stringer("owner_id", ownerID).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", order.ID).Stringer("owner_id", ownerID).
		Str("tracking_code", trackingCode).Msg("service: order created")

	if s.events != nil {
		s.events.OrderCreated(ctx, order)
	}

	return order, nil
}

// Get returns the order when the requester owns it or is an admin.
func (s *service) Get(ctx context.Context, id uuid.UUID, requester auth.Identity) (*Order, error) {
	order, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if !requester.IsAdmin() && order.OwnerID.String() != requester.ID {
		log.Warn().Stringer("order_id", id).Str("subject", requester.ID).Msg("service: order access denied")
		return nil, ErrForbidden
	}

	return order, nil
}

func (s *service) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		log.Error().Err(err).Stringer("owner_id", ownerID).Msg("service: failed to list owner orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListAll(ctx context.Context, requester auth.Identity) ([]Order, error) {
	if !requester.IsAdmin() {
		return nil, ErrForbidden
	}

	orders, err := s.repo.GetAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list all orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus applies an admin status change. Transitions must follow the
// forward-only table; force bypasses it for manual correction, which is the
// explicit escape hatch instead of silently accepting arbitrary moves.
// Setting the current status again is a no-op success.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status, force bool, requester auth.Identity) (*Order, error) {
	if !requester.IsAdmin() {
		return nil, ErrForbidden
	}
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	current, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == newStatus {
		log.Info().Stringer("order_id", id).Stringer("status", newStatus).Msg("service: status already set, no update needed")
		return current, nil
	}

	if !current.Status.CanTransition(newStatus) {
		if !force {
			log.Warn().Stringer("order_id", id).
				Stringer("current_status", current.Status).Stringer("new_status", newStatus).
				Msg("service: status transition rejected")
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
		}
		log.Warn().Stringer("order_id", id).
			Stringer("current_status", current.Status).Stringer("new_status", newStatus).
			Str("admin", requester.ID).Msg("service: forced status transition")
	}

	if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update status: %w", err)
	}

	updated, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", id).
		Stringer("old_status", current.Status).Stringer("new_status", newStatus).
		Msg("service: order status updated")

	if s.events != nil {
		s.events.OrderStatusChanged(ctx, updated, current.Status)
	}

	return updated, nil
}

func (s *service) UpdateShippingAddress(ctx context.Context, id uuid.UUID, addr ShippingAddress, requester auth.Identity) (*Order, error) {
	if !requester.IsAdmin() {
		return nil, ErrForbidden
	}
	if !addr.Complete() {
		return nil, ErrInvalidAddress
	}

	if err := s.repo.UpdateShippingAddress(ctx, id, addr.Trimmed()); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update shipping address")
		return nil, fmt.Errorf("service: failed to update shipping address: %w", err)
	}

	return s.fetch(ctx, id)
}

// BulkUpdateAddress corrects the shipping address on every order the owner
// has, for when a profile address changes retroactively. Zero affected
// orders is a valid result.
func (s *service) BulkUpdateAddress(ctx context.Context, ownerID uuid.UUID, addr ShippingAddress) (int64, error) {
	if !addr.Complete() {
		return 0, ErrInvalidAddress
	}

	count, err := s.repo.BulkUpdateAddress(ctx, ownerID, addr.Trimmed())
	if err != nil {
		log.Error().Err(err).Stringer("owner_id", ownerID).Msg("service: failed to bulk update addresses")
		return 0, fmt.Errorf("service: failed to bulk update addresses: %w", err)
	}

	log.Info().Stringer("owner_id", ownerID).Int64("updated", count).Msg("service: shipping addresses updated")
	return count, nil
}

// Delete is an idempotent admin hard delete: removing an id that does not
// exist succeeds, which keeps retries after a timeout simple.
func (s *service) Delete(ctx context.Context, id uuid.UUID, requester auth.Identity) error {
	if !requester.IsAdmin() {
		return ErrForbidden
	}

	existed, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to delete order")
		return fmt.Errorf("service: failed to delete order: %w", err)
	}
	if !existed {
		log.Info().Stringer("order_id", id).Msg("service: delete of missing order treated as success")
	}
	return nil
}

func (s *service) fetch(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return order, nil
}
