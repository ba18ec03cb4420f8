// Package checkout sequences the handoff of ephemeral client-held cart
// state into a persisted order: snapshot the cart, create the order,
// run the payment stub, then clear the cart.
package checkout

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rosegold-gallery/storefront/internal/auth"
	"github.com/rosegold-gallery/storefront/internal/cart"
	"github.com/rosegold-gallery/storefront/internal/order"
)

// PaymentProcessor charges the order total. The real gateway integration is
// out of scope; the shipped implementation always succeeds.
type PaymentProcessor interface {
	Charge(ctx context.Context, orderID uuid.UUID, amount float64) error
}

// StubPayment approves every charge.
type StubPayment struct{}

func (StubPayment) Charge(ctx context.Context, orderID uuid.UUID, amount float64) error {
	log.Info().Stringer("order_id", orderID).Float64("amount", amount).Msg("checkout: payment stub approved charge")
	return nil
}

type Result struct {
	OrderID      uuid.UUID `json:"order_id"`
	TrackingCode string    `json:"tracking_code"`
}

type Service struct {
	orders   order.Service
	payments PaymentProcessor
}

func NewService(orders order.Service, payments PaymentProcessor) *Service {
	return &Service{orders: orders, payments: payments}
}

// Checkout snapshots the cart into a pending order for the authenticated
// identity. The cart is cleared exactly once, after the order is persisted
// and the charge approved; any failure leaves the cart untouched so the
// session can retry.
func (s *Service) Checkout(ctx context.Context, identity auth.Identity, c *cart.Store, addr order.ShippingAddress) (*Result, error) {
	ownerID, err := uuid.FromString(identity.ID)
	if err != nil {
		return nil, fmt.Errorf("checkout: invalid owner id %q: %w", identity.ID, err)
	}

	lines := c.Lines()
	if len(lines) == 0 {
		return nil, order.ErrInvalidCart
	}

	items := make([]order.Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, order.Item{
			ProductID: line.ProductID,
			Name:      line.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			ImageRef:  line.ImageRef,
		})
	}
	total := c.TotalPrice()

	created, err := s.orders.Create(ctx, ownerID, items, addr, total)
	if err != nil {
		return nil, err
	}

	if err := s.payments.Charge(ctx, created.ID, created.TotalAmount); err != nil {
		log.Error().Err(err).Stringer("order_id", created.ID).Msg("checkout: charge failed after order creation")
		return nil, fmt.Errorf("checkout: payment failed: %w", err)
	}

	if err := c.ClearCart(); err != nil {
		// The order exists; a stale cart snapshot is not worth failing the
		// confirmation over.
		log.Warn().Err(err).Stringer("order_id", created.ID).Msg("checkout: failed to clear cart after order submission")
	}

	return &Result{OrderID: created.ID, TrackingCode: created.TrackingCode}, nil
}
