package checkout

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/cart"
	"storefront-service/internal/domain"
	"storefront-service/internal/notify"
	"storefront-service/internal/store"
)

// ErrEmptyCart is returned when the session has no cart or an empty one.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// Receipt is what the shopper gets back from a placed order.
type Receipt struct {
	Order        *domain.Order     `json:"order"`
	Message      string            `json:"message"`
	HandoffURL   string            `json:"handoffUrl"`
	DroppedItems []domain.CartItem `json:"droppedItems,omitempty"`
}

// Service turns a session cart into a persisted order.
type Service struct {
	sessions *cart.Sessions
	products ProductLookup
	orders   store.OrderStorer
	delivery *DeliveryTable
	notifier notify.Notifier
	profile  StoreProfile
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(sessions *cart.Sessions, products ProductLookup, orders store.OrderStorer, delivery *DeliveryTable, notifier notify.Notifier, profile StoreProfile, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		products: products,
		orders:   orders,
		delivery: delivery,
		notifier: notifier,
		profile:  profile,
		now:      time.Now,
		logger:   logger,
	}
}

// PlaceOrder builds, persists and announces the order of a session's cart. The lines
// the order was built from are taken out of the cart only after the order is stored;
// anything added meanwhile stays in the cart.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, customer domain.CustomerInfo) (*Receipt, error) {
	c, ok := s.sessions.Get(sessionID)
	if !ok || c.Len() == 0 {
		return nil, ErrEmptyCart
	}

	lines := c.Items()
	order, dropped, err := BuildOrder(lines, customer, s.products, s.delivery, s.now())
	if err != nil {
		return nil, err
	}
	for _, d := range dropped {
		s.logger.Info("dropped stale cart line",
			zap.String("product_id", d.ProductID),
			zap.String("size", d.Size),
			zap.String("color", d.Color),
		)
	}

	stored, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		s.logger.Error("failed to store order", zap.Error(err))
		return nil, &domain.ExternalServiceError{Service: "order store", Op: "create order", Err: err}
	}

	message := FormatMessage(stored, s.profile)
	if err := s.notifier.OrderPlaced(ctx, stored, message); err != nil {
		s.logger.Error("failed to notify staff of order", zap.String("order_id", stored.ID), zap.Error(err))
	}
	c.Consume(lines)

	s.logger.Info("order placed",
		zap.String("order_id", stored.ID),
		zap.Int("order_number", stored.OrderNumber),
		zap.Int("items", len(stored.Items)),
		zap.Float64("total", stored.Totals.Total),
		zap.Bool("delivery_resolved", stored.Totals.DeliveryResolved),
	)
	return &Receipt{
		Order:        stored,
		Message:      message,
		HandoffURL:   HandoffURL(s.profile.WhatsAppNumber, message),
		DroppedItems: dropped,
	}, nil
}

// Delivery exposes the delivery table.
func (s *Service) Delivery() *DeliveryTable {
	return s.delivery
}
