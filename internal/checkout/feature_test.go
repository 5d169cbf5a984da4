package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

type memOrders struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (m *memOrders) CreateOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := *order
	o.ID = fmt.Sprintf("order-%d", len(m.orders)+1)
	m.orders = append(m.orders, o)
	return &o, nil
}

func (m *memOrders) ListOrders(context.Context, store.Period) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Order(nil), m.orders...), nil
}

func (m *memOrders) UpdateOrderStatus(context.Context, string, domain.OrderStatus) (*domain.Order, error) {
	return nil, store.ErrOrderNotFound
}

func (m *memOrders) DeleteOrders(context.Context, store.Period) (int64, error) {
	return 0, nil
}

type shopperContext struct {
	table     *catalog.Table
	sessions  *cart.Sessions
	orders    *memOrders
	service   *checkout.Service
	sessionID string
	product   domain.Product
	color     string
	size      string
	receipt   *checkout.Receipt
	err       error
}

func (c *shopperContext) reset() error {
	delivery, err := checkout.LoadDeliveryTable("")
	if err != nil {
		return err
	}
	c.table = catalog.NewTable(nil)
	c.sessions = cart.NewSessions(time.Hour, nil)
	c.orders = &memOrders{}
	c.service = checkout.NewService(c.sessions, c.table, c.orders, delivery, nil, checkout.StoreProfile{
		Name:           "VEE",
		WhatsAppNumber: "+201000000000",
		PaymentMethods: "InstaPay / Vodafone Cash",
		PaymentNumber:  "01000000001",
		Currency:       "EGP",
	}, nil)
	c.sessionID = ""
	c.product = domain.Product{}
	c.color, c.size = "", ""
	c.receipt, c.err = nil, nil
	return nil
}

func (c *shopperContext) aProductPricedInColorWithImagesAndSizes(id string, price int, color, images, sizes string) error {
	raw := map[string]any{
		"name":     "Linen dress",
		"price":    float64(price),
		"category": "dresses",
		"sizes":    toAny(strings.Split(sizes, ",")),
		"colors": []any{
			map[string]any{"color": color, "images": toAny(strings.Split(images, ","))},
		},
	}
	p, drops := catalog.NormalizeProduct(id, raw)
	if len(drops) > 0 {
		return fmt.Errorf("unexpected drops: %v", drops)
	}
	c.product = p
	c.table.Patch(p)
	return nil
}

func (c *shopperContext) sizeOfProductIsOutOfStock(size, id string) error {
	p, ok := c.table.Get(id)
	if !ok {
		return fmt.Errorf("product %s not in catalog", id)
	}
	for i := range p.SizesAvailability {
		if p.SizesAvailability[i].Size == size {
			p.SizesAvailability[i].OutOfStock = true
		}
	}
	c.product = p
	c.table.Patch(p)
	return nil
}

func (c *shopperContext) theShopperSelectsColorAndSize(color, size string) error {
	c.color, c.size = color, size
	return nil
}

func (c *shopperContext) theSelectionIsPurchasable() error {
	if !catalog.IsPurchasable(c.product, c.color, c.size) {
		_, reason := catalog.CheckPurchasable(c.product, c.color, c.size)
		return fmt.Errorf("expected %s/%s to be purchasable, got %q", c.color, c.size, reason)
	}
	return nil
}

func (c *shopperContext) theSelectionIsNotPurchasable() error {
	if catalog.IsPurchasable(c.product, c.color, c.size) {
		return fmt.Errorf("expected %s/%s not to be purchasable", c.color, c.size)
	}
	return nil
}

func (c *shopperContext) theShopperAddsTheSelectionToTheCartWithQuantity(qty int) error {
	id, cc := c.sessions.GetOrCreate(c.sessionID)
	c.sessionID = id
	return cc.AddItem(domain.CartItem{
		ProductID: c.product.ID,
		Name:      c.product.Name,
		Price:     catalog.EffectivePrice(c.product, time.Now()),
		Size:      c.size,
		Color:     c.color,
		Category:  c.product.Category,
	}, qty)
}

func (c *shopperContext) theCartTotalIs(total int) error {
	cc, ok := c.sessions.Get(c.sessionID)
	if !ok {
		return errors.New("no cart for session")
	}
	if got := cc.Total(); got != float64(total) {
		return fmt.Errorf("expected cart total %d, got %v", total, got)
	}
	return nil
}

func (c *shopperContext) theStorePutsProductOnAOfferEndingInHour(id string, discount, hours int) error {
	p, ok := c.table.Get(id)
	if !ok {
		return fmt.Errorf("product %s not in catalog", id)
	}
	end := time.Now().Add(time.Duration(hours) * time.Hour)
	p.Offer = true
	p.OfferDiscount = float64(discount)
	p.OfferEndTime = &end
	c.product = p
	c.table.Patch(p)
	return nil
}

func (c *shopperContext) theEffectivePriceOfProductIs(id string, price int) error {
	p, _ := c.table.Get(id)
	if got := catalog.EffectivePrice(p, time.Now()); got != float64(price) {
		return fmt.Errorf("expected effective price %d, got %v", price, got)
	}
	return nil
}

func (c *shopperContext) theShopperChecksOutAs(name, address, phone, gov, center string) error {
	c.receipt, c.err = c.service.PlaceOrder(context.Background(), c.sessionID, domain.CustomerInfo{
		Name:        name,
		Address:     address,
		Phone:       phone,
		Governorate: gov,
		Center:      center,
	})
	return nil
}

func (c *shopperContext) anOrderIsStoredWithTotalAndDelivery(total, delivery int) error {
	if c.err != nil {
		return fmt.Errorf("checkout failed: %w", c.err)
	}
	if len(c.orders.orders) != 1 {
		return fmt.Errorf("expected 1 stored order, got %d", len(c.orders.orders))
	}
	t := c.orders.orders[0].Totals
	if t.Total != float64(total) || t.DeliveryPrice != float64(delivery) {
		return fmt.Errorf("expected total %d and delivery %d, got %v and %v", total, delivery, t.Total, t.DeliveryPrice)
	}
	return nil
}

func (c *shopperContext) theCartIsEmpty() error {
	cc, ok := c.sessions.Get(c.sessionID)
	if ok && cc.Len() != 0 {
		return fmt.Errorf("expected empty cart, got %d lines", cc.Len())
	}
	return nil
}

func (c *shopperContext) theHandoffLinkOpensAConversationWithTheStore() error {
	if !strings.HasPrefix(c.receipt.HandoffURL, "https://wa.me/+201000000000?text=") {
		return fmt.Errorf("unexpected handoff url %q", c.receipt.HandoffURL)
	}
	if !strings.Contains(c.receipt.Message, "Linen dress") {
		return fmt.Errorf("message does not list the item: %q", c.receipt.Message)
	}
	return nil
}

func (c *shopperContext) theCheckoutFailsNamingField(field string) error {
	var verr *domain.ValidationError
	if !errors.As(c.err, &verr) {
		return fmt.Errorf("expected a validation error, got %v", c.err)
	}
	for _, f := range verr.Fields {
		if f == field {
			return nil
		}
	}
	return fmt.Errorf("validation error %v does not name %q", verr.Fields, field)
}

func (c *shopperContext) noOrderIsStored() error {
	if n := len(c.orders.orders); n != 0 {
		return fmt.Errorf("expected no stored orders, got %d", n)
	}
	return nil
}

func (c *shopperContext) theOrderRecordsDeliveryAsUnresolved() error {
	o := c.orders.orders[0]
	if o.Totals.DeliveryResolved {
		return errors.New("expected delivery to be unresolved")
	}
	if o.CustomerInfo.Center != domain.UnresolvedLocation {
		return fmt.Errorf("expected center %q, got %q", domain.UnresolvedLocation, o.CustomerInfo.Center)
	}
	return nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	sc := &shopperContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, sc.reset()
	})

	ctx.Step(`^a product "([^"]*)" priced (\d+) in color "([^"]*)" with images "([^"]*)" and sizes "([^"]*)"$`, sc.aProductPricedInColorWithImagesAndSizes)
	ctx.Step(`^size "([^"]*)" of product "([^"]*)" is out of stock$`, sc.sizeOfProductIsOutOfStock)
	ctx.Step(`^the shopper selects color "([^"]*)" and size "([^"]*)"$`, sc.theShopperSelectsColorAndSize)
	ctx.Step(`^the selection is purchasable$`, sc.theSelectionIsPurchasable)
	ctx.Step(`^the selection is not purchasable$`, sc.theSelectionIsNotPurchasable)
	ctx.Step(`^the shopper adds the selection to the cart with quantity (\d+)$`, sc.theShopperAddsTheSelectionToTheCartWithQuantity)
	ctx.Step(`^the cart total is (\d+)$`, sc.theCartTotalIs)
	ctx.Step(`^the store puts product "([^"]*)" on a (\d+)% offer ending in (\d+) hours?$`, sc.theStorePutsProductOnAOfferEndingInHour)
	ctx.Step(`^the effective price of product "([^"]*)" is (\d+)$`, sc.theEffectivePriceOfProductIs)
	ctx.Step(`^the shopper checks out as "([^"]*)" at "([^"]*)" with phone "([^"]*)" in "([^"]*)" / "([^"]*)"$`, sc.theShopperChecksOutAs)
	ctx.Step(`^an order is stored with total (\d+) and delivery (\d+)$`, sc.anOrderIsStoredWithTotalAndDelivery)
	ctx.Step(`^the cart is empty$`, sc.theCartIsEmpty)
	ctx.Step(`^the handoff link opens a conversation with the store$`, sc.theHandoffLinkOpensAConversationWithTheStore)
	ctx.Step(`^the checkout fails naming field "([^"]*)"$`, sc.theCheckoutFailsNamingField)
	ctx.Step(`^no order is stored$`, sc.noOrderIsStored)
	ctx.Step(`^the order records delivery as unresolved$`, sc.theOrderRecordsDeliveryAsUnresolved)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
