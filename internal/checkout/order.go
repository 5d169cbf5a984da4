package checkout

import (
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

// ErrCartInvalid is returned when no cart line survives validation against the catalog.
var ErrCartInvalid = errors.New("checkout: cart invalid")

var validate = domain.NewValidator()

// ProductLookup resolves a product id against the current catalog.
type ProductLookup interface {
	Get(id string) (domain.Product, bool)
}

// BuildOrder validates the customer and the cart lines and assembles a pending order.
// Lines whose product is gone, or whose size the product no longer lists, are dropped
// and returned separately. Nothing is persisted.
func BuildOrder(items []domain.CartItem, customer domain.CustomerInfo, products ProductLookup, delivery *DeliveryTable, now time.Time) (*domain.Order, []domain.CartItem, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Address = strings.TrimSpace(customer.Address)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.AdditionalPhone = strings.TrimSpace(customer.AdditionalPhone)
	if err := domain.ValidateStruct(validate, customer, "customer details are required"); err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, ErrCartInvalid
	}

	valid := make([]domain.CartItem, 0, len(items))
	var dropped []domain.CartItem
	for _, item := range items {
		if lineValid(item, products) {
			valid = append(valid, item)
			continue
		}
		dropped = append(dropped, item)
	}
	if len(valid) == 0 {
		return nil, dropped, ErrCartInvalid
	}

	totals := computeTotals(valid, customer, delivery)
	customer.Governorate, customer.Center = resolveLocation(customer, delivery)

	order := &domain.Order{
		OrderNumber:  OrderNumber(),
		CustomerInfo: customer,
		Items:        valid,
		Totals:       totals,
		OrderDate:    now,
		Status:       domain.OrderStatusPending,
		WeekNumber:   WeekNumber(now),
		Year:         now.Year(),
	}
	return order, dropped, nil
}

func lineValid(item domain.CartItem, products ProductLookup) bool {
	if item.Quantity <= 0 {
		return false
	}
	p, ok := products.Get(item.ProductID)
	if !ok {
		return false
	}
	if len(p.Sizes) == 0 {
		return true
	}
	return p.HasSize(item.Size)
}

func computeTotals(items []domain.CartItem, customer domain.CustomerInfo, delivery *DeliveryTable) domain.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	price, resolved := delivery.Resolve(customer.Governorate, customer.Center)
	deliveryPrice := decimal.Zero
	if resolved {
		deliveryPrice = decimal.NewFromFloat(price)
	}
	return domain.Totals{
		Subtotal:         subtotal.InexactFloat64(),
		DeliveryPrice:    deliveryPrice.InexactFloat64(),
		Total:            subtotal.Add(deliveryPrice).InexactFloat64(),
		DeliveryResolved: resolved,
	}
}

// resolveLocation returns the governorate and center to record. A governorate missing
// from the table records "-" for both; an unknown center records "-" for the center.
func resolveLocation(customer domain.CustomerInfo, delivery *DeliveryTable) (string, string) {
	gov := domain.UnresolvedLocation
	center := domain.UnresolvedLocation
	for _, g := range delivery.Governorates() {
		if key(g.Name) != key(customer.Governorate) {
			continue
		}
		gov = GovernorateDisplayName(g.Name)
		for _, c := range g.Centers {
			if key(c.Name) == key(customer.Center) {
				center = c.Name
				break
			}
		}
		break
	}
	return gov, center
}

// GovernorateDisplayName shortens long governorate labels to their first part, cut at
// the first " و" or "،" separator, or at 20 characters.
func GovernorateDisplayName(gov string) string {
	gov = strings.TrimSpace(gov)
	if gov == "" {
		return domain.UnresolvedLocation
	}
	runes := []rune(gov)
	if len(runes) <= 20 {
		return gov
	}
	sep := -1
	for _, s := range []string{" و", "،"} {
		if i := runeIndex(runes, []rune(s)); i > 0 && (sep < 0 || i < sep) {
			sep = i
		}
	}
	if sep > 3 && sep < 25 {
		return strings.TrimSpace(string(runes[:sep]))
	}
	return strings.TrimSpace(string(runes[:20]))
}

func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// WeekNumber is ceil((days since Jan 1 + weekday of Jan 1 + 1) / 7) with Sunday as
// weekday 0, so weeks start on Sunday and the week containing Jan 1 is week 1.
func WeekNumber(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	days := t.YearDay() - 1
	return (days + int(jan1.Weekday()) + 1 + 6) / 7
}

// OrderNumber is a cosmetic four digit number for the confirmation message. It is not
// unique; the order id is the identifier.
func OrderNumber() int {
	return rand.IntN(9000) + 1000
}
