package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// OfferActive is the single "currently offered" predicate: the offer flag is on and the
// end time, when set, is still in the future.
func OfferActive(p domain.Product, now time.Time) bool {
	if !p.Offer {
		return false
	}
	return p.OfferEndTime == nil || p.OfferEndTime.After(now)
}

// EffectivePrice is the price a shopper pays at now, rounded to a whole unit.
// It must be evaluated on every read.
func EffectivePrice(p domain.Product, now time.Time) float64 {
	if !OfferActive(p, now) || p.OfferDiscount <= 0 {
		return p.Price
	}
	discount := decimal.NewFromFloat(p.OfferDiscount)
	if discount.GreaterThan(hundred) {
		discount = hundred
	}
	factor := decimal.NewFromInt(1).Sub(discount.Div(hundred))
	return decimal.NewFromFloat(p.Price).Mul(factor).Round(0).InexactFloat64()
}
