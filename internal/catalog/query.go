package catalog

import (
	"cmp"
	"slices"
	"time"

	"storefront-service/internal/domain"
)

// PriceOrder is the direction of SortByPrice.
type PriceOrder int

const (
	Ascending PriceOrder = iota
	Descending
)

// ParsePriceOrder maps the query values price_asc and price_desc. ok is false for anything else.
func ParsePriceOrder(s string) (PriceOrder, bool) {
	switch s {
	case "price_asc":
		return Ascending, true
	case "price_desc":
		return Descending, true
	}
	return Ascending, false
}

// FilterByCategory keeps products of the given category. An empty category keeps everything.
func FilterByCategory(products []domain.Product, category string) []domain.Product {
	if category == "" {
		return slices.Clone(products)
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// SortByPrice sorts a copy on base price; discounts are not considered.
func SortByPrice(products []domain.Product, order PriceOrder) []domain.Product {
	out := slices.Clone(products)
	slices.SortStableFunc(out, func(a, b domain.Product) int {
		if order == Descending {
			return cmp.Compare(b.Price, a.Price)
		}
		return cmp.Compare(a.Price, b.Price)
	})
	return out
}

// SortByDisplayOrder sorts a copy ascending on display order. Products without one sort
// last, and ties keep their input order.
func SortByDisplayOrder(products []domain.Product) []domain.Product {
	out := slices.Clone(products)
	slices.SortStableFunc(out, func(a, b domain.Product) int {
		return cmp.Compare(a.SortKey(), b.SortKey())
	})
	return out
}

// ActiveOffers keeps the products OfferActive accepts at now.
func ActiveOffers(products []domain.Product, now time.Time) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if OfferActive(p, now) {
			out = append(out, p)
		}
	}
	return out
}

// NearestOfferEnd is the earliest end time among active offers, used for the storefront countdown.
func NearestOfferEnd(products []domain.Product, now time.Time) (time.Time, bool) {
	var nearest time.Time
	found := false
	for _, p := range products {
		if !OfferActive(p, now) || p.OfferEndTime == nil {
			continue
		}
		if !found || p.OfferEndTime.Before(nearest) {
			nearest = *p.OfferEndTime
			found = true
		}
	}
	return nearest, found
}

// Query describes a listing view.
type Query struct {
	Category   string
	Sort       string
	OffersOnly bool
	Now        time.Time
}

// Apply derives a listing from the full product set: display order first, then
// category and offer filters, then an optional price sort.
func Apply(products []domain.Product, q Query) []domain.Product {
	out := SortByDisplayOrder(products)
	out = FilterByCategory(out, q.Category)
	if q.OffersOnly {
		now := q.Now
		if now.IsZero() {
			now = time.Now()
		}
		out = ActiveOffers(out, now)
	}
	if order, ok := ParsePriceOrder(q.Sort); ok {
		out = SortByPrice(out, order)
	}
	return out
}
