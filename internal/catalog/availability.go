package catalog

import (
	"storefront-service/internal/domain"
)

// Reason names the rule that made a selection unpurchasable.
type Reason string

const (
	ReasonPurchasable      Reason = ""
	ReasonSoldOut          Reason = "sold_out"
	ReasonUnknownColor     Reason = "unknown_color"
	ReasonColorOutOfStock  Reason = "color_out_of_stock"
	ReasonColorUnavailable Reason = "color_unavailable"
	ReasonSizeRequired     Reason = "size_required"
	ReasonSizeNotOffered   Reason = "size_not_offered"
	ReasonSizeOutOfStock   Reason = "size_out_of_stock"
	ReasonSizeUnavailable  Reason = "size_unavailable"
)

// IsPurchasable reports whether the (color, size) selection can be added to a cart.
// An empty color means no color is selected.
func IsPurchasable(p domain.Product, color, size string) bool {
	ok, _ := CheckPurchasable(p, color, size)
	return ok
}

// CheckPurchasable evaluates the availability rules in order and returns the first one
// that fails. soldOut overrides every variant flag, and outOfStock wins over available.
func CheckPurchasable(p domain.Product, color, size string) (bool, Reason) {
	if p.SoldOut {
		return false, ReasonSoldOut
	}

	var selected *domain.Color
	if color != "" {
		c, found := p.FindColor(color)
		if !found {
			return false, ReasonUnknownColor
		}
		if c.OutOfStock {
			return false, ReasonColorOutOfStock
		}
		if !c.Available {
			return false, ReasonColorUnavailable
		}
		selected = &c
	}

	var resolved domain.SizeAvailability
	switch {
	case selected != nil && len(selected.Sizes) > 0:
		if size == "" {
			return false, ReasonSizeRequired
		}
		entry, found := selected.SizeAvailabilityFor(size)
		if !found {
			return false, ReasonSizeNotOffered
		}
		resolved = entry
	default:
		if size == "" {
			if declaresSizes(p) {
				return false, ReasonSizeRequired
			}
			return true, ReasonPurchasable
		}
		resolved = p.SizeAvailabilityFor(size)
	}

	if resolved.OutOfStock {
		return false, ReasonSizeOutOfStock
	}
	if !resolved.Available {
		return false, ReasonSizeUnavailable
	}
	return true, ReasonPurchasable
}

func declaresSizes(p domain.Product) bool {
	return len(p.Sizes) > 0 || len(p.SizesAvailability) > 0
}

// DefaultSelection picks the initial variant of a detail view: the first color, and
// the size when exactly one is on offer for that color.
func DefaultSelection(p domain.Product) (color, size string) {
	var candidates []string
	if len(p.Colors) > 0 {
		first := p.Colors[0]
		color = first.Color
		for _, s := range first.Sizes {
			candidates = append(candidates, s.Size)
		}
	}
	if len(candidates) == 0 {
		candidates = p.Sizes
	}
	if len(candidates) == 1 {
		size = candidates[0]
	}
	return color, size
}

// DisplayImage resolves the image shown for a selection: the selected color first,
// then the first color, then the product fallback.
func DisplayImage(p domain.Product, color string) string {
	if c, ok := p.FindColor(color); ok && len(c.Images) > 0 {
		return c.Images[0]
	}
	if len(p.Colors) > 0 && len(p.Colors[0].Images) > 0 {
		return p.Colors[0].Images[0]
	}
	return p.Image
}
