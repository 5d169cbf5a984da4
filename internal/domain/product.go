package domain

import (
	"time"
)

// DisplayOrderSentinel is the sort key of a product without an explicit display order.
const DisplayOrderSentinel = 9999

// SizeAvailability is the stock state of one size label.
type SizeAvailability struct {
	Size       string `json:"size"`
	Available  bool   `json:"available"`
	OutOfStock bool   `json:"outOfStock"`
}

// DefaultSizeAvailability is the state assumed for a size no record mentions.
func DefaultSizeAvailability(size string) SizeAvailability {
	return SizeAvailability{Size: size, Available: true}
}

// Color is one color variant of a product. Images is never empty in canonical form
// and Image always equals Images[0].
type Color struct {
	Color      string             `json:"color"`
	Image      string             `json:"image"`
	Images     []string           `json:"images"`
	Available  bool               `json:"available"`
	OutOfStock bool               `json:"outOfStock"`
	Sizes      []SizeAvailability `json:"sizes"`
}

// SizeAvailabilityFor looks up a size in the color's own size list.
func (c Color) SizeAvailabilityFor(size string) (SizeAvailability, bool) {
	for _, s := range c.Sizes {
		if s.Size == size {
			return s, true
		}
	}
	return SizeAvailability{}, false
}

// SizeImage carries illustrative imagery for a size label.
type SizeImage struct {
	Size   string   `json:"size"`
	Image  string   `json:"image"`
	Images []string `json:"images"`
}

// Product is the canonical, normalized catalog entry.
type Product struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Price             float64            `json:"price"`
	Category          string             `json:"category"`
	Type              string             `json:"type"`
	Sizes             []string           `json:"sizes"`
	SizesAvailability []SizeAvailability `json:"sizesAvailability"`
	Colors            []Color            `json:"colors"`
	SizeImages        []SizeImage        `json:"sizeImages"`
	Image             string             `json:"image"`
	SoldOut           bool               `json:"soldOut"`
	Offer             bool               `json:"offer"`
	OfferDiscount     float64            `json:"offerDiscount"`
	OfferEndTime      *time.Time         `json:"offerEndTime,omitempty"`
	DisplayOrder      *int               `json:"displayOrder,omitempty"`
	Version           int64              `json:"version"`
}

// FindColor returns the color variant with the given label.
func (p Product) FindColor(label string) (Color, bool) {
	for _, c := range p.Colors {
		if c.Color == label {
			return c, true
		}
	}
	return Color{}, false
}

// HasSize reports whether size is one of the product-level size labels.
func (p Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// SizeAvailabilityFor resolves a size against the product-level availability records,
// defaulting to available when the size is not mentioned.
func (p Product) SizeAvailabilityFor(size string) SizeAvailability {
	for _, s := range p.SizesAvailability {
		if s.Size == size {
			return s
		}
	}
	return DefaultSizeAvailability(size)
}

// SortKey is the display order, or DisplayOrderSentinel when unset.
func (p Product) SortKey() int {
	if p.DisplayOrder == nil {
		return DisplayOrderSentinel
	}
	return *p.DisplayOrder
}

// Category is an entry of the category taxonomy. Names are unique.
type Category struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

// Policies holds the static store policy text shown to shoppers.
type Policies struct {
	ReturnPolicy   string    `json:"returnPolicy" bson:"returnPolicy"`
	ShippingPolicy string    `json:"shippingPolicy" bson:"shippingPolicy"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}
