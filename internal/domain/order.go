package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the triage status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid checks if the order status is one of the known values
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// UnresolvedLocation is recorded for a governorate or center that is not in the delivery table.
const UnresolvedLocation = "-"

// CustomerInfo is what the shopper types at checkout.
type CustomerInfo struct {
	Name            string `json:"name" bson:"name" validate:"required"`
	Address         string `json:"address" bson:"address" validate:"required"`
	Phone           string `json:"phone" bson:"phone" validate:"required"`
	AdditionalPhone string `json:"additionalPhone,omitempty" bson:"additionalPhone,omitempty"`
	Governorate     string `json:"governorate" bson:"governorate"`
	Center          string `json:"center" bson:"center"`
}

// CartItem is one cart line. Price is the unit price captured when the line was added.
type CartItem struct {
	ProductID string  `json:"id" bson:"productId"`
	Name      string  `json:"name" bson:"name"`
	Price     float64 `json:"price" bson:"price"`
	Size      string  `json:"size" bson:"size"`
	Color     string  `json:"color,omitempty" bson:"color,omitempty"`
	Image     string  `json:"image,omitempty" bson:"image,omitempty"`
	Category  string  `json:"category,omitempty" bson:"category,omitempty"`
	Type      string  `json:"type,omitempty" bson:"type,omitempty"`
	Quantity  int     `json:"quantity" bson:"quantity"`
}

// Matches reports whether the line has the identity (productID, size, color).
// An empty color only matches an empty color.
func (i CartItem) Matches(productID, size, color string) bool {
	return i.ProductID == productID && i.Size == size && i.Color == color
}

// LineTotal is unit price times quantity.
func (i CartItem) LineTotal() float64 {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity))).InexactFloat64()
}

// Totals are computed once at submission and never recomputed.
type Totals struct {
	Subtotal         float64 `json:"subtotal" bson:"subtotal"`
	DeliveryPrice    float64 `json:"deliveryPrice" bson:"deliveryPrice"`
	Total            float64 `json:"total" bson:"total"`
	DeliveryResolved bool    `json:"deliveryResolved" bson:"deliveryResolved"`
}

// Order is immutable after creation except for Status.
type Order struct {
	ID           string       `json:"id" bson:"_id"`
	OrderNumber  int          `json:"orderNumber" bson:"orderNumber"`
	CustomerInfo CustomerInfo `json:"customerInfo" bson:"customerInfo"`
	Items        []CartItem   `json:"items" bson:"items"`
	Totals       Totals       `json:"totals" bson:"totals"`
	OrderDate    time.Time    `json:"orderDate" bson:"orderDate"`
	Status       OrderStatus  `json:"status" bson:"status"`
	WeekNumber   int          `json:"weekNumber" bson:"weekNumber"`
	Year         int          `json:"year" bson:"year"`
}
