package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct(t *testing.T) {
	v := NewValidator()

	err := ValidateStruct(v, CustomerInfo{Name: "Mona"}, "customer details are incomplete")
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{"address", "phone"}, vErr.Fields)
	assert.Equal(t, "validation failed: customer details are incomplete (address, phone)", vErr.Error())

	assert.NoError(t, ValidateStruct(v, CustomerInfo{Name: "Mona", Address: "12 Nile St", Phone: "010"}, ""))
}

func TestErrors(t *testing.T) {
	assert.Equal(t, "validation failed: bad", NewValidationError("bad").Error())

	cause := errors.New("connection refused")
	ext := &ExternalServiceError{Service: "order store", Op: "create order", Err: cause}
	assert.ErrorIs(t, ext, cause)
	assert.Equal(t, "order store: create order failed: connection refused", ext.Error())

	assert.Contains(t, (&SizeCapacityError{SizeKB: 1200, LimitKB: 1000}).Error(), "1200KB")
}

func TestOrderStatus_IsValid(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusDelivered, OrderStatusCancelled} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, OrderStatus("shipped").IsValid())
}

func TestProductLookups(t *testing.T) {
	order := 3
	p := Product{
		Sizes:             []string{"S", "M"},
		SizesAvailability: []SizeAvailability{{Size: "M", OutOfStock: true}},
		Colors:            []Color{{Color: "Red", Sizes: []SizeAvailability{{Size: "S", Available: true}}}},
	}

	assert.True(t, p.HasSize("S"))
	assert.False(t, p.HasSize("L"))
	assert.True(t, p.SizeAvailabilityFor("M").OutOfStock)
	assert.Equal(t, DefaultSizeAvailability("S"), p.SizeAvailabilityFor("S"))

	c, ok := p.FindColor("Red")
	require.True(t, ok)
	_, ok = c.SizeAvailabilityFor("M")
	assert.False(t, ok)

	assert.Equal(t, DisplayOrderSentinel, p.SortKey())
	p.DisplayOrder = &order
	assert.Equal(t, 3, p.SortKey())
}

func TestCartItem(t *testing.T) {
	item := CartItem{ProductID: "p1", Size: "S", Price: 199.99, Quantity: 3}
	assert.True(t, item.Matches("p1", "S", ""))
	assert.False(t, item.Matches("p1", "S", "Red"))
	assert.Equal(t, 599.97, item.LineTotal())
}
