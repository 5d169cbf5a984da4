package cart

import (
	"errors"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	ErrLineNotFound    = errors.New("cart: line not found")
)

// Cart is a session-scoped list of lines keyed by (product id, size, color).
// It is safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	items []domain.CartItem
}

func New() *Cart {
	return &Cart{}
}

// AddItem merges qty into the line with the same identity or appends a new line.
// The item's Price is kept as the frozen unit price.
func (c *Cart) AddItem(item domain.CartItem, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(item.ProductID, item.Size, item.Color); i >= 0 {
		c.items[i].Quantity += qty
		return nil
	}
	item.Quantity = qty
	c.items = append(c.items, item)
	return nil
}

// RemoveItem deletes the matching line. Removing a missing line is not an error.
func (c *Cart) RemoveItem(productID, size, color string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(productID, size, color); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
}

// UpdateQuantity sets the quantity of a line; qty <= 0 removes it.
func (c *Cart) UpdateQuantity(productID, size string, qty int, color string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(productID, size, color)
	if i < 0 {
		if qty <= 0 {
			return nil
		}
		return ErrLineNotFound
	}
	if qty <= 0 {
		c.items = slices.Delete(c.items, i, i+1)
		return nil
	}
	c.items[i].Quantity = qty
	return nil
}

// Total sums unit price times quantity over every line.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Total(c.items)
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Consume subtracts lines taken at an earlier point from the cart. Quantity added to
// a line since then stays, as do lines added since.
func (c *Cart) Consume(taken []domain.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range taken {
		i := c.indexOf(t.ProductID, t.Size, t.Color)
		if i < 0 {
			continue
		}
		c.items[i].Quantity -= t.Quantity
		if c.items[i].Quantity <= 0 {
			c.items = slices.Delete(c.items, i, i+1)
		}
	}
}

func (c *Cart) indexOf(productID, size, color string) int {
	return slices.IndexFunc(c.items, func(it domain.CartItem) bool {
		return it.Matches(productID, size, color)
	})
}

// Total sums the line totals of items.
func Total(items []domain.CartItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.InexactFloat64()
}
