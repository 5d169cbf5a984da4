package checkout

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed delivery.json
var defaultDeliveryTable []byte

// Center is a delivery destination inside a governorate.
type Center struct {
	Name          string  `json:"name"`
	DeliveryPrice float64 `json:"deliveryPrice"`
}

// Governorate groups the centers the store delivers to.
type Governorate struct {
	Name    string   `json:"name"`
	Centers []Center `json:"centers"`
}

// DeliveryTable maps (governorate, center) to a delivery price.
type DeliveryTable struct {
	governorates []Governorate
	prices       map[string]map[string]float64
}

// LoadDeliveryTable reads the table from path, or the built-in table when path is empty.
func LoadDeliveryTable(path string) (*DeliveryTable, error) {
	data := defaultDeliveryTable
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("checkout: read delivery table: %w", err)
		}
		data = b
	}
	var govs []Governorate
	if err := json.Unmarshal(data, &govs); err != nil {
		return nil, fmt.Errorf("checkout: parse delivery table: %w", err)
	}
	return NewDeliveryTable(govs), nil
}

func NewDeliveryTable(govs []Governorate) *DeliveryTable {
	t := &DeliveryTable{
		governorates: govs,
		prices:       make(map[string]map[string]float64, len(govs)),
	}
	for _, g := range govs {
		centers := make(map[string]float64, len(g.Centers))
		for _, c := range g.Centers {
			centers[key(c.Name)] = c.DeliveryPrice
		}
		t.prices[key(g.Name)] = centers
	}
	return t
}

// Resolve returns the delivery price for a destination. Lookups ignore case and
// surrounding whitespace.
func (t *DeliveryTable) Resolve(governorate, center string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	centers, ok := t.prices[key(governorate)]
	if !ok {
		return 0, false
	}
	price, ok := centers[key(center)]
	return price, ok
}

// Governorates lists the table for shopper-facing pickers.
func (t *DeliveryTable) Governorates() []Governorate {
	if t == nil {
		return nil
	}
	return t.governorates
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
