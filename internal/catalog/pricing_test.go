package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storefront-service/internal/domain"
)

func TestOfferActive(t *testing.T) {
	now := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, OfferActive(domain.Product{}, now))
	assert.True(t, OfferActive(domain.Product{Offer: true}, now), "no end time never expires")
	assert.True(t, OfferActive(domain.Product{Offer: true, OfferEndTime: &future}, now))
	assert.False(t, OfferActive(domain.Product{Offer: true, OfferEndTime: &past}, now))
	assert.False(t, OfferActive(domain.Product{Offer: true, OfferEndTime: &now}, now), "ends exactly now")
}

func TestEffectivePrice(t *testing.T) {
	now := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)

	tests := []struct {
		name    string
		product domain.Product
		want    float64
	}{
		{"NoOffer", domain.Product{Price: 600, OfferDiscount: 20}, 600},
		{"Discounted", domain.Product{Price: 600, Offer: true, OfferDiscount: 20}, 480},
		{"RoundsToWholeUnit", domain.Product{Price: 299, Offer: true, OfferDiscount: 15}, 254},
		{"RoundsHalfUp", domain.Product{Price: 250, Offer: true, OfferDiscount: 33}, 168},
		{"ZeroDiscount", domain.Product{Price: 600, Offer: true}, 600},
		{"NegativeDiscountIgnored", domain.Product{Price: 600, Offer: true, OfferDiscount: -10}, 600},
		{"DiscountClampedAt100", domain.Product{Price: 600, Offer: true, OfferDiscount: 150}, 0},
		{"Expired", domain.Product{Price: 600, Offer: true, OfferDiscount: 20, OfferEndTime: &past}, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectivePrice(tt.product, now))
		})
	}
}

func TestEffectivePrice_ReevaluatedAtEachRead(t *testing.T) {
	start := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	p := domain.Product{Price: 1000, Offer: true, OfferDiscount: 10, OfferEndTime: &end}

	assert.Equal(t, 900.0, EffectivePrice(p, start))
	assert.Equal(t, 1000.0, EffectivePrice(p, end.Add(time.Millisecond)))
}
