package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/domain"
)

// ProductView is a product as shoppers see it at the time of the request.
type ProductView struct {
	domain.Product
	EffectivePrice float64 `json:"effectivePrice"`
	OfferActive    bool    `json:"offerActive"`
	DefaultColor   string  `json:"defaultColor,omitempty"`
	DefaultSize    string  `json:"defaultSize,omitempty"`
}

func newProductView(p domain.Product, now time.Time) ProductView {
	color, size := catalog.DefaultSelection(p)
	return ProductView{
		Product:        p,
		EffectivePrice: catalog.EffectivePrice(p, now),
		OfferActive:    catalog.OfferActive(p, now),
		DefaultColor:   color,
		DefaultSize:    size,
	}
}

func productViews(products []domain.Product, now time.Time) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p, now))
	}
	return views
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	sort := r.URL.Query().Get("sort")
	if sort != "" {
		if _, ok := catalog.ParsePriceOrder(sort); !ok {
			h.respondWithError(w, http.StatusBadRequest, "Invalid sort: expected price_asc or price_desc")
			return
		}
	}
	now := h.now()
	products := h.table.List(catalog.Query{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Sort:     sort,
		Now:      now,
	})
	h.respondWithJSON(w, http.StatusOK, productViews(products, now))
}

// OffersResponse lists the currently offered products and the nearest end time,
// which drives the shopper-facing countdown.
type OffersResponse struct {
	Products []ProductView `json:"products"`
	EndsAt   *time.Time    `json:"endsAt,omitempty"`
}

func (h *HTTPHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	products := h.table.List(catalog.Query{
		Category:   strings.TrimSpace(r.URL.Query().Get("category")),
		OffersOnly: true,
		Now:        now,
	})
	resp := OffersResponse{Products: productViews(products, now)}
	if end, ok := catalog.NearestOfferEnd(products, now); ok {
		resp.EndsAt = &end
	}
	h.respondWithJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	p, ok := h.table.Get(id)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	h.respondWithJSON(w, http.StatusOK, newProductView(p, h.now()))
}

// AvailabilityResponse answers whether a variant selection can be bought.
type AvailabilityResponse struct {
	Color          string         `json:"color"`
	Size           string         `json:"size"`
	Purchasable    bool           `json:"purchasable"`
	Reason         catalog.Reason `json:"reason,omitempty"`
	EffectivePrice float64        `json:"effectivePrice"`
	Image          string         `json:"image,omitempty"`
}

func (h *HTTPHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	p, ok := h.table.Get(id)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	color, size := selection(p, r.URL.Query().Get("color"), r.URL.Query().Get("size"))
	purchasable, reason := catalog.CheckPurchasable(p, color, size)
	h.respondWithJSON(w, http.StatusOK, AvailabilityResponse{
		Color:          color,
		Size:           size,
		Purchasable:    purchasable,
		Reason:         reason,
		EffectivePrice: catalog.EffectivePrice(p, h.now()),
		Image:          catalog.DisplayImage(p, color),
	})
}

// selection fills an empty color or size with the product's default selection, so a
// product with a single variant needs no explicit choice.
func selection(p domain.Product, color, size string) (string, string) {
	color = strings.TrimSpace(color)
	size = strings.TrimSpace(size)
	defColor, defSize := catalog.DefaultSelection(p)
	if color == "" {
		color = defColor
	}
	if size == "" && color == defColor {
		size = defSize
	}
	return color, size
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context())
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("list categories", err))
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	h.respondWithJSON(w, http.StatusOK, categories)
}

func (h *HTTPHandler) GetPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.GetPolicies(r.Context())
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("get policies", err))
		return
	}
	h.respondWithJSON(w, http.StatusOK, policies)
}

func (h *HTTPHandler) ListDelivery(w http.ResponseWriter, r *http.Request) {
	govs := h.checkout.Delivery().Governorates()
	if govs == nil {
		govs = []checkout.Governorate{}
	}
	h.respondWithJSON(w, http.StatusOK, govs)
}
