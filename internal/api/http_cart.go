package api

import (
	"net/http"
	"strings"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
)

// CartResponse is the shopper's cart with its frozen-price total.
type CartResponse struct {
	SessionID string            `json:"sessionId,omitempty"`
	Items     []domain.CartItem `json:"items"`
	Total     float64           `json:"total"`
}

// CartItemInput identifies a cart line and, for add/update, a quantity.
type CartItemInput struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) cartResponse(w http.ResponseWriter, id string, c *cart.Cart) CartResponse {
	w.Header().Set(CartSessionHeader, id)
	return CartResponse{SessionID: id, Items: c.Items(), Total: c.Total()}
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(CartSessionHeader)
	c, ok := h.sessions.Get(id)
	if !ok {
		h.respondWithJSON(w, http.StatusOK, CartResponse{Items: []domain.CartItem{}})
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.cartResponse(w, id, c))
}

// AddCartItem adds a purchasable selection at its current effective price. The price
// is frozen on the line from then on.
func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var input CartItemInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if !h.validateInput(w, r, input) {
		return
	}

	p, ok := h.table.Get(input.ProductID)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	color, size := selection(p, input.Color, input.Size)
	if purchasable, reason := catalog.CheckPurchasable(p, color, size); !purchasable {
		h.respondWithJSON(w, http.StatusConflict, ErrorResponse{
			Error:  "The selected variant cannot be purchased",
			Reason: string(reason),
		})
		return
	}

	id, c := h.sessions.GetOrCreate(r.Header.Get(CartSessionHeader))
	item := domain.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     catalog.EffectivePrice(p, h.now()),
		Size:      size,
		Color:     color,
		Image:     catalog.DisplayImage(p, color),
		Category:  p.Category,
		Type:      p.Type,
	}
	if err := c.AddItem(item, input.Quantity); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.cartResponse(w, id, c))
}

// UpdateCartItem sets a line's quantity; zero or less removes the line.
func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var input CartItemInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if !h.validateInput(w, r, input) {
		return
	}
	id := r.Header.Get(CartSessionHeader)
	c, ok := h.sessions.Get(id)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Cart not found")
		return
	}
	if err := c.UpdateQuantity(input.ProductID, strings.TrimSpace(input.Size), input.Quantity, strings.TrimSpace(input.Color)); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.cartResponse(w, id, c))
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := q.Get("productId")
	if productID == "" {
		h.respondWithError(w, http.StatusBadRequest, "productId query parameter is required")
		return
	}
	id := r.Header.Get(CartSessionHeader)
	c, ok := h.sessions.Get(id)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Cart not found")
		return
	}
	c.RemoveItem(productID, strings.TrimSpace(q.Get("size")), strings.TrimSpace(q.Get("color")))
	h.respondWithJSON(w, http.StatusOK, h.cartResponse(w, id, c))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if c, ok := h.sessions.Get(r.Header.Get(CartSessionHeader)); ok {
		c.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckoutInput is the customer form submitted at checkout.
type CheckoutInput struct {
	CustomerInfo domain.CustomerInfo `json:"customerInfo"`
}

// Checkout places the session's cart as an order. Validation happens in the checkout
// service so nothing is written for an incomplete form.
func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var input CheckoutInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	receipt, err := h.checkout.PlaceOrder(r.Context(), r.Header.Get(CartSessionHeader), input.CustomerInfo)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, receipt)
}
