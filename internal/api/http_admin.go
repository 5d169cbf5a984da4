package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront-service/internal/checkout"
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

// --- Auth Handlers ---

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if !h.validateInput(w, r, input) {
		return
	}
	token, session, err := h.auth.SignIn(input.Email, input.Password)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.logger.Info("admin signed in", zap.String("admin", session.Subject))
	h.respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: session.ExpiresAt})
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.auth.SignOut(s)
	w.WriteHeader(http.StatusNoContent)
}

// --- Product Handlers ---

// productBody reads a raw product document. A numeric "version" field is taken out of
// the document and returned as the expected version for optimistic concurrency.
func (h *HTTPHandler) productBody(w http.ResponseWriter, r *http.Request) (map[string]any, *int64, bool) {
	var raw map[string]any
	if !h.decodeJSON(w, r, &raw) {
		return nil, nil, false
	}
	if raw == nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: expected a JSON object")
		return nil, nil, false
	}
	var expected *int64
	if v, ok := raw["version"].(float64); ok {
		version := int64(v)
		expected = &version
	}
	delete(raw, "version")
	delete(raw, "id")
	return raw, expected, true
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	raw, _, ok := h.productBody(w, r)
	if !ok {
		return
	}
	result, err := h.admin.CreateProduct(r.Context(), s, raw)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, result)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	raw, expected, ok := h.productBody(w, r)
	if !ok {
		return
	}
	result, err := h.admin.UpdateProduct(r.Context(), s, chi.URLParam(r, "productId"), raw, expected)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteProduct(r.Context(), s, chi.URLParam(r, "productId")); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SlimResponse reports how many oversized inline images were removed.
type SlimResponse struct {
	Removed int         `json:"removed"`
	Result  interface{} `json:"result"`
}

func (h *HTTPHandler) SlimProduct(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	result, removed, err := h.admin.SlimProduct(r.Context(), s, chi.URLParam(r, "productId"), h.slimImageKB)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, SlimResponse{Removed: removed, Result: result})
}

type DisplayOrderInput struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func (h *HTTPHandler) AssignDisplayOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input DisplayOrderInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if !h.validateInput(w, r, input) {
		return
	}
	if err := h.admin.AssignDisplayOrder(r.Context(), s, input.IDs); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Offer Handlers ---

type OfferTimerInput struct {
	Days    int `json:"days" validate:"gte=0"`
	Hours   int `json:"hours" validate:"gte=0"`
	Minutes int `json:"minutes" validate:"gte=0"`
}

func (in OfferTimerInput) duration() time.Duration {
	return time.Duration(in.Days)*24*time.Hour + time.Duration(in.Hours)*time.Hour + time.Duration(in.Minutes)*time.Minute
}

type UpdatedResponse struct {
	Updated int `json:"updated"`
}

func (h *HTTPHandler) SetOfferTimer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input OfferTimerInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if !h.validateInput(w, r, input) {
		return
	}
	n, err := h.admin.SetOfferTimer(r.Context(), s, input.duration())
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, UpdatedResponse{Updated: n})
}

// ExtendExpiredOffers accepts an optional body; an empty body extends by the default.
func (h *HTTPHandler) ExtendExpiredOffers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input OfferTimerInput
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		if !h.decodeJSON(w, r, &input) {
			return
		}
		if !h.validateInput(w, r, input) {
			return
		}
	}
	n, err := h.admin.ExtendExpiredOffers(r.Context(), s, input.duration())
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, UpdatedResponse{Updated: n})
}

func (h *HTTPHandler) ClearOffers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	n, err := h.admin.ClearOffers(r.Context(), s)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, UpdatedResponse{Updated: n})
}

// --- Category Handlers ---

// CategoryInput defines the expected input for creating or renaming a category.
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	var input CategoryInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	if !h.validateInput(w, r, input) {
		return
	}
	created, err := h.categories.CreateCategory(r.Context(), &domain.Category{Name: input.Name})
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("create category", err))
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	var input CategoryInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	if !h.validateInput(w, r, input) {
		return
	}
	updated, err := h.categories.UpdateCategory(r.Context(), &domain.Category{
		ID:   chi.URLParam(r, "categoryId"),
		Name: input.Name,
	})
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("update category", err))
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	if err := h.categories.DeleteCategory(r.Context(), chi.URLParam(r, "categoryId")); err != nil {
		h.respondWithDomainError(w, r, storeFailure("delete category", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Order Handlers ---

// period reads ?week=&year=, defaulting each to the current period.
func (h *HTTPHandler) period(r *http.Request) (store.Period, error) {
	now := h.now()
	p := store.Period{WeekNumber: checkout.WeekNumber(now), Year: now.Year()}
	q := r.URL.Query()
	if v := q.Get("week"); v != "" {
		week, err := strconv.Atoi(v)
		if err != nil || week < 1 || week > 54 {
			return p, domain.NewValidationError("week must be between 1 and 54", "week")
		}
		p.WeekNumber = week
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 2000 {
			return p, domain.NewValidationError("year is invalid", "year")
		}
		p.Year = year
	}
	return p, nil
}

// OrdersResponse lists the orders of one period.
type OrdersResponse struct {
	WeekNumber int            `json:"weekNumber"`
	Year       int            `json:"year"`
	Orders     []domain.Order `json:"orders"`
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	period, err := h.period(r)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), period)
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("list orders", err))
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	h.respondWithJSON(w, http.StatusOK, OrdersResponse{WeekNumber: period.WeekNumber, Year: period.Year, Orders: orders})
}

type OrderStatusInput struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input OrderStatusInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if !input.Status.IsValid() {
		h.respondWithDomainError(w, r, domain.NewValidationError("unknown order status", "status"))
		return
	}
	id := chi.URLParam(r, "orderId")
	order, err := h.orders.UpdateOrderStatus(r.Context(), id, input.Status)
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("update order status", err))
		return
	}
	h.logger.Info("order status updated", zap.String("order_id", id), zap.String("status", string(input.Status)), zap.String("admin", s.Subject))
	h.respondWithJSON(w, http.StatusOK, order)
}

type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// DeleteOrders is the bulk reset of one period. Both week and year must be given.
func (h *HTTPHandler) DeleteOrders(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("week") == "" || r.URL.Query().Get("year") == "" {
		h.respondWithDomainError(w, r, domain.NewValidationError("week and year are required for a reset", "week", "year"))
		return
	}
	period, err := h.period(r)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	n, err := h.orders.DeleteOrders(r.Context(), period)
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("delete orders", err))
		return
	}
	h.logger.Warn("orders reset",
		zap.Int("week", period.WeekNumber),
		zap.Int("year", period.Year),
		zap.Int64("deleted", n),
		zap.String("admin", s.Subject),
	)
	h.respondWithJSON(w, http.StatusOK, DeletedResponse{Deleted: n})
}

// --- Policy Handlers ---

type PoliciesInput struct {
	ReturnPolicy   string `json:"returnPolicy"`
	ShippingPolicy string `json:"shippingPolicy"`
}

func (h *HTTPHandler) SavePolicies(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	var input PoliciesInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	saved, err := h.policies.SavePolicies(r.Context(), &domain.Policies{
		ReturnPolicy:   input.ReturnPolicy,
		ShippingPolicy: input.ShippingPolicy,
		UpdatedAt:      h.now().UTC(),
	})
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("save policies", err))
		return
	}
	h.respondWithJSON(w, http.StatusOK, saved)
}

// --- Image Handlers ---

type ImageResponse struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
}

// UploadImage accepts a multipart "image" field, compresses it and stores it.
func (h *HTTPHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		h.respondWithError(w, http.StatusBadRequest, "Missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Could not read image file")
		return
	}
	ref, img, err := h.uploader.Upload(r.Context(), data)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, ImageResponse{URL: ref, Width: img.Width, Height: img.Height, Bytes: len(img.Data)})
}
