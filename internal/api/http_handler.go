package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/domain"
	"storefront-service/internal/media"
	"storefront-service/internal/store"
)

// CartSessionHeader carries the shopper's cart session id in both directions.
const CartSessionHeader = "X-Cart-Session"

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Table      *catalog.Table
	Admin      *catalog.Admin
	Categories store.CategoryStorer
	Orders     store.OrderStorer
	Policies   store.PolicyStorer
	Sessions   *cart.Sessions
	Checkout   *checkout.Service
	Auth       *auth.Authenticator
	Uploader   *media.Uploader
	Logger     *zap.Logger
	// SlimImageKB is the threshold used by the slim product action.
	SlimImageKB float64
	// MaxBodyBytes caps request bodies, image uploads included.
	MaxBodyBytes int64
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	table        *catalog.Table
	admin        *catalog.Admin
	categories   store.CategoryStorer
	orders       store.OrderStorer
	policies     store.PolicyStorer
	sessions     *cart.Sessions
	checkout     *checkout.Service
	auth         *auth.Authenticator
	uploader     *media.Uploader
	logger       *zap.Logger
	validate     *validator.Validate
	upgrader     websocket.Upgrader
	slimImageKB  float64
	maxBodyBytes int64
	now          func() time.Time
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(d Deps) *HTTPHandler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.SlimImageKB <= 0 {
		d.SlimImageKB = 80
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 10 << 20
	}
	return &HTTPHandler{
		table:      d.Table,
		admin:      d.Admin,
		categories: d.Categories,
		orders:     d.Orders,
		policies:   d.Policies,
		sessions:   d.Sessions,
		checkout:   d.Checkout,
		auth:       d.Auth,
		uploader:   d.Uploader,
		logger:     logger,
		validate:   domain.NewValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		slimImageKB:  d.SlimImageKB,
		maxBodyBytes: d.MaxBodyBytes,
		now:          time.Now,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// respondWithDomainError maps service and store errors to status codes.
func (h *HTTPHandler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *domain.ValidationError
		capacityErr   *domain.SizeCapacityError
		externalErr   *domain.ExternalServiceError
	)
	switch {
	case errors.As(err, &validationErr):
		h.respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Error(), Fields: validationErr.Fields})
	case errors.As(err, &capacityErr):
		h.respondWithError(w, http.StatusRequestEntityTooLarge, capacityErr.Error())
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrTokenRevoked), errors.Is(err, auth.ErrInvalidCredentials):
		h.respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrCategoryNotFound),
		errors.Is(err, store.ErrOrderNotFound), errors.Is(err, cart.ErrLineNotFound):
		h.respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrCategoryNameExists):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, checkout.ErrCartInvalid), errors.Is(err, checkout.ErrEmptyCart):
		h.respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &externalErr):
		h.logger.Error("external service failure",
			zap.String("service", externalErr.Service),
			zap.String("op", externalErr.Op),
			zap.String("path", r.URL.Path),
			zap.Error(externalErr.Err),
		)
		h.respondWithError(w, http.StatusBadGateway, "A required service is temporarily unavailable, please try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondWithError(w, http.StatusServiceUnavailable, "Request cancelled")
	default:
		h.logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// storeFailure wraps unexpected store errors so they surface as 502. Sentinel store
// errors pass through unchanged.
func storeFailure(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrCategoryNotFound),
		errors.Is(err, store.ErrCategoryNameExists),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrVersionConflict):
		return err
	}
	return &domain.ExternalServiceError{Service: "store", Op: op, Err: err}
}

// decodeJSON reads a size-limited JSON body into dst.
func (h *HTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// validateInput runs struct validation and writes a 400 on failure.
func (h *HTTPHandler) validateInput(w http.ResponseWriter, r *http.Request, input interface{}) bool {
	if err := domain.ValidateStruct(h.validate, input, "invalid input"); err != nil {
		h.respondWithDomainError(w, r, err)
		return false
	}
	return true
}

// session returns the admin session RequireAdmin attached to the request.
func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	s := auth.SessionFrom(r.Context())
	if err := auth.Authorize(s, h.now()); err != nil {
		h.respondWithDomainError(w, r, err)
		return nil, false
	}
	return s, true
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			// literal routes before {productId}
			r.Get("/offers", h.ListOffers)
			r.Get("/live", h.LiveProducts)
			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", h.GetProduct)
				r.Get("/availability", h.GetAvailability)
			})
		})
		r.Get("/categories", h.ListCategories)
		r.Get("/policies", h.GetPolicies)
		r.Get("/delivery", h.ListDelivery)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items", h.UpdateCartItem)
			r.Delete("/items", h.RemoveCartItem)
		})
		r.Post("/checkout", h.Checkout)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.auth.RequireAdmin)
				r.Post("/logout", h.Logout)

				r.Route("/products", func(r chi.Router) {
					r.Post("/", h.CreateProduct)
					r.Put("/display-order", h.AssignDisplayOrder)
					r.Route("/{productId}", func(r chi.Router) {
						r.Put("/", h.UpdateProduct)
						r.Delete("/", h.DeleteProduct)
						r.Post("/slim", h.SlimProduct)
					})
				})

				r.Route("/offers", func(r chi.Router) {
					r.Post("/timer", h.SetOfferTimer)
					r.Post("/extend-expired", h.ExtendExpiredOffers)
					r.Delete("/", h.ClearOffers)
				})

				r.Route("/categories", func(r chi.Router) {
					r.Post("/", h.CreateCategory)
					r.Put("/{categoryId}", h.UpdateCategory)
					r.Delete("/{categoryId}", h.DeleteCategory)
				})

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", h.ListOrders)
					r.Delete("/", h.DeleteOrders)
					r.Get("/export", h.ExportOrders)
					r.Patch("/{orderId}/status", h.UpdateOrderStatus)
				})

				r.Put("/policies", h.SavePolicies)
				r.Post("/images", h.UploadImage)
			})
		})
	})
}
