package store

import (
	"context"
	"encoding/json"
	"time"

	"storefront-service/internal/domain"
)

// ProductDocument is a product as persisted: the raw, pre-normalization JSON record
// plus the store-managed version used for optimistic concurrency.
type ProductDocument struct {
	ID        string          `json:"id"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ProductStorer defines the catalog store operations. Documents go in and come out raw;
// normalization happens at ingestion.
type ProductStorer interface {
	ListProductDocuments(ctx context.Context) ([]ProductDocument, error)
	GetProductDocument(ctx context.Context, id string) (*ProductDocument, error)
	CreateProduct(ctx context.Context, doc map[string]any) (*ProductDocument, error)
	// UpdateProduct replaces the document. A nil expectedVersion means last write wins;
	// otherwise a stale version fails with ErrVersionConflict.
	UpdateProduct(ctx context.Context, id string, doc map[string]any, expectedVersion *int64) (*ProductDocument, error)
	// PatchProduct merges top-level fields into the stored document.
	PatchProduct(ctx context.Context, id string, fields map[string]any) (*ProductDocument, error)
	DeleteProduct(ctx context.Context, id string) error
}

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// Period selects the orders of one (week number, year) pair.
type Period struct {
	WeekNumber int
	Year       int
}

// OrderStorer defines the order operations: create once, list per period, triage status,
// and the administrative bulk reset.
type OrderStorer interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	ListOrders(ctx context.Context, period Period) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	DeleteOrders(ctx context.Context, period Period) (int64, error)
}

// PolicyStorer reads and upserts the store policy text.
type PolicyStorer interface {
	GetPolicies(ctx context.Context) (*domain.Policies, error)
	SavePolicies(ctx context.Context, policies *domain.Policies) (*domain.Policies, error)
}

// ChangeNotifier signals that the product collection changed. Signals may be coalesced.
type ChangeNotifier interface {
	Changes() <-chan struct{}
	Close() error
}

// Store is everything the service needs from one backend.
type Store interface {
	ProductStorer
	CategoryStorer
	OrderStorer
	PolicyStorer
	Ping(ctx context.Context) error
	Close() error
}
