package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront-service/internal/auth"
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

// DefaultOfferExtension is how far "extend expired offers" pushes end times.
const DefaultOfferExtension = 7 * 24 * time.Hour

// productRules are the checks a product must pass before any write.
type productRules struct {
	Name          string  `json:"name" validate:"required,max=255"`
	Category      string  `json:"category" validate:"required"`
	Price         float64 `json:"price" validate:"gte=0"`
	OfferDiscount float64 `json:"offerDiscount" validate:"gte=0,lte=100"`
}

// SaveResult is a stored product plus the capacity report of its document.
type SaveResult struct {
	Product  domain.Product `json:"product"`
	Capacity CapacityReport `json:"capacity"`
}

// Admin performs catalog mutations on behalf of a signed-in administrator. Every
// write goes to the store first and is then patched into the table; the next
// snapshot reconciles it.
type Admin struct {
	products   store.ProductStorer
	table      *Table
	normalizer *Normalizer
	capacity   CapacityCheck
	validate   *validator.Validate
	now        func() time.Time
	logger     *zap.Logger
}

func NewAdmin(products store.ProductStorer, table *Table, normalizer *Normalizer, capacity CapacityCheck, logger *zap.Logger) *Admin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Admin{
		products:   products,
		table:      table,
		normalizer: normalizer,
		capacity:   capacity,
		validate:   domain.NewValidator(),
		now:        time.Now,
		logger:     logger,
	}
}

// PrepareProduct normalizes an admin-submitted document, drops colors without a label
// or images, validates it and checks its size. Nothing is written.
func (a *Admin) PrepareProduct(raw map[string]any) (map[string]any, domain.Product, CapacityReport, error) {
	p := a.normalizer.Product("", raw)
	colors := p.Colors[:0]
	for _, c := range p.Colors {
		if c.Color != "" {
			colors = append(colors, c)
		}
	}
	p.Colors = colors

	rules := productRules{Name: p.Name, Category: p.Category, Price: p.Price, OfferDiscount: p.OfferDiscount}
	if err := domain.ValidateStruct(a.validate, rules, "product is incomplete"); err != nil {
		return nil, domain.Product{}, CapacityReport{}, err
	}

	doc := ProductDocument(p)
	report, err := a.capacity.Check(doc)
	if err != nil {
		return nil, domain.Product{}, report, err
	}
	return doc, p, report, nil
}

func (a *Admin) CreateProduct(ctx context.Context, s *auth.Session, raw map[string]any) (*SaveResult, error) {
	if err := auth.Authorize(s, a.now()); err != nil {
		return nil, err
	}
	doc, _, report, err := a.PrepareProduct(raw)
	if err != nil {
		return nil, err
	}
	stored, err := a.products.CreateProduct(ctx, doc)
	if err != nil {
		return nil, storeError("create product", err)
	}
	p, err := a.apply(stored)
	if err != nil {
		return nil, err
	}
	a.logger.Info("product created", zap.String("product_id", p.ID), zap.String("admin", s.Subject), zap.Int("size_kb", report.SizeKB))
	return &SaveResult{Product: p, Capacity: report}, nil
}

// UpdateProduct replaces a product. expectedVersion, when set, must match the stored
// version or store.ErrVersionConflict is returned.
func (a *Admin) UpdateProduct(ctx context.Context, s *auth.Session, id string, raw map[string]any, expectedVersion *int64) (*SaveResult, error) {
	if err := auth.Authorize(s, a.now()); err != nil {
		return nil, err
	}
	doc, _, report, err := a.PrepareProduct(raw)
	if err != nil {
		return nil, err
	}
	stored, err := a.products.UpdateProduct(ctx, id, doc, expectedVersion)
	if err != nil {
		return nil, storeError("update product", err)
	}
	p, err := a.apply(stored)
	if err != nil {
		return nil, err
	}
	a.logger.Info("product updated", zap.String("product_id", id), zap.String("admin", s.Subject), zap.Int64("version", p.Version))
	return &SaveResult{Product: p, Capacity: report}, nil
}

func (a *Admin) DeleteProduct(ctx context.Context, s *auth.Session, id string) error {
	if err := auth.Authorize(s, a.now()); err != nil {
		return err
	}
	if err := a.products.DeleteProduct(ctx, id); err != nil {
		return storeError("delete product", err)
	}
	a.table.Remove(id)
	a.logger.Info("product deleted", zap.String("product_id", id), zap.String("admin", s.Subject))
	return nil
}

// AssignDisplayOrder gives the listed products display orders 1..n in list order.
func (a *Admin) AssignDisplayOrder(ctx context.Context, s *auth.Session, ids []string) error {
	if err := auth.Authorize(s, a.now()); err != nil {
		return err
	}
	if len(ids) == 0 {
		return domain.NewValidationError("display order needs at least one product", "ids")
	}
	for i, id := range ids {
		if err := a.patch(ctx, id, map[string]any{"displayOrder": i + 1}); err != nil {
			return err
		}
	}
	return nil
}

// SetOfferTimer gives every currently offered product the same end time, now + d.
func (a *Admin) SetOfferTimer(ctx context.Context, s *auth.Session, d time.Duration) (int, error) {
	if err := auth.Authorize(s, a.now()); err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, domain.NewValidationError("offer timer must be positive", "duration")
	}
	now := a.now()
	end := now.Add(d).UnixMilli()
	count := 0
	for _, p := range ActiveOffers(a.table.All(), now) {
		if err := a.patch(ctx, p.ID, map[string]any{"offerEndTime": end}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ExtendExpiredOffers moves the end time of every flagged but expired offer to now + by.
func (a *Admin) ExtendExpiredOffers(ctx context.Context, s *auth.Session, by time.Duration) (int, error) {
	if err := auth.Authorize(s, a.now()); err != nil {
		return 0, err
	}
	if by <= 0 {
		by = DefaultOfferExtension
	}
	now := a.now()
	end := now.Add(by).UnixMilli()
	count := 0
	for _, p := range a.table.All() {
		if !p.Offer || p.OfferEndTime == nil || p.OfferEndTime.After(now) {
			continue
		}
		if err := a.patch(ctx, p.ID, map[string]any{"offerEndTime": end}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ClearOffers turns off every offer and resets its discount and end time.
func (a *Admin) ClearOffers(ctx context.Context, s *auth.Session) (int, error) {
	if err := auth.Authorize(s, a.now()); err != nil {
		return 0, err
	}
	count := 0
	for _, p := range a.table.All() {
		if !p.Offer && p.OfferDiscount == 0 && p.OfferEndTime == nil {
			continue
		}
		fields := map[string]any{"offer": false, "offerDiscount": 0, "offerEndTime": nil}
		if err := a.patch(ctx, p.ID, fields); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// SlimProduct removes inline images larger than maxKB from a stored product.
func (a *Admin) SlimProduct(ctx context.Context, s *auth.Session, id string, maxKB float64) (*SaveResult, int, error) {
	if err := auth.Authorize(s, a.now()); err != nil {
		return nil, 0, err
	}
	current, ok := a.table.Get(id)
	if !ok {
		return nil, 0, store.ErrProductNotFound
	}
	slim, removed := StripOversizedImages(current, maxKB)
	if removed == 0 {
		report, err := a.capacity.Check(ProductDocument(current))
		if err != nil {
			var capErr *domain.SizeCapacityError
			if !errors.As(err, &capErr) {
				return nil, 0, err
			}
		}
		return &SaveResult{Product: current, Capacity: report}, 0, nil
	}
	version := current.Version
	res, err := a.UpdateProduct(ctx, s, id, ProductDocument(slim), &version)
	if err != nil {
		return nil, 0, err
	}
	return res, removed, nil
}

func (a *Admin) patch(ctx context.Context, id string, fields map[string]any) error {
	stored, err := a.products.PatchProduct(ctx, id, fields)
	if err != nil {
		return storeError(fmt.Sprintf("patch product %s", id), err)
	}
	_, err = a.apply(stored)
	return err
}

func (a *Admin) apply(stored *store.ProductDocument) (domain.Product, error) {
	p, err := a.normalizer.Decode(stored.ID, stored.Version, stored.Data)
	if err != nil {
		return domain.Product{}, err
	}
	a.table.Patch(p)
	return p, nil
}

// storeError passes sentinel store errors through and wraps everything else as an
// external service failure.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrVersionConflict):
		return err
	}
	return &domain.ExternalServiceError{Service: "catalog store", Op: op, Err: err}
}

// MoveUp swaps the id at index i with its predecessor. Out of range indexes are a no-op.
func MoveUp(ids []string, i int) []string {
	out := append([]string(nil), ids...)
	if i <= 0 || i >= len(out) {
		return out
	}
	out[i-1], out[i] = out[i], out[i-1]
	return out
}

// MoveDown swaps the id at index i with its successor.
func MoveDown(ids []string, i int) []string {
	out := append([]string(nil), ids...)
	if i < 0 || i >= len(out)-1 {
		return out
	}
	out[i], out[i+1] = out[i+1], out[i]
	return out
}
