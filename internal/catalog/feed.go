package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

// DocumentLister is the read side of the product store the feed needs.
type DocumentLister interface {
	ListProductDocuments(ctx context.Context) ([]store.ProductDocument, error)
}

// Feed keeps a Table in sync with the product store. It reloads the full snapshot
// when the change source fires and on every poll tick.
type Feed struct {
	source     DocumentLister
	table      *Table
	normalizer *Normalizer
	changes    <-chan struct{}
	interval   time.Duration
	logger     *zap.Logger
}

// NewFeed builds a feed. changes may be nil, in which case only polling is used.
func NewFeed(source DocumentLister, table *Table, normalizer *Normalizer, changes <-chan struct{}, interval time.Duration, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		source:     source,
		table:      table,
		normalizer: normalizer,
		changes:    changes,
		interval:   interval,
		logger:     logger,
	}
}

// Refresh loads and applies one full snapshot. It reports whether the table changed.
func (f *Feed) Refresh(ctx context.Context) (bool, error) {
	docs, err := f.source.ListProductDocuments(ctx)
	if err != nil {
		return false, &domain.ExternalServiceError{Service: "catalog store", Op: "list products", Err: err}
	}
	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		p, err := f.normalizer.Decode(d.ID, d.Version, d.Data)
		if err != nil {
			f.logger.Warn("skipping undecodable product document", zap.String("product_id", d.ID), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return f.table.Replace(products), nil
}

// Run performs an initial refresh and then follows changes until ctx is done.
// Refresh failures, including the initial one, are logged and retried on the
// next trigger.
func (f *Feed) Run(ctx context.Context) error {
	f.refreshLogged(ctx, "initial")

	var tick <-chan time.Time
	if f.interval > 0 {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-f.changes:
			if !ok {
				f.changes = nil
				continue
			}
			f.refreshLogged(ctx, "notify")
		case <-tick:
			f.refreshLogged(ctx, "poll")
		}
	}
}

func (f *Feed) refreshLogged(ctx context.Context, trigger string) {
	changed, err := f.Refresh(ctx)
	if err != nil {
		f.logger.Error("catalog refresh failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	if changed {
		f.logger.Info("catalog snapshot replaced",
			zap.String("trigger", trigger),
			zap.Uint64("generation", f.table.Generation()),
			zap.Int64("dropped_variants_total", f.normalizer.Dropped()),
		)
	}
}
