package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sync"

	"go.uber.org/zap"

	"storefront-service/internal/domain"
)

// Table is the in-memory product arena keyed by id. Snapshots replace it wholesale;
// derived listings are recomputed from it on every read.
type Table struct {
	mu          sync.RWMutex
	byID        map[string]domain.Product
	order       []string
	fingerprint string
	generation  uint64

	subMu  sync.Mutex
	subs   map[chan []domain.Product]struct{}
	closed bool

	logger *zap.Logger
}

func NewTable(logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		byID:   make(map[string]domain.Product),
		subs:   make(map[chan []domain.Product]struct{}),
		logger: logger,
	}
}

// Fingerprint hashes the full canonical content of a snapshot.
func Fingerprint(products []domain.Product) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range products {
		_ = enc.Encode(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Replace swaps in a full snapshot. A snapshot identical to the current content is
// ignored, so delivering the same snapshot twice has no effect. It reports whether
// the table changed.
func (t *Table) Replace(products []domain.Product) bool {
	fp := Fingerprint(products)

	t.mu.Lock()
	if fp == t.fingerprint {
		t.mu.Unlock()
		return false
	}
	byID := make(map[string]domain.Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		if _, dup := byID[p.ID]; !dup {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}
	t.byID = byID
	t.order = order
	t.fingerprint = fp
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	t.logger.Debug("catalog snapshot applied", zap.Int("products", len(order)), zap.Uint64("generation", gen))
	t.publish()
	return true
}

// Patch applies a local optimistic update. The fingerprint is cleared so the next
// snapshot from the store is always applied and reconciles the patch.
func (t *Table) Patch(p domain.Product) {
	t.mu.Lock()
	if _, ok := t.byID[p.ID]; !ok {
		t.order = append(t.order, p.ID)
	}
	t.byID[p.ID] = p
	t.fingerprint = ""
	t.generation++
	t.mu.Unlock()
	t.publish()
}

// Remove drops a product locally until the next snapshot.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	if _, ok := t.byID[id]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.byID, id)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == id })
	t.fingerprint = ""
	t.generation++
	t.mu.Unlock()
	t.publish()
}

func (t *Table) Get(id string) (domain.Product, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byID[id]
	return p, ok
}

// All returns the products in snapshot order.
func (t *Table) All() []domain.Product {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Product, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// List derives a listing view from the current arena.
func (t *Table) List(q Query) []domain.Product {
	return Apply(t.All(), q)
}

func (t *Table) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

// Subscribe registers for display-ordered full snapshots after every change. The
// current content is delivered first. A subscriber that falls behind misses
// intermediate snapshots rather than blocking the table. After Close the channel
// is closed once the current content has been received.
func (t *Table) Subscribe() (<-chan []domain.Product, func()) {
	ch := make(chan []domain.Product, 1)

	t.subMu.Lock()
	ch <- SortByDisplayOrder(t.All())
	if t.closed {
		close(ch)
	} else {
		t.subs[ch] = struct{}{}
	}
	t.subMu.Unlock()

	cancel := func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Close ends every subscription so streaming readers can return. Later
// subscribers get the current content and a closed channel.
func (t *Table) Close() {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.closed = true
	for ch := range t.subs {
		delete(t.subs, ch)
		close(ch)
	}
}

// publish reads the arena under subMu so snapshots reach subscribers in the
// order the changes were applied.
func (t *Table) publish() {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	if len(t.subs) == 0 {
		return
	}
	snapshot := SortByDisplayOrder(t.All())
	for ch := range t.subs {
		select {
		case ch <- snapshot:
		default:
			// drop the stale pending snapshot and replace it with the newest one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
