package catalog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront-service/internal/domain"
)

func receiveSnapshot(t *testing.T, ch <-chan []domain.Product) []domain.Product {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func TestTable_ReplaceIsIdempotent(t *testing.T) {
	table := NewTable(zaptest.NewLogger(t))
	snapshot := []domain.Product{{ID: "p1", Name: "Linen Dress"}, {ID: "p2", Name: "Silk Scarf"}}

	assert.True(t, table.Replace(snapshot))
	gen := table.Generation()

	assert.False(t, table.Replace([]domain.Product{{ID: "p1", Name: "Linen Dress"}, {ID: "p2", Name: "Silk Scarf"}}))
	assert.Equal(t, gen, table.Generation())

	assert.True(t, table.Replace([]domain.Product{{ID: "p2", Name: "Silk Scarf"}}))
	_, ok := table.Get("p1")
	assert.False(t, ok, "a snapshot replaces the table wholesale")
}

func TestTable_AllKeepsSnapshotOrder(t *testing.T) {
	table := NewTable(nil)
	table.Replace([]domain.Product{{ID: "p3"}, {ID: "p1"}, {ID: "p2"}})
	assert.Equal(t, []string{"p3", "p1", "p2"}, productIDs(table.All()))
}

func TestTable_PatchAndRemove(t *testing.T) {
	table := NewTable(nil)
	table.Replace([]domain.Product{{ID: "p1", Price: 600}})

	table.Patch(domain.Product{ID: "p1", Price: 650})
	p, ok := table.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 650.0, p.Price)

	table.Patch(domain.Product{ID: "p2", Price: 250})
	assert.Equal(t, []string{"p1", "p2"}, productIDs(table.All()))

	table.Remove("p1")
	table.Remove("missing")
	assert.Equal(t, []string{"p2"}, productIDs(table.All()))

	// the store snapshot still wins after local edits, even if it matches the pre-patch content
	assert.True(t, table.Replace([]domain.Product{{ID: "p1", Price: 600}}))
	assert.Equal(t, []string{"p1"}, productIDs(table.All()))
}

func TestTable_List(t *testing.T) {
	table := NewTable(nil)
	table.Replace(sampleListing(time.Now()))
	assert.Equal(t, []string{"e", "c"}, productIDs(table.List(Query{Category: "Accessories", Sort: "price_asc"})))
}

func TestTable_Subscribe(t *testing.T) {
	table := NewTable(nil)
	table.Replace([]domain.Product{{ID: "p1", DisplayOrder: displayAt(2)}, {ID: "p2", DisplayOrder: displayAt(1)}})

	ch, cancel := table.Subscribe()
	defer cancel()

	assert.Equal(t, []string{"p2", "p1"}, productIDs(receiveSnapshot(t, ch)))

	table.Patch(domain.Product{ID: "p3"})
	assert.Equal(t, []string{"p2", "p1", "p3"}, productIDs(receiveSnapshot(t, ch)))
}

func TestTable_SlowSubscriberGetsNewestSnapshot(t *testing.T) {
	table := NewTable(nil)
	ch, cancel := table.Subscribe()
	defer cancel()
	receiveSnapshot(t, ch)

	table.Replace([]domain.Product{{ID: "p1"}})
	table.Replace([]domain.Product{{ID: "p1"}, {ID: "p2"}})
	table.Replace([]domain.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}})

	assert.Len(t, receiveSnapshot(t, ch), 3)
	select {
	case s := <-ch:
		t.Fatalf("unexpected extra snapshot %v", productIDs(s))
	default:
	}
}

func TestTable_CancelClosesSubscription(t *testing.T) {
	table := NewTable(nil)
	ch, cancel := table.Subscribe()
	receiveSnapshot(t, ch)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	table.Replace([]domain.Product{{ID: "p1"}})
}

func TestTable_SnapshotsNeverGoBackwards(t *testing.T) {
	table := NewTable(nil)
	ch, cancel := table.Subscribe()
	defer cancel()
	receiveSnapshot(t, ch)

	const writers = 40
	done := make(chan struct{})
	var sizes []int
	go func() {
		defer close(done)
		for s := range ch {
			sizes = append(sizes, len(s))
			if len(s) == writers {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table.Patch(domain.Product{ID: fmt.Sprintf("p%02d", i)})
		}(i)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("final snapshot not delivered")
	}
	for i := 1; i < len(sizes); i++ {
		assert.GreaterOrEqual(t, sizes[i], sizes[i-1], "snapshot %d is older than the one before it", i)
	}
}

func TestTable_CloseEndsSubscriptions(t *testing.T) {
	table := NewTable(nil)
	table.Replace([]domain.Product{{ID: "p1"}})
	ch, cancel := table.Subscribe()
	receiveSnapshot(t, ch)

	table.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, lateCancel := table.Subscribe()
	defer lateCancel()
	assert.Equal(t, []string{"p1"}, productIDs(receiveSnapshot(t, late)))
	_, ok = <-late
	assert.False(t, ok)

	table.Patch(domain.Product{ID: "p2"})
}

func TestFingerprint(t *testing.T) {
	a := []domain.Product{{ID: "p1", Price: 600}}
	b := []domain.Product{{ID: "p1", Price: 650}}
	assert.Equal(t, Fingerprint(a), Fingerprint([]domain.Product{{ID: "p1", Price: 600}}))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}
