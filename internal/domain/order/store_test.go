package order

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmeshop/storefront/internal/codec"
)

func pendingRecord(id string) Record {
	return Record{
		ID:        id,
		Status:    StatusPending,
		Username:  "alice",
		CreatedAt: time.Now(),
	}
}

func completion(id string, fields map[string]string) codec.Completion {
	c := codec.Completion{OrderID: id, Fields: make(map[string]json.RawMessage)}
	for k, v := range fields {
		c.Fields[k] = json.RawMessage(v)
	}
	return c
}

func TestStore_PutGet(t *testing.T) {
	s := NewStore()
	s.Put(pendingRecord("o-1"))

	rec, ok := s.Get("o-1")
	require.True(t, ok)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "alice", rec.Username)

	_, ok = s.Get("o-2")
	assert.False(t, ok)
}

func TestStore_MergeCompletes(t *testing.T) {
	s := NewStore()
	done := s.Put(pendingRecord("o-1"))

	merged := s.Merge(completion("o-1", map[string]string{"total": "19.98"}))
	require.True(t, merged)

	select {
	case <-done:
	default:
		t.Fatal("done channel not closed after merge")
	}

	rec, ok := s.Get("o-1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.JSONEq(t, `19.98`, string(rec.Result["total"]))
	assert.False(t, rec.CompletedAt.IsZero())
}

func TestStore_MergeFailed(t *testing.T) {
	s := NewStore()
	s.Put(pendingRecord("o-1"))

	c := completion("o-1", map[string]string{"reason": `"out of stock"`})
	c.Failed = true
	require.True(t, s.Merge(c))

	rec, _ := s.Get("o-1")
	assert.Equal(t, StatusFailed, rec.Status)
}

// A completion for an unknown id never creates a record.
func TestStore_MergeOrphan(t *testing.T) {
	s := NewStore()

	assert.False(t, s.Merge(completion("ghost", map[string]string{"total": "1"})))
	_, ok := s.Get("ghost")
	assert.False(t, ok)
}

// Duplicate delivery: the second merge is a no-op and status never regresses.
func TestStore_MergeDuplicate(t *testing.T) {
	s := NewStore()
	s.Put(pendingRecord("o-1"))

	require.True(t, s.Merge(completion("o-1", map[string]string{"total": "19.98"})))
	assert.False(t, s.Merge(completion("o-1", map[string]string{"total": "99.99"})))

	rec, _ := s.Get("o-1")
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.JSONEq(t, `19.98`, string(rec.Result["total"]))
}

// Snapshots returned before a merge must not observe the merge.
func TestStore_SnapshotImmutable(t *testing.T) {
	s := NewStore()
	s.Put(pendingRecord("o-1"))

	before, _ := s.Get("o-1")
	s.Merge(completion("o-1", map[string]string{"total": "19.98"}))

	assert.Equal(t, StatusPending, before.Status)
	assert.Empty(t, before.Result)
}

// Concurrent merges and reads on the same key: exactly one merge wins and no
// update is lost or torn.
func TestStore_ConcurrentMergeAndGet(t *testing.T) {
	s := NewStore()
	s.Put(pendingRecord("o-1"))

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.Merge(completion("o-1", map[string]string{"total": "19.98"}))
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, ok := s.Get("o-1")
			if ok && rec.Status.Terminal() {
				assert.JSONEq(t, `19.98`, string(rec.Result["total"]))
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestStore_Sweep(t *testing.T) {
	s := NewStore()
	now := time.Now()

	// Settled long ago: evicted.
	s.Put(pendingRecord("settled-old"))
	s.Merge(completion("settled-old", nil))
	s.orders["settled-old"].rec.CompletedAt = now.Add(-time.Hour)

	// Freshly settled: kept.
	s.Put(pendingRecord("settled-new"))
	s.Merge(completion("settled-new", nil))

	// Pending from ages ago: evicted.
	stale := pendingRecord("pending-stale")
	stale.CreatedAt = now.Add(-48 * time.Hour)
	s.Put(stale)

	// Fresh pending: kept.
	s.Put(pendingRecord("pending-fresh"))

	evicted := s.sweep(now, 30*time.Minute, 24*time.Hour)
	assert.Equal(t, 2, evicted)

	_, ok := s.Get("settled-old")
	assert.False(t, ok)
	_, ok = s.Get("pending-stale")
	assert.False(t, ok)
	_, ok = s.Get("settled-new")
	assert.True(t, ok)
	_, ok = s.Get("pending-fresh")
	assert.True(t, ok)
}
