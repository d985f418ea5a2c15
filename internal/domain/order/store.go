package order

import (
	"context"
	"encoding/json"
	"maps"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/acmeshop/storefront/internal/codec"
)

// Store is the in-memory correlation store mapping order ids to records. It is
// the only state shared between the submission flow and the completion
// subscriber; all access is linearizable per key under the store mutex.
//
// Records live for the process lifetime unless evicted by the janitor
// (RunJanitor). There is no persistence across restarts.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*entry
}

// entry pairs a record with its completion signal. done is closed exactly
// once, on the pending → terminal transition.
type entry struct {
	rec  Record
	done chan struct{}
}

// NewStore creates an empty correlation store.
func NewStore() *Store {
	return &Store{orders: make(map[string]*entry)}
}

// Put inserts a new record and returns a channel that is closed when the
// record reaches a terminal status. The caller guarantees the id is fresh.
func (s *Store) Put(rec Record) <-chan struct{} {
	e := &entry{rec: rec, done: make(chan struct{})}

	s.mu.Lock()
	s.orders[rec.ID] = e
	s.mu.Unlock()

	return e.done
}

// Get returns a snapshot of the record for id. It never blocks on pending
// completion.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.orders[id]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

// Merge folds a completion into the record for c.OrderID: the completion's
// fields are unioned over the existing result and the status becomes
// completed, or failed when the worker says so. A completion for an unknown
// id never creates a record, and a record already in a terminal state is left
// untouched (duplicate delivery is a no-op). Merge reports whether the record
// transitioned.
func (s *Store) Merge(c codec.Completion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.orders[c.OrderID]
	if !ok || e.rec.Status.Terminal() {
		return false
	}

	// Copy-on-write so snapshots returned by Get stay immutable.
	result := maps.Clone(e.rec.Result)
	if result == nil {
		result = make(map[string]json.RawMessage, len(c.Fields))
	}
	maps.Copy(result, c.Fields)
	e.rec.Result = result

	if c.Failed {
		e.rec.Status = StatusFailed
	} else {
		e.rec.Status = StatusCompleted
	}
	e.rec.CompletedAt = time.Now()

	close(e.done)
	return true
}

// RunJanitor sweeps the store at the given interval until ctx is cancelled,
// evicting terminal records older than completedTTL and pending records older
// than pendingTTL. Pending records are given a much longer leash so an
// out-of-band poller keeps seeing its handle long after the submission
// deadline.
func (s *Store) RunJanitor(ctx context.Context, interval, completedTTL, pendingTTL time.Duration) {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sweep(now, completedTTL, pendingTTL); n > 0 {
				lg.Debug("evicted stale orders", zap.Int("count", n))
			}
		}
	}
}

// sweep removes expired records and returns how many were evicted. The done
// channel of an evicted pending record is left open: any waiter still attached
// falls through to its own deadline.
func (s *Store) sweep(now time.Time, completedTTL, pendingTTL time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.orders {
		var expired bool
		if e.rec.Status.Terminal() {
			expired = now.Sub(e.rec.CompletedAt) >= completedTTL
		} else {
			expired = now.Sub(e.rec.CreatedAt) >= pendingTTL
		}
		if expired {
			delete(s.orders, id)
			evicted++
		}
	}
	return evicted
}
