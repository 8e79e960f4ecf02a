// Package store keeps the session's cached collection of orders. It is the
// only shared mutable state of the client: the realtime listener, the
// poller and the lifecycle controller all mutate it through the operations
// below, each of which is applied atomically and bumps a store-wide version
// counter that observers compare instead of diffing orders.
package store

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/model"
)

// Listener is called after every mutation with the new version. It runs
// outside the store lock and may read the store.
type Listener func(version uint64)

// Store is an in-memory, id-keyed order collection with a stable list order.
type Store struct {
	lg *zap.Logger

	mu      sync.RWMutex
	orders  map[string]*model.Order
	seq     []string
	version uint64

	lmu       sync.Mutex
	nextLID   int
	listeners map[int]Listener
}

// New creates an empty Store.
func New(lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{
		lg:        lg,
		orders:    make(map[string]*model.Order),
		listeners: make(map[int]Listener),
	}
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(version uint64) {
	s.lmu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(version)
	}
}

// mutate runs fn under the write lock and, when fn reports a change, bumps
// the version and notifies listeners.
func (s *Store) mutate(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	if changed {
		s.version++
	}
	v := s.version
	s.mu.Unlock()

	if changed {
		s.notify(v)
	}
	return changed
}

func normalize(o model.Order) *model.Order {
	c := o.Clone()
	if c.Assignments != nil {
		c.RecalculateTotal()
	}
	return &c
}

// UpsertMany replaces or inserts each order by id. Known orders keep their
// list position; new ones are appended. Orders carrying assignments get
// their total recomputed from them.
func (s *Store) UpsertMany(orders ...model.Order) {
	if len(orders) == 0 {
		return
	}
	s.mutate(func() bool {
		for _, o := range orders {
			s.put(o, false)
		}
		return true
	})
}

// UpsertFront inserts o at the head of the list, or replaces it in place
// when already known.
func (s *Store) UpsertFront(o model.Order) {
	s.mutate(func() bool {
		s.put(o, true)
		return true
	})
}

func (s *Store) put(o model.Order, front bool) {
	if o.ID == "" {
		s.lg.Warn("Skipping order without id")
		return
	}
	if _, ok := s.orders[o.ID]; !ok {
		if front {
			s.seq = append([]string{o.ID}, s.seq...)
		} else {
			s.seq = append(s.seq, o.ID)
		}
	}
	s.orders[o.ID] = normalize(o)
}

// ReplaceAll reconciles the store with a full fetch: listed orders are
// upserted, orders missing from the list are dropped.
func (s *Store) ReplaceAll(orders []model.Order) {
	s.mutate(func() bool {
		keep := make(map[string]struct{}, len(orders))
		for _, o := range orders {
			keep[o.ID] = struct{}{}
		}
		seq := s.seq[:0:0]
		for _, id := range s.seq {
			if _, ok := keep[id]; ok {
				seq = append(seq, id)
				continue
			}
			delete(s.orders, id)
		}
		s.seq = seq
		for _, o := range orders {
			s.put(o, false)
		}
		return true
	})
}

// Patch shallow-merges p into the order with the given id. It reports
// false, without touching the version, when the id is unknown; callers
// should refetch in that case.
func (s *Store) Patch(id string, p model.OrderPatch) bool {
	changed := s.mutate(func() bool {
		o, ok := s.orders[id]
		if !ok {
			return false
		}
		p.Apply(o)
		return true
	})
	if !changed {
		s.lg.Warn("Patch for unknown order ignored", zap.String("order_id", id))
	}
	return changed
}

// Remove deletes the order and its assignments.
func (s *Store) Remove(id string) bool {
	return s.mutate(func() bool {
		if _, ok := s.orders[id]; !ok {
			return false
		}
		delete(s.orders, id)
		for i, sid := range s.seq {
			if sid == id {
				s.seq = append(s.seq[:i:i], s.seq[i+1:]...)
				break
			}
		}
		return true
	})
}

// AddAssignment attaches a to its order and recomputes the order total.
func (s *Store) AddAssignment(a model.ServiceAssignment) bool {
	return s.mutate(func() bool {
		o, ok := s.orders[a.OrderID]
		if !ok {
			return false
		}
		o.Assignments = append(o.Assignments, a)
		o.RecalculateTotal()
		return true
	})
}

// RemoveAssignment detaches an assignment and recomputes the order total.
func (s *Store) RemoveAssignment(orderID, assignmentID string) bool {
	return s.mutate(func() bool {
		o, ok := s.orders[orderID]
		if !ok {
			return false
		}
		for i, a := range o.Assignments {
			if a.ID == assignmentID {
				o.Assignments = append(o.Assignments[:i:i], o.Assignments[i+1:]...)
				o.RecalculateTotal()
				return true
			}
		}
		return false
	})
}

// Get returns a copy of the order.
func (s *Store) Get(id string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return o.Clone(), true
}

// Total returns the cached total of the order.
func (s *Store) Total(id string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return decimal.Zero, false
	}
	return o.TotalServices, true
}

// Query returns a snapshot of the orders accepted by pred, in list order.
// A nil pred selects everything. The snapshot does not follow later
// mutations.
func (s *Store) Query(pred func(model.Order) bool) []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, 0, len(s.seq))
	for _, id := range s.seq {
		o := s.orders[id]
		if pred != nil && !pred(*o) {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}

// Len returns the number of cached orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seq)
}
