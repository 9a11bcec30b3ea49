package storage

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
)

// Journal receives lifecycle transitions for durable record keeping.
// Implementations must be safe for concurrent use. Journal writes are
// best-effort: a write failure never blocks or reverses a transition.
type Journal interface {
	RecordTransition(orderID string, from, to domain.State, reason string, ts time.Time) error
	RecordTerminal(o domain.Order) error
}

// OrderStore is the single source of truth for order lifecycle. It owns all
// Order records; Get and ListActive hand out copies. The only mutation
// primitive is atomic compare-and-transition, which makes the
// cancellation-vs-trigger race a plain CAS fight with exactly one winner.
type OrderStore struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	journal Journal // optional
}

// NewOrderStore creates an order store. journal may be nil.
func NewOrderStore(journal Journal) *OrderStore {
	return &OrderStore{
		orders:  make(map[string]*domain.Order),
		journal: journal,
	}
}

// Insert admits a new order. The order must already carry its ID and
// StatePending; IDs are unique for the lifetime of the store.
func (s *OrderStore) Insert(o domain.Order) error {
	s.mu.Lock()
	if _, exists := s.orders[o.ID]; exists {
		s.mu.Unlock()
		return domain.ErrDuplicateID
	}
	clone := o
	s.orders[o.ID] = &clone
	s.mu.Unlock()

	s.record(o.ID, 0, o.State, "", o.CreatedAt)
	return nil
}

// Get returns a copy of the order.
func (s *OrderStore) Get(id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return *o, nil
}

// CompareAndTransition atomically moves the order from -> to. Returns false
// when the order is unknown or no longer in the expected state, in which
// case the caller's operation becomes a no-op.
func (s *OrderStore) CompareAndTransition(id string, from, to domain.State) bool {
	return s.transition(id, from, to, "")
}

// FailFrom atomically moves the order from -> Failed and records the reason.
func (s *OrderStore) FailFrom(id string, from domain.State, reason string) bool {
	return s.transition(id, from, domain.StateFailed, reason)
}

func (s *OrderStore) transition(id string, from, to domain.State, reason string) bool {
	now := time.Now()

	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok || o.State != from {
		s.mu.Unlock()
		return false
	}
	o.State = to
	if to.Terminal() {
		o.ResolvedAt = now
	}
	if reason != "" {
		o.FailureReason = reason
	}
	snapshot := *o
	s.mu.Unlock()

	s.record(id, from, to, reason, now)
	if to.Terminal() {
		s.recordTerminal(snapshot)
	}
	return true
}

// ListActive returns a consistent snapshot of all Pending and Triggered
// orders, taken under a single critical section. Orders may resolve between
// snapshot and use; consumers re-check state via CAS before acting.
func (s *OrderStore) ListActive() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []domain.Order
	for _, o := range s.orders {
		if o.Active() {
			active = append(active, *o)
		}
	}
	return active
}

func (s *OrderStore) record(id string, from, to domain.State, reason string, ts time.Time) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordTransition(id, from, to, reason, ts); err != nil {
		slog.Warn("JOURNAL_WRITE_FAILED",
			slog.String("order_id", id),
			slog.Any("error", err))
	}
}

func (s *OrderStore) recordTerminal(o domain.Order) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordTerminal(o); err != nil {
		slog.Warn("JOURNAL_WRITE_FAILED",
			slog.String("order_id", o.ID),
			slog.Any("error", err))
	}
}
