package inventory

import (
	"context"
	"sync"
)

// Reservation lifecycle states as stored in a ReservationStore.
const (
	StateHeld      = "held"
	StateCommitted = "committed"
	StateReleased  = "released"
)

// ReservationStore tracks reservations and their lifecycle state. It must be
// shared by every process that can consume order events: the instance that
// commits or releases a reservation is not necessarily the one that took it.
type ReservationStore interface {
	// Put stores a new reservation in held state.
	Put(ctx context.Context, id string, items []ReservedItem) error
	// Take atomically moves a held reservation to state and returns its
	// items. ok is false when the reservation is unknown or already taken,
	// which makes repeated commits and releases no-ops.
	Take(ctx context.Context, id, state string) (items []ReservedItem, ok bool, err error)
	// Restore returns a taken reservation to held so the operation can be
	// retried after a transient failure.
	Restore(ctx context.Context, id string) error
}

// MemoryReservations is a process-local ReservationStore for tests and
// single-process mode.
type MemoryReservations struct {
	mu   sync.Mutex
	byID map[string]*memoryReservation
}

type memoryReservation struct {
	items []ReservedItem
	state string
}

func NewMemoryReservations() *MemoryReservations {
	return &MemoryReservations{byID: make(map[string]*memoryReservation)}
}

func (s *MemoryReservations) Put(ctx context.Context, id string, items []ReservedItem) error {
	cp := make([]ReservedItem, len(items))
	copy(cp, items)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = &memoryReservation{items: cp, state: StateHeld}
	return nil
}

func (s *MemoryReservations) Take(ctx context.Context, id, state string) ([]ReservedItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.byID[id]
	if !ok || res.state != StateHeld {
		return nil, false, nil
	}
	res.state = state
	items := make([]ReservedItem, len(res.items))
	copy(items, res.items)
	return items, true, nil
}

func (s *MemoryReservations) Restore(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.byID[id]; ok {
		res.state = StateHeld
	}
	return nil
}
