package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract for slots and reservations. Claim and
// Release are atomic per slot: under concurrent claims for the same free slot
// exactly one caller wins and the rest get ErrConflict.
type Store interface {
	// UpsertSlots inserts the given slots, skipping any whose identity already
	// exists so regeneration never resets reservation state.
	UpsertSlots(ctx context.Context, slots []Slot) (int, error)
	GetSlot(ctx context.Context, id string) (*Slot, error)
	// ListAvailable returns free slots with start in [from, to), ordered by
	// start time.
	ListAvailable(ctx context.Context, from, to time.Time) ([]Slot, error)
	Claim(ctx context.Context, slotID string, draft Draft) (*Reservation, error)
	Release(ctx context.Context, slotID string) (*Reservation, error)
}

type slotRecord struct {
	mu   sync.Mutex
	slot Slot
}

// MemoryStore is an in-memory Store: a map keyed by slot id plus a
// start-time-ordered index for range queries. Claims lock individual slot
// records, not the whole store.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]*slotRecord
	order []string // slot IDs sorted by start time

	// resMu guards reservations on its own. Lock order is s.mu, then
	// rec.mu, then resMu; s.mu is never acquired while a record is held.
	resMu        sync.Mutex
	reservations map[string]*Reservation
}

// NewMemoryStore creates an empty in-memory slot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:        make(map[string]*slotRecord),
		reservations: make(map[string]*Reservation),
	}
}

// UpsertSlots adds new slots, leaving already-known identities untouched.
func (s *MemoryStore) UpsertSlots(_ context.Context, slots []Slot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, slot := range slots {
		if _, exists := s.slots[slot.ID]; exists {
			continue
		}
		slot.Available = true
		slot.ReservationID = ""
		s.slots[slot.ID] = &slotRecord{slot: slot}
		s.order = append(s.order, slot.ID)
		added++
	}
	if added > 0 {
		sort.Slice(s.order, func(i, j int) bool {
			return s.slots[s.order[i]].slot.Start.Before(s.slots[s.order[j]].slot.Start)
		})
	}
	return added, nil
}

// GetSlot returns a copy of the slot, or ErrSlotNotFound.
func (s *MemoryStore) GetSlot(_ context.Context, id string) (*Slot, error) {
	s.mu.RLock()
	rec, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSlotNotFound
	}

	rec.mu.Lock()
	slot := rec.slot
	rec.mu.Unlock()
	return &slot, nil
}

// ListAvailable walks the time-ordered index and returns free slots in range.
func (s *MemoryStore) ListAvailable(_ context.Context, from, to time.Time) ([]Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Slot
	for _, id := range s.order {
		rec := s.slots[id]
		rec.mu.Lock()
		slot := rec.slot
		rec.mu.Unlock()

		if slot.Start.Before(from) {
			continue
		}
		if !slot.Start.Before(to) {
			break
		}
		if slot.Available {
			out = append(out, slot)
		}
	}
	return out, nil
}

// Claim atomically reserves a free slot and records the reservation.
func (s *MemoryStore) Claim(_ context.Context, slotID string, draft Draft) (*Reservation, error) {
	s.mu.RLock()
	rec, ok := s.slots[slotID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSlotNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.slot.Available {
		return nil, ErrConflict
	}

	res := &Reservation{
		ID:            uuid.NewString(),
		SlotID:        slotID,
		PatientName:   draft.PatientName,
		Contact:       draft.Contact,
		IsPrivate:     draft.IsPrivate,
		InsuranceName: draft.InsuranceName,
		Reason:        draft.Reason,
		Status:        StatusScheduled,
		CreatedAt:     time.Now().UTC(),
	}
	rec.slot.Available = false
	rec.slot.ReservationID = res.ID

	s.resMu.Lock()
	s.reservations[res.ID] = res
	s.resMu.Unlock()

	out := *res
	return &out, nil
}

// Release frees the slot and cancels its active reservation. A slot with no
// active reservation returns ErrSlotNotFound.
func (s *MemoryStore) Release(_ context.Context, slotID string) (*Reservation, error) {
	s.mu.RLock()
	rec, ok := s.slots[slotID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSlotNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.slot.Available || rec.slot.ReservationID == "" {
		return nil, ErrSlotNotFound
	}

	resID := rec.slot.ReservationID
	rec.slot.Available = true
	rec.slot.ReservationID = ""

	s.resMu.Lock()
	res := s.reservations[resID]
	if res != nil {
		res.Status = StatusCancelled
	}
	s.resMu.Unlock()

	if res == nil {
		return nil, ErrSlotNotFound
	}
	out := *res
	return &out, nil
}
