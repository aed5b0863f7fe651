package scheduling

import (
	"context"
	"errors"
	"strings"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Manager performs the claim/release operations used by booking. It validates
// input and delegates the per-slot atomicity to the store.
type Manager struct {
	store  Store
	logger *logging.Logger
}

// NewManager creates a reservation manager over the given store.
func NewManager(store Store, logger *logging.Logger) *Manager {
	if store == nil {
		panic("scheduling: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Claim reserves the slot for the draft patient. Returns ErrSlotNotFound for
// unknown or blank ids and ErrConflict when another claim won the slot.
func (m *Manager) Claim(ctx context.Context, slotID string, draft Draft) (*Reservation, error) {
	slotID = strings.TrimSpace(slotID)
	if slotID == "" {
		return nil, ErrSlotNotFound
	}

	res, err := m.store.Claim(ctx, slotID, draft)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			m.logger.Info("slot claim lost race", "slot_id", slotID, "contact", draft.Contact)
		}
		return nil, err
	}

	m.logger.Info("slot claimed",
		"slot_id", slotID,
		"reservation_id", res.ID,
		"private", res.IsPrivate,
	)
	return res, nil
}

// Release frees a slot and cancels its reservation. Releasing a slot with no
// active reservation is a no-op error, never a crash.
func (m *Manager) Release(ctx context.Context, slotID string) (*Reservation, error) {
	slotID = strings.TrimSpace(slotID)
	if slotID == "" {
		return nil, ErrSlotNotFound
	}

	res, err := m.store.Release(ctx, slotID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("slot released", "slot_id", slotID, "reservation_id", res.ID)
	return res, nil
}
