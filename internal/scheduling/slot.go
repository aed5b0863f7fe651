// Package scheduling owns bookable time slots and their reservations: slot
// generation from the weekly template, availability queries, and the atomic
// claim/release operations the booking dialog depends on.
package scheduling

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSlotNotFound indicates the referenced slot does not exist or has no
	// active reservation to release.
	ErrSlotNotFound = errors.New("scheduling: slot not found")
	// ErrConflict indicates the slot was already reserved when the claim ran.
	ErrConflict = errors.New("scheduling: slot already reserved")
)

// Slot is a fixed-duration bookable interval generated from the schedule
// template. Identity is derived from the (start, end) pair so regeneration
// over the same range is idempotent.
type Slot struct {
	ID            string    `json:"id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Available     bool      `json:"available"`
	ReservationID string    `json:"reservation_id,omitempty"`
}

// SlotID derives the canonical slot identity from its interval.
func SlotID(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("20060102T1504"), end.Format("1504"))
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusScheduled ReservationStatus = "scheduled"
	StatusCancelled ReservationStatus = "cancelled"
)

// Reservation is a confirmed claim of a slot by a patient. At most one
// non-cancelled reservation references a given slot.
type Reservation struct {
	ID            string            `json:"id"`
	SlotID        string            `json:"slot_id"`
	PatientName   string            `json:"patient_name"`
	Contact       string            `json:"contact"`
	IsPrivate     bool              `json:"is_private"`
	InsuranceName string            `json:"insurance_name,omitempty"`
	Reason        string            `json:"reason"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Draft carries the patient details for a claim.
type Draft struct {
	PatientName   string
	Contact       string
	IsPrivate     bool
	InsuranceName string
	Reason        string
}
