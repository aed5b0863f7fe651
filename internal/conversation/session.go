// Package conversation implements the booking dialog: a per-correspondent
// state machine that walks a patient from first contact to a reserved slot,
// plus the session persistence and async processing around it.
package conversation

import (
	"sync"
	"time"
)

// State is the dialog position for one correspondent.
type State string

const (
	StateNew                State = "NEW"
	StateAwaitingChoice     State = "AWAITING_INITIAL_CHOICE"
	StateAwaitingType       State = "AWAITING_TYPE"
	StateAwaitingInsurer    State = "AWAITING_INSURANCE_NAME"
	StateAwaitingDocs       State = "AWAITING_DOCS_INSURANCE"
	StateAwaitingPreference State = "AWAITING_SLOT_PREFERENCE"
	StateAwaitingSlotChoice State = "AWAITING_SLOT_CHOICE"
	StateAppointmentPending State = "APPOINTMENT_PENDING"
	StateCompleted          State = "COMPLETED"
	StateHumanTakeover      State = "HUMAN_TAKEOVER"
	StateRedirectedToLink   State = "REDIRECTED_TO_LINK"
)

var allStates = map[State]struct{}{
	StateNew:                {},
	StateAwaitingChoice:     {},
	StateAwaitingType:       {},
	StateAwaitingInsurer:    {},
	StateAwaitingDocs:       {},
	StateAwaitingPreference: {},
	StateAwaitingSlotChoice: {},
	StateAppointmentPending: {},
	StateCompleted:          {},
	StateHumanTakeover:      {},
	StateRedirectedToLink:   {},
}

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool {
	_, ok := allStates[s]
	return ok
}

// Terminal reports whether the dialog is over for this correspondent until an
// explicit reset.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateHumanTakeover, StateRedirectedToLink:
		return true
	}
	return false
}

// Silent reports whether inbound messages in this state get no bot reply.
// APPOINTMENT_PENDING is silent but not terminal: staff may still complete or
// cancel the booking.
func (s State) Silent() bool {
	return s.Terminal() || s == StateAppointmentPending
}

// Context carries everything the dialog has learned about a correspondent.
// Saved wholesale with the session on every turn.
type Context struct {
	IsPrivate       bool     `json:"is_private,omitempty"`
	InsuranceName   string   `json:"insurance_name,omitempty"`
	InsuranceID     string   `json:"insurance_id,omitempty"`
	OfferedSlotIDs  []string `json:"offered_slot_ids,omitempty"`
	ReservedSlotID  string   `json:"reserved_slot_id,omitempty"`
	ReservationID   string   `json:"reservation_id,omitempty"`
	CalendarEventID string   `json:"calendar_event_id,omitempty"`
}

// Session is the persisted dialog record for one correspondent.
type Session struct {
	CorrespondentID string    `json:"correspondent_id"`
	State           State     `json:"state"`
	Context         Context   `json:"context"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSession creates a fresh session in the initial state.
func NewSession(correspondentID string) *Session {
	return &Session{
		CorrespondentID: correspondentID,
		State:           StateNew,
	}
}

// keyedMutex serializes processing per correspondent while letting different
// correspondents proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entryLock)}
}

// lock acquires the mutex for key and returns the matching unlock func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entryLock{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
