// Package insurance implements the two-step eligibility gate for
// insurance-based bookings: the plan must be on the clinic's accepted list and
// the patient's documents must have been received.
package insurance

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotRegistered indicates document confirmation was attempted for a
// patient/plan pair that was never registered.
var ErrNotRegistered = errors.New("insurance: plan not registered for this patient")

// Plan is an accepted insurance plan.
type Plan struct {
	ID   string
	Name string
}

// Record tracks the eligibility state for one patient/plan pair. Created on
// first registration, never auto-deleted.
type Record struct {
	PatientID         string
	InsuranceID       string
	DocumentsReceived bool
}

// acceptedPlans is the clinic's fixed accepted list.
var acceptedPlans = map[string]Plan{
	"unimed":     {ID: "unimed", Name: "Unimed"},
	"amil":       {ID: "amil", Name: "Amil"},
	"bradesco":   {ID: "bradesco", Name: "Bradesco Saúde"},
	"sulamerica": {ID: "sulamerica", Name: "SulAmérica"},
}

// Validator checks plan acceptance and the per-patient documents gate.
type Validator struct {
	mu      sync.RWMutex
	plans   map[string]Plan
	records map[string]*Record
}

// NewValidator creates a validator over the clinic's accepted plan list.
func NewValidator() *Validator {
	return &Validator{
		plans:   acceptedPlans,
		records: make(map[string]*Record),
	}
}

func recordKey(patientID, insuranceID string) string {
	return patientID + ":" + insuranceID
}

// IsAccepted reports whether the named plan is on the accepted list,
// case-insensitively.
func (v *Validator) IsAccepted(name string) bool {
	_, ok := v.PlanByName(name)
	return ok
}

// PlanByName resolves a plan by its display name, case-insensitively.
func (v *Validator) PlanByName(name string) (Plan, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Plan{}, false
	}
	for _, plan := range v.plans {
		if strings.ToLower(plan.Name) == name || plan.ID == name {
			return plan, true
		}
	}
	return Plan{}, false
}

// AcceptedPlanNames returns the accepted plan names in stable order, for
// user-facing listings.
func (v *Validator) AcceptedPlanNames() []string {
	names := make([]string, 0, len(v.plans))
	for _, plan := range v.plans {
		names = append(names, plan.Name)
	}
	sort.Strings(names)
	return names
}

// Register records that the patient chose the given accepted plan. Documents
// start unconfirmed. Registering twice keeps the existing record.
func (v *Validator) Register(patientID, insuranceID string) *Record {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := recordKey(patientID, insuranceID)
	if rec, ok := v.records[key]; ok {
		return rec
	}
	rec := &Record{PatientID: patientID, InsuranceID: insuranceID}
	v.records[key] = rec
	return rec
}

// MarkDocumentsReceived confirms the patient's documents for a registered
// plan. Confirming an unregistered pair is an error, not a silent no-op.
func (v *Validator) MarkDocumentsReceived(patientID, insuranceID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.records[recordKey(patientID, insuranceID)]
	if !ok {
		return ErrNotRegistered
	}
	rec.DocumentsReceived = true
	return nil
}

// CanSchedule reports whether the patient may book with the plan: registered
// and documents received.
func (v *Validator) CanSchedule(patientID, insuranceID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rec, ok := v.records[recordKey(patientID, insuranceID)]
	return ok && rec.DocumentsReceived
}
