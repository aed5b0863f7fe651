package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/healthgpt/clinic-assistant/internal/schedule"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Engine materializes candidate slots from the weekly schedule template and
// answers availability queries against the store.
type Engine struct {
	template schedule.Template
	store    Store
	duration time.Duration
	loc      *time.Location
	logger   *logging.Logger
}

// NewEngine wires a slot engine over the given template and store.
func NewEngine(template schedule.Template, store Store, duration time.Duration, loc *time.Location, logger *logging.Logger) (*Engine, error) {
	if store == nil {
		panic("scheduling: store cannot be nil")
	}
	if duration <= 0 {
		return nil, fmt.Errorf("scheduling: slot duration must be positive, got %s", duration)
	}
	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("scheduling: invalid template: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		template: template,
		store:    store,
		duration: duration,
		loc:      loc,
		logger:   logger,
	}, nil
}

// GenerateSlots tiles every template window over horizonWeeks weeks starting
// at fromDate and persists the result. Slot identity comes from the interval,
// so generating the same range twice adds nothing. Returns the number of
// newly created slots.
func (e *Engine) GenerateSlots(ctx context.Context, fromDate time.Time, horizonWeeks int) (int, error) {
	if horizonWeeks <= 0 {
		return 0, fmt.Errorf("scheduling: horizon must be positive, got %d weeks", horizonWeeks)
	}

	first := time.Date(fromDate.Year(), fromDate.Month(), fromDate.Day(), 0, 0, 0, 0, e.loc)
	until := first.AddDate(0, 0, 7*horizonWeeks)

	var slots []Slot
	for day := first; day.Before(until); day = day.AddDate(0, 0, 1) {
		for _, w := range e.template.WindowsFor(day.Weekday()) {
			slots = append(slots, e.tile(day, w)...)
		}
	}

	added, err := e.store.UpsertSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("scheduling: failed to persist generated slots: %w", err)
	}
	e.logger.Info("slot generation finished",
		"from", first.Format("2006-01-02"),
		"weeks", horizonWeeks,
		"candidates", len(slots),
		"added", added,
	)
	return added, nil
}

// tile cuts [start,end) into consecutive duration-sized slots, discarding any
// partial trailing interval.
func (e *Engine) tile(day time.Time, w schedule.Window) []Slot {
	start := time.Date(day.Year(), day.Month(), day.Day(), w.Start.Hour, w.Start.Minute, 0, 0, e.loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), w.End.Hour, w.End.Minute, 0, 0, e.loc)

	var slots []Slot
	for cur := start; !cur.Add(e.duration).After(end); cur = cur.Add(e.duration) {
		slotEnd := cur.Add(e.duration)
		slots = append(slots, Slot{
			ID:        SlotID(cur, slotEnd),
			Start:     cur,
			End:       slotEnd,
			Available: true,
		})
	}
	return slots
}

// ListAvailable returns the free slots with start in [from, to).
func (e *Engine) ListAvailable(ctx context.Context, from, to time.Time) ([]Slot, error) {
	return e.store.ListAvailable(ctx, from, to)
}

// SlotDuration exposes the configured slot length.
func (e *Engine) SlotDuration() time.Duration {
	return e.duration
}
