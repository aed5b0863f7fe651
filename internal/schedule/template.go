// Package schedule defines the clinic's recurring weekly appointment windows.
// The template is fixed per deployment and is the read-only input to slot
// generation.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for static configuration; it panics on
// malformed input.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Window is a recurring opening: the clinic attends on each listed weekday
// between Start (inclusive) and End (exclusive).
type Window struct {
	Days  []time.Weekday
	Start TimeOfDay
	End   TimeOfDay
}

// Covers reports whether the window applies on the given weekday.
func (w Window) Covers(day time.Weekday) bool {
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Template is the full weekly schedule for the clinic.
type Template struct {
	Windows []Window
}

// Validate checks every window has Start < End and at least one weekday.
// Windows on the same day must not overlap; that is a configuration contract
// checked here so slot generation can assume disjoint tilings.
func (t Template) Validate() error {
	for i, w := range t.Windows {
		if len(w.Days) == 0 {
			return fmt.Errorf("schedule: window %d has no weekdays", i)
		}
		if !w.Start.Before(w.End) {
			return fmt.Errorf("schedule: window %d start %s is not before end %s", i, w.Start, w.End)
		}
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		var spans [][2]int
		for _, w := range t.Windows {
			if w.Covers(day) {
				spans = append(spans, [2]int{w.Start.Minutes(), w.End.Minutes()})
			}
		}
		for i := 0; i < len(spans); i++ {
			for j := i + 1; j < len(spans); j++ {
				if spans[i][0] < spans[j][1] && spans[j][0] < spans[i][1] {
					return fmt.Errorf("schedule: overlapping windows on %s", day)
				}
			}
		}
	}
	return nil
}

// WindowsFor returns the windows that apply on the given weekday.
func (t Template) WindowsFor(day time.Weekday) []Window {
	var out []Window
	for _, w := range t.Windows {
		if w.Covers(day) {
			out = append(out, w)
		}
	}
	return out
}

// Clinic returns the deployment's fixed weekly schedule: afternoons on
// Monday, Wednesday and Friday; mornings on Tuesday, Thursday and Saturday.
func Clinic() Template {
	return Template{
		Windows: []Window{
			{
				Days:  []time.Weekday{time.Monday, time.Wednesday, time.Friday},
				Start: MustParseTimeOfDay("14:00"),
				End:   MustParseTimeOfDay("17:45"),
			},
			{
				Days:  []time.Weekday{time.Tuesday, time.Thursday, time.Saturday},
				Start: MustParseTimeOfDay("08:30"),
				End:   MustParseTimeOfDay("12:15"),
			},
		},
	}
}
