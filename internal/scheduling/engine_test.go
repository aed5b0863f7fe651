package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgpt/clinic-assistant/internal/schedule"
)

func newTestEngine(t *testing.T, tpl schedule.Template, duration time.Duration) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	engine, err := NewEngine(tpl, store, duration, time.UTC, nil)
	require.NoError(t, err)
	return engine, store
}

func TestGenerateSlotsTilesWindows(t *testing.T) {
	engine, store := newTestEngine(t, schedule.Clinic(), 45*time.Minute)
	ctx := context.Background()

	// 2026-01-05 is a Monday.
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	added, err := engine.GenerateSlots(ctx, from, 1)
	require.NoError(t, err)

	// 14:00-17:45 and 08:30-12:15 both hold exactly five 45-minute slots;
	// the clinic attends six days a week.
	assert.Equal(t, 30, added)

	slots, err := store.ListAvailable(ctx, from, from.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, slots, 30)

	// Consecutive slots on the same day are contiguous and never exceed the
	// window.
	for i := 1; i < len(slots); i++ {
		prev, cur := slots[i-1], slots[i]
		assert.True(t, prev.Start.Before(cur.Start), "slots must be time-ordered")
		if prev.Start.Day() == cur.Start.Day() {
			assert.Equal(t, prev.End, cur.Start, "same-day slots must be contiguous")
		}
	}
	monday := slots[0]
	assert.Equal(t, 14, monday.Start.Hour())
	lastMonday := slots[4]
	assert.Equal(t, "17:45", lastMonday.End.Format("15:04"))
}

func TestGenerateSlotsDiscardsPartialTrailingInterval(t *testing.T) {
	tpl := schedule.Template{Windows: []schedule.Window{{
		Days:  []time.Weekday{time.Monday},
		Start: schedule.MustParseTimeOfDay("09:00"),
		End:   schedule.MustParseTimeOfDay("10:10"),
	}}}
	engine, store := newTestEngine(t, tpl, 30*time.Minute)
	ctx := context.Background()

	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	added, err := engine.GenerateSlots(ctx, from, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, added, "the trailing 10 minutes must not become a slot")

	slots, err := store.ListAvailable(ctx, from, from.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "10:00", slots[1].End.Format("15:04"))
}

func TestGenerateSlotsIsIdempotent(t *testing.T) {
	engine, store := newTestEngine(t, schedule.Clinic(), 45*time.Minute)
	ctx := context.Background()
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	first, err := engine.GenerateSlots(ctx, from, 2)
	require.NoError(t, err)
	require.Positive(t, first)

	again, err := engine.GenerateSlots(ctx, from, 2)
	require.NoError(t, err)
	assert.Zero(t, again, "regeneration must not mint new slot identities")

	slots, err := store.ListAvailable(ctx, from, from.AddDate(0, 0, 14))
	require.NoError(t, err)
	seen := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		_, dup := seen[slot.ID]
		assert.False(t, dup, "duplicate slot id %s", slot.ID)
		seen[slot.ID] = struct{}{}
	}
}

func TestGenerateSlotsUnionOfSameDayWindows(t *testing.T) {
	tpl := schedule.Template{Windows: []schedule.Window{
		{Days: []time.Weekday{time.Tuesday}, Start: schedule.MustParseTimeOfDay("08:00"), End: schedule.MustParseTimeOfDay("10:00")},
		{Days: []time.Weekday{time.Tuesday}, Start: schedule.MustParseTimeOfDay("14:00"), End: schedule.MustParseTimeOfDay("16:00")},
	}}
	engine, _ := newTestEngine(t, tpl, time.Hour)
	ctx := context.Background()

	from := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC) // a Tuesday
	added, err := engine.GenerateSlots(ctx, from, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, added)
}

func TestNewEngineRejectsBadInput(t *testing.T) {
	store := NewMemoryStore()

	_, err := NewEngine(schedule.Clinic(), store, 0, time.UTC, nil)
	assert.Error(t, err, "zero duration must be rejected")

	bad := schedule.Template{Windows: []schedule.Window{{
		Days:  []time.Weekday{time.Monday},
		Start: schedule.MustParseTimeOfDay("12:00"),
		End:   schedule.MustParseTimeOfDay("09:00"),
	}}}
	_, err = NewEngine(bad, store, time.Hour, time.UTC, nil)
	assert.Error(t, err)

	engine, err := NewEngine(schedule.Clinic(), store, time.Hour, time.UTC, nil)
	require.NoError(t, err)
	_, err = engine.GenerateSlots(context.Background(), time.Now(), 0)
	assert.Error(t, err)
}
