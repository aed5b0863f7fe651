package scheduling

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreClaimWinsRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE slots SET available = FALSE").
		WithArgs("20260105T1400-1445", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(pgxmock.AnyArg(), "20260105T1400-1445", "Maria Souza", "+5511988887777", false, "", "consulta", "scheduled", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := store.Claim(ctx, "20260105T1400-1445", Draft{
		PatientName: "Maria Souza",
		Contact:     "+5511988887777",
		Reason:      "consulta",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreClaimConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE slots SET available = FALSE").
		WithArgs("20260105T1400-1445", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("20260105T1400-1445").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err = store.Claim(context.Background(), "20260105T1400-1445", Draft{})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreClaimUnknownSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE slots SET available = FALSE").
		WithArgs("missing", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err = store.Claim(context.Background(), "missing", Draft{})
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListAvailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	start := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "start_time", "end_time", "available", "reservation_id"}).
		AddRow("20260105T1400-1445", start, start.Add(45*time.Minute), true, nil)
	mock.ExpectQuery("SELECT id, start_time, end_time, available, reservation_id").
		WithArgs(from, to).
		WillReturnRows(rows)

	slots, err := store.ListAvailable(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "20260105T1400-1445", slots[0].ID)
	assert.True(t, slots[0].Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpsertSkipsExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	start := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	slots := []Slot{
		{ID: SlotID(start, start.Add(45*time.Minute)), Start: start, End: start.Add(45 * time.Minute)},
		{ID: SlotID(start.Add(time.Hour), start.Add(time.Hour+45*time.Minute)), Start: start.Add(time.Hour), End: start.Add(time.Hour + 45*time.Minute)},
	}

	mock.ExpectExec("INSERT INTO slots").
		WithArgs(slots[0].ID, slots[0].Start, slots[0].End).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO slots").
		WithArgs(slots[1].ID, slots[1].Start, slots[1].End).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	added, err := store.UpsertSlots(context.Background(), slots)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}
