package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists slots and reservations in Postgres. Claim atomicity
// relies on a conditional UPDATE: only the transaction that flips available
// from true to false creates the reservation.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore creates a Postgres-backed slot store.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		return nil
	}
	return &PostgresStore{pool: pool}
}

// UpsertSlots inserts slots, skipping identities that already exist.
func (s *PostgresStore) UpsertSlots(ctx context.Context, slots []Slot) (int, error) {
	added := 0
	for _, slot := range slots {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO slots (id, start_time, end_time, available, reservation_id)
			VALUES ($1, $2, $3, TRUE, NULL)
			ON CONFLICT (id) DO NOTHING
		`, slot.ID, slot.Start, slot.End)
		if err != nil {
			return added, fmt.Errorf("scheduling: upsert slot %s: %w", slot.ID, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

// GetSlot loads a single slot by id.
func (s *PostgresStore) GetSlot(ctx context.Context, id string) (*Slot, error) {
	var slot Slot
	var reservationID *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, start_time, end_time, available, reservation_id
		FROM slots WHERE id = $1
	`, id).Scan(&slot.ID, &slot.Start, &slot.End, &slot.Available, &reservationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: get slot: %w", err)
	}
	if reservationID != nil {
		slot.ReservationID = *reservationID
	}
	return &slot, nil
}

// ListAvailable returns free slots with start in [from, to) ordered by start.
func (s *PostgresStore) ListAvailable(ctx context.Context, from, to time.Time) ([]Slot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, start_time, end_time, available, reservation_id
		FROM slots
		WHERE available AND start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list available slots: %w", err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var slot Slot
		var reservationID *string
		if err := rows.Scan(&slot.ID, &slot.Start, &slot.End, &slot.Available, &reservationID); err != nil {
			return nil, fmt.Errorf("scheduling: scan slot: %w", err)
		}
		if reservationID != nil {
			slot.ReservationID = *reservationID
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// Claim reserves a free slot in a single transaction.
func (s *PostgresStore) Claim(ctx context.Context, slotID string, draft Draft) (*Reservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

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

	tag, err := tx.Exec(ctx, `
		UPDATE slots SET available = FALSE, reservation_id = $2
		WHERE id = $1 AND available
	`, slotID, res.ID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: claim slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing slot from a lost race.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("scheduling: check slot existence: %w", err)
		}
		if !exists {
			return nil, ErrSlotNotFound
		}
		return nil, ErrConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservations (id, slot_id, patient_name, contact, is_private, insurance_name, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`, res.ID, res.SlotID, res.PatientName, res.Contact, res.IsPrivate, res.InsuranceName, res.Reason, string(res.Status), res.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scheduling: insert reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: commit claim: %w", err)
	}
	return res, nil
}

// Release frees the slot and marks its reservation cancelled.
func (s *PostgresStore) Release(ctx context.Context, slotID string) (*Reservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: begin release: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var reservationID *string
	err = tx.QueryRow(ctx, `
		SELECT reservation_id FROM slots WHERE id = $1 FOR UPDATE
	`, slotID).Scan(&reservationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: lock slot for release: %w", err)
	}
	if reservationID == nil {
		return nil, ErrSlotNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots SET available = TRUE, reservation_id = NULL WHERE id = $1
	`, slotID); err != nil {
		return nil, fmt.Errorf("scheduling: free slot: %w", err)
	}

	res := &Reservation{}
	var insurance *string
	err = tx.QueryRow(ctx, `
		UPDATE reservations SET status = 'cancelled'
		WHERE id = $1
		RETURNING id, slot_id, patient_name, contact, is_private, insurance_name, reason, status, created_at
	`, *reservationID).Scan(&res.ID, &res.SlotID, &res.PatientName, &res.Contact, &res.IsPrivate, &insurance, &res.Reason, &res.Status, &res.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scheduling: cancel reservation: %w", err)
	}
	if insurance != nil {
		res.InsuranceName = *insurance
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: commit release: %w", err)
	}
	return res, nil
}
