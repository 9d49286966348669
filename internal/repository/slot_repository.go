package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/averon/venue-reservation/internal/model"
)

// SlotRepo manages the slots table for venue reservations.  Slots
// pre-exist per facility and day; a pending reservation claims them with a
// guarded batch UPDATE and either books them permanently or returns them
// to AVAILABLE.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// AreAllAvailable reports whether every named slot is currently AVAILABLE.
// It runs outside any write transaction and is best-effort only: two
// requests can both pass this check and then race at the guarded lock
// write, where exactly one wins.
func (r *SlotRepo) AreAllAvailable(ctx context.Context, slotIDs []uint64) (bool, error) {
	if len(slotIDs) == 0 {
		return false, nil
	}
	query := `SELECT COUNT(*) FROM slots WHERE status = ? AND id IN (` + placeholders(len(slotIDs)) + `)`
	args := make([]any, 0, len(slotIDs)+1)
	args = append(args, model.SlotAvailable)
	for _, id := range slotIDs {
		args = append(args, id)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == len(slotIDs), nil
}

// Lock claims every named slot for the reservation in one guarded batch
// UPDATE.  The availability condition is re-checked at the write; if any
// slot was taken in the meantime the affected-row count falls short and
// ErrResourceUnavailable is returned, so the caller's transaction rolls
// the whole batch back.
func (r *SlotRepo) Lock(ctx context.Context, q DBTX, slotIDs []uint64, reservationID uint64) error {
	if len(slotIDs) == 0 {
		return ErrResourceUnavailable
	}
	query := `UPDATE slots SET status = ?, reservation_id = ?
	          WHERE status = ? AND reservation_id IS NULL AND id IN (` + placeholders(len(slotIDs)) + `)`
	args := make([]any, 0, len(slotIDs)+3)
	args = append(args, model.SlotLocked, reservationID, model.SlotAvailable)
	for _, id := range slotIDs {
		args = append(args, id)
	}
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(slotIDs)) {
		return ErrResourceUnavailable
	}
	return nil
}

// Book flips every slot held by the reservation to its terminal BOOKED
// state.  Re-running after a partial earlier attempt only touches the
// rows still LOCKED.
func (r *SlotRepo) Book(ctx context.Context, q DBTX, reservationID uint64) error {
	const upd = `UPDATE slots SET status = ? WHERE reservation_id = ? AND status = ?`
	_, err := q.ExecContext(ctx, upd, model.SlotBooked, reservationID, model.SlotLocked)
	return err
}

// Release returns every slot held by the reservation to AVAILABLE and
// clears the back-reference.  Both LOCKED (failed payment) and BOOKED
// (cancelled confirmed reservation) rows are freed; already-released
// rows no longer match the guard, so double release is a no-op.
func (r *SlotRepo) Release(ctx context.Context, q DBTX, reservationID uint64) error {
	const upd = `UPDATE slots SET status = ?, reservation_id = NULL
	             WHERE reservation_id = ? AND status IN (?, ?)`
	_, err := q.ExecContext(ctx, upd, model.SlotAvailable, reservationID, model.SlotLocked, model.SlotBooked)
	return err
}

// PriceSum returns the summed price of the named slots.  Booking uses it
// once at creation time to fix the reservation amount.
func (r *SlotRepo) PriceSum(ctx context.Context, slotIDs []uint64) (uint32, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}
	query := `SELECT COALESCE(SUM(price_cents), 0) FROM slots WHERE id IN (` + placeholders(len(slotIDs)) + `)`
	args := make([]any, 0, len(slotIDs))
	for _, id := range slotIDs {
		args = append(args, id)
	}
	var total uint32
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListByReservation returns the slots currently linked to a reservation.
func (r *SlotRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Slot, error) {
	const sel = `SELECT id, venue_id, facility_id, slot_date, start_time, end_time, status, reservation_id, price_cents, created_at
	             FROM slots WHERE reservation_id = ? ORDER BY slot_date, start_time`
	rows, err := r.db.QueryContext(ctx, sel, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []model.Slot
	for rows.Next() {
		var (
			s     model.Slot
			resID sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.VenueID, &s.FacilityID, &s.Date, &s.StartTime, &s.EndTime,
			&s.Status, &resID, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		if resID.Valid {
			id := uint64(resID.Int64)
			s.ReservationID = &id
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// ListAvailable returns a facility's AVAILABLE slots on a given date,
// ordered by start time.
func (r *SlotRepo) ListAvailable(ctx context.Context, facilityID uint64, date string) ([]model.Slot, error) {
	const sel = `SELECT id, venue_id, facility_id, slot_date, start_time, end_time, status, reservation_id, price_cents, created_at
	             FROM slots WHERE facility_id = ? AND slot_date = ? AND status = 'AVAILABLE' ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, sel, facilityID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []model.Slot
	for rows.Next() {
		var (
			s     model.Slot
			resID sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.VenueID, &s.FacilityID, &s.Date, &s.StartTime, &s.EndTime,
			&s.Status, &resID, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		if resID.Valid {
			id := uint64(resID.Int64)
			s.ReservationID = &id
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
