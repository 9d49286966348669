package repository

import (
	"context"
	"database/sql"

	"github.com/averon/venue-reservation/internal/model"
)

// EventRepo manages event capacity counters and the attendee set.  An
// event's "resource" is not a set of rows but a booked-seats counter plus
// set membership, so commit and release are atomic conditional arithmetic
// rather than status flips.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Get loads one event.
func (r *EventRepo) Get(ctx context.Context, q DBTX, id uint64) (*model.Event, error) {
	const sel = `SELECT id, title, capacity, booked_seats, seat_price_cents, starts_at FROM events WHERE id = ?`
	var ev model.Event
	err := q.QueryRowContext(ctx, sel, id).Scan(&ev.ID, &ev.Title, &ev.Capacity, &ev.BookedSeats, &ev.SeatPriceCents, &ev.StartsAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// HasCapacity reports whether the event can still take the requested
// seats.  Best-effort pre-check only; the commit re-checks under a guard.
func (r *EventRepo) HasCapacity(ctx context.Context, eventID uint64, seats uint32) (bool, error) {
	const sel = `SELECT booked_seats + ? <= capacity FROM events WHERE id = ?`
	var ok bool
	err := r.db.QueryRowContext(ctx, sel, seats, eventID).Scan(&ok)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// CommitSeats registers the user for the event and increments the booked
// seat counter, guarded by capacity.  The attendee insert is the
// idempotency anchor: when the user is already registered the insert
// matches nothing and the counter is left alone, so re-running a
// partially applied commit never double-counts seats.  A capacity
// overflow returns ErrCapacityExceeded with the counter unchanged.
func (r *EventRepo) CommitSeats(ctx context.Context, q DBTX, eventID, reservationID, userID uint64, seats uint32) error {
	const ins = `INSERT INTO event_attendees (event_id, user_id, reservation_id, seats)
	             SELECT ?, ?, ?, ? FROM events
	             WHERE id = ? AND booked_seats + ? <= capacity
	             ON DUPLICATE KEY UPDATE event_id = event_attendees.event_id`
	result, err := q.ExecContext(ctx, ins, eventID, userID, reservationID, seats, eventID, seats)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	// n == 1 only for a fresh insert; a duplicate-key no-op reports 0 with
	// the clause above, meaning the seats were already counted.
	if n != 1 {
		if registered, rerr := r.isRegistered(ctx, q, eventID, userID); rerr == nil && registered {
			return nil
		}
		return ErrCapacityExceeded
	}
	const upd = `UPDATE events SET booked_seats = booked_seats + ?
	             WHERE id = ? AND booked_seats + ? <= capacity`
	counted, err := q.ExecContext(ctx, upd, seats, eventID, seats)
	if err != nil {
		return err
	}
	cn, err := counted.RowsAffected()
	if err != nil {
		return err
	}
	if cn == 0 {
		// Guard lost the race between insert and increment; undo the
		// membership so the two facts never disagree.
		_, _ = q.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = ? AND user_id = ?`, eventID, userID)
		return ErrCapacityExceeded
	}
	return nil
}

// ReleaseSeats removes the user from the attendee set and decrements the
// booked counter, floored at zero.  The delete is the guard: when the
// user is not registered nothing is removed and the counter is left
// alone, so double release never drives the counter negative.
func (r *EventRepo) ReleaseSeats(ctx context.Context, q DBTX, eventID, userID uint64, seats uint32) error {
	const del = `DELETE FROM event_attendees WHERE event_id = ? AND user_id = ?`
	result, err := q.ExecContext(ctx, del, eventID, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	const upd = `UPDATE events SET booked_seats = GREATEST(CAST(booked_seats AS SIGNED) - ?, 0) WHERE id = ?`
	_, err = q.ExecContext(ctx, upd, seats, eventID)
	return err
}

func (r *EventRepo) isRegistered(ctx context.Context, q DBTX, eventID, userID uint64) (bool, error) {
	const sel = `SELECT COUNT(*) FROM event_attendees WHERE event_id = ? AND user_id = ?`
	var n int
	if err := q.QueryRowContext(ctx, sel, eventID, userID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUpcoming returns events that have not started yet, soonest first.
func (r *EventRepo) ListUpcoming(ctx context.Context) ([]model.Event, error) {
	const sel = `SELECT id, title, capacity, booked_seats, seat_price_cents, starts_at
	             FROM events WHERE starts_at > UTC_TIMESTAMP() ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, sel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Capacity, &e.BookedSeats, &e.SeatPriceCents, &e.StartsAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
