package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/averon/venue-reservation/internal/model"
)

// ReservationRepo provides CRUD and guarded state transitions for the
// reservations table.  The kind-specific booking payload, the payment
// details and the customer snapshot are persisted as JSON columns but are
// validated and typed at the boundary, so callers always work with the
// model union rather than raw documents.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span several repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

type bookingPayload struct {
	Venue *model.VenueDetails `json:"venue,omitempty"`
	Event *model.EventDetails `json:"event,omitempty"`
	Shop  *model.ShopDetails  `json:"shop,omitempty"`
}

// Create inserts a new reservation in PENDING/INITIATED state within the
// provided transaction and populates the generated ID.  The caller must
// have validated the payload union beforehand.
func (r *ReservationRepo) Create(ctx context.Context, q DBTX, res *model.Reservation) error {
	booking, err := json.Marshal(bookingPayload{Venue: res.Venue, Event: res.Event, Shop: res.Shop})
	if err != nil {
		return fmt.Errorf("marshal booking payload: %w", err)
	}
	payment, err := json.Marshal(res.Payment)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}
	customer, err := json.Marshal(res.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer snapshot: %w", err)
	}
	const ins = `INSERT INTO reservations
	             (owner_id, kind, booking_data, amount_cents, currency, status, payment_status, payment_details, customer_details)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := q.ExecContext(ctx, ins,
		res.OwnerID, res.Kind, booking, res.AmountCents, res.Currency,
		model.ReservationPending, model.PaymentInitiated, payment, customer,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.ReservationStatus = model.ReservationPending
	res.PaymentStatus = model.PaymentInitiated
	res.CreatedAt = time.Now().UTC()
	return nil
}

// Get loads a single reservation by id.  It returns ErrNotFound when no
// row exists.
func (r *ReservationRepo) Get(ctx context.Context, q DBTX, id uint64) (*model.Reservation, error) {
	const sel = `SELECT id, owner_id, kind, booking_data, amount_cents, currency, status, payment_status,
	                    payment_details, customer_details, created_at, confirmed_at, cancelled_at
	             FROM reservations WHERE id = ?`
	return scanReservation(q.QueryRowContext(ctx, sel, id))
}

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var (
		res                        model.Reservation
		booking, payment, customer []byte
		confirmedAt, cancelledAt   sql.NullTime
	)
	err := row.Scan(
		&res.ID, &res.OwnerID, &res.Kind, &booking, &res.AmountCents, &res.Currency,
		&res.ReservationStatus, &res.PaymentStatus, &payment, &customer,
		&res.CreatedAt, &confirmedAt, &cancelledAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var bp bookingPayload
	if err := json.Unmarshal(booking, &bp); err != nil {
		return nil, fmt.Errorf("unmarshal booking payload: %w", err)
	}
	res.Venue, res.Event, res.Shop = bp.Venue, bp.Event, bp.Shop
	if err := json.Unmarshal(payment, &res.Payment); err != nil {
		return nil, fmt.Errorf("unmarshal payment details: %w", err)
	}
	if err := json.Unmarshal(customer, &res.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer snapshot: %w", err)
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		res.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		res.CancelledAt = &t
	}
	return &res, nil
}

// Confirm flips a PENDING reservation to CONFIRMED/PAID, stamps the
// confirmation time and writes the final payment details.  The WHERE
// guard makes the transition forward-only: a reservation already in a
// terminal state is left untouched and nil is returned, so duplicate
// completion signals and fallback re-runs are harmless.
func (r *ReservationRepo) Confirm(ctx context.Context, q DBTX, id uint64, p model.PaymentDetails, at time.Time) error {
	payment, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}
	const upd = `UPDATE reservations
	             SET status = ?, payment_status = ?, payment_details = ?, confirmed_at = ?
	             WHERE id = ? AND status = ?`
	_, err = q.ExecContext(ctx, upd,
		model.ReservationConfirmed, model.PaymentPaid, payment, at.UTC().Format("2006-01-02 15:04:05"),
		id, model.ReservationPending,
	)
	return err
}

// Fail flips a PENDING reservation to FAILED/FAILED with the given
// payment details.  Like Confirm it is guarded and idempotent.
func (r *ReservationRepo) Fail(ctx context.Context, q DBTX, id uint64, p model.PaymentDetails) error {
	payment, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}
	const upd = `UPDATE reservations
	             SET status = ?, payment_status = ?, payment_details = ?
	             WHERE id = ? AND status = ?`
	_, err = q.ExecContext(ctx, upd,
		model.ReservationFailed, model.PaymentFailed, payment,
		id, model.ReservationPending,
	)
	return err
}

// Cancel transitions a reservation to CANCELLED, optionally marking the
// payment refunded when the held funds are returned.  PENDING and
// CONFIRMED reservations may be cancelled (the latter only with a
// refund); anything else returns ErrConflict.
func (r *ReservationRepo) Cancel(ctx context.Context, q DBTX, id, ownerID uint64, refunded bool) error {
	payStatus := model.PaymentFailed
	if refunded {
		payStatus = model.PaymentRefunded
	}
	const upd = `UPDATE reservations
	             SET status = ?, payment_status = ?, cancelled_at = UTC_TIMESTAMP()
	             WHERE id = ? AND owner_id = ? AND status IN (?, ?)`
	result, err := q.ExecContext(ctx, upd, model.ReservationCancelled, payStatus, id, ownerID,
		model.ReservationPending, model.ReservationConfirmed)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ListByOwner returns the owner's reservations, newest first.
func (r *ReservationRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Reservation, error) {
	const sel = `SELECT id FROM reservations WHERE owner_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, sel, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*model.Reservation, 0, len(ids))
	for _, id := range ids {
		res, err := r.Get(ctx, r.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
