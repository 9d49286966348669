package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/google/uuid"
)

// LedgerRepo manages the transaction ledger: one row per payment attempt,
// keyed uniquely by gateway order id.  Rows are created when an intent is
// issued and updated in place when reconciliation concludes; they are
// never re-created.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo returns a LedgerRepo bound to the given database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// Create inserts a fresh ledger entry for a just-issued payment intent.
// The generated uuid is populated on the entry.
func (r *LedgerRepo) Create(ctx context.Context, e *model.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	const ins = `INSERT INTO ledger_entries
	             (id, order_id, reservation_id, amount_cents, currency, method, captured, refunded, display_name)
	             VALUES (?, ?, ?, ?, ?, ?, 0, 0, '')`
	_, err := r.db.ExecContext(ctx, ins, e.ID, e.OrderID, e.ReservationID, e.AmountCents, e.Currency, e.Method)
	if err != nil {
		return err
	}
	e.CreatedAt = time.Now().UTC()
	return nil
}

// ExistsByOrderID reports whether a ledger entry exists for the order id.
// For wallet payments this existence check is the completion proof: the
// debit happened synchronously at intent time, so a row means paid.
func (r *LedgerRepo) ExistsByOrderID(ctx context.Context, orderID string) (bool, error) {
	const sel = `SELECT COUNT(*) FROM ledger_entries WHERE order_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, sel, orderID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByOrderID loads the entry for a gateway order id.
func (r *LedgerRepo) GetByOrderID(ctx context.Context, orderID string) (*model.LedgerEntry, error) {
	const sel = `SELECT id, order_id, reservation_id, amount_cents, currency, method, payment_id,
	                    captured, captured_at, display_name, refunded, created_at
	             FROM ledger_entries WHERE order_id = ?`
	var (
		e          model.LedgerEntry
		paymentID  sql.NullString
		capturedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, sel, orderID).Scan(
		&e.ID, &e.OrderID, &e.ReservationID, &e.AmountCents, &e.Currency, &e.Method,
		&paymentID, &e.Captured, &capturedAt, &e.DisplayName, &e.Refunded, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		e.PaymentID = paymentID.String
	}
	if capturedAt.Valid {
		t := capturedAt.Time.UTC()
		e.CapturedAt = &t
	}
	return &e, nil
}

// MarkCaptured records a successful capture on the entry.  The update is
// a plain overwrite of the same terminal values, safe to re-run.
func (r *LedgerRepo) MarkCaptured(ctx context.Context, q DBTX, orderID, paymentID, name string, at time.Time) error {
	const upd = `UPDATE ledger_entries
	             SET captured = 1, captured_at = ?, payment_id = ?, display_name = ?
	             WHERE order_id = ?`
	_, err := q.ExecContext(ctx, upd, at.UTC().Format("2006-01-02 15:04:05"), paymentID, name, orderID)
	return err
}

// MarkFailed records a failed completion on the entry.
func (r *LedgerRepo) MarkFailed(ctx context.Context, q DBTX, orderID, name string) error {
	const upd = `UPDATE ledger_entries
	             SET captured = 0, refunded = 0, display_name = ?
	             WHERE order_id = ?`
	_, err := q.ExecContext(ctx, upd, name, orderID)
	return err
}

// MarkRefunded flags the entry after a wallet credit returned the funds.
func (r *LedgerRepo) MarkRefunded(ctx context.Context, q DBTX, orderID string) error {
	const upd = `UPDATE ledger_entries SET refunded = 1 WHERE order_id = ?`
	_, err := q.ExecContext(ctx, upd, orderID)
	return err
}
