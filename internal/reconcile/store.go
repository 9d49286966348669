package reconcile

import (
	"context"
	"time"

	"github.com/averon/venue-reservation/internal/model"
)

// Store is the persistence surface the engine mutates.  Every method must
// be forward-only and idempotent: re-applying an effect that already
// landed is a no-op.  The production implementation is the SQL store; the
// tests drive the engine with an in-memory fake.
type Store interface {
	// Reservation re-reads the aggregate so state guards run against
	// current data, not the caller's stale view.
	Reservation(ctx context.Context, id uint64) (*model.Reservation, error)

	// ConfirmReservation advances PENDING -> CONFIRMED/PAID with the
	// final payment details and confirmation timestamp.
	ConfirmReservation(ctx context.Context, id uint64, p model.PaymentDetails, at time.Time) error

	// FailReservation advances PENDING -> FAILED/FAILED.
	FailReservation(ctx context.Context, id uint64, p model.PaymentDetails) error

	// CommitResources moves the reservation's locked resources to their
	// terminal committed state.
	CommitResources(ctx context.Context, res *model.Reservation) error

	// ReleaseResources returns the reservation's locked resources to the
	// available pool.
	ReleaseResources(ctx context.Context, res *model.Reservation) error

	// MarkLedgerCaptured finalizes the ledger entry for a captured payment.
	MarkLedgerCaptured(ctx context.Context, orderID, paymentID, name string, at time.Time) error

	// MarkLedgerFailed finalizes the ledger entry for a failed payment.
	MarkLedgerFailed(ctx context.Context, orderID, name string) error

	// DisplayName resolves the human-readable name recorded on the
	// ledger.  Callers treat failures as "unknown", never as fatal.
	DisplayName(ctx context.Context, res *model.Reservation) (string, error)
}

// TxRunner scopes a Store to a database transaction for the primary
// all-or-nothing path, and hands out an autocommit Store for the
// per-effect fallback path.
type TxRunner interface {
	// InTx runs fn against a transactional Store and commits when fn
	// returns nil, rolling back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error

	// Plain returns a Store whose operations each commit independently.
	Plain() Store
}
