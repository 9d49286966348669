// Package store adapts the SQL repositories to the reconciliation
// engine's Store and TxRunner surfaces.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/averon/venue-reservation/internal/lock"
	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/reconcile"
	"github.com/averon/venue-reservation/internal/repository"
)

// SQLStore routes every engine effect through the repositories, bound
// either to one *sql.Tx (primary path) or to the autocommit *sql.DB
// (fallback path).
type SQLStore struct {
	db           *sql.DB
	q            repository.DBTX
	reservations *repository.ReservationRepo
	locks        *lock.Manager
	ledger       *repository.LedgerRepo
	lookups      *repository.LookupRepo
}

// NewSQLStore builds a store in autocommit mode.
func NewSQLStore(
	db *sql.DB,
	reservations *repository.ReservationRepo,
	locks *lock.Manager,
	ledger *repository.LedgerRepo,
	lookups *repository.LookupRepo,
) *SQLStore {
	return &SQLStore{
		db:           db,
		q:            db,
		reservations: reservations,
		locks:        locks,
		ledger:       ledger,
		lookups:      lookups,
	}
}

func (s *SQLStore) bound(q repository.DBTX) *SQLStore {
	cp := *s
	cp.q = q
	return &cp
}

// InTx runs fn against a single transaction, committing on nil and
// rolling back otherwise.
func (s *SQLStore) InTx(ctx context.Context, fn func(reconcile.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(s.bound(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Plain returns a store whose operations each commit independently.
func (s *SQLStore) Plain() reconcile.Store { return s.bound(s.db) }

func (s *SQLStore) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservations.Get(ctx, s.q, id)
}

func (s *SQLStore) ConfirmReservation(ctx context.Context, id uint64, p model.PaymentDetails, at time.Time) error {
	return s.reservations.Confirm(ctx, s.q, id, p, at)
}

func (s *SQLStore) FailReservation(ctx context.Context, id uint64, p model.PaymentDetails) error {
	return s.reservations.Fail(ctx, s.q, id, p)
}

func (s *SQLStore) CommitResources(ctx context.Context, res *model.Reservation) error {
	return s.locks.Commit(ctx, s.q, res)
}

func (s *SQLStore) ReleaseResources(ctx context.Context, res *model.Reservation) error {
	return s.locks.Release(ctx, s.q, res)
}

func (s *SQLStore) MarkLedgerCaptured(ctx context.Context, orderID, paymentID, name string, at time.Time) error {
	return s.ledger.MarkCaptured(ctx, s.q, orderID, paymentID, name, at)
}

func (s *SQLStore) MarkLedgerFailed(ctx context.Context, orderID, name string) error {
	return s.ledger.MarkFailed(ctx, s.q, orderID, name)
}

func (s *SQLStore) DisplayName(ctx context.Context, res *model.Reservation) (string, error) {
	return s.lookups.DisplayName(ctx, s.q, res)
}
