package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/averon/venue-reservation/internal/repository"
)

// Runner scopes repository calls to a single transaction.  It is the
// write-side counterpart of the repositories' autocommit default.
type Runner struct {
	db *sql.DB
}

// NewRunner wraps the shared connection pool.
func NewRunner(db *sql.DB) *Runner { return &Runner{db: db} }

// InTx begins a transaction, hands it to fn and commits when fn returns
// nil, rolling back otherwise.
func (r *Runner) InTx(ctx context.Context, fn func(repository.DBTX) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
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

// Autocommit exposes the pool itself for single-statement work.
func (r *Runner) Autocommit() repository.DBTX { return r.db }
