// Package repository implements data access over MySQL.  All multi-row
// mutations that must be atomic run against a caller-supplied transaction;
// single reads may run against the pooled handle directly.  Conditional
// WHERE-guarded updates (checked through rows-affected counts) are the
// only concurrency control; correctness is delegated to the storage
// engine, there is no in-process lock manager.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, letting the same
// repository methods serve the transactional primary path and the
// independent, non-transactional fallback path.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a guarded update matched no rows because
// the row is no longer in the expected state, such as confirming a
// reservation that already reached a terminal status.
var ErrConflict = errors.New("conflict")

// ErrResourceUnavailable is returned when a batch lock could not claim
// every requested resource.  The enclosing transaction must roll back so
// the batch stays all-or-nothing.
var ErrResourceUnavailable = errors.New("resource unavailable")

// ErrCapacityExceeded is returned when an event seat commit would push
// booked seats past the event capacity.
var ErrCapacityExceeded = errors.New("capacity exceeded")
