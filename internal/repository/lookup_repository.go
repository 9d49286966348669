package repository

import (
	"context"
	"database/sql"

	"github.com/averon/venue-reservation/internal/model"
)

// LookupRepo resolves display names and customer snapshots from the
// catalogue tables.  These are read-only conveniences: reconciliation
// must not be blocked by a failed lookup, so callers treat errors as
// "unknown" rather than aborting.
type LookupRepo struct {
	db *sql.DB
}

// NewLookupRepo returns a LookupRepo bound to the given database.
func NewLookupRepo(db *sql.DB) *LookupRepo { return &LookupRepo{db: db} }

// DisplayName resolves a human-readable name for the ledger: the venue
// name, the event title, or the first product name of a shop order.
func (r *LookupRepo) DisplayName(ctx context.Context, q DBTX, res *model.Reservation) (string, error) {
	var (
		query string
		id    uint64
	)
	switch res.Kind {
	case model.KindVenue:
		query, id = `SELECT name FROM venues WHERE id = ?`, res.Venue.VenueID
	case model.KindEvent:
		query, id = `SELECT title FROM events WHERE id = ?`, res.Event.EventID
	case model.KindShopOrder:
		query, id = `SELECT name FROM products WHERE id = ?`, res.Shop.Lines[0].ProductID
	default:
		return "", ErrNotFound
	}
	var name string
	err := q.QueryRowContext(ctx, query, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// CustomerSnapshot copies the requester's identity out of the users table
// for denormalized storage on a new reservation.
func (r *LookupRepo) CustomerSnapshot(ctx context.Context, userID uint64) (model.CustomerSnapshot, error) {
	const sel = `SELECT id, name, email, COALESCE(phone, '') FROM users WHERE id = ?`
	var c model.CustomerSnapshot
	err := r.db.QueryRowContext(ctx, sel, userID).Scan(&c.UserID, &c.Name, &c.Email, &c.Phone)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}
