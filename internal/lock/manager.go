// Package lock coordinates inventory holds across the three resource
// shapes a reservation can claim: discrete venue slots, an event's
// capacity counter, and product stock.  The manager dispatches on the
// reservation kind; the per-kind guarantees (guarded batch updates,
// capacity arithmetic, idempotent flips) live in the repositories it
// drives.
package lock

import (
	"context"
	"fmt"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/repository"
)

// SlotStore is the slice of the slot repository the manager needs.
type SlotStore interface {
	AreAllAvailable(ctx context.Context, slotIDs []uint64) (bool, error)
	Lock(ctx context.Context, q repository.DBTX, slotIDs []uint64, reservationID uint64) error
	Book(ctx context.Context, q repository.DBTX, reservationID uint64) error
	Release(ctx context.Context, q repository.DBTX, reservationID uint64) error
}

// EventStore is the slice of the event repository the manager needs.
type EventStore interface {
	HasCapacity(ctx context.Context, eventID uint64, seats uint32) (bool, error)
	CommitSeats(ctx context.Context, q repository.DBTX, eventID, reservationID, userID uint64, seats uint32) error
	ReleaseSeats(ctx context.Context, q repository.DBTX, eventID, userID uint64, seats uint32) error
}

// InventoryStore is the slice of the inventory repository the manager needs.
type InventoryStore interface {
	InStock(ctx context.Context, lines []model.OrderLine) (bool, error)
	Hold(ctx context.Context, q repository.DBTX, reservationID uint64, lines []model.OrderLine) error
	Commit(ctx context.Context, q repository.DBTX, reservationID uint64) error
	Release(ctx context.Context, q repository.DBTX, reservationID uint64) error
}

// Manager is the resource lock manager.
type Manager struct {
	slots     SlotStore
	events    EventStore
	inventory InventoryStore
}

// NewManager wires the manager to its per-kind stores.
func NewManager(slots SlotStore, events EventStore, inventory InventoryStore) *Manager {
	return &Manager{slots: slots, events: events, inventory: inventory}
}

// AreAllAvailable pre-checks resource availability outside the write
// transaction.  Callers must treat the answer as best-effort: the
// guarded write re-checks and is the only authoritative gate.
func (m *Manager) AreAllAvailable(ctx context.Context, res *model.Reservation) (bool, error) {
	switch res.Kind {
	case model.KindVenue:
		return m.slots.AreAllAvailable(ctx, res.Venue.SlotIDs)
	case model.KindEvent:
		return m.events.HasCapacity(ctx, res.Event.EventID, res.Event.Seats)
	case model.KindShopOrder:
		return m.inventory.InStock(ctx, res.Shop.Lines)
	}
	return false, fmt.Errorf("lock: unknown reservation kind %q", res.Kind)
}

// LockAll claims every resource the reservation names, in the same
// transaction as the reservation insert.  Event capacity is not locked
// here: seats are only taken at commit, under the capacity guard, so a
// failed payment never holds event capacity hostage.
func (m *Manager) LockAll(ctx context.Context, q repository.DBTX, res *model.Reservation) error {
	switch res.Kind {
	case model.KindVenue:
		return m.slots.Lock(ctx, q, res.Venue.SlotIDs, res.ID)
	case model.KindEvent:
		return nil
	case model.KindShopOrder:
		return m.inventory.Hold(ctx, q, res.ID, res.Shop.Lines)
	}
	return fmt.Errorf("lock: unknown reservation kind %q", res.Kind)
}

// Commit flips the reservation's resources to their terminal committed
// state: slots to BOOKED, event seats counted against capacity with the
// user added to the attendee set, inventory holds to COMMITTED.  Each
// underlying operation is idempotent so reconciliation may re-run it.
func (m *Manager) Commit(ctx context.Context, q repository.DBTX, res *model.Reservation) error {
	switch res.Kind {
	case model.KindVenue:
		return m.slots.Book(ctx, q, res.ID)
	case model.KindEvent:
		return m.events.CommitSeats(ctx, q, res.Event.EventID, res.ID, res.OwnerID, res.Event.Seats)
	case model.KindShopOrder:
		return m.inventory.Commit(ctx, q, res.ID)
	}
	return fmt.Errorf("lock: unknown reservation kind %q", res.Kind)
}

// Release returns every locked resource to the available pool: slots back
// to AVAILABLE with the back-reference cleared, event seats decremented
// (floored at zero) with the attendee removed, inventory restocked.
// Idempotent against double release.
func (m *Manager) Release(ctx context.Context, q repository.DBTX, res *model.Reservation) error {
	switch res.Kind {
	case model.KindVenue:
		return m.slots.Release(ctx, q, res.ID)
	case model.KindEvent:
		return m.events.ReleaseSeats(ctx, q, res.Event.EventID, res.OwnerID, res.Event.Seats)
	case model.KindShopOrder:
		return m.inventory.Release(ctx, q, res.ID)
	}
	return fmt.Errorf("lock: unknown reservation kind %q", res.Kind)
}
