package model

import "time"

// SlotStatus is the availability state of a bookable time slot.
// AVAILABLE -> LOCKED happens when a pending reservation claims the slot;
// LOCKED -> BOOKED on successful reconciliation and LOCKED -> AVAILABLE on
// failure or cancellation.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotLocked    SlotStatus = "LOCKED"
	SlotBooked    SlotStatus = "BOOKED"
)

// Slot is one bookable time window of a venue facility.  ReservationID is
// the nullable back-reference to the reservation currently holding the
// slot; it is cleared when the slot returns to AVAILABLE.
type Slot struct {
	ID            uint64
	VenueID       uint64
	FacilityID    uint64
	Date          string // YYYY-MM-DD
	StartTime     string // HH:MM
	EndTime       string // HH:MM
	Status        SlotStatus
	ReservationID *uint64
	PriceCents    uint32
	CreatedAt     time.Time
}

// Event carries a capacity counter rather than discrete resource rows.
// BookedSeats may never exceed Capacity; the attendee set records which
// users hold confirmed seats.
type Event struct {
	ID             uint64
	Title          string
	Capacity       uint32
	BookedSeats    uint32
	SeatPriceCents uint32
	StartsAt       time.Time
}

// Product is a shop item with an inventory count.  Stock is provisionally
// decremented when an order locks it and incremented back on release.
type Product struct {
	ID         uint64
	Name       string
	PriceCents uint32
	Stock      uint32
}

// HoldStatus tracks a shop order's provisional stock claim.
// HELD -> COMMITTED on successful reconciliation (quantity untouched, the
// decrement already happened at lock time) or HELD -> RELEASED with the
// stock incremented back.
type HoldStatus string

const (
	HoldHeld      HoldStatus = "HELD"
	HoldCommitted HoldStatus = "COMMITTED"
	HoldReleased  HoldStatus = "RELEASED"
)

// InventoryHold is one product-quantity claim owned by a shop-order
// reservation.  The guarded HELD->terminal flips make commit and release
// idempotent.
type InventoryHold struct {
	ID            uint64
	ReservationID uint64
	ProductID     uint64
	Quantity      uint32
	Status        HoldStatus
	CreatedAt     time.Time
}
