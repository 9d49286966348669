package model

import (
	"errors"
	"time"
)

// Kind discriminates the payload a reservation carries.  A venue
// reservation claims discrete time slots, an event reservation claims a
// number of seats against a capacity counter, and a shop order claims
// product stock.
type Kind string

const (
	KindVenue     Kind = "VENUE"
	KindEvent     Kind = "EVENT"
	KindShopOrder Kind = "SHOP_ORDER"
)

// ReservationStatus is the lifecycle state of a reservation.  Transitions
// only advance forward: PENDING is the single non-terminal state and every
// other value is terminal.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationFailed    ReservationStatus = "FAILED"
	ReservationRefunded  ReservationStatus = "REFUNDED"
)

// Terminal reports whether no further status transition is allowed.
func (s ReservationStatus) Terminal() bool { return s != ReservationPending }

// PaymentStatus tracks the payment leg independently from the reservation
// leg.  INITIATED is the only non-terminal value.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// PaymentMethod identifies how a reservation is paid.
type PaymentMethod string

const (
	MethodWallet  PaymentMethod = "WALLET"
	MethodGateway PaymentMethod = "GATEWAY"
)

// VenueDetails is the payload of a KindVenue reservation: the facility
// being booked and the slot rows locked for it.
type VenueDetails struct {
	VenueID    uint64   `json:"venue_id"`
	FacilityID uint64   `json:"facility_id"`
	SlotIDs    []uint64 `json:"slot_ids"`
}

// EventDetails is the payload of a KindEvent reservation.
type EventDetails struct {
	EventID uint64 `json:"event_id"`
	Seats   uint32 `json:"seats"`
}

// OrderLine is one product/quantity pair in a shop order.  PriceCents is
// the unit price snapshotted at creation time.
type OrderLine struct {
	ProductID  uint64 `json:"product_id"`
	Quantity   uint32 `json:"quantity"`
	PriceCents uint32 `json:"price_cents"`
}

// ShopDetails is the payload of a KindShopOrder reservation.
type ShopDetails struct {
	Lines []OrderLine `json:"lines"`
}

// PaymentDetails records the payment linkage of a reservation.  It is the
// only mutable part of the aggregate after creation: reconciliation fills
// in the gateway ids and the captured flag.
type PaymentDetails struct {
	Method     PaymentMethod `json:"method"`
	OrderID    string        `json:"order_id"`
	PaymentID  string        `json:"payment_id,omitempty"`
	Captured   bool          `json:"captured"`
	CapturedAt *time.Time    `json:"captured_at,omitempty"`
	Refunded   bool          `json:"refunded"`
}

// CustomerSnapshot is a denormalized copy of the requester's identity
// captured at reservation creation.  It is never re-read from the users
// table afterwards.
type CustomerSnapshot struct {
	UserID uint64 `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}

// Reservation is the unified booking / shop-order aggregate.  Exactly one
// of Venue, Event or Shop is non-nil, matching Kind.  AmountCents is fixed
// at creation and must equal the sum of the locked components' prices.
type Reservation struct {
	ID                uint64
	OwnerID           uint64
	Kind              Kind
	Venue             *VenueDetails
	Event             *EventDetails
	Shop              *ShopDetails
	AmountCents       uint32
	Currency          string
	ReservationStatus ReservationStatus
	PaymentStatus     PaymentStatus
	Payment           PaymentDetails
	Customer          CustomerSnapshot
	CreatedAt         time.Time
	ConfirmedAt       *time.Time
	CancelledAt       *time.Time
}

// ErrInvalidPayload is returned by ValidatePayload when the kind tag and
// the attached payload disagree.
var ErrInvalidPayload = errors.New("reservation payload does not match kind")

// ValidatePayload checks that the reservation carries exactly the payload
// its kind requires.  It is called once at the boundary so the rest of the
// core can rely on a well-formed union.
func (r *Reservation) ValidatePayload() error {
	switch r.Kind {
	case KindVenue:
		if r.Venue == nil || r.Event != nil || r.Shop != nil || len(r.Venue.SlotIDs) == 0 {
			return ErrInvalidPayload
		}
	case KindEvent:
		if r.Event == nil || r.Venue != nil || r.Shop != nil || r.Event.Seats == 0 {
			return ErrInvalidPayload
		}
	case KindShopOrder:
		if r.Shop == nil || r.Venue != nil || r.Event != nil || len(r.Shop.Lines) == 0 {
			return ErrInvalidPayload
		}
	default:
		return ErrInvalidPayload
	}
	return nil
}

// Settled reports whether the reservation has already been reconciled to a
// paid, confirmed state.  Reconciliation uses this as its idempotency
// guard against duplicate completion signals.
func (r *Reservation) Settled() bool {
	return r.PaymentStatus == PaymentPaid || r.ReservationStatus == ReservationConfirmed
}
