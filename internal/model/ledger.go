package model

import "time"

// LedgerEntry is the append/update audit record of one payment attempt.
// Entries are keyed uniquely by the gateway order id, created when the
// payment intent is issued and updated in place when reconciliation
// concludes.  For wallet payments the mere existence of an entry for an
// order id is the proof that the debit succeeded.
type LedgerEntry struct {
	ID            string // uuid
	OrderID       string // unique gateway (or synthesized wallet) order id
	ReservationID uint64
	AmountCents   uint32
	Currency      string
	Method        PaymentMethod
	PaymentID     string
	Captured      bool
	CapturedAt    *time.Time
	DisplayName   string // venue/event/product name, resolved lazily
	Refunded      bool
	CreatedAt     time.Time
}
