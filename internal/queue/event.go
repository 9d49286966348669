// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedEvent is published when reconciliation confirms a
// reservation. It contains enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	Kind          string `json:"kind"`
	OrderID       string `json:"order_id"`
	Method        string `json:"method"`
	AmountCents   uint32 `json:"amount_cents"`
	Currency      string `json:"currency"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// ReconciliationAlertEvent is published when both the primary transaction
// and the fallback path are exhausted. It carries the per-effect flags so
// an operator can see exactly which effects still need manual settlement.
type ReconciliationAlertEvent struct {
	ReservationID    uint64 `json:"reservation_id"`
	OrderID          string `json:"order_id"`
	PaymentID        string `json:"payment_id,omitempty"`
	Method           string `json:"method"`
	Verified         bool   `json:"verified"`
	ReservationFixed bool   `json:"reservation_settled"`
	ResourcesFixed   bool   `json:"resources_settled"`
	LedgerFixed      bool   `json:"ledger_settled"`
	Error            string `json:"error"`
	StalledAt        string `json:"stalled_at"`
}
