package queue_publisher

import (
	"context"
	"time"

	"github.com/averon/venue-reservation/internal/model"
	q "github.com/averon/venue-reservation/internal/queue"
	"github.com/averon/venue-reservation/internal/reconcile"
)

// Notifier adapts the queue publishers to the reconciliation engine.
type Notifier struct{}

// NewNotifier returns the broker-backed notifier.
func NewNotifier() *Notifier { return &Notifier{} }

// ReservationConfirmed publishes the confirmed event for a reservation
// that just reconciled successfully.
func (n *Notifier) ReservationConfirmed(ctx context.Context, res *model.Reservation) error {
	confirmedAt := time.Now().UTC()
	if res.ConfirmedAt != nil {
		confirmedAt = *res.ConfirmedAt
	}
	return PublishReservationConfirmed(ctx, q.ReservationConfirmedEvent{
		ReservationID: res.ID,
		UserID:        res.OwnerID,
		Kind:          string(res.Kind),
		OrderID:       res.Payment.OrderID,
		Method:        string(res.Payment.Method),
		AmountCents:   res.AmountCents,
		Currency:      res.Currency,
		ConfirmedAt:   confirmedAt.Format(time.RFC3339),
	})
}

// ReconciliationStalled publishes the operator alert for a reconciliation
// that exhausted both the primary and fallback paths.
func (n *Notifier) ReconciliationStalled(ctx context.Context, sig reconcile.Signal, flags reconcile.EffectFlags, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return PublishReconciliationAlert(ctx, q.ReconciliationAlertEvent{
		ReservationID:    sig.ReservationID,
		OrderID:          sig.OrderID,
		PaymentID:        sig.PaymentID,
		Method:           string(sig.Method),
		Verified:         sig.Verified,
		ReservationFixed: flags.Reservation,
		ResourcesFixed:   flags.Resources,
		LedgerFixed:      flags.Ledger,
		Error:            msg,
		StalledAt:        time.Now().UTC().Format(time.RFC3339),
	})
}
