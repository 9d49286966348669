// Package reconcile converts a payment completion signal into final
// reservation, resource and ledger state.
//
// The primary path applies all three effects inside one database
// transaction, retried a bounded number of times.  Only when every
// primary attempt fails does the engine fall back to applying the three
// effects independently and idempotently, fanning them out concurrently
// and tracking which ones landed so retries never redo finished work.
// Exhausting the fallback is terminal: the engine logs, raises an
// operator alert and leaves the reservation in whatever partial state it
// reached.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/retry"
)

const (
	defaultAttempts = 3
	defaultDelay    = time.Second
)

// Signal is one payment completion notification for a reservation.
type Signal struct {
	ReservationID uint64
	Verified      bool
	AmountCents   uint32
	OrderID       string
	PaymentID     string
	Method        model.PaymentMethod
	Kind          model.Kind
}

// EffectFlags tracks which of the three fallback sub-effects have been
// applied.  A true flag is never cleared; retries skip flagged effects.
type EffectFlags struct {
	Reservation bool
	Resources   bool
	Ledger      bool
}

// Done reports whether every sub-effect has landed.
func (f EffectFlags) Done() bool { return f.Reservation && f.Resources && f.Ledger }

// Outcome reports how a reconciliation run concluded.  Err is non-nil
// only for a terminal fallback failure; it is surfaced for the operator,
// never re-thrown to the verification caller.
type Outcome struct {
	AlreadySettled bool
	UsedFallback   bool
	Flags          EffectFlags
	Err            error
}

// Notifier publishes reconciliation outcomes for downstream consumers.
// Both notifications are best-effort; the engine only logs their errors.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, res *model.Reservation) error
	ReconciliationStalled(ctx context.Context, sig Signal, flags EffectFlags, cause error) error
}

// Engine is the reconciliation state machine.
type Engine struct {
	runner   TxRunner
	notify   Notifier
	attempts int
	delay    time.Duration
	logger   *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryPolicy overrides the attempt count and fixed delay used by
// both retry tiers.
func WithRetryPolicy(attempts int, delay time.Duration) Option {
	return func(e *Engine) {
		e.attempts = attempts
		e.delay = delay
	}
}

// WithLogger overrides the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an engine over the given transaction runner and
// notifier.  The default policy is three attempts with a one second
// fixed delay at each tier.
func NewEngine(runner TxRunner, notify Notifier, opts ...Option) *Engine {
	e := &Engine{
		runner:   runner,
		notify:   notify,
		attempts: defaultAttempts,
		delay:    defaultDelay,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile processes one completion signal to conclusion.  Errors from
// the primary transaction are routed into the fallback path rather than
// returned; the verification endpoint has already answered the caller
// based on the signature/ledger check alone.
func (e *Engine) Reconcile(ctx context.Context, sig Signal) Outcome {
	var (
		out       Outcome
		confirmed *model.Reservation
	)
	primaryErr := retry.Do(ctx, e.attempts, e.delay, func() error {
		return e.runner.InTx(ctx, func(s Store) error {
			res, err := e.apply(ctx, s, sig, &out)
			if err != nil {
				return err
			}
			confirmed = res
			return nil
		})
	})
	if primaryErr == nil {
		out.Flags = EffectFlags{Reservation: true, Resources: true, Ledger: true}
		e.announce(ctx, sig, confirmed, out)
		return out
	}

	e.logger.Printf("reconcile: primary transaction exhausted for reservation %d order %s: %v",
		sig.ReservationID, sig.OrderID, primaryErr)
	out.UsedFallback = true

	fallbackErr := retry.Do(ctx, e.attempts, e.delay, func() error {
		res, err := e.settleIndependently(ctx, sig, &out.Flags)
		if err != nil {
			return err
		}
		confirmed = res
		return nil
	})
	if fallbackErr != nil {
		out.Err = fallbackErr
		e.logger.Printf("reconcile: fallback exhausted for reservation %d order %s (reservation=%t resources=%t ledger=%t): %v",
			sig.ReservationID, sig.OrderID, out.Flags.Reservation, out.Flags.Resources, out.Flags.Ledger, fallbackErr)
		if err := e.notify.ReconciliationStalled(ctx, sig, out.Flags, fallbackErr); err != nil {
			e.logger.Printf("reconcile: stalled alert publish failed: %v", err)
		}
		return out
	}
	e.announce(ctx, sig, confirmed, out)
	return out
}

// apply is the primary transaction body.  Re-running it after a partial
// attempt is safe: the settled check and the store's guarded updates
// absorb duplicate work.
func (e *Engine) apply(ctx context.Context, s Store, sig Signal, out *Outcome) (*model.Reservation, error) {
	res, err := s.Reservation(ctx, sig.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.Settled() {
		out.AlreadySettled = true
		return nil, nil
	}
	name := e.displayName(ctx, s, res)
	now := time.Now().UTC()
	details := e.paymentDetails(sig, now)

	if sig.Verified {
		if err := s.ConfirmReservation(ctx, res.ID, details, now); err != nil {
			return nil, fmt.Errorf("confirm reservation: %w", err)
		}
		if err := s.CommitResources(ctx, res); err != nil {
			return nil, fmt.Errorf("commit resources: %w", err)
		}
		if err := s.MarkLedgerCaptured(ctx, sig.OrderID, sig.PaymentID, name, now); err != nil {
			return nil, fmt.Errorf("mark ledger captured: %w", err)
		}
		res.ReservationStatus = model.ReservationConfirmed
		res.PaymentStatus = model.PaymentPaid
		res.Payment = details
		res.ConfirmedAt = &now
		return res, nil
	}

	if err := s.FailReservation(ctx, res.ID, details); err != nil {
		return nil, fmt.Errorf("fail reservation: %w", err)
	}
	if err := s.ReleaseResources(ctx, res); err != nil {
		return nil, fmt.Errorf("release resources: %w", err)
	}
	if err := s.MarkLedgerFailed(ctx, sig.OrderID, name); err != nil {
		return nil, fmt.Errorf("mark ledger failed: %w", err)
	}
	return nil, nil
}

// settleIndependently is one fallback attempt: the not-yet-applied
// sub-effects run concurrently against an autocommit store, each outcome
// inspected on its own.  Flags for effects that landed are set before
// returning so the next attempt skips them.
func (e *Engine) settleIndependently(ctx context.Context, sig Signal, flags *EffectFlags) (*model.Reservation, error) {
	s := e.runner.Plain()
	res, err := s.Reservation(ctx, sig.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("read reservation: %w", err)
	}
	name := e.displayName(ctx, s, res)
	now := time.Now().UTC()
	details := e.paymentDetails(sig, now)

	var (
		tasks  []func() error
		marks  []*bool
		labels []string
	)
	if !flags.Reservation {
		tasks = append(tasks, func() error {
			if sig.Verified {
				return s.ConfirmReservation(ctx, res.ID, details, now)
			}
			return s.FailReservation(ctx, res.ID, details)
		})
		marks = append(marks, &flags.Reservation)
		labels = append(labels, "reservation update")
	}
	if !flags.Resources {
		tasks = append(tasks, func() error {
			if sig.Verified {
				return s.CommitResources(ctx, res)
			}
			return s.ReleaseResources(ctx, res)
		})
		marks = append(marks, &flags.Resources)
		labels = append(labels, "resource settle")
	}
	if !flags.Ledger {
		tasks = append(tasks, func() error {
			if sig.Verified {
				return s.MarkLedgerCaptured(ctx, sig.OrderID, sig.PaymentID, name, now)
			}
			return s.MarkLedgerFailed(ctx, sig.OrderID, name)
		})
		marks = append(marks, &flags.Ledger)
		labels = append(labels, "ledger update")
	}
	if len(tasks) == 0 {
		return res, nil
	}

	results := settleAll(tasks...)
	var failed []error
	for i, rerr := range results {
		if rerr == nil {
			*marks[i] = true
			continue
		}
		e.logger.Printf("reconcile: fallback effect %q failed for reservation %d order %s: %v",
			labels[i], sig.ReservationID, sig.OrderID, rerr)
		failed = append(failed, fmt.Errorf("%s: %w", labels[i], rerr))
	}
	if len(failed) > 0 {
		return nil, errors.Join(failed...)
	}
	if sig.Verified {
		res.ReservationStatus = model.ReservationConfirmed
		res.PaymentStatus = model.PaymentPaid
		res.Payment = details
		res.ConfirmedAt = &now
		return res, nil
	}
	return nil, nil
}

func (e *Engine) paymentDetails(sig Signal, now time.Time) model.PaymentDetails {
	details := model.PaymentDetails{
		Method:    sig.Method,
		OrderID:   sig.OrderID,
		PaymentID: sig.PaymentID,
		Captured:  sig.Verified,
		Refunded:  false,
	}
	if sig.Verified {
		details.CapturedAt = &now
	}
	return details
}

// displayName resolves the ledger's display name best-effort.  Lookups
// must never block the status-mutating effects.
func (e *Engine) displayName(ctx context.Context, s Store, res *model.Reservation) string {
	name, err := s.DisplayName(ctx, res)
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

func (e *Engine) announce(ctx context.Context, sig Signal, confirmed *model.Reservation, out Outcome) {
	if out.AlreadySettled || !sig.Verified || confirmed == nil {
		return
	}
	if err := e.notify.ReservationConfirmed(ctx, confirmed); err != nil {
		e.logger.Printf("reconcile: confirmed event publish failed for reservation %d: %v", confirmed.ID, err)
	}
}
