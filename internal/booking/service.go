// Package booking implements the reservation lifecycle up to the point a
// payment completion signal takes over: creation with resource locking
// and intent issuance, lookup, listing and cancellation with wallet
// refunds.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/payment"
	"github.com/averon/venue-reservation/internal/repository"
)

// ErrAmountMismatch is returned when the client-asserted total does not
// match the priced components.
var ErrAmountMismatch = errors.New("asserted amount does not match priced components")

// TxRunner scopes a function to one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repository.DBTX) error) error
	Autocommit() repository.DBTX
}

// ReservationStore is the slice of the reservation repository the
// service needs.
type ReservationStore interface {
	Create(ctx context.Context, q repository.DBTX, res *model.Reservation) error
	Get(ctx context.Context, q repository.DBTX, id uint64) (*model.Reservation, error)
	Fail(ctx context.Context, q repository.DBTX, id uint64, p model.PaymentDetails) error
	Cancel(ctx context.Context, q repository.DBTX, id, ownerID uint64, refunded bool) error
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Reservation, error)
}

// Locker claims, pre-checks and releases the resources a reservation
// names.
type Locker interface {
	AreAllAvailable(ctx context.Context, res *model.Reservation) (bool, error)
	LockAll(ctx context.Context, q repository.DBTX, res *model.Reservation) error
	Release(ctx context.Context, q repository.DBTX, res *model.Reservation) error
}

// LedgerStore records and finalizes transaction ledger entries.
type LedgerStore interface {
	Create(ctx context.Context, e *model.LedgerEntry) error
	MarkRefunded(ctx context.Context, q repository.DBTX, orderID string) error
}

// CustomerStore resolves the customer snapshot embedded at creation.
type CustomerStore interface {
	CustomerSnapshot(ctx context.Context, userID uint64) (model.CustomerSnapshot, error)
}

// IntentIssuer creates the payment leg for a reservation.
type IntentIssuer interface {
	CreateIntent(ctx context.Context, res *model.Reservation) (*payment.Intent, error)
}

// Refunder credits a wallet on cancellation of a paid reservation.
type Refunder interface {
	Credit(ctx context.Context, userID uint64, amountCents uint32) (bool, error)
}

// SlotPricer sums slot prices for venue reservations.
type SlotPricer interface {
	PriceSum(ctx context.Context, slotIDs []uint64) (uint32, error)
}

// EventReader loads events for pricing.
type EventReader interface {
	Get(ctx context.Context, q repository.DBTX, id uint64) (*model.Event, error)
}

// ProductReader loads products for pricing shop orders.
type ProductReader interface {
	GetProduct(ctx context.Context, id uint64) (*model.Product, error)
}

// Service drives the reservation lifecycle.
type Service struct {
	runner       TxRunner
	reservations ReservationStore
	locks        Locker
	ledger       LedgerStore
	customers    CustomerStore
	payments     IntentIssuer
	wallet       Refunder
	slots        SlotPricer
	events       EventReader
	products     ProductReader
	logger       *log.Logger
}

// NewService wires the booking service.
func NewService(
	runner TxRunner,
	reservations ReservationStore,
	locks Locker,
	ledger LedgerStore,
	customers CustomerStore,
	payments IntentIssuer,
	wallet Refunder,
	slots SlotPricer,
	events EventReader,
	products ProductReader,
) *Service {
	return &Service{
		runner:       runner,
		reservations: reservations,
		locks:        locks,
		ledger:       ledger,
		customers:    customers,
		payments:     payments,
		wallet:       wallet,
		slots:        slots,
		events:       events,
		products:     products,
		logger:       log.Default(),
	}
}

// CreateRequest is a validated reservation request.  AssertedCents is
// the total the client believes it is paying; zero means "trust the
// server's pricing".
type CreateRequest struct {
	OwnerID       uint64
	Kind          model.Kind
	Venue         *model.VenueDetails
	Event         *model.EventDetails
	Shop          *model.ShopDetails
	Method        model.PaymentMethod
	Currency      string
	AssertedCents uint32
}

// CreateResult pairs the stored reservation with its payment intent.
type CreateResult struct {
	Reservation *model.Reservation
	Intent      *payment.Intent
}

// Create prices the request, locks its resources together with the
// reservation insert, then issues the payment intent and records the
// ledger entry.  Intent failures unwind the reservation and its locks;
// no ledger entry is written for a reservation whose intent never
// existed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	res := &model.Reservation{
		OwnerID:  req.OwnerID,
		Kind:     req.Kind,
		Venue:    req.Venue,
		Event:    req.Event,
		Shop:     req.Shop,
		Currency: req.Currency,
		Payment:  model.PaymentDetails{Method: req.Method},
	}
	if err := res.ValidatePayload(); err != nil {
		return nil, err
	}

	amount, err := s.price(ctx, res)
	if err != nil {
		return nil, err
	}
	if req.AssertedCents != 0 && req.AssertedCents != amount {
		return nil, ErrAmountMismatch
	}
	res.AmountCents = amount

	customer, err := s.customers.CustomerSnapshot(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("customer snapshot: %w", err)
	}
	res.Customer = customer

	// Best-effort gate; the guarded lock inside the transaction is the
	// authoritative one.
	ok, err := s.locks.AreAllAvailable(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("availability check: %w", err)
	}
	if !ok {
		return nil, repository.ErrResourceUnavailable
	}

	err = s.runner.InTx(ctx, func(q repository.DBTX) error {
		if err := s.reservations.Create(ctx, q, res); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return s.locks.LockAll(ctx, q, res)
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.payments.CreateIntent(ctx, res)
	if err != nil {
		s.unwind(ctx, res, false)
		return nil, err
	}
	res.Payment.OrderID = intent.OrderID

	entry := &model.LedgerEntry{
		OrderID:       intent.OrderID,
		ReservationID: res.ID,
		AmountCents:   res.AmountCents,
		Currency:      res.Currency,
		Method:        req.Method,
	}
	if err := s.ledger.Create(ctx, entry); err != nil {
		// The intent exists at this point, so a wallet debit has already
		// been taken and must be handed back.
		s.unwind(ctx, res, true)
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	return &CreateResult{Reservation: res, Intent: intent}, nil
}

// unwind marks a reservation failed and frees its resources after the
// payment leg could not be established.  refundDebit credits a wallet
// debit back when the caller knows one was taken.  Best-effort: a
// failure here is logged, the guarded updates make a later manual retry
// safe.
func (s *Service) unwind(ctx context.Context, res *model.Reservation, refundDebit bool) {
	q := s.runner.Autocommit()
	if err := s.reservations.Fail(ctx, q, res.ID, res.Payment); err != nil {
		s.logger.Printf("booking: failed to mark reservation %d failed: %v", res.ID, err)
	}
	if err := s.locks.Release(ctx, q, res); err != nil {
		s.logger.Printf("booking: failed to release resources for reservation %d: %v", res.ID, err)
	}
	if refundDebit && res.Payment.Method == model.MethodWallet {
		ok, err := s.wallet.Credit(ctx, res.OwnerID, res.AmountCents)
		if err != nil || !ok {
			s.logger.Printf("booking: failed to credit %d cents back to owner %d for reservation %d (ok=%v): %v",
				res.AmountCents, res.OwnerID, res.ID, ok, err)
		}
	}
}

// price computes the server-side total for the requested components.
// Shop order lines come back with their catalog prices filled in.
func (s *Service) price(ctx context.Context, res *model.Reservation) (uint32, error) {
	switch res.Kind {
	case model.KindVenue:
		return s.slots.PriceSum(ctx, res.Venue.SlotIDs)
	case model.KindEvent:
		ev, err := s.events.Get(ctx, s.runner.Autocommit(), res.Event.EventID)
		if err != nil {
			return 0, err
		}
		return ev.SeatPriceCents * res.Event.Seats, nil
	case model.KindShopOrder:
		var total uint32
		for i, line := range res.Shop.Lines {
			p, err := s.products.GetProduct(ctx, line.ProductID)
			if err != nil {
				return 0, err
			}
			res.Shop.Lines[i].PriceCents = p.PriceCents
			total += p.PriceCents * line.Quantity
		}
		return total, nil
	}
	return 0, model.ErrInvalidPayload
}

// Get returns the reservation if it belongs to ownerID.
func (s *Service) Get(ctx context.Context, id, ownerID uint64) (*model.Reservation, error) {
	res, err := s.reservations.Get(ctx, s.runner.Autocommit(), id)
	if err != nil {
		return nil, err
	}
	if res.OwnerID != ownerID {
		return nil, repository.ErrForbidden
	}
	return res, nil
}

// List returns the owner's reservations, newest first.
func (s *Service) List(ctx context.Context, ownerID uint64) ([]*model.Reservation, error) {
	return s.reservations.ListByOwner(ctx, ownerID)
}

// Cancel cancels a non-terminal or paid reservation, frees its resources
// and, for captured wallet payments, credits the amount back and marks
// the ledger entry refunded.
func (s *Service) Cancel(ctx context.Context, id, ownerID uint64) error {
	q := s.runner.Autocommit()
	res, err := s.reservations.Get(ctx, q, id)
	if err != nil {
		return err
	}
	if res.OwnerID != ownerID {
		return repository.ErrForbidden
	}

	refund := res.PaymentStatus == model.PaymentPaid && res.Payment.Method == model.MethodWallet
	if err := s.reservations.Cancel(ctx, q, id, ownerID, refund); err != nil {
		return err
	}
	if err := s.locks.Release(ctx, q, res); err != nil {
		return fmt.Errorf("release resources: %w", err)
	}
	if !refund {
		return nil
	}
	ok, err := s.wallet.Credit(ctx, ownerID, res.AmountCents)
	if err != nil {
		return fmt.Errorf("refund credit: %w", err)
	}
	if !ok {
		return fmt.Errorf("refund credit for owner %d: %w", ownerID, repository.ErrNotFound)
	}
	if res.Payment.OrderID == "" {
		return nil
	}
	if err := s.ledger.MarkRefunded(ctx, q, res.Payment.OrderID); err != nil {
		return fmt.Errorf("mark ledger refunded: %w", err)
	}
	return nil
}
