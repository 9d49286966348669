package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averon/venue-reservation/internal/model"
)

type fakeStore struct {
	mu  sync.Mutex
	res *model.Reservation

	confirmCalls  int
	failCalls     int
	commitCalls   int
	releaseCalls  int
	capturedCalls int
	failedCalls   int

	// remaining forced failures per effect, decremented on each call
	confirmFailures int
	commitFailures  int
	ledgerFailures  int

	nameErr  error
	lastName string
}

func (f *fakeStore) Reservation(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.res == nil || f.res.ID != id {
		return nil, errors.New("reservation not found")
	}
	cp := *f.res
	return &cp, nil
}

func (f *fakeStore) ConfirmReservation(_ context.Context, _ uint64, p model.PaymentDetails, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	if f.confirmFailures > 0 {
		f.confirmFailures--
		return errors.New("confirm unavailable")
	}
	f.res.ReservationStatus = model.ReservationConfirmed
	f.res.PaymentStatus = model.PaymentPaid
	f.res.Payment = p
	f.res.ConfirmedAt = &at
	return nil
}

func (f *fakeStore) FailReservation(_ context.Context, _ uint64, p model.PaymentDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	f.res.ReservationStatus = model.ReservationFailed
	f.res.PaymentStatus = model.PaymentFailed
	f.res.Payment = p
	return nil
}

func (f *fakeStore) CommitResources(_ context.Context, _ *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	if f.commitFailures > 0 {
		f.commitFailures--
		return errors.New("commit unavailable")
	}
	return nil
}

func (f *fakeStore) ReleaseResources(_ context.Context, _ *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	return nil
}

func (f *fakeStore) MarkLedgerCaptured(_ context.Context, _, _, name string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturedCalls++
	if f.ledgerFailures > 0 {
		f.ledgerFailures--
		return errors.New("ledger unavailable")
	}
	f.lastName = name
	return nil
}

func (f *fakeStore) MarkLedgerFailed(_ context.Context, _, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedCalls++
	if f.ledgerFailures > 0 {
		f.ledgerFailures--
		return errors.New("ledger unavailable")
	}
	f.lastName = name
	return nil
}

func (f *fakeStore) DisplayName(_ context.Context, _ *model.Reservation) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return "Grand Hall", nil
}

type fakeRunner struct {
	store   *fakeStore
	txErr   error
	txCalls int
}

func (r *fakeRunner) InTx(_ context.Context, fn func(Store) error) error {
	r.txCalls++
	if r.txErr != nil {
		return r.txErr
	}
	return fn(r.store)
}

func (r *fakeRunner) Plain() Store { return r.store }

type fakeNotifier struct {
	mu            sync.Mutex
	confirmed     []*model.Reservation
	stalled       []Signal
	stalledFlags  []EffectFlags
	stalledCauses []error
}

func (n *fakeNotifier) ReservationConfirmed(_ context.Context, res *model.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, res)
	return nil
}

func (n *fakeNotifier) ReconciliationStalled(_ context.Context, sig Signal, flags EffectFlags, cause error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stalled = append(n.stalled, sig)
	n.stalledFlags = append(n.stalledFlags, flags)
	n.stalledCauses = append(n.stalledCauses, cause)
	return nil
}

func pendingReservation() *model.Reservation {
	return &model.Reservation{
		ID:                41,
		OwnerID:           7,
		Kind:              model.KindVenue,
		Venue:             &model.VenueDetails{VenueID: 3, FacilityID: 9, SlotIDs: []uint64{101, 102}},
		AmountCents:       5000,
		Currency:          "USD",
		ReservationStatus: model.ReservationPending,
		PaymentStatus:     model.PaymentInitiated,
	}
}

func verifiedSignal() Signal {
	return Signal{
		ReservationID: 41,
		Verified:      true,
		AmountCents:   5000,
		OrderID:       "order_abc",
		PaymentID:     "pay_xyz",
		Method:        model.MethodGateway,
		Kind:          model.KindVenue,
	}
}

func newTestEngine(runner TxRunner, notify Notifier) *Engine {
	return NewEngine(runner, notify, WithRetryPolicy(3, 0))
}

func TestReconcileVerifiedConfirmsEverything(t *testing.T) {
	store := &fakeStore{res: pendingReservation()}
	runner := &fakeRunner{store: store}
	notify := &fakeNotifier{}
	eng := newTestEngine(runner, notify)

	out := eng.Reconcile(context.Background(), verifiedSignal())

	require.NoError(t, out.Err)
	assert.False(t, out.UsedFallback)
	assert.False(t, out.AlreadySettled)
	assert.True(t, out.Flags.Done())

	assert.Equal(t, 1, runner.txCalls)
	assert.Equal(t, 1, store.confirmCalls)
	assert.Equal(t, 1, store.commitCalls)
	assert.Equal(t, 1, store.capturedCalls)
	assert.Zero(t, store.failCalls)
	assert.Zero(t, store.releaseCalls)
	assert.Equal(t, "Grand Hall", store.lastName)

	assert.Equal(t, model.ReservationConfirmed, store.res.ReservationStatus)
	assert.Equal(t, model.PaymentPaid, store.res.PaymentStatus)
	assert.Equal(t, "order_abc", store.res.Payment.OrderID)
	require.Len(t, notify.confirmed, 1)
	assert.Equal(t, uint64(41), notify.confirmed[0].ID)
}

func TestReconcileUnverifiedReleasesAndFails(t *testing.T) {
	store := &fakeStore{res: pendingReservation()}
	runner := &fakeRunner{store: store}
	notify := &fakeNotifier{}
	eng := newTestEngine(runner, notify)

	sig := verifiedSignal()
	sig.Verified = false
	out := eng.Reconcile(context.Background(), sig)

	require.NoError(t, out.Err)
	assert.Equal(t, 1, store.failCalls)
	assert.Equal(t, 1, store.releaseCalls)
	assert.Equal(t, 1, store.failedCalls)
	assert.Zero(t, store.confirmCalls)
	assert.Zero(t, store.commitCalls)
	assert.Equal(t, model.ReservationFailed, store.res.ReservationStatus)
	assert.Empty(t, notify.confirmed)
}

func TestReconcileDuplicateSignalIsNoOp(t *testing.T) {
	res := pendingReservation()
	res.ReservationStatus = model.ReservationConfirmed
	res.PaymentStatus = model.PaymentPaid
	store := &fakeStore{res: res}
	runner := &fakeRunner{store: store}
	notify := &fakeNotifier{}
	eng := newTestEngine(runner, notify)

	out := eng.Reconcile(context.Background(), verifiedSignal())

	require.NoError(t, out.Err)
	assert.True(t, out.AlreadySettled)
	assert.Zero(t, store.confirmCalls)
	assert.Zero(t, store.commitCalls)
	assert.Zero(t, store.capturedCalls)
	assert.Empty(t, notify.confirmed)
}

func TestReconcileRetriesPrimaryThreeTimesThenFallsBack(t *testing.T) {
	store := &fakeStore{res: pendingReservation()}
	runner := &fakeRunner{store: store, txErr: errors.New("deadlock")}
	notify := &fakeNotifier{}
	eng := newTestEngine(runner, notify)

	out := eng.Reconcile(context.Background(), verifiedSignal())

	require.NoError(t, out.Err)
	assert.Equal(t, 3, runner.txCalls)
	assert.True(t, out.UsedFallback)
	assert.True(t, out.Flags.Done())
	assert.Equal(t, 1, store.confirmCalls)
	assert.Equal(t, 1, store.commitCalls)
	assert.Equal(t, 1, store.capturedCalls)
	require.Len(t, notify.confirmed, 1)
}

func TestReconcileFallbackSkipsAlreadyLandedEffects(t *testing.T) {
	store := &fakeStore{res: pendingReservation(), ledgerFailures: 1}
	runner := &fakeRunner{store: store, txErr: errors.New("deadlock")}
	notify := &fakeNotifier{}
	eng := newTestEngine(runner, notify)

	out := eng.Reconcile(context.Background(), verifiedSignal())

	require.NoError(t, out.Err)
	assert.True(t, out.UsedFallback)
	assert.True(t, out.Flags.Done())
	// reservation and resource settled on attempt one and are not redone
	assert.Equal(t, 1, store.confirmCalls)
	assert.Equal(t, 1, store.commitCalls)
	// ledger failed once, then landed on the second attempt
	assert.Equal(t, 2, store.capturedCalls)
	require.Len(t, notify.confirmed, 1)
}

func TestReconcileTerminalFailureAlertsOperator(t *testing.T) {
	store := &fakeStore{res: pendingReservation(), ledgerFailures: 10}
	runner := &fakeRunner{store: store, txErr: errors.New("deadlock")}
	notify := &fakeNotifier{}
	eng := newTestEngine(runner, notify)

	out := eng.Reconcile(context.Background(), verifiedSignal())

	require.Error(t, out.Err)
	assert.True(t, out.UsedFallback)
	assert.True(t, out.Flags.Reservation)
	assert.True(t, out.Flags.Resources)
	assert.False(t, out.Flags.Ledger)
	assert.Equal(t, 3, store.capturedCalls)

	require.Len(t, notify.stalled, 1)
	assert.Equal(t, uint64(41), notify.stalled[0].ReservationID)
	assert.False(t, notify.stalledFlags[0].Ledger)
	assert.Error(t, notify.stalledCauses[0])
	assert.Empty(t, notify.confirmed)
}

func TestReconcileDisplayNameFallsBackToUnknown(t *testing.T) {
	store := &fakeStore{res: pendingReservation(), nameErr: errors.New("lookup down")}
	runner := &fakeRunner{store: store}
	notify := &fakeNotifier{}
	eng := newTestEngine(runner, notify)

	out := eng.Reconcile(context.Background(), verifiedSignal())

	require.NoError(t, out.Err)
	assert.Equal(t, "unknown", store.lastName)
}
