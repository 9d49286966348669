package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/payment"
	"github.com/averon/venue-reservation/internal/reconcile"
	"github.com/averon/venue-reservation/internal/repository"
)

type stubVerifier struct{ verdict bool }

func (s stubVerifier) VerifyCompletion(_ context.Context, _ payment.Completion) (bool, error) {
	return s.verdict, nil
}

type stubLedger struct{ entry *model.LedgerEntry }

func (s stubLedger) GetByOrderID(_ context.Context, orderID string) (*model.LedgerEntry, error) {
	if s.entry == nil || s.entry.OrderID != orderID {
		return nil, repository.ErrNotFound
	}
	return s.entry, nil
}

type recordingEngine struct {
	mu      sync.Mutex
	signals []reconcile.Signal
	outcome reconcile.Outcome
	done    chan struct{}
}

func (r *recordingEngine) Reconcile(_ context.Context, sig reconcile.Signal) reconcile.Outcome {
	r.mu.Lock()
	r.signals = append(r.signals, sig)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.outcome
}

func (r *recordingEngine) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signals)
}

func performVerify(h *PaymentHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/verify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	_ = h.VerifyPayment(e.NewContext(req, rec))
	return rec
}

func TestVerifyPaymentAnswersVerdictAndStartsReconciliation(t *testing.T) {
	engine := &recordingEngine{done: make(chan struct{}, 1)}
	h := NewPaymentHandler(
		stubVerifier{verdict: true},
		stubLedger{entry: &model.LedgerEntry{OrderID: "order_1", ReservationID: 41, AmountCents: 5000}},
		engine, nil)

	rec := performVerify(h, `{"order_id":"order_1","payment_id":"pay_9","signature":"sig","method":"GATEWAY"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"verified":true}`, rec.Body.String())

	select {
	case <-engine.done:
	case <-time.After(time.Second):
		t.Fatal("reconciliation was never started")
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	require.Len(t, engine.signals, 1)
	sig := engine.signals[0]
	assert.Equal(t, uint64(41), sig.ReservationID)
	assert.True(t, sig.Verified)
	assert.Equal(t, "order_1", sig.OrderID)
	assert.Equal(t, uint32(5000), sig.AmountCents)
}

func TestVerifyPaymentFalseVerdictStillOK(t *testing.T) {
	engine := &recordingEngine{done: make(chan struct{}, 1)}
	h := NewPaymentHandler(
		stubVerifier{verdict: false},
		stubLedger{entry: &model.LedgerEntry{OrderID: "order_1", ReservationID: 41}},
		engine, nil)

	rec := performVerify(h, `{"order_id":"order_1","payment_id":"pay_9","signature":"bad","method":"GATEWAY"}`)

	// a failed verification is an answer, not an error; the engine still
	// runs to release the locked resources
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"verified":false}`, rec.Body.String())

	select {
	case <-engine.done:
	case <-time.After(time.Second):
		t.Fatal("reconciliation was never started")
	}
}

func TestVerifyPaymentSuppressesReplayAfterSettledRun(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	engine := &recordingEngine{done: make(chan struct{}, 4)}
	h := NewPaymentHandler(
		stubVerifier{verdict: true},
		stubLedger{entry: &model.LedgerEntry{OrderID: "order_1", ReservationID: 41, AmountCents: 5000}},
		engine, rdb)
	body := `{"order_id":"order_1","payment_id":"pay_9","signature":"sig","method":"GATEWAY"}`

	rec := performVerify(h, body)
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-engine.done:
	case <-time.After(time.Second):
		t.Fatal("reconciliation was never started")
	}
	// the marker lands only once the run settled everything
	require.Eventually(t, func() bool {
		return mr.Exists("completion:order_1:pay_9")
	}, time.Second, 5*time.Millisecond)

	rec = performVerify(h, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"verified":true}`, rec.Body.String())
	assert.Equal(t, 1, engine.calls())
}

func TestVerifyPaymentStalledRunLeavesRedeliveryOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	engine := &recordingEngine{
		done:    make(chan struct{}, 4),
		outcome: reconcile.Outcome{Err: errors.New("ledger effect unsettled")},
	}
	h := NewPaymentHandler(
		stubVerifier{verdict: true},
		stubLedger{entry: &model.LedgerEntry{OrderID: "order_1", ReservationID: 41, AmountCents: 5000}},
		engine, rdb)
	body := `{"order_id":"order_1","payment_id":"pay_9","signature":"sig","method":"GATEWAY"}`

	rec := performVerify(h, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-engine.done:
	case <-time.After(time.Second):
		t.Fatal("reconciliation was never started")
	}
	time.Sleep(20 * time.Millisecond)
	// no marker for a stalled run, so the gateway's redelivery reconciles
	// again instead of being swallowed for the suppression window
	assert.False(t, mr.Exists("completion:order_1:pay_9"))

	rec = performVerify(h, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-engine.done:
	case <-time.After(time.Second):
		t.Fatal("redelivered signal was not reconciled")
	}
	assert.Equal(t, 2, engine.calls())
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	h := NewPaymentHandler(stubVerifier{verdict: true}, stubLedger{}, &recordingEngine{}, nil)

	rec := performVerify(h, `{"order_id":"order_missing","method":"GATEWAY"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyPaymentRequiresOrderID(t *testing.T) {
	h := NewPaymentHandler(stubVerifier{verdict: true}, stubLedger{}, &recordingEngine{}, nil)

	rec := performVerify(h, `{"payment_id":"pay_9","method":"GATEWAY"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
