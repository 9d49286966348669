package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/payment"
	"github.com/averon/venue-reservation/internal/reconcile"
	"github.com/averon/venue-reservation/internal/repository"
)

// completionTTL bounds the duplicate-signal suppression window.  Signals
// older than this fall through to the reconciliation engine, whose
// settled check absorbs them anyway.
const completionTTL = 24 * time.Hour

// LedgerLookup resolves a completion signal's order id to its ledger
// entry.
type LedgerLookup interface {
	GetByOrderID(ctx context.Context, orderID string) (*model.LedgerEntry, error)
}

// Verifier decides whether a completion signal is genuine.
type Verifier interface {
	VerifyCompletion(ctx context.Context, c payment.Completion) (bool, error)
}

// Reconciler drives a signal to its terminal state.
type Reconciler interface {
	Reconcile(ctx context.Context, sig reconcile.Signal) reconcile.Outcome
}

// PaymentHandler receives payment completion signals.  The verification
// verdict is computed and answered synchronously; state reconciliation
// runs in the background and its failures are never surfaced to the
// caller.
type PaymentHandler struct {
	Verify Verifier
	Ledger LedgerLookup
	Engine Reconciler
	Redis  *redis.Client // nil disables duplicate suppression
}

// NewPaymentHandler constructs the handler.  rdb may be nil.
func NewPaymentHandler(verify Verifier, ledger LedgerLookup, engine Reconciler, rdb *redis.Client) *PaymentHandler {
	if verify == nil || ledger == nil || engine == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Verify: verify, Ledger: ledger, Engine: engine, Redis: rdb}
}

// completionRequest is the body of POST /v1/payments/verify.
type completionRequest struct {
	OrderID   string              `json:"order_id"`
	PaymentID string              `json:"payment_id"`
	Signature string              `json:"signature"`
	Method    model.PaymentMethod `json:"method"`
}

// VerifyPayment handles POST /v1/payments/verify.  The response carries
// only the verification verdict: a false verdict still returns 200, and
// reconciliation failures never change the status code.
func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	var body completionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.OrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id is required"})
	}
	ctx := c.Request().Context()

	entry, err := h.Ledger.GetByOrderID(ctx, body.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown order"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	verified, err := h.Verify.VerifyCompletion(ctx, payment.Completion{
		OrderID:   body.OrderID,
		PaymentID: body.PaymentID,
		Signature: body.Signature,
		Method:    body.Method,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}

	if h.seen(ctx, body) {
		// Same signal already reconciled; answer the verdict without
		// kicking off another run.
		return c.JSON(http.StatusOK, echo.Map{"verified": verified})
	}

	sig := reconcile.Signal{
		ReservationID: entry.ReservationID,
		Verified:      verified,
		AmountCents:   entry.AmountCents,
		OrderID:       body.OrderID,
		PaymentID:     body.PaymentID,
		Method:        body.Method,
	}
	// Detached from the request context: the caller's disconnect must not
	// abort settlement.  The seen marker is written only once the run
	// settled every effect, so a crash or stall mid-run leaves the
	// gateway's redelivery free to retry.
	go func() {
		out := h.Engine.Reconcile(context.Background(), sig)
		if out.Err == nil {
			h.markSeen(context.Background(), body)
		}
	}()

	return c.JSON(http.StatusOK, echo.Map{"verified": verified})
}

func completionKey(body completionRequest) string {
	return "completion:" + body.OrderID + ":" + body.PaymentID
}

// seen reports whether this signal has already been fully reconciled.
// Redis being down degrades to "not seen"; the engine's settled check
// keeps replays harmless.
func (h *PaymentHandler) seen(ctx context.Context, body completionRequest) bool {
	if h.Redis == nil {
		return false
	}
	n, err := h.Redis.Exists(ctx, completionKey(body)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// markSeen records a fully reconciled signal for the suppression window.
func (h *PaymentHandler) markSeen(ctx context.Context, body completionRequest) {
	if h.Redis == nil {
		return
	}
	h.Redis.Set(ctx, completionKey(body), 1, completionTTL)
}
