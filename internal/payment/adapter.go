// Package payment issues payment intents and verifies completion signals.
// Wallet payments debit synchronously and synthesize a local order id;
// gateway payments create a real external order and are verified by an
// HMAC signature over the order and payment ids.
package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/google/uuid"
)

// ErrInsufficientBalance is returned when a wallet debit is declined.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// ErrGatewayUnavailable wraps a failure to create an order at the
// external gateway.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Wallet is the external debit/credit service contract.  A false return
// means the wallet declined (insufficient balance), not that the call
// failed.
type Wallet interface {
	Debit(ctx context.Context, userID uint64, amountCents uint32) (bool, error)
	Credit(ctx context.Context, userID uint64, amountCents uint32) (bool, error)
}

// GatewayOrder is the external gateway's handle for a created order.
type GatewayOrder struct {
	ID      string
	Receipt string
}

// Gateway is the external order service contract.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents uint32, currency, receipt string) (GatewayOrder, error)
}

// OrderLookup answers whether a ledger entry exists for an order id.
// For wallet payments that existence is the completion proof.
type OrderLookup interface {
	ExistsByOrderID(ctx context.Context, orderID string) (bool, error)
}

// Intent is the outcome of CreateIntent: what the client needs to finish
// (or has already finished, for wallet) the payment.
type Intent struct {
	OrderID     string
	Receipt     string
	Method      model.PaymentMethod
	AmountCents uint32
	Currency    string
}

// Completion carries the fields of an incoming completion signal.
type Completion struct {
	OrderID   string
	PaymentID string
	Signature string
	Method    model.PaymentMethod
}

// Adapter is the payment intent gateway adapter.
type Adapter struct {
	wallet  Wallet
	gateway Gateway
	orders  OrderLookup
	secret  string
}

// NewAdapter wires the adapter to the wallet service, the external
// gateway client, the ledger lookup and the gateway's shared secret.
func NewAdapter(wallet Wallet, gateway Gateway, orders OrderLookup, secret string) *Adapter {
	return &Adapter{wallet: wallet, gateway: gateway, orders: orders, secret: secret}
}

// walletOrderID synthesizes a local order id for wallet payments; these
// never reach the external gateway.
func walletOrderID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "wallet_" + uuid.NewString()
	}
	return "wallet_" + hex.EncodeToString(b)
}

// CreateIntent issues the payment leg for a freshly created reservation.
// Wallet: the debit happens here, synchronously, and a declined debit
// returns ErrInsufficientBalance.  Gateway: an external order is created
// and its id returned for the client checkout.  On any error the caller
// must not create a ledger entry.
func (a *Adapter) CreateIntent(ctx context.Context, res *model.Reservation) (*Intent, error) {
	switch res.Payment.Method {
	case model.MethodWallet:
		ok, err := a.wallet.Debit(ctx, res.OwnerID, res.AmountCents)
		if err != nil {
			return nil, fmt.Errorf("wallet debit: %w", err)
		}
		if !ok {
			return nil, ErrInsufficientBalance
		}
		return &Intent{
			OrderID:     walletOrderID(),
			Method:      model.MethodWallet,
			AmountCents: res.AmountCents,
			Currency:    res.Currency,
		}, nil
	case model.MethodGateway:
		receipt := fmt.Sprintf("rcpt_%d_%s", res.ID, uuid.NewString()[:8])
		order, err := a.gateway.CreateOrder(ctx, res.AmountCents, res.Currency, receipt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return &Intent{
			OrderID:     order.ID,
			Receipt:     order.Receipt,
			Method:      model.MethodGateway,
			AmountCents: res.AmountCents,
			Currency:    res.Currency,
		}, nil
	}
	return nil, fmt.Errorf("payment: unknown method %q", res.Payment.Method)
}

// VerifyCompletion decides whether a completion signal is genuine.  The
// answer is a boolean, never an error, for anything short of a failed
// ledger read: a bad signature or missing fields simply verify false.
//
// Wallet: verification is defined as ledger-entry existence for the order
// id; the debit already happened at intent time, so any payment id or
// signature supplied is ignored.  Gateway: the HMAC signature over
// orderID|paymentID is recomputed with the shared secret and compared.
func (a *Adapter) VerifyCompletion(ctx context.Context, c Completion) (bool, error) {
	switch c.Method {
	case model.MethodWallet:
		if c.OrderID == "" {
			return false, nil
		}
		return a.orders.ExistsByOrderID(ctx, c.OrderID)
	case model.MethodGateway:
		return validSignature(a.secret, c.OrderID, c.PaymentID, c.Signature), nil
	}
	return false, nil
}
