package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averon/venue-reservation/internal/model"
)

type fakeWallet struct {
	balanceOK bool
	err       error
	debits    []uint32
}

func (f *fakeWallet) Debit(_ context.Context, _ uint64, amountCents uint32) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.debits = append(f.debits, amountCents)
	return f.balanceOK, nil
}

func (f *fakeWallet) Credit(_ context.Context, _ uint64, _ uint32) (bool, error) {
	return true, nil
}

type fakeGateway struct {
	order GatewayOrder
	err   error
}

func (f *fakeGateway) CreateOrder(_ context.Context, _ uint32, _, receipt string) (GatewayOrder, error) {
	if f.err != nil {
		return GatewayOrder{}, f.err
	}
	out := f.order
	if out.Receipt == "" {
		out.Receipt = receipt
	}
	return out, nil
}

type fakeOrders struct {
	known map[string]bool
}

func (f *fakeOrders) ExistsByOrderID(_ context.Context, orderID string) (bool, error) {
	return f.known[orderID], nil
}

const testSecret = "s3cret"

func newTestAdapter(wallet *fakeWallet, gateway *fakeGateway, orders *fakeOrders) *Adapter {
	if wallet == nil {
		wallet = &fakeWallet{balanceOK: true}
	}
	if gateway == nil {
		gateway = &fakeGateway{order: GatewayOrder{ID: "order_ext_1"}}
	}
	if orders == nil {
		orders = &fakeOrders{known: map[string]bool{}}
	}
	return NewAdapter(wallet, gateway, orders, testSecret)
}

func walletReservation() *model.Reservation {
	return &model.Reservation{
		ID:          12,
		OwnerID:     4,
		AmountCents: 3000,
		Currency:    "USD",
		Payment:     model.PaymentDetails{Method: model.MethodWallet},
	}
}

func gatewayReservation() *model.Reservation {
	res := walletReservation()
	res.Payment.Method = model.MethodGateway
	return res
}

func TestCreateIntentWalletDebitsSynchronously(t *testing.T) {
	wallet := &fakeWallet{balanceOK: true}
	a := newTestAdapter(wallet, nil, nil)

	intent, err := a.CreateIntent(context.Background(), walletReservation())

	require.NoError(t, err)
	assert.Equal(t, []uint32{3000}, wallet.debits)
	assert.Equal(t, model.MethodWallet, intent.Method)
	assert.True(t, strings.HasPrefix(intent.OrderID, "wallet_"))
	assert.Equal(t, uint32(3000), intent.AmountCents)
}

func TestCreateIntentWalletInsufficientBalance(t *testing.T) {
	wallet := &fakeWallet{balanceOK: false}
	a := newTestAdapter(wallet, nil, nil)

	_, err := a.CreateIntent(context.Background(), walletReservation())

	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreateIntentGatewayCreatesExternalOrder(t *testing.T) {
	a := newTestAdapter(nil, &fakeGateway{order: GatewayOrder{ID: "order_ext_1"}}, nil)

	intent, err := a.CreateIntent(context.Background(), gatewayReservation())

	require.NoError(t, err)
	assert.Equal(t, "order_ext_1", intent.OrderID)
	assert.Equal(t, model.MethodGateway, intent.Method)
	assert.True(t, strings.HasPrefix(intent.Receipt, "rcpt_12_"))
}

func TestCreateIntentGatewayUnavailable(t *testing.T) {
	a := newTestAdapter(nil, &fakeGateway{err: errors.New("503")}, nil)

	_, err := a.CreateIntent(context.Background(), gatewayReservation())

	require.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestVerifyCompletionGatewaySignature(t *testing.T) {
	a := newTestAdapter(nil, nil, nil)
	ctx := context.Background()

	good := Completion{
		OrderID:   "order_ext_1",
		PaymentID: "pay_9",
		Signature: Sign(testSecret, "order_ext_1", "pay_9"),
		Method:    model.MethodGateway,
	}
	ok, err := a.VerifyCompletion(ctx, good)
	require.NoError(t, err)
	assert.True(t, ok)

	tampered := good
	tampered.PaymentID = "pay_10"
	ok, err = a.VerifyCompletion(ctx, tampered)
	require.NoError(t, err)
	assert.False(t, ok)

	unsigned := good
	unsigned.Signature = ""
	ok, err = a.VerifyCompletion(ctx, unsigned)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyCompletionWalletIsLedgerExistence(t *testing.T) {
	orders := &fakeOrders{known: map[string]bool{"wallet_abc": true}}
	a := newTestAdapter(nil, nil, orders)
	ctx := context.Background()

	// payment id and signature are irrelevant for wallet completions
	ok, err := a.VerifyCompletion(ctx, Completion{
		OrderID: "wallet_abc",
		Method:  model.MethodWallet,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.VerifyCompletion(ctx, Completion{
		OrderID:   "wallet_unknown",
		PaymentID: "pay_1",
		Signature: "sig",
		Method:    model.MethodWallet,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyCompletionUnknownMethod(t *testing.T) {
	a := newTestAdapter(nil, nil, nil)

	ok, err := a.VerifyCompletion(context.Background(), Completion{
		OrderID: "order_ext_1",
		Method:  model.PaymentMethod("CASH"),
	})
	require.NoError(t, err)
	assert.False(t, ok)
}
