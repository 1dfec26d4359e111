package store

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmarket/paydriver/types"
)

var (
	testSender    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testRecipient = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newPayment(orderID string, amount string, createdAt time.Time) *types.Payment {
	return &types.Payment{
		OrderID:   orderID,
		Sender:    testSender,
		Recipient: testRecipient,
		Amount:    decimal.RequireFromString(amount),
		Network:   types.NetworkHolesky,
		DueBy:     time.Now().Add(time.Hour).UTC(),
		CreatedAt: createdAt,
	}
}

func newTransaction(nonce uint64) *types.Transaction {
	return &types.Transaction{
		Network: types.NetworkHolesky,
		Kind:    types.TxTransfer,
		Sender:  testSender,
		Nonce:   nonce,
		Encoded: []byte{0x01, 0x02},
	}
}

func TestPaymentLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, s.CreatePayment(ctx, newPayment("order-2", "7", base.Add(time.Second))))
	require.NoError(t, s.CreatePayment(ctx, newPayment("order-1", "5", base)))

	pending, err := s.PendingPayments(ctx, testSender, types.NetworkHolesky)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// Oldest first.
	assert.Equal(t, "order-1", pending[0].OrderID)
	assert.Equal(t, "order-2", pending[1].OrderID)
	assert.True(t, pending[0].Amount.Equal(decimal.RequireFromString("5")))

	txID, err := s.RecordTransaction(ctx, newTransaction(0))
	require.NoError(t, err)
	require.NotEmpty(t, txID)

	require.NoError(t, s.BindPayment(ctx, txID, "order-1"))
	require.NoError(t, s.BindPayment(ctx, txID, "order-2"))

	pending, err = s.PendingPayments(ctx, testSender, types.NetworkHolesky)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Binding a Sent payment again is inconsistent.
	err = s.BindPayment(ctx, txID, "order-1")
	require.ErrorIs(t, err, ErrInconsistentState)

	hash := common.HexToHash("0xdead")
	require.NoError(t, s.MarkSubmitted(ctx, txID, hash))

	confirmed, err := s.ConfirmSuccess(ctx, txID)
	require.NoError(t, err)
	require.Len(t, confirmed, 2)
	for _, p := range confirmed {
		assert.Equal(t, types.PaymentConfirmed, p.Status)
	}
}

func TestMarkSubmittedIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	txID, err := s.RecordTransaction(ctx, newTransaction(3))
	require.NoError(t, err)

	hash := common.HexToHash("0x01")
	require.NoError(t, s.MarkSubmitted(ctx, txID, hash))

	// Same hash again: no-op.
	require.NoError(t, s.MarkSubmitted(ctx, txID, hash))

	// Different hash: inconsistent.
	err = s.MarkSubmitted(ctx, txID, common.HexToHash("0x02"))
	require.ErrorIs(t, err, ErrInconsistentState)

	// Unknown transaction.
	err = s.MarkSubmitted(ctx, "no-such-tx", hash)
	require.ErrorIs(t, err, ErrNotFound)

	unconfirmed, err := s.UnconfirmedTransactions(ctx, types.NetworkHolesky)
	require.NoError(t, err)
	require.Len(t, unconfirmed, 1)
	require.NotNil(t, unconfirmed[0].TxHash)
	assert.Equal(t, hash, *unconfirmed[0].TxHash)
}

func TestConfirmIsTerminalOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayment(ctx, newPayment("order-1", "5", time.Now().UTC())))
	txID, err := s.RecordTransaction(ctx, newTransaction(0))
	require.NoError(t, err)
	require.NoError(t, s.BindPayment(ctx, txID, "order-1"))
	require.NoError(t, s.MarkSubmitted(ctx, txID, common.HexToHash("0x01")))

	payments, err := s.ConfirmSuccess(ctx, txID)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	// Re-confirming a terminal transaction is a no-op with no payments.
	payments, err = s.ConfirmSuccess(ctx, txID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	payments, err = s.ConfirmFailure(ctx, txID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	// The payment kept its Confirmed status.
	p, err := s.Payment(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, types.PaymentConfirmed, p.Status)

	// Confirming an Unsent transaction is inconsistent.
	unsentID, err := s.RecordTransaction(ctx, newTransaction(1))
	require.NoError(t, err)
	_, err = s.ConfirmSuccess(ctx, unsentID)
	require.ErrorIs(t, err, ErrInconsistentState)
}

func TestConfirmFailureLeavesPaymentsForCaller(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayment(ctx, newPayment("order-1", "5", time.Now().UTC())))
	txID, err := s.RecordTransaction(ctx, newTransaction(0))
	require.NoError(t, err)
	require.NoError(t, s.BindPayment(ctx, txID, "order-1"))
	require.NoError(t, s.MarkSubmitted(ctx, txID, common.HexToHash("0x01")))

	payments, err := s.ConfirmFailure(ctx, txID)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	// The payment is failed individually by the caller.
	p, err := s.Payment(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, types.PaymentSent, p.Status)

	require.NoError(t, s.MarkPaymentFailed(ctx, "order-1"))
	p, err = s.Payment(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, types.PaymentFailed, p.Status)
}

func TestMarkPaymentFailed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayment(ctx, newPayment("order-1", "5", time.Now().UTC())))
	require.NoError(t, s.MarkPaymentFailed(ctx, "order-1"))

	// Failing an already failed payment is a no-op.
	require.NoError(t, s.MarkPaymentFailed(ctx, "order-1"))

	// Unknown order.
	err := s.MarkPaymentFailed(ctx, "no-such-order")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFirstPaymentForTransaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, s.CreatePayment(ctx, newPayment("order-b", "7", base.Add(2*time.Second))))
	require.NoError(t, s.CreatePayment(ctx, newPayment("order-a", "5", base)))

	txID, err := s.RecordTransaction(ctx, newTransaction(0))
	require.NoError(t, err)
	require.NoError(t, s.BindPayment(ctx, txID, "order-a"))
	require.NoError(t, s.BindPayment(ctx, txID, "order-b"))

	hash := common.HexToHash("0xabc")
	require.NoError(t, s.MarkSubmitted(ctx, txID, hash))

	first, err := s.FirstPaymentForTransaction(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "order-a", first.OrderID)

	_, err = s.FirstPaymentForTransaction(ctx, common.HexToHash("0xfff"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMaxNonce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.MaxNonce(ctx, testSender, types.NetworkHolesky)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, nonce := range []uint64{4, 9, 7} {
		_, err := s.RecordTransaction(ctx, newTransaction(nonce))
		require.NoError(t, err)
	}

	max, ok, err := s.MaxNonce(ctx, testSender, types.NetworkHolesky)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(9), max)

	// Other accounts and networks are independent.
	_, ok, err = s.MaxNonce(ctx, testRecipient, types.NetworkHolesky)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnsentAndUnconfirmedQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.RecordTransaction(ctx, newTransaction(1))
	require.NoError(t, err)
	id2, err := s.RecordTransaction(ctx, newTransaction(2))
	require.NoError(t, err)

	unsent, err := s.UnsentTransactions(ctx, types.NetworkHolesky)
	require.NoError(t, err)
	require.Len(t, unsent, 2)
	assert.Equal(t, id1, unsent[0].TxID)

	require.NoError(t, s.MarkSubmitted(ctx, id1, common.HexToHash("0x01")))

	unsent, err = s.UnsentTransactions(ctx, types.NetworkHolesky)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, id2, unsent[0].TxID)

	unconfirmed, err := s.UnconfirmedTransactions(ctx, types.NetworkHolesky)
	require.NoError(t, err)
	require.Len(t, unconfirmed, 1)
	assert.Equal(t, id1, unconfirmed[0].TxID)

	// Queries are network-scoped.
	other, err := s.UnsentTransactions(ctx, types.NetworkPolygon)
	require.NoError(t, err)
	assert.Empty(t, other)
}
