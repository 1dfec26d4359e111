// Package store implements the driver's ledger: the persistent record of
// payment obligations and chain transactions, and the single source of
// truth for what has and has not been settled.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gridmarket/paydriver/types"
)

var (
	// ErrNotFound is returned when a payment or transaction does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInconsistentState is returned when a lifecycle transition is
	// requested from a state that does not admit it.
	ErrInconsistentState = errors.New("store: inconsistent state")
)

// Ledger is the transactional contract every reconciliation component
// goes through. No component caches authoritative state outside of it.
type Ledger interface {
	// CreatePayment records a new Pending obligation.
	CreatePayment(ctx context.Context, p *types.Payment) error

	// Payment looks up an obligation by order id.
	Payment(ctx context.Context, orderID string) (*types.Payment, error)

	// PendingPayments returns all Pending obligations for a sender on a
	// network, oldest first.
	PendingPayments(ctx context.Context, sender common.Address, network types.Network) ([]types.Payment, error)

	// UnsentTransactions returns all Unsent transactions for a network.
	UnsentTransactions(ctx context.Context, network types.Network) ([]types.Transaction, error)

	// UnconfirmedTransactions returns all Submitted transactions for a
	// network.
	UnconfirmedTransactions(ctx context.Context, network types.Network) ([]types.Transaction, error)

	// RecordTransaction persists a newly built, not-yet-submitted
	// transaction and returns its id.
	RecordTransaction(ctx context.Context, tx *types.Transaction) (string, error)

	// BindPayment links a Pending obligation to a recorded transaction
	// and moves it to Sent.
	BindPayment(ctx context.Context, txID, orderID string) error

	// MarkSubmitted transitions Unsent -> Submitted and sets the chain
	// hash. Calling it again with the same hash is a no-op; any other
	// repeat fails with ErrInconsistentState.
	MarkSubmitted(ctx context.Context, txID string, txHash common.Hash) error

	// ConfirmSuccess transitions Submitted -> ConfirmedSuccess and moves
	// the linked payments to Confirmed, returning them. A second call on
	// a terminal transaction is a no-op returning no payments.
	ConfirmSuccess(ctx context.Context, txID string) ([]types.Payment, error)

	// ConfirmFailure transitions Submitted -> ConfirmedFailure and
	// returns the linked payments so the caller can fail them. A second
	// call on a terminal transaction is a no-op returning no payments.
	ConfirmFailure(ctx context.Context, txID string) ([]types.Payment, error)

	// MarkPaymentFailed forces a Pending or Sent obligation to Failed.
	MarkPaymentFailed(ctx context.Context, orderID string) error

	// PaymentsForTransaction returns every payment linked to the
	// transaction, oldest first.
	PaymentsForTransaction(ctx context.Context, txID string) ([]types.Payment, error)

	// FirstPaymentForTransaction returns the oldest payment linked to the
	// transaction with the given chain hash, or ErrNotFound.
	FirstPaymentForTransaction(ctx context.Context, txHash common.Hash) (*types.Payment, error)

	// MaxNonce returns the highest nonce of any recorded transaction for
	// the sender on the network. ok is false when none exist.
	MaxNonce(ctx context.Context, sender common.Address, network types.Network) (nonce uint64, ok bool, err error)

	Close() error
}
