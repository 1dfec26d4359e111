// Package clients provides the chain-client abstraction the driver
// reconciles against, and its go-ethereum implementation.
package clients

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gridmarket/paydriver/types"
)

// TxChainStatus is the chain's view of a submitted transaction. Exactly
// one state holds at a time; the ordering of the enum mirrors the order
// the poller checks them in.
type TxChainStatus int

const (
	// ChainTxNotFound: the chain does not know the hash yet.
	ChainTxNotFound TxChainStatus = iota

	// ChainTxPending: known but not yet included in a block.
	ChainTxPending

	// ChainTxAwaitingConfirmations: included but below the required
	// confirmation depth.
	ChainTxAwaitingConfirmations

	// ChainTxSucceeded: finalized and executed successfully.
	ChainTxSucceeded

	// ChainTxReverted: finalized but the call reverted.
	ChainTxReverted
)

func (s TxChainStatus) String() string {
	switch s {
	case ChainTxNotFound:
		return "not-found"
	case ChainTxPending:
		return "pending"
	case ChainTxAwaitingConfirmations:
		return "awaiting-confirmations"
	case ChainTxSucceeded:
		return "succeeded"
	case ChainTxReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Final reports whether the chain state is terminal.
func (s TxChainStatus) Final() bool {
	return s == ChainTxSucceeded || s == ChainTxReverted
}

// ChainClient is the driver's window onto one network. Implementations
// are registered per network; all methods may block on chain I/O and
// honor the context.
type ChainClient interface {
	// Network returns the network this client is bound to.
	Network() types.Network

	// BlockNumber returns the current chain height.
	BlockNumber(ctx context.Context) (uint64, error)

	// Broadcast hands a signed raw transaction to the chain and returns
	// its hash.
	Broadcast(ctx context.Context, rawTx []byte) (common.Hash, error)

	// TxStatus classifies the chain state of the transaction with the
	// given hash relative to the current height.
	TxStatus(ctx context.Context, txHash common.Hash, currentBlock uint64) (TxChainStatus, error)

	// NextNonce returns the chain's next expected nonce for the account,
	// including transactions still in the mempool.
	NextNonce(ctx context.Context, account common.Address) (uint64, error)

	// VerifyTransfer recovers authoritative transfer details for a mined
	// transaction. Errors when the chain cannot supply them; callers fall
	// back to locally reconstructed details.
	VerifyTransfer(ctx context.Context, txHash common.Hash) (*types.PaymentDetails, error)

	Close()
}
