package reconcile

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gridmarket/paydriver/types"
)

// NextNonce returns the next unused nonce for the account on the
// network: the maximum of the chain's next expected nonce and one past
// the highest nonce of any transaction already recorded in the ledger.
// The ledger side covers transactions submitted before a restart that
// the chain does not report yet, and unsent transactions whose nonces
// are reserved but not yet visible anywhere on chain.
//
// The caller allocates once per account batch and increments locally for
// each transaction built within that batch.
func (e *Engine) NextNonce(ctx context.Context, sender common.Address, network types.Network) (uint64, error) {
	client, err := e.client(network)
	if err != nil {
		return 0, err
	}
	chainNonce, err := client.NextNonce(ctx, sender)
	if err != nil {
		return 0, err
	}
	ledgerNonce, ok, err := e.ledger.MaxNonce(ctx, sender, network)
	if err != nil {
		return 0, err
	}
	next := chainNonce
	if ok && ledgerNonce+1 > next {
		next = ledgerNonce + 1
	}
	return next, nil
}
