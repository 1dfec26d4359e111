// Package signer supplies the signing capability used to build transfer
// transactions. Signing is pure computation; it never touches the chain,
// so its failures fall under the build-retry policy rather than the
// broadcast one.
package signer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/gridmarket/paydriver/types"
)

// TransferOrder describes one exact-amount token transfer to sign.
type TransferOrder struct {
	Network   types.Network
	Recipient common.Address
	Amount    decimal.Decimal
	Nonce     uint64
}

// Signer produces signed raw transactions for one account.
type Signer interface {
	// Address is the account the signer controls.
	Address() common.Address

	// SignTransfer builds and signs an ERC-20 transfer for the order.
	SignTransfer(order TransferOrder) ([]byte, error)

	// SignFaucet builds and signs a faucet self-funding call. Only
	// meaningful on testnets.
	SignFaucet(network types.Network, nonce uint64) ([]byte, error)
}
