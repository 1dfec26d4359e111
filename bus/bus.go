// Package bus carries settlement notifications to the marketplace. The
// bus is best-effort: delivery failures never roll back ledger state.
package bus

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gridmarket/paydriver/types"
)

// Notification is one settled transfer, covering every order id paid by
// the transaction.
type Notification struct {
	Driver   string                `json:"driver"`
	Platform string                `json:"platform"`
	OrderIDs []string              `json:"orderIds"`
	Details  *types.PaymentDetails `json:"details"`
	TxHash   common.Hash           `json:"txHash"`
}

// Bus delivers settlement notifications downstream.
type Bus interface {
	NotifyPayment(ctx context.Context, n *Notification) error
}

type Noop struct{}

func (Noop) NotifyPayment(context.Context, *Notification) error { return nil }
