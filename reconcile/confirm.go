package reconcile

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/gridmarket/paydriver/bus"
	"github.com/gridmarket/paydriver/clients"
	"github.com/gridmarket/paydriver/logger"
	"github.com/gridmarket/paydriver/metrics"
	"github.com/gridmarket/paydriver/types"
)

// ConfirmPayments inspects the chain state of every submitted
// transaction on the network and drives it to a terminal state. Failures
// on one transaction are logged and never stop the loop.
func (e *Engine) ConfirmPayments(ctx context.Context, network types.Network) error {
	client, err := e.client(network)
	if err != nil {
		return err
	}
	txs, err := e.ledger.UnconfirmedTransactions(ctx, network)
	if err != nil {
		return fmt.Errorf("failed to load unconfirmed transactions on %s: %w", network, err)
	}
	if len(txs) == 0 {
		return nil
	}

	block, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number on %s: %w", network, err)
	}

	for i := range txs {
		e.confirmOne(ctx, client, &txs[i], block)
	}
	return nil
}

func (e *Engine) confirmOne(ctx context.Context, client clients.ChainClient, tx *types.Transaction, block uint64) {
	if tx.TxHash == nil {
		return
	}
	hash := *tx.TxHash
	log := e.log.With(map[string]any{
		"tx_id": tx.TxID, "tx_hash": hash.Hex(), "network": tx.Network,
	})

	// Recover the intended transfer from our own signed payload rather
	// than trusting only what the chain reports back.
	if tx.Kind == types.TxTransfer {
		if _, _, _, err := clients.DecodeRawTransfer(tx.Encoded); err != nil {
			log.Error("stored transaction payload does not decode", map[string]any{"error": err.Error()})
			return
		}
	}

	status, err := client.TxStatus(ctx, hash, block)
	if err != nil {
		log.Error("chain status lookup failed", map[string]any{"error": err.Error()})
		return
	}

	switch status {
	case clients.ChainTxNotFound:
		log.Info("transaction not found on chain", nil)
	case clients.ChainTxPending:
		log.Info("transaction found on chain but still pending", nil)
	case clients.ChainTxAwaitingConfirmations:
		log.Info("transaction included, waiting for confirmations", nil)
	case clients.ChainTxSucceeded:
		e.settleSuccess(ctx, client, tx, hash, log)
	case clients.ChainTxReverted:
		e.settleFailure(ctx, tx, log)
	}
}

func (e *Engine) settleSuccess(ctx context.Context, client clients.ChainClient, tx *types.Transaction, hash common.Hash, log logger.Logger) {
	payments, err := e.ledger.ConfirmSuccess(ctx, tx.TxID)
	if err != nil {
		log.Error("failed to confirm transaction in ledger", map[string]any{"error": err.Error()})
		return
	}
	e.metrics.IncCounter(metrics.EventTxConfirmed, e.netLabels(tx.Network))
	log.Info("transaction confirmed and succeeded", nil)

	// Faucet self-funding carries no obligations to settle.
	if tx.Kind == types.TxFaucet {
		log.Debug("faucet transaction confirmed", nil)
		return
	}
	// Ad-hoc transfers have no linked payments either.
	if len(payments) == 0 {
		log.Debug("transfer confirmed with no linked payments", nil)
		return
	}

	orderIDs := make([]string, len(payments))
	for i, p := range payments {
		orderIDs[i] = p.OrderID
	}

	platform, err := tx.Network.Platform()
	if err != nil {
		log.Error("no payment platform for network", map[string]any{"error": err.Error()})
		return
	}

	details, err := client.VerifyTransfer(ctx, hash)
	if err != nil {
		log.Warn("authoritative transfer details unavailable, creating bespoke details", map[string]any{
			"error": err.Error(),
		})
		details = e.bespokeDetails(ctx, hash, payments)
		if details == nil {
			return
		}
	}

	notification := &bus.Notification{
		Driver:   e.driverName,
		Platform: platform,
		OrderIDs: orderIDs,
		Details:  details,
		TxHash:   hash,
	}
	// Ledger state is authoritative once the chain finalized; a failed
	// notification is logged and left to out-of-band retry.
	if err := e.bus.NotifyPayment(ctx, notification); err != nil {
		log.Error("settlement notification failed", map[string]any{"error": err.Error()})
		return
	}
	e.metrics.IncCounter(metrics.EventNotified, e.netLabels(tx.Network))
}

// bespokeDetails reconstructs transfer details locally when the chain
// client cannot supply them: sender and recipient from the oldest linked
// payment, timestamp now, amount the sum over every payment in the
// batch (one transaction may settle several obligations).
func (e *Engine) bespokeDetails(ctx context.Context, hash common.Hash, payments []types.Payment) *types.PaymentDetails {
	first, err := e.ledger.FirstPaymentForTransaction(ctx, hash)
	if err != nil {
		e.log.Error("no payment found for confirmed transaction", map[string]any{
			"tx_hash": hash.Hex(), "error": err.Error(),
		})
		return nil
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return &types.PaymentDetails{
		Sender:    first.Sender,
		Recipient: first.Recipient,
		Amount:    total,
		Date:      e.now(),
	}
}

func (e *Engine) settleFailure(ctx context.Context, tx *types.Transaction, log logger.Logger) {
	payments, err := e.ledger.ConfirmFailure(ctx, tx.TxID)
	if err != nil {
		log.Error("failed to record transaction failure in ledger", map[string]any{"error": err.Error()})
		return
	}
	e.metrics.IncCounter(metrics.EventTxReverted, e.netLabels(tx.Network))
	log.Info("transaction confirmed but resulted in error", nil)

	for _, p := range payments {
		if err := e.ledger.MarkPaymentFailed(ctx, p.OrderID); err != nil {
			log.Error("failed to fail payment after revert", map[string]any{
				"order_id": p.OrderID, "error": err.Error(),
			})
			continue
		}
		e.metrics.IncCounter(metrics.EventPaymentFailed, e.netLabels(tx.Network))
	}
}
