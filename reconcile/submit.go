package reconcile

import (
	"context"
	"fmt"

	"github.com/gridmarket/paydriver/metrics"
	"github.com/gridmarket/paydriver/signer"
	"github.com/gridmarket/paydriver/types"
)

// ProcessPaymentsForAccount converts the account's pending payments into
// signed, unsent transactions. One nonce is allocated for the whole
// batch and advanced locally per built transaction, so transfers in the
// same pass get consecutive nonces without re-querying the chain.
//
// A nonce allocation failure aborts the whole batch with no payment
// marked Sent; individual build failures only affect their own payment.
func (e *Engine) ProcessPaymentsForAccount(ctx context.Context, sgn signer.Signer, network types.Network) error {
	sender := sgn.Address()
	payments, err := e.ledger.PendingPayments(ctx, sender, network)
	if err != nil {
		return fmt.Errorf("failed to load pending payments for %s on %s: %w", sender, network, err)
	}
	if len(payments) == 0 {
		return nil
	}

	e.log.Info("processing payments", map[string]any{
		"count":   len(payments),
		"network": network,
		"sender":  sender.Hex(),
	})

	nonce, err := e.NextNonce(ctx, sender, network)
	if err != nil {
		return fmt.Errorf("nonce allocation for %s on %s: %w", sender, network, err)
	}

	for i := range payments {
		e.handlePayment(ctx, sgn, &payments[i], &nonce)
	}
	return nil
}

// handlePayment builds and persists one transfer. On build failure the
// payment stays Pending until its due date plus the grace window has
// passed; after that it fails permanently. The window is anchored on the
// due date, not on the first failure, so an already overdue payment is
// not retried at all.
func (e *Engine) handlePayment(ctx context.Context, sgn signer.Signer, p *types.Payment, nonce *uint64) {
	raw, err := sgn.SignTransfer(signer.TransferOrder{
		Network:   p.Network,
		Recipient: p.Recipient,
		Amount:    p.Amount,
		Nonce:     *nonce,
	})
	if err == nil {
		tx := &types.Transaction{
			Network: p.Network,
			Kind:    types.TxTransfer,
			Sender:  sgn.Address(),
			Nonce:   *nonce,
			Encoded: raw,
		}
		txID, err := e.ledger.RecordTransaction(ctx, tx)
		if err != nil {
			e.log.Error("failed to record transaction", map[string]any{
				"order_id": p.OrderID, "error": err.Error(),
			})
			return
		}
		if err := e.ledger.BindPayment(ctx, txID, p.OrderID); err != nil {
			e.log.Error("failed to bind payment to transaction", map[string]any{
				"order_id": p.OrderID, "tx_id": txID, "error": err.Error(),
			})
			return
		}
		*nonce++
		return
	}

	deadline := p.DueBy.Add(e.submitTimeout)
	if e.now().After(deadline) {
		e.log.Error("transfer build failed and retry deadline reached, failing payment", map[string]any{
			"order_id": p.OrderID, "deadline": deadline, "error": err.Error(),
		})
		if ferr := e.ledger.MarkPaymentFailed(ctx, p.OrderID); ferr != nil {
			e.log.Error("failed to fail payment", map[string]any{
				"order_id": p.OrderID, "error": ferr.Error(),
			})
			return
		}
		e.metrics.IncCounter(metrics.EventPaymentFailed, e.netLabels(p.Network))
		return
	}
	e.log.Warn("transfer build failed, payment will be retried", map[string]any{
		"order_id": p.OrderID, "retry_until": deadline, "error": err.Error(),
	})
}

// ProcessTransactions broadcasts every unsent transaction for the
// network. Broadcast failures leave the transaction Unsent and are
// retried indefinitely on later passes: nothing was consumed on chain,
// and the signed payload must never be rebuilt with a fresh nonce.
func (e *Engine) ProcessTransactions(ctx context.Context, network types.Network) error {
	client, err := e.client(network)
	if err != nil {
		return err
	}
	txs, err := e.ledger.UnsentTransactions(ctx, network)
	if err != nil {
		return fmt.Errorf("failed to load unsent transactions on %s: %w", network, err)
	}

	for i := range txs {
		tx := &txs[i]
		hash, err := client.Broadcast(ctx, tx.Encoded)
		if err != nil {
			e.log.Error("broadcast failed, will retry next pass", map[string]any{
				"tx_id": tx.TxID, "network": network, "error": err.Error(),
			})
			continue
		}
		if err := e.ledger.MarkSubmitted(ctx, tx.TxID, hash); err != nil {
			e.log.Error("failed to mark transaction submitted", map[string]any{
				"tx_id": tx.TxID, "tx_hash": hash.Hex(), "error": err.Error(),
			})
			continue
		}
		e.metrics.IncCounter(metrics.EventTxSubmitted, e.netLabels(network))
		e.log.Info("transaction submitted", map[string]any{
			"tx_id": tx.TxID, "tx_hash": hash.Hex(), "network": network,
		})
	}
	return nil
}
