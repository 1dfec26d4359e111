// Package paydriver implements an ERC-20 payment driver for a
// decentralized computation marketplace: it turns ledger obligations
// into on-chain token transfers and reconciles the resulting
// transactions back into confirmed or failed settlement state.
package paydriver

import (
	"context"
	"fmt"

	"github.com/gridmarket/paydriver/bus"
	"github.com/gridmarket/paydriver/clients"
	"github.com/gridmarket/paydriver/logger"
	"github.com/gridmarket/paydriver/metrics"
	"github.com/gridmarket/paydriver/reconcile"
	"github.com/gridmarket/paydriver/signer"
	"github.com/gridmarket/paydriver/store"
	"github.com/gridmarket/paydriver/types"
	"github.com/gridmarket/paydriver/utils"
)

// Driver is the top-level handle: it owns the ledger, one chain client
// per configured network, and the reconciliation scheduler.
type Driver struct {
	cfg       *types.DriverConfig
	ledger    store.Ledger
	clients   []clients.ChainClient
	engine    *reconcile.Engine
	scheduler *reconcile.Scheduler

	bus     bus.Bus
	log     logger.Logger
	metrics metrics.Recorder

	cancel context.CancelFunc
}

// New validates the configuration, opens the ledger and connects a chain
// client for every configured network.
func New(cfg *types.DriverConfig, opts ...Option) (*Driver, error) {
	if err := utils.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:     cfg,
		bus:     bus.Noop{},
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}

	ledger, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	d.ledger = ledger

	engine, err := reconcile.NewEngine(reconcile.Params{
		Ledger:        ledger,
		Bus:           d.bus,
		Logger:        d.log,
		Metrics:       d.metrics,
		DriverName:    cfg.Name,
		SubmitTimeout: cfg.SubmitTimeout.Std(),
	})
	if err != nil {
		ledger.Close()
		return nil, err
	}
	d.engine = engine

	for network, netCfg := range cfg.Networks {
		client, err := clients.NewEVMClient(network, netCfg)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to create client for %s: %w", network, err)
		}
		engine.AddClient(client)
		d.clients = append(d.clients, client)
	}

	d.scheduler = reconcile.NewScheduler(engine, cfg.Interval.Std())
	return d, nil
}

// AddAccount registers a paying account on a network.
func (d *Driver) AddAccount(network types.Network, sgn signer.Signer) error {
	if _, ok := d.cfg.Networks[network]; !ok {
		return &types.DriverError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("network %s is not configured", network),
		}
	}
	d.scheduler.AddAccount(network, sgn)
	return nil
}

// AddLocalAccount registers an account backed by an in-process key.
func (d *Driver) AddLocalAccount(network types.Network, hexKey string) (signer.Signer, error) {
	sgn, err := signer.NewLocalSigner(hexKey, d.cfg.Networks)
	if err != nil {
		return nil, err
	}
	if err := d.AddAccount(network, sgn); err != nil {
		return nil, err
	}
	return sgn, nil
}

// SchedulePayment records a new pending obligation. The reconciliation
// loop picks it up on the next pass for its sender's account.
func (d *Driver) SchedulePayment(ctx context.Context, p *types.Payment) error {
	if p.OrderID == "" {
		return &types.DriverError{Code: types.ErrInvalidPayment, Message: "order id is required"}
	}
	if p.Amount.IsNegative() {
		return &types.DriverError{Code: types.ErrInvalidPayment, Message: "amount must be non-negative"}
	}
	if _, ok := d.cfg.Networks[p.Network]; !ok {
		return &types.DriverError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("network %s is not configured", p.Network),
		}
	}
	p.Status = types.PaymentPending
	if err := d.ledger.CreatePayment(ctx, p); err != nil {
		return err
	}
	d.log.Info("payment scheduled", map[string]any{
		"order_id": p.OrderID,
		"network":  p.Network,
		"amount":   p.Amount.String(),
		"due_by":   p.DueBy,
	})
	return nil
}

// Fund records a faucet self-funding transaction for the account on a
// testnet. The transaction is broadcast by the next reconciliation pass.
func (d *Driver) Fund(ctx context.Context, network types.Network, sgn signer.Signer) (string, error) {
	nonce, err := d.engine.NextNonce(ctx, sgn.Address(), network)
	if err != nil {
		return "", err
	}
	raw, err := sgn.SignFaucet(network, nonce)
	if err != nil {
		return "", err
	}
	txID, err := d.ledger.RecordTransaction(ctx, &types.Transaction{
		Network: network,
		Kind:    types.TxFaucet,
		Sender:  sgn.Address(),
		Nonce:   nonce,
		Encoded: raw,
	})
	if err != nil {
		return "", err
	}
	d.log.Info("faucet transaction recorded", map[string]any{
		"tx_id": txID, "network": network, "sender": sgn.Address().Hex(),
	})
	return txID, nil
}

// Start launches the reconciliation scheduler. It returns immediately;
// use Close to stop.
func (d *Driver) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.scheduler.Start(ctx)
}

// Close stops the scheduler, waits for in-flight passes to finish and
// releases the ledger and client connections.
func (d *Driver) Close() {
	if d.cancel != nil {
		d.cancel()
		d.scheduler.Wait()
	}
	for _, c := range d.clients {
		c.Close()
	}
	if d.ledger != nil {
		d.ledger.Close()
	}
}
