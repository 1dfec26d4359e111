// Package reconcile implements the transaction-lifecycle engine: the
// periodic loop that turns pending payments into signed transactions,
// broadcasts them, and polls the chain until every transaction reaches a
// terminal state.
package reconcile

import (
	"fmt"
	"time"

	"github.com/gridmarket/paydriver/bus"
	"github.com/gridmarket/paydriver/clients"
	"github.com/gridmarket/paydriver/logger"
	"github.com/gridmarket/paydriver/metrics"
	"github.com/gridmarket/paydriver/store"
	"github.com/gridmarket/paydriver/types"
)

// Engine coordinates the ledger, the chain clients and the settlement
// bus. All authoritative state lives in the ledger; the engine never
// caches lifecycle state between passes.
type Engine struct {
	ledger        store.Ledger
	clients       map[types.Network]clients.ChainClient
	bus           bus.Bus
	log           logger.Logger
	metrics       metrics.Recorder
	driverName    string
	submitTimeout time.Duration

	// now is swapped out in tests.
	now func() time.Time
}

// Params configures a new Engine. Ledger and DriverName are required;
// everything else defaults to a noop implementation.
type Params struct {
	Ledger        store.Ledger
	Bus           bus.Bus
	Logger        logger.Logger
	Metrics       metrics.Recorder
	DriverName    string
	SubmitTimeout time.Duration
}

func NewEngine(p Params) (*Engine, error) {
	if p.Ledger == nil {
		return nil, fmt.Errorf("reconcile: ledger is required")
	}
	if p.DriverName == "" {
		return nil, fmt.Errorf("reconcile: driver name is required")
	}
	if p.Bus == nil {
		p.Bus = bus.Noop{}
	}
	if p.Logger == nil {
		p.Logger = logger.NoopLogger{}
	}
	if p.Metrics == nil {
		p.Metrics = metrics.NoopRecorder{}
	}
	if p.SubmitTimeout <= 0 {
		p.SubmitTimeout = types.DefaultSubmitTimeout.Std()
	}
	return &Engine{
		ledger:        p.Ledger,
		clients:       make(map[types.Network]clients.ChainClient),
		bus:           p.Bus,
		log:           p.Logger.With(map[string]any{"component": "reconcile"}),
		metrics:       p.Metrics,
		driverName:    p.DriverName,
		submitTimeout: p.SubmitTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// AddClient registers the chain client for its network, replacing any
// previous one.
func (e *Engine) AddClient(c clients.ChainClient) {
	e.clients[c.Network()] = c
}

// Networks lists every network with a registered client.
func (e *Engine) Networks() []types.Network {
	out := make([]types.Network, 0, len(e.clients))
	for network := range e.clients {
		out = append(out, network)
	}
	return out
}

func (e *Engine) client(network types.Network) (clients.ChainClient, error) {
	c, ok := e.clients[network]
	if !ok {
		return nil, &types.DriverError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("no chain client for network %s", network),
		}
	}
	return c, nil
}

func (e *Engine) netLabels(network types.Network) map[string]string {
	return map[string]string{"network": string(network)}
}
