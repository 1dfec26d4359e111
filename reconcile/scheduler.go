package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/gridmarket/paydriver/signer"
	"github.com/gridmarket/paydriver/types"
)

// Scheduler fires a reconciliation pass per tracked network at a fixed
// interval. Networks run concurrently with each other; within one
// network a pass is strictly sequential, which the nonce allocator
// depends on.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	mu       sync.Mutex
	accounts map[types.Network][]signer.Signer

	wg sync.WaitGroup
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = types.DefaultInterval.Std()
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		accounts: make(map[types.Network][]signer.Signer),
	}
}

// AddAccount registers a paying account on a network. Payments for
// unregistered accounts stay Pending until a signer shows up.
func (s *Scheduler) AddAccount(network types.Network, sgn signer.Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[network] = append(s.accounts[network], sgn)
}

func (s *Scheduler) accountsFor(network types.Network) []signer.Signer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]signer.Signer, len(s.accounts[network]))
	copy(out, s.accounts[network])
	return out
}

// Start launches one reconciliation loop per network with a registered
// chain client. Cancelling ctx stops future ticks; an in-flight pass is
// allowed to finish so a recorded transaction is never abandoned before
// being marked submitted.
func (s *Scheduler) Start(ctx context.Context) {
	for _, network := range s.engine.Networks() {
		s.wg.Add(1)
		go s.runNetwork(ctx, network)
	}
}

// Wait blocks until all network loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runNetwork(ctx context.Context, network types.Network) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Passes run on an uncancellable context so shutdown does not abort
	// a pass between recording and submitting a transaction.
	passCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunPass(passCtx, network)
		}
	}
}

// RunPass executes one reconciliation pass: confirmation polling first,
// then payment processing per account, then transaction submission.
// Confirming first settles failures that should short-circuit further
// processing before new transactions are built for the same accounts.
// Step errors are aggregated and logged; they never unwind the loop.
func (s *Scheduler) RunPass(ctx context.Context, network types.Network) {
	start := time.Now()
	var result *multierror.Error

	if err := s.engine.ConfirmPayments(ctx, network); err != nil {
		result = multierror.Append(result, err)
	}
	for _, sgn := range s.accountsFor(network) {
		if err := s.engine.ProcessPaymentsForAccount(ctx, sgn, network); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.engine.ProcessTransactions(ctx, network); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		s.engine.log.Warn("reconciliation pass finished with errors", map[string]any{
			"network": network, "error": err.Error(),
		})
	}
	s.engine.metrics.ObserveLatency("reconcile_pass", time.Since(start), s.engine.netLabels(network))
}
