package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event counter names recorded by the reconciliation engine.
const (
	EventTxSubmitted   = "tx_submitted"
	EventTxConfirmed   = "tx_confirmed"
	EventTxReverted    = "tx_reverted"
	EventPaymentFailed = "payment_failed"
	EventNotified      = "payment_notified"
)
