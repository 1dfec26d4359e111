// Package types defines the data model shared by the payment driver:
// payments (ledger obligations), transactions, their lifecycles, and the
// driver configuration.
package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment obligation.
type PaymentStatus int

const (
	// PaymentPending is a freshly created obligation, not yet bound to a
	// transaction.
	PaymentPending PaymentStatus = iota + 1

	// PaymentSent is bound to exactly one transaction awaiting chain
	// confirmation.
	PaymentSent

	// PaymentConfirmed is terminal: the transfer was mined and succeeded.
	PaymentConfirmed

	// PaymentFailed is terminal: the transfer reverted or the retry
	// deadline passed.
	PaymentFailed
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPending:
		return "pending"
	case PaymentSent:
		return "sent"
	case PaymentConfirmed:
		return "confirmed"
	case PaymentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentConfirmed || s == PaymentFailed
}

// Payment is an obligation of Sender to pay Recipient the given amount of
// the network's token by DueBy. The OrderID correlates the payment to the
// agreement that produced it.
type Payment struct {
	OrderID   string          `json:"orderId" validate:"required"`
	Sender    common.Address  `json:"sender"`
	Recipient common.Address  `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Network   Network         `json:"network" validate:"required"`
	DueBy     time.Time       `json:"dueBy"`
	Status    PaymentStatus   `json:"status"`
	TxID      string          `json:"txId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TxStatus is the lifecycle state of a driver transaction.
type TxStatus int

const (
	// TxUnsent is built and signed but never handed to the chain.
	TxUnsent TxStatus = iota + 1

	// TxSubmitted has a chain hash; its execution outcome is unknown.
	TxSubmitted

	// TxConfirmedSuccess is terminal: mined and executed successfully.
	TxConfirmedSuccess

	// TxConfirmedFailure is terminal: mined but the call reverted.
	TxConfirmedFailure
)

func (s TxStatus) String() string {
	switch s {
	case TxUnsent:
		return "unsent"
	case TxSubmitted:
		return "submitted"
	case TxConfirmedSuccess:
		return "confirmed-success"
	case TxConfirmedFailure:
		return "confirmed-failure"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s TxStatus) Terminal() bool {
	return s == TxConfirmedSuccess || s == TxConfirmedFailure
}

// TxKind distinguishes ordinary transfers from self-funding transactions.
type TxKind int

const (
	TxTransfer TxKind = iota + 1
	TxFaucet
)

func (k TxKind) String() string {
	switch k {
	case TxTransfer:
		return "transfer"
	case TxFaucet:
		return "faucet"
	default:
		return "unknown"
	}
}

// Transaction is a signed chain transaction owned by the driver. Encoded
// holds the full signed payload; the hash is set once the chain accepts
// the broadcast and never changes afterwards.
type Transaction struct {
	TxID      string
	Network   Network
	Kind      TxKind
	Sender    common.Address
	Nonce     uint64
	Encoded   []byte
	TxHash    *common.Hash
	Status    TxStatus
	CreatedAt time.Time
}

// PaymentDetails describe a settled transfer for the notification bus.
type PaymentDetails struct {
	Sender    common.Address  `json:"sender"`
	Recipient common.Address  `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
}

// NetworkConfig configures the driver's view of one chain.
type NetworkConfig struct {
	RPCUrl        string `toml:"rpc_url" json:"rpcUrl" validate:"required"`
	TokenContract string `toml:"token_contract" json:"tokenContract" validate:"required"`
	// FaucetContract is only meaningful on testnets.
	FaucetContract string `toml:"faucet_contract" json:"faucetContract,omitempty"`
	// Confirmations overrides the network default when > 0.
	Confirmations uint64 `toml:"confirmations" json:"confirmations,omitempty"`
	GasLimit      uint64 `toml:"gas_limit" json:"gasLimit,omitempty"`
	GasPriceGwei  int64  `toml:"gas_price_gwei" json:"gasPriceGwei,omitempty"`
}

// DriverConfig is the top-level driver configuration.
type DriverConfig struct {
	// Name identifies this driver on the settlement bus.
	Name string `toml:"name" json:"name" validate:"required"`

	// DBPath is the sqlite ledger location; ":memory:" is accepted.
	DBPath string `toml:"db_path" json:"dbPath" validate:"required"`

	// Interval between reconciliation passes per network.
	Interval Duration `toml:"interval" json:"interval"`

	// SubmitTimeout is the grace window added to a payment's due date
	// before a failing build gives up permanently.
	SubmitTimeout Duration `toml:"submit_timeout" json:"submitTimeout"`

	Networks map[Network]NetworkConfig `toml:"networks" json:"networks" validate:"required,dive"`
}

const (
	DefaultInterval      = Duration(10 * time.Second)
	DefaultSubmitTimeout = Duration(15 * time.Minute)
)
