package types

// DriverError is the typed error surfaced across package boundaries.
type DriverError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *DriverError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrInvalidPayment     = "INVALID_PAYMENT"
	ErrBuildFailed        = "BUILD_FAILED"
	ErrBroadcastFailed    = "BROADCAST_FAILED"
	ErrChainQuery         = "CHAIN_QUERY_FAILED"
	ErrVerifyFailed       = "VERIFY_FAILED"
	ErrStorage            = "STORAGE_ERROR"
	ErrConfig             = "CONFIG_ERROR"
	ErrNotification       = "NOTIFICATION_FAILED"
)
