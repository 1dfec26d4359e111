package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jpillora/backoff"

	"github.com/gridmarket/paydriver/types"
)

var _ Bus = (*HTTPBus)(nil)

const notifyAttempts = 3

// HTTPBus posts notifications as JSON to a single endpoint, retrying
// transient failures with bounded backoff. Persistent failures surface
// to the caller, which logs and moves on.
type HTTPBus struct {
	endpoint string
	client   *http.Client
}

func NewHTTPBus(endpoint string) *HTTPBus {
	return &HTTPBus{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *HTTPBus) NotifyPayment(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return &types.DriverError{
			Code:    types.ErrNotification,
			Message: fmt.Sprintf("failed to encode notification: %v", err),
		}
	}

	bo := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: true}
	var lastErr error
	for attempt := 0; attempt < notifyAttempts; attempt++ {
		lastErr = b.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.Duration()):
		}
	}
	return &types.DriverError{
		Code:    types.ErrNotification,
		Message: fmt.Sprintf("notification delivery failed after %d attempts: %v", notifyAttempts, lastErr),
	}
}

func (b *HTTPBus) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bus returned status %d", resp.StatusCode)
	}
	return nil
}
