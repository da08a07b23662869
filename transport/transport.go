// Package transport is the HTTP client side of the peer RPC protocol.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"peerbid/metrics"
)

// Caller issues a single RPC to a remote peer. Implementations are safe for
// concurrent use.
type Caller interface {
	Call(ctx context.Context, addr, method string, payload interface{}) (json.RawMessage, error)
}

const (
	DefaultCallTimeout = 5 * time.Second

	maxResponseBytes = 1024 * 1024 // 1 MB
)

// HTTPCaller POSTs JSON payloads to /v0/<method> on the peer's address. Each
// call is bounded by Timeout on top of whatever deadline the caller's context
// carries.
type HTTPCaller struct {
	Client  *http.Client  // optional, default http.DefaultClient
	Timeout time.Duration // optional, default DefaultCallTimeout
}

var _ Caller = (*HTTPCaller)(nil)

func (c *HTTPCaller) Call(ctx context.Context, addr, method string, payload interface{}) (json.RawMessage, error) {
	defer func(began time.Time) {
		metrics.OpWait("rpc "+method, time.Since(began))
	}(time.Now())

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	uri := addr
	if !strings.HasPrefix(uri, "http") {
		uri = "http://" + uri
	}
	uri = strings.TrimSuffix(uri, "/") + "/v0/" + method

	req, err := http.NewRequestWithContext(ctx, "POST", uri, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, addr, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, addr, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %s (%s)", method, addr, resp.Status, compactBody(raw))
	}

	return raw, nil
}

func compactBody(raw []byte) string {
	s := strings.Join(strings.Fields(string(raw)), " ")
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	if s == "" {
		s = "empty body"
	}
	return s
}
