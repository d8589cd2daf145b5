package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstream marks gateway transport failures and non-2xx responses.
// Initiation is never retried; the caller sees the failure directly.
var ErrUpstream = errors.New("payment gateway error")

// InitRequest is the charge initialization payload forwarded to the gateway.
type InitRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"` // minor currency units
	Reference string `json:"reference,omitempty"`
}

// Gateway abstracts the remote payment service for testing.
type Gateway interface {
	Initialize(ctx context.Context, req InitRequest) (json.RawMessage, error)
}

// Client talks to the Paystack-style REST gateway.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a Client. timeout guards the whole outbound call.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Initialize starts a charge and returns the gateway's response body
// verbatim so the storefront client can drive the checkout flow from it.
func (c *Client) Initialize(ctx context.Context, req InitRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal init payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build init request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return json.RawMessage(body), nil
}
