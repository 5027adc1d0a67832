package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDisabled is returned by Disabled for every payout.
var ErrDisabled = errors.New("bank payouts are not configured")

// Request is what the bank-payout collaborator needs to move money.
type Request struct {
	UserID     string          `json:"userId"`
	Amount     decimal.Decimal `json:"amount"`
	AccountRef string          `json:"accountRef"`
}

// Sender hands a payout to the external bank rail. A nil error means the
// payout was accepted; anything else means no money moved.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// Disabled refuses every payout so wallets are never zeroed without a rail.
type Disabled struct{}

// Send always fails with ErrDisabled.
func (Disabled) Send(context.Context, Request) error { return ErrDisabled }

// HTTPSender posts payout requests as JSON to a collaborator endpoint.
type HTTPSender struct {
	url    string
	client *http.Client
}

// NewHTTPSender creates a sender for url with the given request timeout.
func NewHTTPSender(url string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{url: url, client: &http.Client{Timeout: timeout}}
}

// Send posts req and treats any 2xx response as success.
func (h *HTTPSender) Send(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build payout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payout request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payout rejected: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
