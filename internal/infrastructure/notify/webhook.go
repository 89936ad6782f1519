// Package notify delivers monitor events to an external webhook endpoint.
// Delivery is best-effort by design: the monitor commits state locally first
// and a failed POST is logged by the caller, never retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stellarperps/perpmon/internal/domain"
)

const (
	EventTypeLiquidation = "liquidation"
	EventTypePriceAlert  = "price_alert"
	EventTypeFundingRate = "funding_rate"
)

// WebhookNotifier POSTs events as JSON envelopes to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) NotifyLiquidation(ctx context.Context, event *domain.LiquidationEvent) error {
	return n.post(ctx, EventTypeLiquidation, event)
}

func (n *WebhookNotifier) NotifyPriceAlert(ctx context.Context, alert *domain.PriceAlert) error {
	return n.post(ctx, EventTypePriceAlert, alert)
}

func (n *WebhookNotifier) NotifyFundingRate(ctx context.Context, sample *domain.FundingSample) error {
	return n.post(ctx, EventTypeFundingRate, sample)
}

// post wraps the event in the delivery envelope and sends it. Any non-2xx
// response is an error.
func (n *WebhookNotifier) post(ctx context.Context, eventType string, event any) error {
	envelope := map[string]any{
		"type":      eventType,
		"event":     event,
		"timestamp": time.Now().UnixMilli(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
