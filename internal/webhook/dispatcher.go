// Package webhook delivers validation outcomes back to the submitting
// service. Delivery is at-most-once after bounded retries; a webhook that
// keeps failing is logged and dropped rather than wedging the queue.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/pkg/httpretry"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

// Validation is the scoring verdict carried in a webhook payload.
type Validation struct {
	Approved          bool    `json:"aiAgentResponseApproved"`
	SignificanceScore float64 `json:"significanceScore"`
	Reason            string  `json:"reason,omitempty"`
	FinalUserScore    float64 `json:"finalUserScore"`
	PostID            string  `json:"post_id,omitempty"`
}

// Payload is the JSON body POSTed to the caller's webhook URL.
type Payload struct {
	CreatorAddress    string     `json:"creatorAddress"`
	InteractorAddress string     `json:"interactorAddress,omitempty"`
	Validation        Validation `json:"validation"`
}

// Dispatcher posts payloads to webhook URLs with retries.
type Dispatcher struct {
	client httpretry.HTTPDoer
}

// NewDispatcher builds a dispatcher from the webhook configuration.
func NewDispatcher(cfg config.WebhookConfig) *Dispatcher {
	rc := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout}, cfg.MaxRetries)
	rc.SetBackoff(cfg.BaseDelay, cfg.MaxDelay)
	return &Dispatcher{client: rc}
}

// NewDispatcherWithClient wires a custom client. Tests only.
func NewDispatcherWithClient(client httpretry.HTTPDoer) *Dispatcher {
	return &Dispatcher{client: client}
}

// Deliver POSTs the payload. Any 2xx response is success. The underlying
// client already retried transient failures, so an error here is final;
// the caller logs and drops.
func (d *Dispatcher) Deliver(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		logger.Warn("webhook: delivery failed, dropping",
			"url", url, "elapsed", time.Since(start), "error", err)
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("webhook: delivery rejected, dropping",
			"url", url, "status", resp.StatusCode)
		return fmt.Errorf("webhook delivery rejected with status %d", resp.StatusCode)
	}

	logger.Debug("webhook: delivered", "url", url, "elapsed", time.Since(start))
	return nil
}
