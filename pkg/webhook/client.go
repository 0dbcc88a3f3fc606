// Package webhook delivers status notifications to caller-supplied URLs
// (§6). Grounded on pkg/upstream/novita/client.go's request/response
// logging shape, stripped down to a single best-effort POST — webhook
// delivery has no circuit breaker or rate limiter because a slow or
// failing webhook endpoint must never block the job worker that reports it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/logger"
)

// Client delivers WebhookPayload bodies to arbitrary HTTP(S) endpoints.
type Client struct {
	httpClient *http.Client
	provenance *model.Provenance
}

// New builds a webhook delivery client with a bounded per-call timeout.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithProvenance stamps every delivered payload with {cluster, namespace,
// pod}, as reported by pkg/k8sinfo. A nil provenance leaves payloads
// unstamped.
func (c *Client) WithProvenance(p *model.Provenance) *Client {
	c.provenance = p
	return c
}

// Deliver POSTs payload as JSON to url. A non-2xx response or transport
// failure is returned as an error for the caller's retry policy to handle
// (job workers retry per the job queue's own backoff, not this package's).
func (c *Client) Deliver(ctx context.Context, url string, payload model.WebhookPayload) error {
	if payload.Provenance == nil {
		payload.Provenance = c.provenance
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	logger.DebugCtx(ctx, "delivering webhook to %s: %s", url, logger.PrettyJSON(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "novita-orchestrator-webhook/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint %s returned status %d: %s", url, resp.StatusCode, string(respBody))
	}
	return nil
}
