package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Exporter forwards SecurityEvents to a remote sink (SIEM, webhook, log
// aggregator) in addition to the primary Store. Export failures are
// logged by Logger but never block or fail the audit pipeline.
type Exporter interface {
	ExportBatch(ctx context.Context, events []SecurityEvent) error
}

// NoopExporter discards every batch. It is the Logger default when no
// remote sink is configured.
type NoopExporter struct{}

// ExportBatch implements Exporter.
func (NoopExporter) ExportBatch(ctx context.Context, events []SecurityEvent) error { return nil }

// WebhookExporter POSTs each batch as a JSON array to a configured URL.
// It is a thin adapter, not a general-purpose HTTP client: callers
// needing retries, auth headers, or circuit breaking should wrap the
// *http.Client they pass in.
type WebhookExporter struct {
	URL        string
	HTTPClient *http.Client
}

// NewWebhookExporter returns a WebhookExporter posting to url with a
// default 5s-timeout client.
func NewWebhookExporter(url string) *WebhookExporter {
	return &WebhookExporter{URL: url, HTTPClient: &http.Client{Timeout: 5 * time.Second}}
}

// ExportBatch implements Exporter.
func (w *WebhookExporter) ExportBatch(ctx context.Context, events []SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}
	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal audit batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build audit webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post audit batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit webhook returned status %d", resp.StatusCode)
	}
	return nil
}
