// Package notify provides notification.Dispatcher adapters.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"procurement/internal/domain/notification"
	"procurement/pkg/logger"
)

// Webhook posts every message as JSON to a URL.
type Webhook struct {
	url        string
	httpClient *http.Client
}

var _ notification.Dispatcher = (*Webhook)(nil)

// NewWebhook creates a webhook dispatcher.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Dispatch implements notification.Dispatcher.
func (w *Webhook) Dispatch(ctx context.Context, msg notification.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Log writes messages to the application log. Used when no webhook is configured.
type Log struct{}

var _ notification.Dispatcher = Log{}

// Dispatch implements notification.Dispatcher.
func (Log) Dispatch(ctx context.Context, msg notification.Message) error {
	logger.Info(ctx, "notification",
		"title", msg.Title,
		"recipients", msg.Recipients,
		"doc_type", msg.Metadata.DocType,
		"action", msg.Metadata.Action,
		"document_no", msg.Metadata.DocumentNo,
	)
	return nil
}
