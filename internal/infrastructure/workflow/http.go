package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"procurement/internal/core/apperror"
	domain "procurement/internal/domain/workflow"
)

// HTTPNavigator calls a remote workflow navigation service.
//
//	POST {base}/start     {workflow_id, payload}                                -> navigation
//	POST {base}/stage     {workflow_id, stage}                                  -> stage info
//	POST {base}/navigate  {workflow_id, current_stage, previous_stage, payload} -> navigation
type HTTPNavigator struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.Navigator = (*HTTPNavigator)(nil)

// NewHTTPNavigator creates a client for baseURL. A nil client gets a default
// one with timeout.
func NewHTTPNavigator(baseURL string, client *http.Client, timeout time.Duration) *HTTPNavigator {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPNavigator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Start implements workflow.Navigator.
func (h *HTTPNavigator) Start(ctx context.Context, workflowID string, payload domain.Payload) (*domain.Navigation, error) {
	var nav domain.Navigation
	body := map[string]any{"workflow_id": workflowID, "payload": payload}
	if err := h.post(ctx, "/start", body, &nav); err != nil {
		return nil, err
	}
	return &nav, nil
}

// Stage implements workflow.Navigator.
func (h *HTTPNavigator) Stage(ctx context.Context, workflowID, stage string) (*domain.StageInfo, error) {
	var info domain.StageInfo
	body := map[string]any{"workflow_id": workflowID, "stage": stage}
	if err := h.post(ctx, "/stage", body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Navigate implements workflow.Navigator.
func (h *HTTPNavigator) Navigate(ctx context.Context, req domain.NavigateRequest) (*domain.Navigation, error) {
	var nav domain.Navigation
	if err := h.post(ctx, "/navigate", req, &nav); err != nil {
		return nil, err
	}
	if nav.CurrentStageInfo.Name == "" {
		return nil, fmt.Errorf("navigate: response has no current stage")
	}
	return &nav, nil
}

func (h *HTTPNavigator) post(ctx context.Context, path string, in, out any) error {
	ctx, span := tracer.Start(ctx, "workflow.http"+strings.ReplaceAll(path, "/", "."), trace.WithAttributes(
		attribute.String("http.url", h.baseURL+path),
	))
	defer span.End()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NewNotFound("workflow", path).WithDetail("response", string(respBody))
	case resp.StatusCode >= 300:
		return fmt.Errorf("workflow service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
