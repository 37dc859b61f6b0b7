package counterparty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks the subtask protocol over HTTP/JSON. It implements both
// Client (outbound handoff) and Notifier (result callback).
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a protocol client; httpClient may be nil.
func NewHTTPClient(httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{client: httpClient}
}

var (
	_ Client   = (*HTTPClient)(nil)
	_ Notifier = (*HTTPClient)(nil)
)

// CreateSubtask POSTs a subtask request to the counterparty.
func (c *HTTPClient) CreateSubtask(ctx context.Context, endpoint string, request *SubtaskRequest) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal subtask request: %w", err)
	}
	location := strings.TrimSuffix(endpoint, "/") + "/v1/subtasks"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, location, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("subtask creation rejected: %v: %s", resp.Status, body)
	}
	accepted := &SubtaskAccepted{}
	if err = json.Unmarshal(body, accepted); err != nil {
		return "", fmt.Errorf("failed to decode subtask response: %w", err)
	}
	if accepted.RemoteID == "" {
		return "", fmt.Errorf("counterparty returned empty remote id")
	}
	return accepted.RemoteID, nil
}

// Abandon DELETEs a subtask on the counterparty.
func (c *HTTPClient) Abandon(ctx context.Context, endpoint, remoteID string) error {
	location := strings.TrimSuffix(endpoint, "/") + "/v1/subtasks/" + remoteID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, location, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("abandon rejected: %v", resp.Status)
	}
	return nil
}

// ReportResult POSTs a terminal subtask result to the caller's callback.
func (c *HTTPClient) ReportResult(ctx context.Context, callbackURL string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("result report rejected: %v", resp.Status)
	}
	return nil
}
