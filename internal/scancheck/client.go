package scancheck

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

// httpClient wraps http.Client with JSON helpers bound to a base URL.
type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// do sends body as JSON and decodes a JSON response into out when out is not nil.
// It returns the status code.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// expect calls do and fails unless the response has the wanted status.
func (c *httpClient) expect(ctx context.Context, want int, method, path string, body, out any) error {
	code, err := c.do(ctx, method, path, body, out)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if code != want {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, code)
	}
	return nil
}

// Wire shapes of the service API.

type enrollRequest struct {
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name"`
	Scope       string    `json:"scope"`
	Embedding   []float32 `json:"embedding"`
}

type sampleResponse struct {
	SampleID   string `json:"sample_id"`
	ExternalID string `json:"external_id"`
}

type sessionRequest struct {
	ScopeKey  string `json:"scope_key"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type recognizeRequest struct {
	Faces     [][]float32 `json:"faces"`
	Timestamp string      `json:"timestamp"`
}

type recognitionResponse struct {
	Status     string `json:"status"`
	ExternalID string `json:"external_id"`
}

type eventResponse struct {
	EventID    string `json:"event_id"`
	ExternalID string `json:"external_id"`
}
