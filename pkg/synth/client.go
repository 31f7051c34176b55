package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/egress-lab/evacsim/pkg/errors"
)

// DefaultBaseURL is the hosted queue endpoint
const DefaultBaseURL = "https://queue.fal.run"

// Options configures the client
type Options struct {
	BaseURL      string
	APIKey       string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// Client submits jobs and waits for their results
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
}

// NewClient creates a synthesis client
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Client{
		httpClient:   client,
		baseURL:      base,
		apiKey:       strings.TrimSpace(opts.APIKey),
		pollInterval: interval,
	}
}

// APIError is a non-2xx response from the service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("synth: http %d", e.StatusCode)
	}
	return fmt.Sprintf("synth: http %d: %s", e.StatusCode, e.Body)
}

// Subscribe submits input to modelID and blocks until the job completes.
// Status updates are offered to updates without blocking; a slow reader
// misses updates. Subscribe never closes updates.
func (c *Client) Subscribe(ctx context.Context, modelID string, input Input, updates chan<- QueueStatus) (*Output, error) {
	if c.apiKey == "" {
		return nil, errors.New("synth: API key is missing")
	}

	sub, err := c.submit(ctx, modelID, input)
	if err != nil {
		return nil, err
	}

	slog.Info("synth_job_submitted", "model", modelID, "request_id", sub.RequestID)

	statusURL := sub.StatusURL
	if statusURL == "" {
		statusURL = c.requestURL(modelID, sub.RequestID) + "/status"
	}
	responseURL := sub.ResponseURL
	if responseURL == "" {
		responseURL = c.requestURL(modelID, sub.RequestID)
	}

	for {
		st, err := c.status(ctx, statusURL)
		if err != nil {
			return nil, err
		}
		st.RequestID = sub.RequestID
		notify(updates, *st)

		switch st.Status {
		case StatusCompleted:
			if st.Error != "" {
				slog.Error("synth_job_failed", "request_id", sub.RequestID, "error", st.Error)
				return nil, fmt.Errorf("synth: job %s failed: %s", sub.RequestID, st.Error)
			}
			if st.ResponseURL != "" {
				responseURL = st.ResponseURL
			}
			return c.result(ctx, responseURL, sub.RequestID)
		case StatusInQueue, StatusInProgress:
		default:
			return nil, fmt.Errorf("synth: unexpected queue status %q", st.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) submit(ctx context.Context, modelID string, input Input) (*submitResponse, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "synth: encode input")
	}

	var out submitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/"+strings.Trim(modelID, "/"), body, &out); err != nil {
		slog.Error("synth_submit_failed", "model", modelID, "error", err)
		return nil, errors.Wrap(err, "synth: submit")
	}
	if out.RequestID == "" {
		return nil, errors.New("synth: submit returned no request id")
	}
	return &out, nil
}

func (c *Client) status(ctx context.Context, statusURL string) (*QueueStatus, error) {
	sep := "?"
	if strings.Contains(statusURL, "?") {
		sep = "&"
	}

	var out QueueStatus
	if err := c.do(ctx, http.MethodGet, statusURL+sep+"logs=1", nil, &out); err != nil {
		return nil, errors.Wrap(err, "synth: status")
	}
	return &out, nil
}

func (c *Client) result(ctx context.Context, responseURL, requestID string) (*Output, error) {
	var out Output
	if err := c.do(ctx, http.MethodGet, responseURL, nil, &out); err != nil {
		slog.Error("synth_result_failed", "request_id", requestID, "error", err)
		return nil, errors.Wrap(err, "synth: result")
	}
	slog.Info("synth_job_complete", "request_id", requestID, "image_count", len(out.Images))
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// requestURL builds the request path when the service omits it. Only the
// owner/app part of the model id addresses the queue.
func (c *Client) requestURL(modelID, requestID string) string {
	parts := strings.Split(strings.Trim(modelID, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return c.baseURL + "/" + strings.Join(parts, "/") + "/requests/" + requestID
}

func notify(updates chan<- QueueStatus, st QueueStatus) {
	if updates == nil {
		return
	}
	select {
	case updates <- st:
	default:
	}
}
