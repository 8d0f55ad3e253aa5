package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultEndpoint = "http://127.0.0.1:8091"

// Client is the sqlperf SDK client.
type Client struct {
	endpoint string
	http     *http.Client

	// Backoff paces retries of runs rejected as busy.
	Backoff BackoffStrategy
	// MaxRetries is how many busy rejections are retried (0 disables).
	MaxRetries int
}

// NewClient creates a new sqlperf client.
// endpoint defaults to "http://127.0.0.1:8091" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			// Slow cursor runs pay a per-row delay on the server.
			Timeout: 2 * time.Minute,
		},
		Backoff:    DefaultBackoff(),
		MaxRetries: 3,
	}
}

// Run executes one variant of a scenario.
func (c *Client) Run(ctx context.Context, scenarioID, variant string) (RunResult, error) {
	if scenarioID == "" {
		return RunResult{}, fmt.Errorf("invalid request: missing scenario id")
	}

	var res RunResult
	err := c.withRetry(ctx, func() error {
		return c.post(ctx, "/api/run", RunRequest{ScenarioID: scenarioID, Variant: variant}, &res)
	})
	return res, err
}

// Compare runs the slow and then the optimized variant of a scenario.
func (c *Client) Compare(ctx context.Context, scenarioID string) (Comparison, error) {
	if scenarioID == "" {
		return Comparison{}, fmt.Errorf("invalid request: missing scenario id")
	}

	var cmp Comparison
	err := c.withRetry(ctx, func() error {
		return c.post(ctx, "/api/compare", map[string]string{"scenarioId": scenarioID}, &cmp)
	})
	return cmp, err
}

// Scenarios lists the daemon's catalog.
func (c *Client) Scenarios(ctx context.Context) ([]Scenario, error) {
	var list []Scenario
	if err := c.get(ctx, "/api/scenarios", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Scale asks the daemon for a scan cost projection at the given row count.
func (c *Client) Scale(ctx context.Context, rows int64) (ScaleEstimate, error) {
	var est ScaleEstimate
	if err := c.get(ctx, "/api/scale?rows="+strconv.FormatInt(rows, 10), &est); err != nil {
		return ScaleEstimate{}, err
	}
	return est, nil
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	if err := c.get(ctx, "/v1/health", &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// withRetry retries fn while the daemon reports the scenario as busy.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrScenarioBusy) || attempt >= c.MaxRetries || c.Backoff == nil {
			return err
		}

		select {
		case <-time.After(retryDelay(c.Backoff, attempt, err)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		json.Unmarshal(body, apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
