// Package analysis calls the external regression engine. The engine is
// a separate service; this client only ships table rows to it and
// relays the result, it never interprets the statistics itself.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrDisabled is returned when no engine URL is configured.
var ErrDisabled = errors.New("analysis engine is not configured")

// Methods accepted by the engine.
const (
	MethodEnter    = "enter"
	MethodStepwise = "stepwise"
)

// regressionPath is the engine's regression route.
const regressionPath = "/api/regression"

// Request is one regression run: the rows to analyze, the dependent
// variable and its candidate predictors.
type Request struct {
	Data            []map[string]any `json:"data"`
	DependentVar    string           `json:"dependent_var"`
	IndependentVars []string         `json:"independent_vars"`
	Method          string           `json:"method"`
}

// Result is the engine's response, passed through untouched.
type Result = json.RawMessage

// Client talks to the regression engine over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the engine at baseURL. An empty baseURL
// yields a disabled client whose Analyze always returns ErrDisabled.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an engine URL is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// Analyze runs one regression on the engine and returns its raw JSON
// result.
func (c *Client) Analyze(ctx context.Context, req Request) (Result, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if req.Method == "" {
		req.Method = MethodEnter
	}
	if req.Method != MethodEnter && req.Method != MethodStepwise {
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}
	if req.DependentVar == "" || len(req.IndependentVars) == 0 {
		return nil, errors.New("dependent and independent variables are required")
	}
	if len(req.Data) == 0 {
		return nil, errors.New("no rows to analyze")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+regressionPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("analysis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis engine returned %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}
	if !json.Valid(payload) {
		return nil, errors.New("analysis engine returned invalid JSON")
	}
	return Result(payload), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
