package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	maxErrorBody   = 4096
)

// Client talks to a remote analysis pipeline over HTTP.
//
// Runs have no client-side timeout: an analysis takes as long as the
// pipeline needs and is only bounded by the caller's context.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a pipeline client for the service at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type runRequest struct {
	Input      Input  `json:"input"`
	ResumeText string `json:"resume_text"`
	RunOptions
}

// Run implements Pipeline. The resume text at resumePath is sent inline.
func (c *Client) Run(ctx context.Context, in Input, resumePath string, opts RunOptions) (json.RawMessage, error) {
	text, err := os.ReadFile(resumePath)
	if err != nil {
		return nil, &PipelineError{Message: "resume text unavailable", Detail: err.Error()}
	}

	body, err := json.Marshal(runRequest{Input: in, ResumeText: string(text), RunOptions: opts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		out, err := c.doRun(ctx, body)
		if err == nil {
			return out, nil
		}

		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, &PipelineError{
		Message: fmt.Sprintf("rate limited after %d retries", maxRetries),
		Detail:  lastErr.Error(),
	}
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

func (c *Client) doRun(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &PipelineError{Message: "pipeline unreachable", Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{status: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := &PipelineError{}
		if json.Unmarshal(respBody, perr) != nil || perr.Message == "" {
			perr = &PipelineError{
				Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
				Detail:  strings.TrimSpace(string(respBody)),
			}
		}
		return nil, perr
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PipelineError{Message: "reading pipeline response", Detail: err.Error()}
	}
	if !json.Valid(out) {
		return nil, &PipelineError{Message: "pipeline returned invalid JSON"}
	}
	return json.RawMessage(out), nil
}
