// Package client implements the HTTP client for the comparison backend
// contract: comparison lifecycle, blind-test submission, history, analytics
// and sample text generation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/echolab/voicearena/internal/models"
	"github.com/google/uuid"
)

// RequestError wraps any transport or HTTP failure from a backend call so
// callers can surface it next to the operation that triggered it.
type RequestError struct {
	Op         string // backend operation, e.g. "createComparison"
	StatusCode int    // 0 when the request never reached the server
	Message    string // response body or transport error text
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: request failed: %s", e.Op, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Client talks to the comparison backend API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateComparison registers a new comparison; the returned snapshot is
// pending until generation is requested.
func (c *Client) CreateComparison(ctx context.Context, req models.CreateComparisonRequest) (*models.CreateComparisonResponse, error) {
	var resp models.CreateComparisonResponse
	if err := c.do(ctx, "createComparison", "POST", "/v1/comparisons", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateComparison starts asynchronous sample generation.
func (c *Client) GenerateComparison(ctx context.Context, id uuid.UUID) error {
	path := fmt.Sprintf("/v1/comparisons/%s/generate", id)
	return c.do(ctx, "generateComparison", "POST", path, nil, nil)
}

// GetComparison fetches the full snapshot including the sample ledger.
func (c *Client) GetComparison(ctx context.Context, id uuid.UUID) (*models.Comparison, error) {
	var comparison models.Comparison
	path := fmt.Sprintf("/v1/comparisons/%s", id)
	if err := c.do(ctx, "getComparison", "GET", path, nil, &comparison); err != nil {
		return nil, err
	}
	return &comparison, nil
}

// SubmitBlindTest sends the reconciled preferences as a single batch.
func (c *Client) SubmitBlindTest(ctx context.Context, id uuid.UUID, results []models.BlindTestResult) error {
	path := fmt.Sprintf("/v1/comparisons/%s/blind-test", id)
	return c.do(ctx, "submitBlindTest", "POST", path, models.SubmitBlindTestRequest{Results: results}, nil)
}

// ListComparisons fetches lightweight history summaries.
func (c *Client) ListComparisons(ctx context.Context) ([]models.ComparisonSummary, error) {
	var resp models.ListComparisonsResponse
	if err := c.do(ctx, "listComparisons", "GET", "/v1/comparisons", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comparisons, nil
}

// DeleteComparison removes one comparison and its samples.
func (c *Client) DeleteComparison(ctx context.Context, id uuid.UUID) error {
	path := fmt.Sprintf("/v1/comparisons/%s", id)
	return c.do(ctx, "deleteComparison", "DELETE", path, nil, nil)
}

// DeleteFailure attributes a bulk-delete failure to one comparison.
type DeleteFailure struct {
	ID  uuid.UUID
	Err error
}

// DeleteComparisons deletes strictly sequentially — each delete completes
// before the next starts — so every failure is individually attributable.
// Deleted reports how many removals succeeded.
func (c *Client) DeleteComparisons(ctx context.Context, ids []uuid.UUID) (deleted int, failures []DeleteFailure) {
	for _, id := range ids {
		if err := c.DeleteComparison(ctx, id); err != nil {
			log.Printf("[Client] Delete failed for comparison %s: %v", id, err)
			failures = append(failures, DeleteFailure{ID: id, Err: err})
			continue
		}
		deleted++
	}
	return deleted, failures
}

// GetAnalytics fetches the lifetime voice-level rollup.
func (c *Client) GetAnalytics(ctx context.Context) ([]models.AnalyticsRow, error) {
	var rows []models.AnalyticsRow
	if err := c.do(ctx, "getAnalytics", "GET", "/v1/analytics", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GenerateSampleTexts asks the backend's LLM for sample sentences.
func (c *Client) GenerateSampleTexts(ctx context.Context, req models.GenerateSampleTextsRequest) ([]string, error) {
	var resp models.GenerateSampleTextsResponse
	if err := c.do(ctx, "generateSampleTexts", "POST", "/v1/sample-texts/generate", req, &resp); err != nil {
		return nil, err
	}
	return resp.Samples, nil
}

// do runs one JSON request/response round trip. Any non-2xx status or
// transport failure comes back as a *RequestError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Op: op, Message: err.Error(), Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &RequestError{Op: op, Message: err.Error(), Err: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &RequestError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &RequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Message: fmt.Sprintf("failed to decode response: %v", err), Err: err}
	}

	return nil
}

// errorMessage extracts the backend's {"error": ...} message when present,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(body)
}
