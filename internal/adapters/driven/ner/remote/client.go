// Package remote provides a MentionDetector backed by an external
// person-NER HTTP service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/mentions/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.MentionDetector = (*Client)(nil)

// Default configuration values.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 10

	batchPath = "/ner/persons/batch"
)

// Config holds configuration for the NER client.
type Config struct {
	// BaseURL is the NER service root (required).
	BaseURL string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond throttles batch calls (default: 10).
	RequestsPerSecond float64
}

// Client calls the person-NER service.
type Client struct {
	client  *http.Client
	baseURL string
	limiter *ratelimit.RateLimiter
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

type batchResponse struct {
	Results []struct {
		Persons    []string `json:"persons"`
		HasPersons bool     `json:"has_persons"`
	} `json:"results"`
	TotalWithPersons int `json:"total_with_persons"`
}

// NewClient creates a NER client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ner: base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond}),
	}, nil
}

// Name identifies the detector.
func (c *Client) Name() string {
	return "ner-http"
}

// DetectPersons sends all texts in one batch request.
func (c *Client) DetectPersons(ctx context.Context, texts []string) ([]domain.MentionResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	jsonBody, err := json.Marshal(batchRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+batchPath, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ratelimit.WrapTransport("ner", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ratelimit.WrapTransport("ner", err)
	}
	if err := ratelimit.CheckResponse("ner", resp, body, c.limiter); err != nil {
		return nil, err
	}

	var batch batchResponse
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("ner: %w: decode response: %v", domain.ErrMalformedResponse, err)
	}
	if len(batch.Results) != len(texts) {
		return nil, fmt.Errorf("ner: %w: got %d results for %d texts",
			domain.ErrMalformedResponse, len(batch.Results), len(texts))
	}

	results := make([]domain.MentionResult, len(batch.Results))
	for i, r := range batch.Results {
		results[i] = domain.NewMentionResult("", r.Persons)
	}
	return results, nil
}
