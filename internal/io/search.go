// Package io provides thin façades over the four external collaborators the
// engine treats as out of scope: search, fetch, LLM, and vector store. Each
// client is process-wide and gated by a single resilience.RateLimiter
// mutual-exclusion gate per service.
package io

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/swarmguard/agentmind/internal/core/resilience"
)

// SearchHit is one result row from the search provider.
type SearchHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// SearchClient queries the external web search provider over HTTP through a
// pooled client.
type SearchClient struct {
	baseURL string
	client  *http.Client
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
}

// NewSearchClient builds a client against baseURL (a GET endpoint accepting
// ?q=&n=) with a shared rate gate and circuit breaker.
func NewSearchClient(baseURL string) *SearchClient {
	return &SearchClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: resilience.NewRateLimiter(5, 1, time.Second, 5),
		breaker: resilience.NewCircuitBreakerAdaptive("search", 30*time.Second, 6, 5, 0.5, 10*time.Second, 2),
	}
}

// Search queries the provider for query, requesting nResults hits.
func (c *SearchClient) Search(ctx context.Context, query string, nResults int) ([]SearchHit, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("io: search circuit open")
	}
	if !c.limiter.Allow() {
		return nil, fmt.Errorf("io: search rate limited")
	}

	if nResults <= 0 {
		nResults = 5
	}

	u := fmt.Sprintf("%s?q=%s&n=%d", c.baseURL, url.QueryEscape(query), nResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.breaker.RecordResult(false)
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordResult(false)
		return nil, fmt.Errorf("io: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.breaker.RecordResult(false)
		return nil, fmt.Errorf("io: search provider returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		c.breaker.RecordResult(true)
		return nil, fmt.Errorf("%w: search provider returned %d", ErrPermanent, resp.StatusCode)
	}

	var hits []SearchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		c.breaker.RecordResult(false)
		return nil, fmt.Errorf("io: search response decode: %w", err)
	}

	c.breaker.RecordResult(true)
	return hits, nil
}

// ErrPermanent marks an external error as non-retryable.
var ErrPermanent = fmt.Errorf("io: permanent error")
