package io

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/swarmguard/agentmind/internal/core/resilience"
)

// PageContent is the result of visiting and extracting a URL's main content
// through an HTML-clean-then-readability pipeline.
type PageContent struct {
	Content string
	URL     string
	Title   string
}

// FetchClient retrieves a page and extracts its main content.
type FetchClient struct {
	client  *http.Client
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
}

// NewFetchClient builds a pooled HTTP client for page fetches.
func NewFetchClient() *FetchClient {
	return &FetchClient{
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: resilience.NewRateLimiter(5, 1, time.Second, 5),
		breaker: resilience.NewCircuitBreakerAdaptive("fetch", 30*time.Second, 6, 5, 0.5, 10*time.Second, 2),
	}
}

var htmlTagPattern = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*(\s[^>]*)?>`)

// stripSelectors removes non-content elements before readability runs.
var stripSelectors = []string{
	"script", "style", "noscript", "iframe", "form",
	"nav", "footer", "header", ".ad", ".advertisement", ".tracking",
}

// Visit fetches pageURL and extracts its main textual content.
func (c *FetchClient) Visit(ctx context.Context, pageURL string) (PageContent, error) {
	if !c.breaker.Allow() {
		return PageContent{}, fmt.Errorf("io: fetch circuit open")
	}
	if !c.limiter.Allow() {
		return PageContent{}, fmt.Errorf("io: fetch rate limited")
	}

	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		c.breaker.RecordResult(true)
		return PageContent{}, fmt.Errorf("%w: malformed url %q", ErrPermanent, pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return PageContent{}, err
	}
	req.Header.Set("User-Agent", "agentmind-worker/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordResult(false)
		return PageContent{}, fmt.Errorf("io: fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.breaker.RecordResult(false)
		return PageContent{}, fmt.Errorf("io: fetch target returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		c.breaker.RecordResult(true)
		return PageContent{}, fmt.Errorf("%w: fetch target returned %d", ErrPermanent, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		c.breaker.RecordResult(true)
		return PageContent{}, fmt.Errorf("%w: html parse failed: %v", ErrPermanent, err)
	}

	for _, sel := range stripSelectors {
		doc.Find(sel).Remove()
	}
	cleanHTML, err := doc.Html()
	if err != nil {
		c.breaker.RecordResult(true)
		return PageContent{}, fmt.Errorf("%w: html re-render failed: %v", ErrPermanent, err)
	}

	article, err := readability.FromReader(strings.NewReader(cleanHTML), parsed)
	if err != nil {
		content := fallbackExtraction(doc)
		if content == "" {
			c.breaker.RecordResult(true)
			return PageContent{}, fmt.Errorf("%w: no extractable content", ErrPermanent)
		}
		c.breaker.RecordResult(true)
		return PageContent{Content: content, URL: pageURL}, nil
	}

	c.breaker.RecordResult(true)
	return PageContent{Content: article.TextContent, URL: pageURL, Title: article.Title}, nil
}

func fallbackExtraction(doc *goquery.Document) string {
	for _, sel := range []string{"main", "article", ".main-content", "#content", ".content", ".post", ".entry"} {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return strings.TrimSpace(doc.Find("body").Text())
}

func isHTML(s string) bool {
	return htmlTagPattern.MatchString(s)
}
