// Package search queries the Google Custom Search JSON API for context about
// a task.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultEndpoint is the Custom Search JSON API URL.
	DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

	// DefaultNumResults is used when the caller asks for zero results.
	DefaultNumResults = 5

	// MaxNumResults is the API's per-request ceiling.
	MaxNumResults = 10

	DefaultLanguage = "lang_ja"
	DefaultTimeout  = 10 * time.Second
)

var (
	// ErrNotConfigured means the API key or engine id is missing.
	ErrNotConfigured = errors.New("search API key and engine id are required")

	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("search rate limit reached")

	// ErrForbidden is returned on HTTP 403, usually a bad key or engine id.
	ErrForbidden = errors.New("search authentication failed")

	// ErrTimeout is returned when the request exceeds the client timeout.
	ErrTimeout = errors.New("search timed out")

	// ErrFailed covers any other transport or decode failure.
	ErrFailed = errors.New("search failed")
)

// Result is one search hit.
type Result struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

// Response is the outcome of one query.
type Response struct {
	Query        string   `json:"query"`
	Results      []Result `json:"results"`
	TotalResults string   `json:"totalResults"`
	SearchTime   float64  `json:"searchTime"`
}

// Client calls the Custom Search API.
type Client struct {
	apiKey     string
	engineID   string
	endpoint   string
	language   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.endpoint = u
		}
	}
}

// WithLanguage sets the lr parameter. An empty value keeps the default.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client.
func New(apiKey, engineID string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		engineID:   engineID,
		endpoint:   DefaultEndpoint,
		language:   DefaultLanguage,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether both credentials are set.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.engineID != ""
}

type apiResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		HTMLSnippet string `json:"htmlSnippet"`
		DisplayLink string `json:"displayLink"`
	} `json:"items"`
	SearchInformation struct {
		TotalResults string  `json:"totalResults"`
		SearchTime   float64 `json:"searchTime"`
	} `json:"searchInformation"`
}

// Search runs query and returns up to n results (default 5, max 10).
func (c *Client) Search(ctx context.Context, query string, n int) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrFailed)
	}
	n = clampResults(n)

	params := url.Values{
		"key":  {c.apiKey},
		"cx":   {c.engineID},
		"q":    {query},
		"num":  {strconv.Itoa(n)},
		"lr":   {c.language},
		"safe": {"active"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: decoding response: %w", ErrFailed, err)
	}

	out := &Response{
		Query:        query,
		Results:      make([]Result, 0, len(raw.Items)),
		TotalResults: raw.SearchInformation.TotalResults,
		SearchTime:   raw.SearchInformation.SearchTime,
	}
	if out.TotalResults == "" {
		out.TotalResults = "0"
	}
	for _, item := range raw.Items {
		snippet := strings.TrimSpace(item.Snippet)
		if snippet == "" {
			snippet = StripTags(item.HTMLSnippet)
		}
		out.Results = append(out.Results, Result{
			Title:       item.Title,
			Link:        item.Link,
			Snippet:     snippet,
			DisplayLink: item.DisplayLink,
		})
	}
	return out, nil
}

func clampResults(n int) int {
	switch {
	case n <= 0:
		return DefaultNumResults
	case n > MaxNumResults:
		return MaxNumResults
	default:
		return n
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// StripTags returns the text content of an HTML fragment with whitespace
// collapsed.
func StripTags(fragment string) string {
	if fragment == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				sb.WriteByte(' ')
			}
		}
	}
}
