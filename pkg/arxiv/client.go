// Package arxiv provides a client for the arXiv Atom query API.
package arxiv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/resilience"
)

const (
	defaultBaseURL  = "https://export.arxiv.org/api/query"
	defaultPageSize = 100
	// arXiv asks clients to stay under one request per three seconds.
	defaultRateLimit = rate.Limit(1.0 / 3.0)
	idBatchSize      = 50
)

// Client defines the arXiv catalog operations.
type Client interface {
	// SearchWindow fetches papers submitted or updated in the last N days.
	SearchWindow(ctx context.Context, categories []string, days int, maxResults int) ([]model.Paper, error)
	// SearchRange fetches papers submitted or updated within [start, end].
	SearchRange(ctx context.Context, categories []string, start, end time.Time, maxResults int) ([]model.Paper, error)
	// FetchByIDs fetches papers by explicit arXiv identifier, batched.
	FetchByIDs(ctx context.Context, ids []string) ([]model.Paper, error)
}

// Option configures the arXiv client.
type Option func(*httpClient)

// WithBaseURL sets a custom query endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize sets the pagination page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(limit rate.Limit) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(limit, 1)
	}
}

// WithRetryConfig overrides retry behavior for individual page fetches.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL  string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewClient creates an arXiv API client with polite rate limiting.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:  defaultBaseURL,
		pageSize: defaultPageSize,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(defaultRateLimit, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("arxiv", "query")
	return c
}

func (c *httpClient) SearchWindow(ctx context.Context, categories []string, days int, maxResults int) ([]model.Paper, error) {
	if days < 1 {
		days = 1
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	return c.SearchRange(ctx, categories, start, end, maxResults)
}

func (c *httpClient) SearchRange(ctx context.Context, categories []string, start, end time.Time, maxResults int) ([]model.Paper, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	query := buildSearchQuery(categories, start, end)

	var results []model.Paper
	offset := 0
	for offset < maxResults {
		want := c.pageSize
		if remaining := maxResults - offset; remaining < want {
			want = remaining
		}

		params := url.Values{}
		params.Set("search_query", query)
		params.Set("start", strconv.Itoa(offset))
		params.Set("max_results", strconv.Itoa(want))
		params.Set("sortBy", "submittedDate")
		params.Set("sortOrder", "descending")

		page, err := c.fetchPage(ctx, params)
		if err != nil {
			return nil, eris.Wrapf(err, "arxiv: search page at offset %d", offset)
		}
		if len(page) == 0 {
			break
		}
		results = append(results, page...)
		if len(page) < want {
			break
		}
		offset += want
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (c *httpClient) FetchByIDs(ctx context.Context, ids []string) ([]model.Paper, error) {
	var clean []string
	for _, id := range ids {
		if s := strings.TrimSpace(id); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}

	var results []model.Paper
	for i := 0; i < len(clean); i += idBatchSize {
		batch := clean[i:min(i+idBatchSize, len(clean))]

		params := url.Values{}
		params.Set("id_list", strings.Join(batch, ","))

		page, err := c.fetchPage(ctx, params)
		if err != nil {
			return nil, eris.Wrapf(err, "arxiv: fetch id batch starting at %d", i)
		}
		results = append(results, page...)
	}
	return results, nil
}

func (c *httpClient) fetchPage(ctx context.Context, params url.Values) ([]model.Paper, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]model.Paper, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "arxiv: build request")
		}
		req.Header.Set("User-Agent", "arxiv-fetcher/1.0")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "arxiv: read response"), resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("arxiv: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
			if resilience.ClassifyHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		papers, err := parseAtomFeed(body)
		if err != nil {
			return nil, eris.Wrap(err, "arxiv: parse feed")
		}
		return papers, nil
	})
}

// buildSearchQuery composes the arXiv query expression: a submitted-or-updated
// date window ANDed with the category filter when one is given.
func buildSearchQuery(categories []string, start, end time.Time) string {
	const layout = "200601021504"
	window := fmt.Sprintf("(submittedDate:[%s TO %s] OR lastUpdatedDate:[%s TO %s])",
		start.UTC().Format(layout), end.UTC().Format(layout),
		start.UTC().Format(layout), end.UTC().Format(layout))

	if len(categories) == 0 {
		return window
	}
	terms := make([]string, 0, len(categories))
	for _, c := range categories {
		terms = append(terms, "cat:"+c)
	}
	return fmt.Sprintf("%s AND (%s)", window, strings.Join(terms, " OR "))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
