package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"riskgraph/internal/logging"
	"riskgraph/pkg/types"
)

// DefaultSearchBaseURL is the Tavily API endpoint.
const DefaultSearchBaseURL = "https://api.tavily.com"

// DefaultSearchTimeout bounds one shared search request when no client
// timeout is configured.
const DefaultSearchTimeout = 15 * time.Second

// placeholderKey is the value shipped in sample env files.
const placeholderKey = "your_tavily_api_key_here"

// DefaultAllowedDomains is the governed source list for external intelligence.
var DefaultAllowedDomains = []string{
	"bcp.com.pe",
	"elcomercio.pe",
	"gestion.pe",
	"rpp.pe",
	"andina.pe",
	"infobae.com",
	"bloomberg.com",
	"reuters.com",
	"threatpost.com",
	"darkreading.com",
}

// WebSearch is the external evidence adapter over the Tavily search API.
// Every query is restricted to the allow-list at request time.
type WebSearch struct {
	baseURL    string
	apiKey     string
	allowlist  []string
	httpClient *http.Client
	logger     *slog.Logger
	cache      *QueryCache
	flight     *singleflight.Group
	timeout    time.Duration
	now        func() time.Time
}

// SearchOption configures the WebSearch during construction.
type SearchOption func(*searchConfig)

type searchConfig struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	cache      *QueryCache
	now        func() time.Time
}

// WithBaseURL points the adapter at another endpoint.
func WithBaseURL(u string) SearchOption {
	return func(cfg *searchConfig) { cfg.baseURL = u }
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) SearchOption {
	return func(cfg *searchConfig) { cfg.httpClient = c }
}

// WithSearchLogger configures structured logging.
func WithSearchLogger(l *slog.Logger) SearchOption {
	return func(cfg *searchConfig) { cfg.logger = l }
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) SearchOption {
	return func(cfg *searchConfig) { cfg.timeout = d }
}

// WithCache shares an existing cache.
func WithCache(c *QueryCache) SearchOption {
	return func(cfg *searchConfig) { cfg.cache = c }
}

// WithClock overrides the clock used to stamp results.
func WithClock(now func() time.Time) SearchOption {
	return func(cfg *searchConfig) { cfg.now = now }
}

// NewWebSearch returns a search adapter. An empty or placeholder apiKey puts
// the adapter in disabled mode, where every search returns no results.
// A nil allowlist selects DefaultAllowedDomains.
func NewWebSearch(apiKey string, allowlist []string, opts ...SearchOption) *WebSearch {
	cfg := &searchConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.baseURL == "" {
		cfg.baseURL = DefaultSearchBaseURL
	}
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}
	timeout := httpClient.Timeout
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	if cfg.logger == nil {
		cfg.logger = logging.New("evidence.web")
	}
	if cfg.cache == nil {
		cfg.cache = NewQueryCache()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if allowlist == nil {
		allowlist = DefaultAllowedDomains
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == placeholderKey {
		apiKey = ""
	}
	return &WebSearch{
		baseURL:    strings.TrimSuffix(cfg.baseURL, "/"),
		apiKey:     apiKey,
		allowlist:  append([]string(nil), allowlist...),
		httpClient: httpClient,
		logger:     cfg.logger,
		cache:      cfg.cache,
		flight:     &singleflight.Group{},
		timeout:    timeout,
		now:        cfg.now,
	}
}

// Configured reports whether an API key is present.
func (w *WebSearch) Configured() bool { return w.apiKey != "" }

// AllowedDomains returns the governed domain list.
func (w *WebSearch) AllowedDomains() []string { return append([]string(nil), w.allowlist...) }

// Search returns up to maxResults external evidence items for query. Results
// for an identical query string are served from the cache; concurrent
// identical queries share one request. It never fails: missing configuration
// or any transport problem yields an empty list.
func (w *WebSearch) Search(ctx context.Context, query string, maxResults int) []types.EvidenceItem {
	if !w.Configured() {
		w.logger.WarnContext(ctx, "search API key not set, skipping external search")
		return []types.EvidenceItem{}
	}
	if items, ok := w.cache.Get(query); ok {
		w.logger.DebugContext(ctx, "search cache hit", "query", query)
		return items
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	// The shared request is detached from any one caller: each caller waits
	// under its own ctx and a caller that gives up leaves the others running.
	ch := w.flight.DoChan(query, func() (any, error) {
		if items, ok := w.cache.Get(query); ok {
			return items, nil
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()
		items, err := w.search(sctx, query, maxResults)
		if err != nil {
			return nil, err
		}
		w.cache.Put(query, items)
		return items, nil
	})
	select {
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "external search abandoned", "error", ctx.Err())
		return []types.EvidenceItem{}
	case res := <-ch:
		if res.Err != nil {
			w.logger.WarnContext(ctx, "external search failed", "error", res.Err)
			return []types.EvidenceItem{}
		}
		return append([]types.EvidenceItem{}, res.Val.([]types.EvidenceItem)...)
	}
}

type searchRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

func (w *WebSearch) search(ctx context.Context, query string, maxResults int) ([]types.EvidenceItem, error) {
	body, err := json.Marshal(searchRequest{
		Query:          query,
		SearchDepth:    "advanced",
		MaxResults:     maxResults,
		IncludeDomains: w.allowlist,
	})
	if err != nil {
		return nil, fmt.Errorf("search: encode request: %w", err)
	}

	var resp searchResponse
	if err := w.doJSON(ctx, http.MethodPost, w.baseURL+"/search", "search", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}

	retrieved := w.now().UTC().Format("2006-01-02")
	items := make([]types.EvidenceItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		ts := r.PublishedDate
		if ts == "" {
			ts = retrieved
		}
		items = append(items, types.EvidenceItem{
			Kind:       types.EvidenceExternal,
			Identifier: r.URL,
			Version:    ts,
			Text:       r.Content,
			URL:        r.URL,
			Source:     hostOf(r.URL),
		})
	}
	return items, nil
}

// doJSON executes an HTTP request and decodes the JSON response into dst.
// If the response has an error status, it returns an *APIError.
func (w *WebSearch) doJSON(ctx context.Context, method, u, operation string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", "application/json")

	w.logger.InfoContext(ctx, "API request", "operation", operation, "method", method, "url", u)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	w.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return newAPIError(operation, resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
