// Package client provides the catalog HTTP client with request signing,
// quota tracking, page caching, retries and error classification.
package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/cache"
	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"github.com/Sternrassler/marvel-heroes-client/pkg/logging"
	"github.com/Sternrassler/marvel-heroes-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for catalog client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marvel_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_errors_total",
		Help: "Total catalog errors by kind",
	}, []string{"kind"})
)

// CharactersEndpoint is the catalog listing endpoint.
const CharactersEndpoint = "/v1/public/characters"

// MaxLimit is the largest page the catalog serves.
const MaxLimit = 100

// Client talks to the characters catalog.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	quota      *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
	now        func() time.Time
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog, e.g. "https://gateway.marvel.com:443"
	BaseURL string

	// Key pair used to sign every request
	PublicKey  string
	PrivateKey string

	// User-Agent header
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Quota is optional; when set every attempt is counted against the
	// shared daily quota.
	Quota *ratelimit.Tracker

	// Cache is optional; when set pages are served from Redis while fresh
	// and revalidated with If-None-Match once stale.
	Cache *cache.Manager

	// CacheTTL is used when a response carries no caching headers
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(publicKey, privateKey string) Config {
	return Config{
		BaseURL:        "https://gateway.marvel.com:443",
		PublicKey:      publicKey,
		PrivateKey:     privateKey,
		UserAgent:      "WallaMarvel/1.0",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		CacheTTL:       cache.DefaultTTL,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("public and private keys are required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		quota:   cfg.Quota,
		cache:   cfg.Cache,
		config:  cfg,
		logger:  logging.NewLogger("marvel-client"),
		now:     time.Now,
	}, nil
}

// FetchHeroes fetches one page of the catalog. It implements
// catalog.PageFetcher.
func (c *Client) FetchHeroes(ctx context.Context, limit, offset int) (catalog.Page, error) {
	return c.fetchPage(ctx, listParams(limit, offset, ""))
}

// SearchHeroes fetches one page of heroes whose name starts with prefix.
func (c *Client) SearchHeroes(ctx context.Context, prefix string, limit, offset int) (catalog.Page, error) {
	return c.fetchPage(ctx, listParams(limit, offset, prefix))
}

// FetchHero fetches the full record of one hero. It implements
// catalog.HeroLookup and returns catalog.ErrNotFound for unknown ids.
func (c *Client) FetchHero(ctx context.Context, id int) (*catalog.Hero, error) {
	params := url.Values{}
	params.Set("id", strconv.Itoa(id))

	page, err := c.fetchPage(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, catalog.ErrNotFound
	}
	hero := page.Items[0]
	return &hero, nil
}

// listParams builds listing query parameters. Limits are clamped to what
// the catalog accepts.
func listParams(limit, offset int, prefix string) url.Values {
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		params.Set("nameStartsWith", prefix)
	}
	return params
}

// envelope is the catalog response wrapper.
type envelope struct {
	Code   json.RawMessage `json:"code"`
	Status string          `json:"status"`
	ETag   string          `json:"etag"`
	Data   json.RawMessage `json:"data"`
}

// fetchPage performs a signed GET with caching, quota gating, retries and
// error classification, and decodes the page.
func (c *Client) fetchPage(ctx context.Context, params url.Values) (catalog.Page, error) {
	endpoint := CharactersEndpoint

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	key := cache.CacheKey{Endpoint: endpoint, Query: params}
	cached := c.lookup(ctx, key)
	if cached != nil && !cached.IsExpired() {
		page, err := decodePage(cached.Data)
		if err == nil {
			requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return page, nil
		}
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Dropping undecodable cache entry")
		cached = nil
	}

	var page catalog.Page

	err := retryWithBackoff(ctx, c.retryConfig(), c.logger, func() error {
		if err := c.reserve(ctx, endpoint); err != nil {
			return err
		}

		req, err := c.newRequest(ctx, endpoint, params)
		if err != nil {
			return err
		}
		cache.AddConditionalHeaders(req, cached)

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("query", params.Encode()).
			Bool("conditional", req.Header.Get("If-None-Match") != "").
			Msg("Executing catalog request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(catalog.ErrorKindNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return catalog.NewNetworkError(err)
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusNotModified && cached != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			cache.CacheRevalidations.WithLabelValues("not_modified").Inc()

			p, err := decodePage(cached.Data)
			if err != nil {
				errorsTotal.WithLabelValues(string(catalog.ErrorKindDecode)).Inc()
				return catalog.NewDecodeError(err)
			}
			c.renew(ctx, key, cached, resp.Header)
			page = p
			return nil
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)

			cerr := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(cerr.Kind)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status_code", resp.StatusCode).
				Str("error_kind", string(cerr.Kind)).
				Msg("Catalog request error")

			if cerr.Kind == catalog.ErrorKindRateLimited && c.quota != nil {
				if err := c.quota.MarkExhausted(ctx); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record exhausted quota")
				}
			}
			return cerr
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			errorsTotal.WithLabelValues(string(catalog.ErrorKindDecode)).Inc()
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Catalog decode error")
			return catalog.NewDecodeError(err)
		}

		p, err := decodePage(env.Data)
		if err != nil {
			errorsTotal.WithLabelValues(string(catalog.ErrorKindDecode)).Inc()
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Catalog decode error")
			return catalog.NewDecodeError(err)
		}

		if cached != nil {
			cache.CacheRevalidations.WithLabelValues("modified").Inc()
		}
		c.store(ctx, key, env, resp.Header)
		page = p
		return nil
	})
	if err != nil {
		return catalog.Page{}, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("heroes", len(page.Items)).
		Int("total", page.Total).
		Int("offset", page.Offset).
		Msg("Catalog page received")

	return page, nil
}

// decodePage decodes the envelope data container.
func decodePage(data json.RawMessage) (catalog.Page, error) {
	if len(data) == 0 || string(data) == "null" {
		return catalog.Page{}, errors.New("response has no data container")
	}
	var page catalog.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return catalog.Page{}, err
	}
	return page, nil
}

// lookup returns the cached entry for key, nil on a miss or when caching
// is off. Cache failures are logged and treated as misses.
func (c *Client) lookup(ctx context.Context, key cache.CacheKey) *cache.CacheEntry {
	if c.cache == nil {
		return nil
	}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache lookup failed")
		}
		return nil
	}
	return entry
}

func (c *Client) store(ctx context.Context, key cache.CacheKey, env envelope, headers http.Header) {
	if c.cache == nil {
		return
	}
	now := time.Now()
	entry := cache.NewEntry(env.Data, env.ETag, now, cache.FreshFor(headers, now, c.config.CacheTTL))
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache store failed")
	}
}

func (c *Client) renew(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry, headers http.Header) {
	now := time.Now()
	if err := c.cache.Renew(ctx, key, entry, now, cache.FreshFor(headers, now, c.config.CacheTTL)); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache renew failed")
	}
}

// reserve counts the attempt against the shared quota. A quota backend
// failure is logged and the request proceeds.
func (c *Client) reserve(ctx context.Context, endpoint string) error {
	if c.quota == nil {
		return nil
	}

	allowed, err := c.quota.Reserve(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn().Err(err).Msg("Quota check failed, proceeding without it")
		return nil
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by quota tracker")
		requestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
		errorsTotal.WithLabelValues(string(catalog.ErrorKindRateLimited)).Inc()
		return &catalog.Error{Kind: catalog.ErrorKindRateLimited, Err: ErrQuotaExceeded}
	}
	return nil
}

// newRequest builds a signed GET request for endpoint.
func (c *Client) newRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u := c.baseURL.JoinPath(endpoint)

	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	for key, value := range c.authParams() {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, catalog.NewInvalidRequestError("create request", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

// authParams returns the ts/apikey/hash triple the catalog requires.
// hash = md5(ts + privateKey + publicKey).
func (c *Client) authParams() map[string]string {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	return map[string]string{
		"ts":     ts,
		"apikey": c.config.PublicKey,
		"hash":   signature(ts, c.config.PrivateKey, c.config.PublicKey),
	}
}

func signature(ts, privateKey, publicKey string) string {
	sum := md5.Sum([]byte(ts + privateKey + publicKey))
	return hex.EncodeToString(sum[:])
}

func (c *Client) retryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = c.config.MaxRetries
	cfg.InitialBackoff = c.config.InitialBackoff
	cfg.MaxBackoff = c.config.MaxBackoff
	return cfg
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
