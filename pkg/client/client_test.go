package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/internal/testutil"
	"github.com/Sternrassler/marvel-heroes-client/pkg/cache"
	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"github.com/Sternrassler/marvel-heroes-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

// newTestClient returns a client pointed at mock with millisecond backoffs.
func newTestClient(t *testing.T, mock *testutil.MockMarvel) *Client {
	t.Helper()

	cfg := DefaultConfig("pub", "priv")
	cfg.BaseURL = mock.URL()
	cfg.UserAgent = "TestApp/1.0.0"
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.SetHTTPClient(mock.Client())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "missing public key",
			mutate:      func(c *Config) { c.PublicKey = "" },
			expectError: true,
			errorMsg:    "public and private keys are required",
		},
		{
			name:        "missing private key",
			mutate:      func(c *Config) { c.PrivateKey = "" },
			expectError: true,
			errorMsg:    "public and private keys are required",
		},
		{
			name:        "empty user agent",
			mutate:      func(c *Config) { c.UserAgent = "" },
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "negative retries",
			mutate:      func(c *Config) { c.MaxRetries = -1 },
			expectError: true,
			errorMsg:    "max_retries must be >= 0 (got -1)",
		},
		{
			name:        "relative base url",
			mutate:      func(c *Config) { c.BaseURL = "/v1/public" },
			expectError: true,
			errorMsg:    `invalid base url "/v1/public"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("pub", "priv")
			tt.mutate(&cfg)

			client, err := New(cfg)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("error = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("expected client, got nil")
			}
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	cfg := DefaultConfig("pub", "priv")
	cfg.Timeout = 0
	cfg.InitialBackoff = 0
	cfg.MaxBackoff = 0

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.httpClient.Timeout)
	}
	rc := c.retryConfig()
	if rc.InitialBackoff != time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", rc.InitialBackoff)
	}
	if rc.MaxBackoff != time.Second {
		t.Errorf("MaxBackoff = %v, want 1s", rc.MaxBackoff)
	}
}

func TestSignature(t *testing.T) {
	tests := []struct {
		ts, priv, pub string
		want          string
	}{
		{"1", "abcd", "1234", "ffd275c5130566a2916217b101f26150"},
		{"1700000000", "priv", "pub", "5b0da072c907298052957477e463aaf6"},
	}

	for _, tt := range tests {
		if got := signature(tt.ts, tt.priv, tt.pub); got != tt.want {
			t.Errorf("signature(%q, %q, %q) = %q, want %q", tt.ts, tt.priv, tt.pub, got, tt.want)
		}
	}
}

func TestFetchHeroes_SignsRequest(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.NumberedHeroes(3))
	defer mock.Close()

	c := newTestClient(t, mock)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	if _, err := c.FetchHeroes(context.Background(), 20, 0); err != nil {
		t.Fatalf("FetchHeroes() error = %v", err)
	}

	q := mock.GetLastQuery()
	checks := map[string]string{
		"ts":     "1700000000",
		"apikey": "pub",
		"hash":   "5b0da072c907298052957477e463aaf6",
		"limit":  "20",
		"offset": "0",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
	if q.Has("nameStartsWith") {
		t.Error("nameStartsWith should not be sent for a plain listing")
	}

	h := mock.GetLastHeader()
	if got := h.Get("User-Agent"); got != "TestApp/1.0.0" {
		t.Errorf("User-Agent = %q, want %q", got, "TestApp/1.0.0")
	}
	if got := h.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
}

func TestFetchHeroes_DecodesPage(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.NumberedHeroes(45))
	defer mock.Close()

	c := newTestClient(t, mock)

	page, err := c.FetchHeroes(context.Background(), 20, 40)
	if err != nil {
		t.Fatalf("FetchHeroes() error = %v", err)
	}

	if page.Total != 45 {
		t.Errorf("Total = %d, want 45", page.Total)
	}
	if page.Offset != 40 {
		t.Errorf("Offset = %d, want 40", page.Offset)
	}
	if page.Count != 5 || len(page.Items) != 5 {
		t.Fatalf("got count=%d items=%d, want 5/5", page.Count, len(page.Items))
	}
	if page.Items[0].ID != 41 || page.Items[0].Name != "Hero 41" {
		t.Errorf("first item = %+v, want Hero 41", page.Items[0])
	}
}

func TestListParams(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		prefix     string
		wantLimit  string
		wantOffset string
		wantPrefix string
	}{
		{"defaults", 0, 0, "", "20", "0", ""},
		{"clamped limit", 500, 10, "", "100", "10", ""},
		{"negative offset", 20, -5, "", "20", "0", ""},
		{"trimmed prefix", 20, 0, "  spi ", "20", "0", "spi"},
		{"blank prefix", 20, 0, "   ", "20", "0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := listParams(tt.limit, tt.offset, tt.prefix)
			if got := p.Get("limit"); got != tt.wantLimit {
				t.Errorf("limit = %q, want %q", got, tt.wantLimit)
			}
			if got := p.Get("offset"); got != tt.wantOffset {
				t.Errorf("offset = %q, want %q", got, tt.wantOffset)
			}
			if got := p.Get("nameStartsWith"); got != tt.wantPrefix {
				t.Errorf("nameStartsWith = %q, want %q", got, tt.wantPrefix)
			}
		})
	}
}

func TestFetchHeroes_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		responses     []testutil.MockResponse
		wantKind      catalog.ErrorKind
		wantStatus    int
		wantRequests  int
		wantExhausted bool
	}{
		{
			name:         "unauthorized is not retried",
			responses:    []testutil.MockResponse{testutil.NewUnauthorizedResponse()},
			wantKind:     catalog.ErrorKindAuth,
			wantStatus:   http.StatusUnauthorized,
			wantRequests: 1,
		},
		{
			name:         "rate limit is not retried",
			responses:    []testutil.MockResponse{testutil.NewRateLimitResponse()},
			wantKind:     catalog.ErrorKindRateLimited,
			wantStatus:   http.StatusTooManyRequests,
			wantRequests: 1,
		},
		{
			name:         "client error is not retried",
			responses:    []testutil.MockResponse{{StatusCode: http.StatusConflict}},
			wantKind:     catalog.ErrorKindInvalidResponse,
			wantStatus:   http.StatusConflict,
			wantRequests: 1,
		},
		{
			name:         "malformed body",
			responses:    []testutil.MockResponse{testutil.NewMalformedResponse()},
			wantKind:     catalog.ErrorKindDecode,
			wantRequests: 1,
		},
		{
			name:         "missing data container",
			responses:    []testutil.MockResponse{{StatusCode: http.StatusOK, Body: `{"code": 200, "status": "Ok"}`}},
			wantKind:     catalog.ErrorKindDecode,
			wantRequests: 1,
		},
		{
			name: "server error exhausts retries",
			responses: []testutil.MockResponse{
				testutil.NewServerErrorResponse(),
				testutil.NewServerErrorResponse(),
				testutil.NewServerErrorResponse(),
				testutil.NewServerErrorResponse(),
			},
			wantKind:      catalog.ErrorKindInvalidResponse,
			wantStatus:    http.StatusInternalServerError,
			wantRequests:  4,
			wantExhausted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockMarvel(testutil.NumberedHeroes(3))
			defer mock.Close()
			mock.Enqueue(tt.responses...)

			c := newTestClient(t, mock)

			_, err := c.FetchHeroes(context.Background(), 20, 0)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var ce *catalog.Error
			if !errors.As(err, &ce) {
				t.Fatalf("error %v is not a *catalog.Error", err)
			}
			if ce.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", ce.Kind, tt.wantKind)
			}
			if tt.wantStatus != 0 && ce.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", ce.StatusCode, tt.wantStatus)
			}
			if got := errors.Is(err, ErrRetryExhausted); got != tt.wantExhausted {
				t.Errorf("errors.Is(err, ErrRetryExhausted) = %v, want %v", got, tt.wantExhausted)
			}
			if got := mock.GetRequestCount(); got != tt.wantRequests {
				t.Errorf("requests = %d, want %d", got, tt.wantRequests)
			}
		})
	}
}

func TestFetchHeroes_RetriesServerError(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.NumberedHeroes(5))
	defer mock.Close()
	mock.Enqueue(testutil.NewServerErrorResponse())

	c := newTestClient(t, mock)

	page, err := c.FetchHeroes(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("FetchHeroes() error = %v", err)
	}
	if len(page.Items) != 5 {
		t.Errorf("items = %d, want 5", len(page.Items))
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestFetchHeroes_NetworkError(t *testing.T) {
	mock := testutil.NewMockMarvel(nil)
	c := newTestClient(t, mock)
	c.config.MaxRetries = 0
	mock.Close()

	_, err := c.FetchHeroes(context.Background(), 20, 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := catalog.KindOf(err); kind != catalog.ErrorKindNetwork {
		t.Errorf("KindOf(err) = %q, want %q", kind, catalog.ErrorKindNetwork)
	}
}

func TestFetchHeroes_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.NumberedHeroes(3))
	defer mock.Close()

	c := newTestClient(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchHeroes(ctx, 20, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("a cancelled request must not report exhausted retries")
	}
}

func TestSearchHeroes(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.Heroes("Spider-Man", "Iron Man", "Spider-Woman"))
	defer mock.Close()

	c := newTestClient(t, mock)

	page, err := c.SearchHeroes(context.Background(), "spider", 20, 0)
	if err != nil {
		t.Fatalf("SearchHeroes() error = %v", err)
	}

	if got := mock.GetLastQuery().Get("nameStartsWith"); got != "spider" {
		t.Errorf("nameStartsWith = %q, want spider", got)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("got total=%d items=%d, want 2/2", page.Total, len(page.Items))
	}
	if page.Items[0].Name != "Spider-Man" || page.Items[1].Name != "Spider-Woman" {
		t.Errorf("items = %v, want Spider-Man, Spider-Woman", page.Items)
	}
}

func TestFetchHero(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.Heroes("Spider-Man", "Iron Man"))
	defer mock.Close()

	c := newTestClient(t, mock)

	hero, err := c.FetchHero(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchHero() error = %v", err)
	}
	if hero.Name != "Iron Man" {
		t.Errorf("Name = %q, want Iron Man", hero.Name)
	}
	if got := mock.GetLastQuery().Get("id"); got != "2" {
		t.Errorf("id = %q, want 2", got)
	}

	_, err = c.FetchHero(context.Background(), 99)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFetchHeroes_QuotaExhaustedBlocks(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockMarvel(testutil.NumberedHeroes(3))
	defer mock.Close()
	mock.Enqueue(testutil.NewRateLimitResponse())

	cfg := DefaultConfig("pub", "priv")
	cfg.BaseURL = mock.URL()
	cfg.Quota = ratelimit.NewTracker(redisClient, 100, zerolog.Nop())

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.SetHTTPClient(mock.Client())

	ctx := context.Background()

	if _, err := c.FetchHeroes(ctx, 20, 0); catalog.KindOf(err) != catalog.ErrorKindRateLimited {
		t.Fatalf("first call error = %v, want rate limited", err)
	}

	_, err = c.FetchHeroes(ctx, 20, 0)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("second call error = %v, want ErrQuotaExceeded", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1 (second call must not reach the server)", got)
	}
}

func newCachingClient(t *testing.T, mock *testutil.MockMarvel, ttl time.Duration) *Client {
	t.Helper()

	cfg := DefaultConfig("pub", "priv")
	cfg.BaseURL = mock.URL()
	cfg.Cache = cache.NewManager(setupTestRedis(t), time.Hour)
	cfg.CacheTTL = ttl

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.SetHTTPClient(mock.Client())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFetchHeroes_CacheServesFreshPage(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.NumberedHeroes(30))
	defer mock.Close()
	c := newCachingClient(t, mock, time.Hour)

	ctx := context.Background()

	first, err := c.FetchHeroes(ctx, 20, 0)
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := c.FetchHeroes(ctx, 20, 0)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}

	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
	if len(second.Items) != len(first.Items) || second.Total != first.Total {
		t.Errorf("cached page = %d items / total %d, want %d / %d",
			len(second.Items), second.Total, len(first.Items), first.Total)
	}

	// A different page is a different key.
	if _, err := c.FetchHeroes(ctx, 20, 20); err != nil {
		t.Fatalf("third call error = %v", err)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestFetchHeroes_CacheRevalidatesStalePage(t *testing.T) {
	mock := testutil.NewMockMarvel(testutil.NumberedHeroes(5))
	defer mock.Close()
	c := newCachingClient(t, mock, time.Nanosecond)

	ctx := context.Background()

	if _, err := c.FetchHeroes(ctx, 20, 0); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	if got := mock.GetLastHeader().Get("If-None-Match"); got != "" {
		t.Errorf("first call sent If-None-Match %q", got)
	}

	page, err := c.FetchHeroes(ctx, 20, 0)
	if err != nil {
		t.Fatalf("revalidation error = %v", err)
	}
	if got := mock.GetLastHeader().Get("If-None-Match"); got != testutil.DefaultETag {
		t.Errorf("If-None-Match = %q, want %q", got, testutil.DefaultETag)
	}
	if len(page.Items) != 5 || page.Total != 5 {
		t.Errorf("not-modified page = %d items / total %d, want 5 / 5", len(page.Items), page.Total)
	}

	mock.SetETag("v2")
	mock.SetTotal(6)

	page, err = c.FetchHeroes(ctx, 20, 0)
	if err != nil {
		t.Fatalf("modified call error = %v", err)
	}
	if page.Total != 6 {
		t.Errorf("total = %d, want the updated 6", page.Total)
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}
