// Package testutil provides testing utilities for the heroes catalog client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
)

// CharactersPath is the catalog endpoint served by MockMarvel.
const CharactersPath = "/v1/public/characters"

// DefaultETag is the ETag MockMarvel reports until SetETag is called.
const DefaultETag = "test-etag"

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockMarvel is a configurable mock catalog server for testing.
// Without overrides it serves CharactersPath out of an in-memory catalog,
// honoring limit, offset, nameStartsWith and id. A request whose
// If-None-Match equals the current ETag gets 304 Not Modified.
type MockMarvel struct {
	server    *httptest.Server
	mu        sync.RWMutex
	heroes    []catalog.Hero
	total     int
	etag      string
	overrides []MockResponse

	// Tracking
	RequestCount int
	LastQuery    url.Values
	LastHeader   http.Header
}

// NewMockMarvel creates a new mock catalog server.
func NewMockMarvel(heroes []catalog.Hero) *MockMarvel {
	mock := &MockMarvel{heroes: heroes, total: len(heroes), etag: DefaultETag}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		mock.LastHeader = r.Header.Clone()

		var override *MockResponse
		if len(mock.overrides) > 0 {
			o := mock.overrides[0]
			mock.overrides = mock.overrides[1:]
			override = &o
		}
		mock.mu.Unlock()

		if override != nil {
			writeMockResponse(w, *override)
			return
		}

		if r.URL.Path != CharactersPath {
			http.NotFound(w, r)
			return
		}
		mock.charactersHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockMarvel) URL() string {
	return m.server.URL
}

// Client returns an HTTP client wired to the mock server.
func (m *MockMarvel) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockMarvel) Close() {
	m.server.Close()
}

// SetTotal overrides the reported total.
func (m *MockMarvel) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// SetETag changes the reported ETag, as a catalog update would.
func (m *MockMarvel) SetETag(etag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etag = etag
}

// Enqueue makes the next requests return the given responses, in order,
// before falling back to the catalog.
func (m *MockMarvel) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockMarvel) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query of the most recent request.
func (m *MockMarvel) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastHeader returns the headers of the most recent request.
func (m *MockMarvel) GetLastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastHeader
}

func (m *MockMarvel) charactersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.RLock()
	all := m.heroes
	total := m.total
	etag := m.etag
	m.mu.RUnlock()

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if idStr := q.Get("id"); idStr != "" {
		id, _ := strconv.Atoi(idStr)
		var match []catalog.Hero
		for _, h := range all {
			if h.ID == id {
				match = append(match, h)
			}
		}
		writeEnvelope(w, etag, match, len(match), 20, 0)
		return
	}

	if prefix := q.Get("nameStartsWith"); prefix != "" {
		var match []catalog.Hero
		for _, h := range all {
			if strings.HasPrefix(strings.ToLower(h.Name), strings.ToLower(prefix)) {
				match = append(match, h)
			}
		}
		all = match
		total = len(match)
	}

	limit := atoiDefault(q.Get("limit"), 20)
	offset := atoiDefault(q.Get("offset"), 0)

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	var page []catalog.Hero
	if offset < end {
		page = all[offset:end]
	}

	writeEnvelope(w, etag, page, total, limit, offset)
}

func writeEnvelope(w http.ResponseWriter, etag string, heroes []catalog.Hero, total, limit, offset int) {
	body, err := CharactersBody(etag, heroes, total, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeMockResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// CharactersBody renders the catalog JSON envelope for a page of heroes.
func CharactersBody(etag string, heroes []catalog.Hero, total, limit, offset int) ([]byte, error) {
	if heroes == nil {
		heroes = []catalog.Hero{}
	}
	envelope := map[string]any{
		"code":   200,
		"status": "Ok",
		"etag":   etag,
		"data": map[string]any{
			"offset":  offset,
			"limit":   limit,
			"total":   total,
			"count":   len(heroes),
			"results": heroes,
		},
	}
	return json.Marshal(envelope)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code": 500, "status": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewUnauthorizedResponse creates a 401 response as sent for a bad hash.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"code": "InvalidCredentials", "message": "That hash, timestamp and key combination is invalid."}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code": "RequestThrottled", "message": "You have exceeded your rate limit.  Please try again later."}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 response whose body is not valid JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": {"results": [`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
