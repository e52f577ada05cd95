package cache

import (
	"net/url"
	"sort"
	"strings"
)

// authParams are request parameters that change on every call and never
// take part in a key.
var authParams = map[string]bool{"ts": true, "apikey": true, "hash": true}

// CacheKey identifies one catalog query.
type CacheKey struct {
	// Endpoint is the catalog path, e.g. "/v1/public/characters"
	Endpoint string

	// Query holds the listing parameters (limit, offset, nameStartsWith, id)
	Query url.Values
}

// String generates a deterministic key string.
//
// Example:
//
//	marvel:v1/public/characters:limit=20:nameStartsWith=spider:offset=40
func (k CacheKey) String() string {
	parts := []string{"marvel"}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		if !authParams[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		parts = append(parts, name+"="+url.QueryEscape(k.Query.Get(name)))
	}

	return strings.Join(parts, ":")
}
