package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long a page is served without revalidation when the
// response carries no caching headers.
const DefaultTTL = 10 * time.Minute

// FreshFor returns how long a response may be served from cache. It honors
// Cache-Control max-age, then Expires, and falls back to fallback. A
// no-store or no-cache response yields 0.
func FreshFor(headers http.Header, now time.Time, fallback time.Duration) time.Duration {
	for _, directive := range strings.Split(headers.Get("Cache-Control"), ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		switch {
		case directive == "no-store", directive == "no-cache":
			return 0
		case strings.HasPrefix(directive, "max-age="):
			if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}

	if expiresStr := headers.Get("Expires"); expiresStr != "" {
		if expires, err := http.ParseTime(expiresStr); err == nil {
			if ttl := expires.Sub(now); ttl > 0 {
				return ttl
			}
			return 0
		}
	}

	return fallback
}

// AddConditionalHeaders sets If-None-Match when the entry has an ETag.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil || entry.ETag == "" {
		return
	}
	req.Header.Set("If-None-Match", entry.ETag)
}
