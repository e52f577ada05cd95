package cache

import (
	"encoding/json"
	"time"
)

// CacheEntry is a cached catalog data container.
type CacheEntry struct {
	// Data is the raw "data" object of the catalog envelope
	Data json.RawMessage `json:"data"`

	// ETag as reported by the catalog envelope
	ETag string `json:"etag"`

	// Expires is when the entry stops being served without revalidation
	Expires time.Time `json:"expires"`

	// CachedAt is when the data was last confirmed by the catalog
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry confirmed at now and fresh for ttl.
func NewEntry(data []byte, etag string, now time.Time, ttl time.Duration) *CacheEntry {
	return &CacheEntry{
		Data:     append(json.RawMessage(nil), data...),
		ETag:     etag,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the entry must be revalidated before use.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Renew marks the entry as confirmed at now and fresh for ttl.
func (e *CacheEntry) Renew(now time.Time, ttl time.Duration) {
	e.CachedAt = now
	e.Expires = now.Add(ttl)
}
