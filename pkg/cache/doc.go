// Package cache keeps catalog pages in Redis so repeated listings do not
// spend the daily call quota.
//
// A fresh entry is served without contacting the catalog. A stale entry is
// kept for a retention window so the client can revalidate it with
// If-None-Match; a 304 answer renews the entry instead of downloading the
// page again.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.CacheKey{
//		Endpoint: "/v1/public/characters",
//		Query:    url.Values{"limit": {"20"}, "offset": {"0"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch and Set
//	case entry.IsExpired():
//		cache.AddConditionalHeaders(req, entry)
//	default:
//		// serve entry.Data
//	}
//
// # Metrics
//
//   - marvel_cache_lookups_total{result="fresh|stale|miss"}
//   - marvel_cache_revalidations_total{result="not_modified|modified"}
//   - marvel_cache_size_bytes
//   - marvel_cache_errors_total{operation}
package cache
