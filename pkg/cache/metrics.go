package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups tracks lookups by result: fresh, stale or miss
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marvel_cache_lookups_total",
			Help: "Total number of catalog page cache lookups by result",
		},
		[]string{"result"},
	)

	// CacheRevalidations tracks conditional requests by outcome
	CacheRevalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marvel_cache_revalidations_total",
			Help: "Total number of conditional catalog requests by outcome",
		},
		[]string{"result"}, // "not_modified", "modified"
	)

	// CacheSize tracks the bytes written to the cache
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marvel_cache_size_bytes",
			Help: "Bytes of catalog data written to the cache by this process",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marvel_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
