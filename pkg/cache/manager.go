package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long an entry is kept after it was last confirmed.
const DefaultRetention = 24 * time.Hour

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores catalog entries in Redis.
type Manager struct {
	redis     *redis.Client
	retention time.Duration
}

// NewManager creates a cache manager. Entries stay in Redis for retention
// after they were last confirmed, stale or not. A retention <= 0 uses
// DefaultRetention.
func NewManager(redisClient *redis.Client, retention time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		redis:     redisClient,
		retention: retention,
	}
}

// Get retrieves an entry by key. Stale entries are returned too; callers
// check IsExpired. Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheLookups.WithLabelValues("miss").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || len(entry.Data) == 0 {
		CacheErrors.WithLabelValues("get").Inc()
		// Drop it so the next fetch replaces it.
		_ = m.Delete(ctx, key)
		if err == nil {
			err = errors.New("empty data")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheLookups.WithLabelValues("stale").Inc()
	} else {
		CacheLookups.WithLabelValues("fresh").Inc()
	}

	return &entry, nil
}

// Set stores an entry for the manager's retention window.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, m.retention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Renew marks an entry as confirmed at now, fresh for ttl, and stores it.
// Used after a 304 Not Modified answer.
func (m *Manager) Renew(ctx context.Context, key CacheKey, entry *CacheEntry, now time.Time, ttl time.Duration) error {
	entry.Renew(now, ttl)
	return m.Set(ctx, key, entry)
}
