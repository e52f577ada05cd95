package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"fresh", time.Now().Add(time.Hour), false},
		{"expired", time.Now().Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	entry := &CacheEntry{Expires: time.Now().Add(-time.Minute)}
	if ttl := entry.TTL(); ttl != 0 {
		t.Errorf("TTL() of expired entry = %v, want 0", ttl)
	}

	entry = &CacheEntry{Expires: time.Now().Add(5 * time.Minute)}
	if ttl := entry.TTL(); ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("TTL() = %v, want about 5m", ttl)
	}
}

func TestNewEntry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	data := []byte(`{"total":1}`)

	entry := NewEntry(data, "etag-1", now, time.Minute)
	data[2] = 'X'

	if string(entry.Data) != `{"total":1}` {
		t.Errorf("Data = %s, entry must own its bytes", entry.Data)
	}
	if entry.ETag != "etag-1" {
		t.Errorf("ETag = %q, want etag-1", entry.ETag)
	}
	if !entry.CachedAt.Equal(now) || !entry.Expires.Equal(now.Add(time.Minute)) {
		t.Errorf("CachedAt/Expires = %v/%v", entry.CachedAt, entry.Expires)
	}

	later := now.Add(time.Hour)
	entry.Renew(later, 2*time.Minute)
	if !entry.CachedAt.Equal(later) || !entry.Expires.Equal(later.Add(2*time.Minute)) {
		t.Errorf("after Renew CachedAt/Expires = %v/%v", entry.CachedAt, entry.Expires)
	}
}
