package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"MARVEL_PUBLIC_KEY",
	"MARVEL_PRIVATE_KEY",
	"MARVEL_BASE_URL",
	"MARVEL_USER_AGENT",
	"MARVEL_TIMEOUT",
	"MARVEL_MAX_RETRIES",
	"MARVEL_DAILY_QUOTA",
	"REDIS_ADDR",
	"CACHE_TTL",
	"CACHE_RETENTION",
	"HEROES_PAGE_SIZE",
	"HEROES_SEARCH_DEBOUNCE",
	"LOG_LEVEL",
	"LOG_PRETTY",
	"HTTP_ADDR",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func setKeys(t *testing.T) {
	t.Helper()
	t.Setenv("MARVEL_PUBLIC_KEY", "pub")
	t.Setenv("MARVEL_PRIVATE_KEY", "priv")
}

func TestLoadFile_Defaults(t *testing.T) {
	clearEnv(t)
	setKeys(t)

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "pub", cfg.Marvel.PublicKey)
	assert.Equal(t, "priv", cfg.Marvel.PrivateKey)
	assert.Equal(t, "https://gateway.marvel.com:443", cfg.Marvel.BaseURL)
	assert.Equal(t, "WallaMarvel/1.0", cfg.Marvel.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Marvel.Timeout)
	assert.Equal(t, 3, cfg.Marvel.MaxRetries)
	assert.Equal(t, 3000, cfg.Marvel.DailyQuota)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CacheRetention)
	assert.Equal(t, 20, cfg.List.PageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.List.SearchDebounce)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadFile_Environment(t *testing.T) {
	clearEnv(t)
	setKeys(t)
	t.Setenv("MARVEL_TIMEOUT", "10s")
	t.Setenv("MARVEL_MAX_RETRIES", "0")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL", "0")
	t.Setenv("HEROES_PAGE_SIZE", "50")
	t.Setenv("HEROES_SEARCH_DEBOUNCE", "500ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Marvel.Timeout)
	assert.Equal(t, 0, cfg.Marvel.MaxRetries)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Zero(t, cfg.Redis.CacheTTL)
	assert.Equal(t, 50, cfg.List.PageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.List.SearchDebounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadFile_DotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEROES_PAGE_SIZE", "40")

	path := filepath.Join(t.TempDir(), ".env")
	content := "MARVEL_PUBLIC_KEY=file-pub\nMARVEL_PRIVATE_KEY=\"file-priv\"\n# comment\nHEROES_PAGE_SIZE=10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "file-pub", cfg.Marvel.PublicKey)
	assert.Equal(t, "file-priv", cfg.Marvel.PrivateKey)
	assert.Equal(t, 40, cfg.List.PageSize, "the environment wins over the file")
}

func TestLoadFile_MissingFileIgnored(t *testing.T) {
	clearEnv(t)
	setKeys(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadFile_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEROES_PAGE_SIZE", "500")

	_, err := LoadFile("")
	require.Error(t, err)
	assert.ErrorContains(t, err, "MARVEL_PUBLIC_KEY is required")
	assert.ErrorContains(t, err, "MARVEL_PRIVATE_KEY is required")
	assert.ErrorContains(t, err, "HEROES_PAGE_SIZE must be between 1 and 100 (got 500)")
}

func validConfig() Config {
	return Config{
		Marvel: MarvelConfig{
			PublicKey:  "pub",
			PrivateKey: "priv",
			BaseURL:    "https://gateway.marvel.com:443",
			UserAgent:  "WallaMarvel/1.0",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			DailyQuota: 3000,
		},
		List: ListConfig{PageSize: 20, SearchDebounce: 300 * time.Millisecond},
		Log:  LogConfig{Level: "info"},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero timeout", func(c *Config) { c.Marvel.Timeout = 0 }, "MARVEL_TIMEOUT must be > 0 (got 0s)"},
		{"negative retries", func(c *Config) { c.Marvel.MaxRetries = -1 }, "MARVEL_MAX_RETRIES must be >= 0 (got -1)"},
		{"zero quota", func(c *Config) { c.Marvel.DailyQuota = 0 }, "MARVEL_DAILY_QUOTA must be > 0 (got 0)"},
		{"negative cache ttl", func(c *Config) { c.Redis.CacheTTL = -time.Second }, "CACHE_TTL must be >= 0 (got -1s)"},
		{"retention below ttl", func(c *Config) { c.Redis.CacheTTL = time.Hour; c.Redis.CacheRetention = time.Minute }, "CACHE_RETENTION must be >= CACHE_TTL (got 1m0s < 1h0m0s)"},
		{"zero page size", func(c *Config) { c.List.PageSize = 0 }, "HEROES_PAGE_SIZE must be between 1 and 100 (got 0)"},
		{"negative debounce", func(c *Config) { c.List.SearchDebounce = -time.Millisecond }, "HEROES_SEARCH_DEBOUNCE must be >= 0 (got -1ms)"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, `LOG_LEVEL: unknown log level "loud"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.errorMsg, err.Error())
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := validConfig()
	cfg.Marvel.MaxRetries = 1
	cfg.List.PageSize = 50
	cfg.Log.Level = "warning"
	cfg.Log.Pretty = true

	cc := cfg.ClientConfig()
	assert.Equal(t, "pub", cc.PublicKey)
	assert.Equal(t, "priv", cc.PrivateKey)
	assert.Equal(t, 1, cc.MaxRetries)
	assert.Equal(t, 30*time.Second, cc.Timeout)
	assert.Nil(t, cc.Quota)
	assert.Nil(t, cc.Cache)
	assert.Equal(t, 10*time.Minute, cc.CacheTTL)

	lc := cfg.ListControllerConfig()
	assert.Equal(t, 50, lc.PageSize)
	assert.Equal(t, 300*time.Millisecond, lc.SearchDebounce)
	assert.Equal(t, 5, lc.LoadMoreThreshold)

	logCfg := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelWarn, logCfg.Level)
	assert.True(t, logCfg.Pretty)
}
