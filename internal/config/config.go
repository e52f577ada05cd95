// Package config loads the heroes client configuration from the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/cache"
	"github.com/Sternrassler/marvel-heroes-client/pkg/client"
	"github.com/Sternrassler/marvel-heroes-client/pkg/heroes"
	"github.com/Sternrassler/marvel-heroes-client/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete process configuration.
type Config struct {
	Marvel MarvelConfig
	Redis  RedisConfig
	List   ListConfig
	Log    LogConfig
	HTTP   HTTPConfig
}

// MarvelConfig configures the catalog client.
type MarvelConfig struct {
	PublicKey  string
	PrivateKey string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	DailyQuota int
}

// RedisConfig configures the shared quota store and page cache. An empty
// Addr disables both.
type RedisConfig struct {
	Addr string

	// CacheTTL is how long a page is served without asking the catalog.
	// 0 disables the page cache.
	CacheTTL time.Duration

	// CacheRetention is how long a stale page is kept for revalidation
	CacheRetention time.Duration
}

// ListConfig configures the heroes list controller.
type ListConfig struct {
	PageSize       int
	SearchDebounce time.Duration
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string
	Pretty bool
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string
}

// Load reads .env from the working directory, if present, and then the
// environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile reads the dotenv file at path, if it exists, and then the
// environment. Variables already set in the environment win over the file.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Marvel: MarvelConfig{
			PublicKey:  v.GetString("MARVEL_PUBLIC_KEY"),
			PrivateKey: v.GetString("MARVEL_PRIVATE_KEY"),
			BaseURL:    v.GetString("MARVEL_BASE_URL"),
			UserAgent:  v.GetString("MARVEL_USER_AGENT"),
			Timeout:    v.GetDuration("MARVEL_TIMEOUT"),
			MaxRetries: v.GetInt("MARVEL_MAX_RETRIES"),
			DailyQuota: v.GetInt("MARVEL_DAILY_QUOTA"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("REDIS_ADDR"),
			CacheTTL:       v.GetDuration("CACHE_TTL"),
			CacheRetention: v.GetDuration("CACHE_RETENTION"),
		},
		List: ListConfig{
			PageSize:       v.GetInt("HEROES_PAGE_SIZE"),
			SearchDebounce: v.GetDuration("HEROES_SEARCH_DEBOUNCE"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
		HTTP: HTTPConfig{
			Addr: v.GetString("HTTP_ADDR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := client.DefaultConfig("", "")
	list := heroes.DefaultConfig()

	v.SetDefault("MARVEL_BASE_URL", defaults.BaseURL)
	v.SetDefault("MARVEL_USER_AGENT", defaults.UserAgent)
	v.SetDefault("MARVEL_TIMEOUT", defaults.Timeout)
	v.SetDefault("MARVEL_MAX_RETRIES", defaults.MaxRetries)
	v.SetDefault("MARVEL_DAILY_QUOTA", 3000)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CACHE_TTL", cache.DefaultTTL)
	v.SetDefault("CACHE_RETENTION", cache.DefaultRetention)
	v.SetDefault("HEROES_PAGE_SIZE", list.PageSize)
	v.SetDefault("HEROES_SEARCH_DEBOUNCE", list.SearchDebounce)
	v.SetDefault("LOG_LEVEL", string(logging.LevelInfo))
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("HTTP_ADDR", ":8080")
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Marvel.PublicKey == "" {
		errs = append(errs, errors.New("MARVEL_PUBLIC_KEY is required"))
	}
	if c.Marvel.PrivateKey == "" {
		errs = append(errs, errors.New("MARVEL_PRIVATE_KEY is required"))
	}
	if c.Marvel.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("MARVEL_TIMEOUT must be > 0 (got %s)", c.Marvel.Timeout))
	}
	if c.Marvel.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MARVEL_MAX_RETRIES must be >= 0 (got %d)", c.Marvel.MaxRetries))
	}
	if c.Marvel.DailyQuota <= 0 {
		errs = append(errs, fmt.Errorf("MARVEL_DAILY_QUOTA must be > 0 (got %d)", c.Marvel.DailyQuota))
	}
	if c.Redis.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be >= 0 (got %s)", c.Redis.CacheTTL))
	}
	if c.Redis.CacheTTL > 0 && c.Redis.CacheRetention < c.Redis.CacheTTL {
		errs = append(errs, fmt.Errorf("CACHE_RETENTION must be >= CACHE_TTL (got %s < %s)", c.Redis.CacheRetention, c.Redis.CacheTTL))
	}
	if c.List.PageSize < 1 || c.List.PageSize > client.MaxLimit {
		errs = append(errs, fmt.Errorf("HEROES_PAGE_SIZE must be between 1 and %d (got %d)", client.MaxLimit, c.List.PageSize))
	}
	if c.List.SearchDebounce < 0 {
		errs = append(errs, fmt.Errorf("HEROES_SEARCH_DEBOUNCE must be >= 0 (got %s)", c.List.SearchDebounce))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

// ClientConfig returns the catalog client configuration. The quota tracker
// and page cache are wired by the caller.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.Marvel.PublicKey, c.Marvel.PrivateKey)
	cfg.BaseURL = c.Marvel.BaseURL
	cfg.UserAgent = c.Marvel.UserAgent
	cfg.Timeout = c.Marvel.Timeout
	cfg.MaxRetries = c.Marvel.MaxRetries
	if c.Redis.CacheTTL > 0 {
		cfg.CacheTTL = c.Redis.CacheTTL
	}
	return cfg
}

// ListControllerConfig returns the list controller configuration.
func (c Config) ListControllerConfig() heroes.Config {
	cfg := heroes.DefaultConfig()
	cfg.PageSize = c.List.PageSize
	cfg.SearchDebounce = c.List.SearchDebounce
	return cfg
}

// LoggingConfig returns the logger configuration. Validate has already
// checked the level.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = logging.ParseLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
