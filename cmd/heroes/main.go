// Command heroes browses the Marvel characters catalog from the terminal and
// can serve it over HTTP.
//
// Usage:
//
//	heroes list   [-pages N] [-search text]
//	heroes show   -id N
//	heroes export [-out file] [-concurrency N]
//	heroes serve  [-addr :8080]
//
// Configuration comes from the environment and an optional .env file
// (MARVEL_PUBLIC_KEY, MARVEL_PRIVATE_KEY, REDIS_ADDR, ...).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/marvel-heroes-client/internal/config"
	"github.com/Sternrassler/marvel-heroes-client/pkg/cache"
	"github.com/Sternrassler/marvel-heroes-client/pkg/client"
	"github.com/Sternrassler/marvel-heroes-client/pkg/logging"
	"github.com/Sternrassler/marvel-heroes-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LoggingConfig())

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return dispatch(ctx, a, args, stdout)
}

func dispatch(ctx context.Context, a *app, args []string, w io.Writer) error {
	switch args[0] {
	case "list":
		return runList(ctx, a, args[1:], w)
	case "show":
		return runShow(ctx, a, args[1:], w)
	case "export":
		return runExport(ctx, a, args[1:], w)
	case "serve":
		return runServe(ctx, a, args[1:])
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: heroes <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  list    [-pages N] [-search text]     list heroes page by page")
	fmt.Fprintln(w, "  show    -id N                         show one hero")
	fmt.Fprintln(w, "  export  [-out file] [-concurrency N]  export the whole catalog as JSON lines")
	fmt.Fprintln(w, "  serve   [-addr :8080]                 serve the catalog over HTTP")
}

// app holds the collaborators shared by all commands.
type app struct {
	cfg    config.Config
	client *client.Client
	redis  *redis.Client // nil when quota tracking is off
	logger zerolog.Logger
}

// newApp builds the catalog client. When REDIS_ADDR is set and reachable,
// every request is counted against the shared daily quota and pages are
// cached unless CACHE_TTL is 0.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger("heroes-cli"),
	}

	clientCfg := cfg.ClientConfig()

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.logger.Warn().
				Err(err).
				Str("addr", cfg.Redis.Addr).
				Msg("Redis unavailable, quota tracking disabled")
			rdb.Close()
		} else {
			a.redis = rdb
			clientCfg.Quota = ratelimit.NewTracker(rdb, cfg.Marvel.DailyQuota, logging.NewLogger("quota-tracker"))
			if cfg.Redis.CacheTTL > 0 {
				clientCfg.Cache = cache.NewManager(rdb, cfg.Redis.CacheRetention)
			}
			a.logger.Debug().
				Str("addr", cfg.Redis.Addr).
				Bool("page_cache", clientCfg.Cache != nil).
				Msg("Quota tracking enabled")
		}
	}

	c, err := client.New(clientCfg)
	if err != nil {
		if a.redis != nil {
			a.redis.Close()
		}
		return nil, fmt.Errorf("create catalog client: %w", err)
	}
	a.client = c

	return a, nil
}

// ready reports whether the quota store, when configured, is reachable.
func (a *app) ready(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx).Err()
}

// Close releases the client and the Redis connection.
func (a *app) Close() error {
	a.client.Close()
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
