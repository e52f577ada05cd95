package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	// Every request counts against the daily catalog quota, keep this small.
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// PageSize is the limit sent with every request (the catalog caps it at 100)
	PageSize int
}

// DefaultConfig returns safe default configuration for the catalog
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		PageSize:       100,
	}
}

// BatchFetcher fetches every page of the catalog in parallel
type BatchFetcher struct {
	fetcher catalog.PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher catalog.PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.PageSize <= 0 || config.PageSize > 100 {
		config.PageSize = 100
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches the whole catalog and returns heroes in offset order.
// When a page fails the heroes of the pages before the first gap are
// returned together with the error.
func (bf *BatchFetcher) FetchAll(ctx context.Context) ([]catalog.Hero, error) {
	start := time.Now()

	first, err := bf.fetchPage(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	offsets := remainingOffsets(len(first.Items), first.Total, bf.config.PageSize)

	log.Info().
		Int("total", first.Total).
		Int("pages", len(offsets)+1).
		Msg("Starting parallel page fetch")

	if len(offsets) == 0 {
		log.Info().
			Int("heroes", len(first.Items)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Items, nil
	}

	// Each goroutine owns exactly one slot.
	pages := make([][]catalog.Hero, len(offsets))
	done := make([]bool, len(offsets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for i, offset := range offsets {
		g.Go(func() error {
			page, err := bf.fetchPage(gctx, offset)
			if err != nil {
				log.Warn().
					Err(err).
					Int("offset", offset).
					Msg("Page fetch failed")
				return fmt.Errorf("offset %d: %w", offset, err)
			}
			pages[i] = page.Items
			done[i] = true
			return nil
		})
	}

	werr := g.Wait()

	heroes := append([]catalog.Hero(nil), first.Items...)
	fetched := 1
	for i, items := range pages {
		if !done[i] {
			break
		}
		heroes = append(heroes, items...)
		fetched++
	}

	if werr != nil {
		log.Warn().
			Err(werr).
			Int("fetched_pages", fetched).
			Int("total_pages", len(offsets)+1).
			Msg("Returning partial results")
		return heroes, fmt.Errorf("page fetch failed (partial data: %d/%d pages): %w", fetched, len(offsets)+1, werr)
	}

	log.Info().
		Int("heroes", len(heroes)).
		Int("total", first.Total).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return heroes, nil
}

func (bf *BatchFetcher) fetchPage(ctx context.Context, offset int) (catalog.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchHeroes(pageCtx, bf.config.PageSize, offset)
}

// remainingOffsets lists the offsets still to fetch after a first page of
// firstLen heroes. An empty first page yields nothing so a catalog that
// reports a total it never delivers cannot loop.
func remainingOffsets(firstLen, total, pageSize int) []int {
	if firstLen == 0 {
		return nil
	}
	var offsets []int
	for offset := firstLen; offset < total; offset += pageSize {
		offsets = append(offsets, offset)
	}
	return offsets
}
