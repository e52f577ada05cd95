package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"github.com/Sternrassler/marvel-heroes-client/pkg/heroes"
	"github.com/Sternrassler/marvel-heroes-client/pkg/pagination"
)

// runList loads pages the way a scrolling list does: the next page is only
// requested when the last visible hero triggers it.
func runList(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	pages := fs.Int("pages", 1, "number of pages to load")
	search := fs.String("search", "", "filter the loaded heroes by name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *pages < 1 {
		return fmt.Errorf("%w: -pages must be >= 1", errUsage)
	}

	applied := make(chan struct{}, 1)
	cfg := a.cfg.ListControllerConfig()
	cfg.OnFilterApplied = func(string) {
		select {
		case applied <- struct{}{}:
		default:
		}
	}

	lc, err := heroes.NewListController(a.client, cfg)
	if err != nil {
		return err
	}
	defer lc.Close()

	if err := <-lc.FetchFirstPage(ctx); err != nil {
		return fmt.Errorf("fetch heroes: %s", lc.State().ErrorMessage)
	}

	for loaded := 1; loaded < *pages; loaded++ {
		items := lc.State().VisibleItems
		if len(items) == 0 || !lc.ShouldTriggerLoadMore(items[len(items)-1]) {
			break
		}
		done, ok := lc.LoadNextPage(ctx)
		if !ok {
			break
		}
		if err := <-done; err != nil {
			// Keep what was loaded so far.
			a.logger.Warn().Err(err).Int("page", loaded+1).Msg("Load more failed")
			break
		}
	}

	if *search != "" {
		lc.SetSearchText(*search)
		select {
		case <-applied:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	printList(w, lc.State())
	return nil
}

func printList(w io.Writer, vs heroes.ViewState) {
	fmt.Fprintln(w, vs.ScreenTitle)
	for _, h := range vs.VisibleItems {
		fmt.Fprintf(w, "%8d  %s\n", h.ID, h.Name)
	}
	if vs.ErrorMessage != "" {
		fmt.Fprintf(w, "error: %s\n", vs.ErrorMessage)
	}
	if vs.HasMore && vs.SearchText == "" {
		fmt.Fprintln(w, "(more heroes available, use -pages)")
	}
}

func runShow(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	id := fs.Int("id", 0, "hero id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *id <= 0 {
		return fmt.Errorf("%w: -id is required", errUsage)
	}

	dc, err := heroes.NewDetailController(catalog.Hero{ID: *id}, a.client, nil)
	if err != nil {
		return err
	}
	if err := dc.Load(ctx); err != nil {
		return fmt.Errorf("load hero %d: %s", *id, dc.State().ErrorMessage)
	}

	hero := dc.Hero()
	if hero.Name == "" {
		return fmt.Errorf("hero %d: %w", *id, catalog.ErrNotFound)
	}

	fmt.Fprintf(w, "%s (#%d)\n", hero.Name, hero.ID)
	if hero.Description != "" {
		fmt.Fprintf(w, "\n%s\n\n", hero.Description)
	}
	if url := dc.ImageURL(); url != "" {
		fmt.Fprintf(w, "Image:   %s\n", url)
	}
	for _, rl := range []struct {
		label string
		list  *catalog.ResourceList
	}{
		{"Comics", hero.Comics},
		{"Series", hero.Series},
		{"Stories", hero.Stories},
		{"Events", hero.Events},
	} {
		if rl.list != nil {
			fmt.Fprintf(w, "%-8s %d\n", rl.label+":", rl.list.Available)
		}
	}
	for _, u := range hero.URLs {
		fmt.Fprintf(w, "Link:    %s %s\n", u.Type, u.URL)
	}
	return nil
}

// runExport writes the whole catalog as JSON lines. On a partial failure
// the heroes fetched before the gap are still written.
func runExport(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "-", "output file, - for stdout")
	concurrency := fs.Int("concurrency", pagination.DefaultConfig().MaxConcurrency, "parallel page requests")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *concurrency < 1 {
		return fmt.Errorf("%w: -concurrency must be >= 1", errUsage)
	}

	dst := w
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create %s: %w", *out, err)
		}
		defer f.Close()
		dst = f
	}

	bf := pagination.NewBatchFetcher(a.client, pagination.Config{
		MaxConcurrency: *concurrency,
		Timeout:        a.cfg.Marvel.Timeout,
		PageSize:       pagination.DefaultConfig().PageSize,
	})

	start := time.Now()
	all, fetchErr := bf.FetchAll(ctx)

	enc := json.NewEncoder(dst)
	for i := range all {
		if err := enc.Encode(&all[i]); err != nil {
			return errors.Join(fetchErr, fmt.Errorf("write hero %d: %w", all[i].ID, err))
		}
	}

	a.logger.Info().
		Int("heroes", len(all)).
		Str("out", *out).
		Dur("duration", time.Since(start)).
		Msg("Export finished")

	return fetchErr
}
