package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
)

// Heroes builds heroes with ids 1..n named after names.
func Heroes(names ...string) []catalog.Hero {
	heroes := make([]catalog.Hero, len(names))
	for i, name := range names {
		heroes[i] = catalog.Hero{ID: i + 1, Name: name}
	}
	return heroes
}

// NumberedHeroes builds n heroes named "Hero 1".."Hero n" with ids 1..n.
func NumberedHeroes(n int) []catalog.Hero {
	heroes := make([]catalog.Hero, n)
	for i := range heroes {
		heroes[i] = catalog.Hero{ID: i + 1, Name: fmt.Sprintf("Hero %d", i+1)}
	}
	return heroes
}

// FetchCall records the arguments of one FetchHeroes call.
type FetchCall struct {
	Limit  int
	Offset int
}

// CatalogFetcher serves pages out of an in-memory catalog.
type CatalogFetcher struct {
	mu     sync.Mutex
	heroes []catalog.Hero
	total  int
	calls  []FetchCall

	// Failures maps an offset to the error returned for it.
	Failures map[int]error
	// CountOverride, when non-zero, replaces the reported page count.
	CountOverride int
}

// NewCatalogFetcher returns a fetcher whose total is len(heroes).
func NewCatalogFetcher(heroes []catalog.Hero) *CatalogFetcher {
	return &CatalogFetcher{heroes: heroes, total: len(heroes), Failures: map[int]error{}}
}

// SetTotal overrides the reported total.
func (f *CatalogFetcher) SetTotal(total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total = total
}

// Fail makes the fetch at offset return err until Recover is called.
func (f *CatalogFetcher) Fail(offset int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Failures[offset] = err
}

// Recover clears all configured failures.
func (f *CatalogFetcher) Recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Failures = map[int]error{}
}

// FetchHeroes implements catalog.PageFetcher.
func (f *CatalogFetcher) FetchHeroes(ctx context.Context, limit, offset int) (catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, FetchCall{Limit: limit, Offset: offset})

	if err := ctx.Err(); err != nil {
		return catalog.Page{}, err
	}
	if err, ok := f.Failures[offset]; ok {
		return catalog.Page{}, err
	}

	end := offset + limit
	if end > len(f.heroes) {
		end = len(f.heroes)
	}
	var items []catalog.Hero
	if offset < end {
		items = append(items, f.heroes[offset:end]...)
	}

	count := len(items)
	if f.CountOverride != 0 {
		count = f.CountOverride
	}

	return catalog.Page{
		Items:  items,
		Total:  f.total,
		Count:  count,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// FetchHero implements catalog.HeroLookup.
func (f *CatalogFetcher) FetchHero(ctx context.Context, id int) (*catalog.Hero, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.Failures[-id]; ok {
		return nil, err
	}
	for i := range f.heroes {
		if f.heroes[i].ID == id {
			hero := f.heroes[i]
			return &hero, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// Calls returns the recorded calls in order.
func (f *CatalogFetcher) Calls() []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchCall(nil), f.calls...)
}

// CallCount returns the number of recorded calls.
func (f *CatalogFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// PendingFetch is a fetch held open by a BlockingFetcher.
type PendingFetch struct {
	Limit  int
	Offset int
	reply  chan fetchResult
}

type fetchResult struct {
	page catalog.Page
	err  error
}

// Respond completes the fetch.
func (p *PendingFetch) Respond(page catalog.Page, err error) {
	p.reply <- fetchResult{page: page, err: err}
}

// BlockingFetcher hands every call to the test through Requests and blocks
// until the test responds or the context ends.
type BlockingFetcher struct {
	Requests chan *PendingFetch
}

// NewBlockingFetcher returns a fetcher that can queue up to 16 calls.
func NewBlockingFetcher() *BlockingFetcher {
	return &BlockingFetcher{Requests: make(chan *PendingFetch, 16)}
}

// FetchHeroes implements catalog.PageFetcher.
func (f *BlockingFetcher) FetchHeroes(ctx context.Context, limit, offset int) (catalog.Page, error) {
	p := &PendingFetch{Limit: limit, Offset: offset, reply: make(chan fetchResult, 1)}
	select {
	case f.Requests <- p:
	case <-ctx.Done():
		return catalog.Page{}, ctx.Err()
	}
	select {
	case r := <-p.reply:
		return r.page, r.err
	case <-ctx.Done():
		return catalog.Page{}, ctx.Err()
	}
}
