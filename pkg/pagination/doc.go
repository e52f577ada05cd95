// Package pagination provides offset/limit pagination for the heroes catalog.
//
// The catalog reports an authoritative total with every page, and callers ask
// for the next slice with (limit, offset). Two pieces build on that:
//
//   - State accumulates pages for an interactive list. The offset advances by
//     the number of heroes actually delivered, never by the page's reported
//     count, and has-more is always derived from offset and total.
//   - BatchFetcher walks a whole catalog for bulk export. It fetches the first
//     page to learn the total, then fetches the remaining offsets in parallel
//     with bounded concurrency.
//
// Example usage:
//
//	state := pagination.NewState(pagination.DefaultPageSize)
//	page, err := fetcher.FetchHeroes(ctx, state.PageSize(), state.Offset())
//	if err == nil {
//		state.ApplyPage(page, false)
//	}
//
//	bf := pagination.NewBatchFetcher(fetcher, pagination.DefaultConfig())
//	heroes, err := bf.FetchAll(ctx)
package pagination
