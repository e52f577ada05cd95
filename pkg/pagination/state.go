package pagination

import "github.com/Sternrassler/marvel-heroes-client/pkg/catalog"

// DefaultPageSize is the number of heroes requested per interactive page.
const DefaultPageSize = 20

// State tracks the heroes accumulated so far and where the next page starts.
// It performs no I/O and is not safe for concurrent use; its owner serializes
// access.
type State struct {
	items    []catalog.Hero
	offset   int
	total    int
	pageSize int

	// loaded is false between Reset and the first applied page. Until then
	// the total is unknown and more pages are assumed to exist.
	loaded bool
}

// NewState returns an empty state. A non-positive pageSize falls back to
// DefaultPageSize.
func NewState(pageSize int) *State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &State{pageSize: pageSize}
}

// Reset discards all accumulated heroes and rewinds to offset 0.
func (s *State) Reset() {
	s.items = nil
	s.offset = 0
	s.total = 0
	s.loaded = false
}

// ApplyPage merges a successfully fetched page. A refresh replaces the
// accumulated heroes, otherwise the page is appended. Heroes are not
// deduplicated by id.
func (s *State) ApplyPage(page catalog.Page, isRefresh bool) {
	if isRefresh {
		s.items = append([]catalog.Hero(nil), page.Items...)
	} else {
		s.items = append(s.items, page.Items...)
	}

	// Count can disagree with what was actually delivered.
	s.offset += len(page.Items)
	s.total = page.Total
	s.loaded = true
}

// HasMore reports whether another page can be requested.
func (s *State) HasMore() bool {
	if !s.loaded {
		return true
	}
	return s.offset < s.total
}

// Loaded reports whether a page has been applied since the last Reset.
func (s *State) Loaded() bool { return s.loaded }

// Offset is the number of heroes fetched so far and the next request offset.
func (s *State) Offset() int { return s.offset }

// Total is the last total reported by the catalog, 0 before the first page.
func (s *State) Total() int { return s.total }

// PageSize is the request limit.
func (s *State) PageSize() int { return s.pageSize }

// Len is the number of accumulated heroes.
func (s *State) Len() int { return len(s.items) }

// Items returns a copy of the accumulated heroes in fetch order.
func (s *State) Items() []catalog.Hero {
	out := make([]catalog.Hero, len(s.items))
	copy(out, s.items)
	return out
}

// IndexOf returns the position of the first hero with the given id, or -1.
func (s *State) IndexOf(id int) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
