package heroes

import (
	"strings"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"golang.org/x/text/cases"
)

// Filter returns the heroes whose name contains query, ignoring case, in
// their original order. An empty query returns heroes unchanged.
func Filter(heroes []catalog.Hero, query string) []catalog.Hero {
	if query == "" {
		return heroes
	}

	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]catalog.Hero, 0, len(heroes))
	for _, h := range heroes {
		if strings.Contains(fold.String(h.Name), needle) {
			out = append(out, h)
		}
	}
	return out
}
