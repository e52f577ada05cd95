package heroes

import (
	"fmt"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
)

// Phase names what the list screen should show.
type Phase string

const (
	// PhaseIdle means nothing has been requested yet.
	PhaseIdle Phase = "idle"

	// PhaseLoading means a refresh is running and nothing is shown yet.
	PhaseLoading Phase = "loading"

	// PhaseError means the last refresh failed and nothing is shown.
	PhaseError Phase = "error"

	// PhaseEmpty means the catalog or the active search has no heroes.
	PhaseEmpty Phase = "empty"

	// PhaseContent means there are heroes to show.
	PhaseContent Phase = "content"
)

// ViewState is a snapshot of everything the list screen renders. It is
// derived from the controller state after every change and never mutated
// afterwards.
type ViewState struct {
	// Version increases with every published change.
	Version uint64

	IsLoading     bool
	IsLoadingMore bool
	ErrorMessage  string

	// SearchText is the text as typed, before the debounce applies it.
	SearchText string

	// VisibleItems are the accumulated heroes filtered by the applied search.
	VisibleItems []catalog.Hero

	// TotalItems is the number of accumulated heroes.
	TotalItems int

	HasMore     bool
	ScreenTitle string
	Phase       Phase
}

// ScreenTitle renders the list title. The denominator is always the number
// of accumulated heroes.
func ScreenTitle(accumulated, matched int, query string) string {
	switch {
	case accumulated == 0:
		return "Heroes"
	case query == "":
		return fmt.Sprintf("Heroes (%d)", accumulated)
	default:
		return fmt.Sprintf("Heroes (%d of %d)", matched, accumulated)
	}
}

func phaseOf(isLoading bool, errorMessage string, loaded bool, accumulated, visible int) Phase {
	switch {
	case accumulated == 0 && isLoading:
		return PhaseLoading
	case accumulated == 0 && errorMessage != "":
		return PhaseError
	case accumulated == 0 && !loaded:
		return PhaseIdle
	case visible == 0:
		return PhaseEmpty
	default:
		return PhaseContent
	}
}
