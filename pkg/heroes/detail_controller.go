package heroes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"github.com/Sternrassler/marvel-heroes-client/pkg/logging"
	"github.com/rs/zerolog"
)

// DetailState is a snapshot of the detail screen.
type DetailState struct {
	Hero         catalog.Hero
	IsLoading    bool
	ErrorMessage string
	ImageURL     string
}

// DetailController loads the full record of one hero. It starts from the
// summary shown in the list and replaces it once the lookup succeeds.
type DetailController struct {
	lookup    catalog.HeroLookup
	navigator Navigator
	logger    zerolog.Logger

	mu           sync.Mutex
	hero         catalog.Hero
	isLoading    bool
	errorMessage string
	generation   uint64
}

// NewDetailController creates a controller for hero. A nil navigator
// ignores Back.
func NewDetailController(hero catalog.Hero, lookup catalog.HeroLookup, navigator Navigator) (*DetailController, error) {
	if lookup == nil {
		return nil, fmt.Errorf("hero lookup is required")
	}
	if navigator == nil {
		navigator = NopNavigator{}
	}

	return &DetailController{
		lookup:    lookup,
		navigator: navigator,
		logger:    logging.NewLogger("hero-detail").With().Int("hero_id", hero.ID).Logger(),
		hero:      hero,
	}, nil
}

// Load fetches the full record. An unknown id keeps the summary. When a
// newer Load started meanwhile the result is dropped and ErrSuperseded
// returned.
func (d *DetailController) Load(ctx context.Context) error {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	id := d.hero.ID
	d.isLoading = true
	d.errorMessage = ""
	d.mu.Unlock()

	hero, err := d.lookup.FetchHero(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.generation {
		return ErrSuperseded
	}
	d.isLoading = false

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		d.logger.Debug().Msg("Hero not found, keeping summary")
		return nil
	case err != nil:
		d.errorMessage = userMessage(err)
		d.logger.Warn().Err(err).Msg("Hero lookup failed")
		return err
	case hero == nil:
		return nil
	}

	d.hero = *hero
	return nil
}

// Retry loads the record again.
func (d *DetailController) Retry(ctx context.Context) error {
	return d.Load(ctx)
}

// Back asks the navigator to dismiss the detail screen.
func (d *DetailController) Back() {
	d.navigator.DismissHeroDetail()
}

// Hero returns the hero currently shown.
func (d *DetailController) Hero() catalog.Hero {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hero
}

// ImageURL returns the hero image URL, "" when the hero has none.
func (d *DetailController) ImageURL() string {
	return d.Hero().Thumbnail.URL()
}

// State returns the current detail state.
func (d *DetailController) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DetailState{
		Hero:         d.hero,
		IsLoading:    d.isLoading,
		ErrorMessage: d.errorMessage,
		ImageURL:     d.hero.Thumbnail.URL(),
	}
}
