package heroes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
	"github.com/Sternrassler/marvel-heroes-client/pkg/logging"
	"github.com/Sternrassler/marvel-heroes-client/pkg/pagination"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for list controllers.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heroes_fetches_total",
		Help: "Page fetches issued by list controllers by kind and result",
	}, []string{"kind", "result"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "heroes_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by kind",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	loadMoreSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heroes_load_more_skipped_total",
		Help: "Load-more requests rejected because a fetch was running or no pages were left",
	})

	filterRecomputationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heroes_filter_recomputations_total",
		Help: "Debounced search filter recomputations",
	})
)

var (
	// ErrClosed is delivered to completion channels once the controller is closed.
	ErrClosed = errors.New("controller closed")

	// ErrSuperseded is delivered when a refresh or clear replaced the state a
	// fetch was issued for. Its result is discarded.
	ErrSuperseded = errors.New("fetch superseded")
)

const (
	// DefaultSearchDebounce is the quiet period before a search is applied.
	DefaultSearchDebounce = 300 * time.Millisecond

	// DefaultLoadMoreThreshold is how close to the end of the list an item
	// must be to trigger the next page.
	DefaultLoadMoreThreshold = 5

	maxPageSize = 100
)

// Config holds list controller configuration.
type Config struct {
	// PageSize is the limit of every request (1-100)
	PageSize int

	// SearchDebounce is the quiet period after the last keystroke
	SearchDebounce time.Duration

	// LoadMoreThreshold in items from the end of the unfiltered list
	LoadMoreThreshold int

	// Navigator receives hero selections. Optional.
	Navigator Navigator

	// OnFilterApplied is called with the query each time the debounced
	// search recomputes the visible heroes. Optional.
	OnFilterApplied func(query string)
}

// DefaultConfig returns the configuration the list screen uses.
func DefaultConfig() Config {
	return Config{
		PageSize:          pagination.DefaultPageSize,
		SearchDebounce:    DefaultSearchDebounce,
		LoadMoreThreshold: DefaultLoadMoreThreshold,
	}
}

type fetchKind string

const (
	kindRefresh  fetchKind = "refresh"
	kindLoadMore fetchKind = "load_more"
)

// fetchRequest captures everything a fetch needs to run and to be applied
// without holding the lock.
type fetchRequest struct {
	kind     fetchKind
	epoch    uint64
	epochCtx context.Context
	limit    int
	offset   int
}

// ListController orchestrates paged loading, search filtering and view state
// for the heroes list. It is safe for concurrent use.
type ListController struct {
	fetcher catalog.PageFetcher
	config  Config
	logger  zerolog.Logger
	session string

	// ctx ends on Close; epochCtx ends when the epoch is superseded.
	ctx         context.Context
	cancel      context.CancelFunc
	epochCtx    context.Context
	epochCancel context.CancelFunc

	mu            sync.Mutex
	state         *pagination.State
	epoch         uint64
	isLoading     bool
	isLoadingMore bool
	errorMessage  string
	searchText    string
	appliedQuery  string
	visible       []catalog.Hero
	version       uint64
	closed        bool

	debounceTimer *time.Timer
	debounceGen   uint64

	subscribers map[int]chan ViewState
	nextSubID   int
}

// NewListController creates a controller fetching pages through fetcher.
func NewListController(fetcher catalog.PageFetcher, cfg Config) (*ListController, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}

	if cfg.PageSize < 0 || cfg.PageSize > maxPageSize {
		return nil, fmt.Errorf("page_size must be between 1 and %d (got %d)", maxPageSize, cfg.PageSize)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = pagination.DefaultPageSize
	}

	if cfg.SearchDebounce < 0 {
		return nil, fmt.Errorf("search_debounce must be >= 0 (got %s)", cfg.SearchDebounce)
	}
	if cfg.SearchDebounce == 0 {
		cfg.SearchDebounce = DefaultSearchDebounce
	}

	if cfg.LoadMoreThreshold < 0 {
		return nil, fmt.Errorf("load_more_threshold must be >= 0 (got %d)", cfg.LoadMoreThreshold)
	}
	if cfg.LoadMoreThreshold == 0 {
		cfg.LoadMoreThreshold = DefaultLoadMoreThreshold
	}

	if cfg.Navigator == nil {
		cfg.Navigator = NopNavigator{}
	}

	session := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	epochCtx, epochCancel := context.WithCancel(ctx)

	return &ListController{
		fetcher:     fetcher,
		config:      cfg,
		logger:      logging.NewLogger("hero-list").With().Str("session", session).Logger(),
		session:     session,
		ctx:         ctx,
		cancel:      cancel,
		epochCtx:    epochCtx,
		epochCancel: epochCancel,
		state:       pagination.NewState(cfg.PageSize),
		subscribers: make(map[int]chan ViewState),
	}, nil
}

// Session returns the id tagging this controller's log lines.
func (c *ListController) Session() string {
	return c.session
}

// FetchFirstPage discards everything accumulated and loads the first page.
// It is always allowed, including after an error or while other fetches are
// running; their results are discarded. The returned channel receives the
// outcome (nil on success) and is then closed.
func (c *ListController) FetchFirstPage(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done <- ErrClosed
		close(done)
		return done
	}

	c.newEpochLocked()
	c.state.Reset()
	c.isLoading = true
	c.errorMessage = ""
	c.refreshVisibleLocked()
	c.publishLocked()

	req := fetchRequest{
		kind:     kindRefresh,
		epoch:    c.epoch,
		epochCtx: c.epochCtx,
		limit:    c.state.PageSize(),
		offset:   0,
	}
	c.mu.Unlock()

	c.logger.Debug().Uint64("epoch", req.epoch).Msg("Fetching first page")

	go c.run(ctx, req, done)
	return done
}

// Retry reloads from the first page.
func (c *ListController) Retry(ctx context.Context) <-chan error {
	return c.FetchFirstPage(ctx)
}

// LoadNextPage appends the next page. It does nothing and returns false
// while a refresh or another load-more is running, or when the catalog has
// no more pages; the returned channel is then already closed. Otherwise the
// channel receives the outcome and is closed.
func (c *ListController) LoadNextPage(ctx context.Context) (<-chan error, bool) {
	done := make(chan error, 1)

	c.mu.Lock()
	if c.closed || c.isLoading || c.isLoadingMore || !c.state.HasMore() {
		c.logger.Debug().
			Bool("closed", c.closed).
			Bool("is_loading", c.isLoading).
			Bool("is_loading_more", c.isLoadingMore).
			Bool("has_more", c.state.HasMore()).
			Msg("Load more skipped")
		c.mu.Unlock()

		loadMoreSkippedTotal.Inc()
		close(done)
		return done, false
	}

	c.isLoadingMore = true
	c.errorMessage = ""
	c.publishLocked()

	req := fetchRequest{
		kind:     kindLoadMore,
		epoch:    c.epoch,
		epochCtx: c.epochCtx,
		limit:    c.state.PageSize(),
		offset:   c.state.Offset(),
	}
	c.mu.Unlock()

	c.logger.Debug().
		Int("offset", req.offset).
		Int("limit", req.limit).
		Msg("Loading more heroes")

	go c.run(ctx, req, done)
	return done, true
}

// run performs one fetch and applies its result. The fetch is cancelled
// when ctx ends, when its epoch is superseded, or on Close.
func (c *ListController) run(ctx context.Context, req fetchRequest, done chan<- error) {
	defer close(done)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(req.epochCtx, cancel)
	defer stop()

	start := time.Now()
	page, err := c.fetcher.FetchHeroes(fetchCtx, req.limit, req.offset)
	fetchDuration.WithLabelValues(string(req.kind)).Observe(time.Since(start).Seconds())

	done <- c.complete(req, page, err)
}

// complete applies a finished fetch. Guard flags are cleared whatever the
// outcome; results of a superseded epoch never touch the pagination state.
func (c *ListController) complete(req fetchRequest, page catalog.Page, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := string(req.kind)

	if c.closed {
		fetchesTotal.WithLabelValues(kind, "discarded").Inc()
		return ErrClosed
	}

	current := req.epoch == c.epoch
	switch {
	case req.kind == kindLoadMore:
		// At most one load-more exists, current or not.
		c.isLoadingMore = false
	case current:
		c.isLoading = false
	}

	if !current {
		fetchesTotal.WithLabelValues(kind, "discarded").Inc()
		c.logger.Debug().
			Str("kind", kind).
			Uint64("epoch", req.epoch).
			Uint64("current_epoch", c.epoch).
			Msg("Discarding superseded page")
		c.publishLocked()
		return ErrSuperseded
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fetchesTotal.WithLabelValues(kind, "cancelled").Inc()
			c.publishLocked()
			return err
		}

		fetchesTotal.WithLabelValues(kind, "error").Inc()
		c.errorMessage = userMessage(err)
		c.logger.Warn().
			Err(err).
			Str("kind", kind).
			Int("offset", req.offset).
			Str("error_kind", string(catalog.KindOf(err))).
			Msg("Page fetch failed")
		c.publishLocked()
		return err
	}

	c.state.ApplyPage(page, req.kind == kindRefresh)
	c.errorMessage = ""
	c.refreshVisibleLocked()
	fetchesTotal.WithLabelValues(kind, "success").Inc()

	c.logger.Debug().
		Str("kind", kind).
		Int("received", len(page.Items)).
		Int("offset", c.state.Offset()).
		Int("total", c.state.Total()).
		Bool("has_more", c.state.HasMore()).
		Msg("Page applied")

	c.publishLocked()
	return nil
}

// SetSearchText records text immediately and applies it to the visible
// heroes once no other change arrived for the debounce period. Earlier
// pending changes are dropped.
func (c *ListController) SetSearchText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.searchText = text
	c.debounceGen++
	gen := c.debounceGen

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.config.SearchDebounce, func() {
		c.applySearch(gen)
	})

	c.publishLocked()
}

// applySearch runs when a debounce timer fires. Only the timer of the latest
// change recomputes.
func (c *ListController) applySearch(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.debounceGen {
		c.mu.Unlock()
		return
	}

	query := c.searchText
	c.appliedQuery = query
	c.refreshVisibleLocked()
	filterRecomputationsTotal.Inc()

	c.logger.Debug().
		Str("query", query).
		Int("matched", len(c.visible)).
		Int("accumulated", c.state.Len()).
		Msg("Search applied")

	c.publishLocked()
	hook := c.config.OnFilterApplied
	c.mu.Unlock()

	if hook != nil {
		hook(query)
	}
}

// ClearSearch empties the search text and shows all heroes right away.
func (c *ListController) ClearSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.debounceGen++
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.searchText = ""
	c.appliedQuery = ""
	c.refreshVisibleLocked()
	c.publishLocked()
}

// ClearHeroes drops everything accumulated and the error without fetching.
// Fetches in flight are discarded.
func (c *ListController) ClearHeroes() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.newEpochLocked()
	c.state.Reset()
	c.isLoading = false
	c.errorMessage = ""
	c.refreshVisibleLocked()
	c.publishLocked()
}

// ShouldTriggerLoadMore reports whether showing hero should load the next
// page: no search text, hero within the threshold of the end of the
// unfiltered list, more pages left and nothing loading.
func (c *ListController) ShouldTriggerLoadMore(hero catalog.Hero) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.searchText != "" || c.isLoading || c.isLoadingMore || !c.state.HasMore() {
		return false
	}

	index := c.state.IndexOf(hero.ID)
	if index < 0 {
		return false
	}
	return index >= c.state.Len()-c.config.LoadMoreThreshold
}

// ScreenTitle returns the current list title.
func (c *ListController) ScreenTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ScreenTitle(c.state.Len(), len(c.visible), c.appliedQuery)
}

// SelectItem asks the navigator to show hero.
func (c *ListController) SelectItem(hero catalog.Hero) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	c.logger.Debug().Int("hero_id", hero.ID).Msg("Hero selected")
	c.config.Navigator.ShowHeroDetail(hero)
}

// State returns the current view state.
func (c *ListController) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel receiving the current view state and then a
// snapshot after every change. Slow readers only see the latest snapshot;
// the controller never waits for them. The channel is closed by the
// returned func or by Close.
func (c *ListController) Subscribe() (<-chan ViewState, func()) {
	ch := make(chan ViewState, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close stops the pending search, cancels fetches in flight and closes all
// subscriptions. Later completions are ignored.
func (c *ListController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.cancel()

	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}

	c.logger.Debug().Msg("List controller closed")
	return nil
}

// newEpochLocked supersedes every fetch issued so far.
func (c *ListController) newEpochLocked() {
	c.epochCancel()
	c.epochCtx, c.epochCancel = context.WithCancel(c.ctx)
	c.epoch++
}

func (c *ListController) refreshVisibleLocked() {
	c.visible = Filter(c.state.Items(), c.appliedQuery)
}

// publishLocked bumps the version and hands the new snapshot to every
// subscriber, replacing any snapshot it has not read yet.
func (c *ListController) publishLocked() {
	c.version++
	if len(c.subscribers) == 0 {
		return
	}

	vs := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		// Only publishLocked sends, under the lock, so there is room now.
		ch <- vs
	}
}

func (c *ListController) snapshotLocked() ViewState {
	visible := make([]catalog.Hero, len(c.visible))
	copy(visible, c.visible)

	accumulated := c.state.Len()
	return ViewState{
		Version:       c.version,
		IsLoading:     c.isLoading,
		IsLoadingMore: c.isLoadingMore,
		ErrorMessage:  c.errorMessage,
		SearchText:    c.searchText,
		VisibleItems:  visible,
		TotalItems:    accumulated,
		HasMore:       c.state.HasMore(),
		ScreenTitle:   ScreenTitle(accumulated, len(c.visible), c.appliedQuery),
		Phase:         phaseOf(c.isLoading, c.errorMessage, c.state.Loaded(), accumulated, len(c.visible)),
	}
}

// userMessage renders err for display. Catalog errors carry their own
// description even when wrapped by the retry layer.
func userMessage(err error) string {
	var ce *catalog.Error
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return err.Error()
}
