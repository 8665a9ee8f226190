// Package listing implements the reactive pipeline behind the console's
// list screens. Triggers (filter changes, page changes, reload
// requests) arrive on a typed channel consumed by a single goroutine;
// each reload carries a generation number so that a newer trigger
// supersedes the observable result of any older in-flight load,
// regardless of completion order.
package listing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// defaultDebounce is the quiet period applied to filter changes.
	defaultDebounce = 300 * time.Millisecond
	defaultPageSize = 5
)

// TokenFunc yields a fresh bearer token for one request.
type TokenFunc func(ctx context.Context) (string, error)

// FetchFunc loads one page. Implementations receive the token, the
// current pagination window and filter, and return the page plus the
// server's total count.
type FetchFunc[T any] func(ctx context.Context, token string, p Pagination, filter string) (Page[T], error)

type eventKind int

const (
	evFilter eventKind = iota
	evPage
	evReload
)

type event struct {
	kind      eventKind
	filter    string
	pageIndex int
	pageSize  int
}

// Pipeline drives one list screen's state. Its lifetime is tied to the
// owning screen: Start when the screen opens, Close when it is torn
// down.
type Pipeline[T any] struct {
	token    TokenFunc
	fetch    FetchFunc[T]
	debounce time.Duration
	initial  bool
	log      zerolog.Logger

	mu    sync.Mutex
	state State[T]
	gen   uint64

	events chan event
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Pipeline.
type Option[T any] func(*Pipeline[T])

// WithDebounce overrides the filter quiet period.
func WithDebounce[T any](d time.Duration) Option[T] {
	return func(p *Pipeline[T]) { p.debounce = d }
}

// WithPageSize sets the initial page size.
func WithPageSize[T any](size int) Option[T] {
	return func(p *Pipeline[T]) { p.state.Pagination.PageSize = size }
}

// WithInitialFilter seeds the filter the first load applies, without
// going through the debounce.
func WithInitialFilter[T any](filter string) Option[T] {
	return func(p *Pipeline[T]) { p.state.Filter = filter }
}

// WithInitialPage seeds the page index of the first load.
func WithInitialPage[T any](index int) Option[T] {
	return func(p *Pipeline[T]) { p.state.Pagination.PageIndex = index }
}

// WithoutInitialReload suppresses the automatic load on Start; the
// first load then waits for an explicit trigger.
func WithoutInitialReload[T any]() Option[T] {
	return func(p *Pipeline[T]) { p.initial = false }
}

// WithLogger sets the pipeline's logger.
func WithLogger[T any](log zerolog.Logger) Option[T] {
	return func(p *Pipeline[T]) { p.log = log }
}

// New returns a stopped pipeline. State starts loading with an empty
// item set, so a screen rendered before the first load completes shows
// a spinner rather than a false empty list.
func New[T any](token TokenFunc, fetch FetchFunc[T], options ...Option[T]) *Pipeline[T] {
	p := &Pipeline[T]{
		token:    token,
		fetch:    fetch,
		debounce: defaultDebounce,
		initial:  true,
		log:      zerolog.Nop(),
		state: State[T]{
			Loading:    true,
			Pagination: Pagination{PageSize: defaultPageSize},
		},
		events: make(chan event, 16),
		done:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Start launches the consumer goroutine. Call once.
func (p *Pipeline[T]) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// Close stops the consumer and abandons any in-flight load.
func (p *Pipeline[T]) Close() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

// SetFilter records a filter change. Changes are debounced and
// deduplicated; the surviving value resets the page index to zero and
// triggers a reload.
func (p *Pipeline[T]) SetFilter(filter string) {
	p.events <- event{kind: evFilter, filter: filter}
}

// SetPage replaces the pagination window and triggers a reload. Total
// is preserved until that reload completes.
func (p *Pipeline[T]) SetPage(pageIndex, pageSize int) {
	p.events <- event{kind: evPage, pageIndex: pageIndex, pageSize: pageSize}
}

// RequestReload triggers a reload with the current filter and
// pagination. Mutation coordinators use this after a successful write.
func (p *Pipeline[T]) RequestReload() {
	p.events <- event{kind: evReload}
}

// Snapshot returns a copy of the current state.
func (p *Pipeline[T]) Snapshot() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	s.Items = append([]T(nil), p.state.Items...)
	return s
}

// MarkLoading sets the loading flag ahead of a mutation. Items and
// total keep their stale values.
func (p *Pipeline[T]) MarkLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Loading = true
}

// ClearLoading drops the loading flag without touching anything else.
// Used by mutations that do not reload the list afterwards.
func (p *Pipeline[T]) ClearLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Loading = false
}

// Fail records a failure message and clears the loading flag. Items
// and total stay as they were.
func (p *Pipeline[T]) Fail(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Error = msg
	p.state.Loading = false
}

// Clear empties the item list, e.g. when the owning dialog closes.
func (p *Pipeline[T]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Items = nil
}

// run is the single consumer of the trigger channel.
func (p *Pipeline[T]) run(ctx context.Context) {
	defer close(p.done)

	if p.initial {
		p.reload(ctx)
	}

	var (
		debounceC   <-chan time.Time
		timer       *time.Timer
		pending     string
		lastApplied = p.currentFilter()
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev := <-p.events:
			switch ev.kind {
			case evFilter:
				pending = ev.filter
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(p.debounce)
				debounceC = timer.C

			case evPage:
				p.mu.Lock()
				p.state.Pagination.PageIndex = ev.pageIndex
				p.state.Pagination.PageSize = ev.pageSize
				p.mu.Unlock()
				p.reload(ctx)

			case evReload:
				p.reload(ctx)
			}

		case <-debounceC:
			debounceC = nil
			if pending == lastApplied {
				continue
			}
			lastApplied = pending
			p.mu.Lock()
			p.state.Filter = pending
			p.state.Pagination.PageIndex = 0
			p.mu.Unlock()
			p.reload(ctx)
		}
	}
}

// reload snapshots the query under the next generation and fetches in
// the background. Only the most recent generation may apply its result.
func (p *Pipeline[T]) reload(ctx context.Context) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	pag := p.state.Pagination
	filter := p.state.Filter
	p.mu.Unlock()

	go func() {
		token, err := p.token(ctx)
		if err != nil {
			p.fail(ctx, gen, err)
			return
		}

		page, err := p.fetch(ctx, token, pag, filter)
		if err != nil {
			p.fail(ctx, gen, err)
			return
		}
		p.apply(gen, page)
	}()
}

func (p *Pipeline[T]) apply(gen uint64, page Page[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		// Superseded by a newer trigger; discard.
		return
	}
	p.state.Items = page.Items
	p.state.Pagination.Total = page.Total
	p.state.Loading = false
	p.state.Error = ""
}

func (p *Pipeline[T]) fail(ctx context.Context, gen uint64, err error) {
	if ctx.Err() != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.state.Error = err.Error()
	p.state.Loading = false
	p.log.Debug().Err(err).Msg("list load failed")
}

func (p *Pipeline[T]) currentFilter() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Filter
}
