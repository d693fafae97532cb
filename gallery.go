package main

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type GalleryState int

const (
	StateIdle GalleryState = iota
	StateLoading
	StateLoadingMore
	StateLoaded
	StateError
)

func (s GalleryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoadingMore:
		return "loading-more"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	}
	return "unknown"
}

type SearchState struct {
	Keyword string
	Page    int
}

// Snapshot is a copy of the gallery state handed to views.
type Snapshot struct {
	State      GalleryState
	Search     SearchState
	Collection ImageCollection
	Err        error
}

func (s Snapshot) Loading() bool {
	return s.State == StateLoading || s.State == StateLoadingMore
}

// EndOfResults reports that the last page has been loaded, so the view shows
// a "no more results" marker instead of a loader.
func (s Snapshot) EndOfResults() bool {
	return s.State == StateLoaded && !HasMore(s.Search.Page, s.Collection.TotalPages)
}

// Gallery is the search and pagination state machine behind a gallery view.
// Every fetch gets its own context; starting a new fetch cancels the previous
// one, and a response is applied only while its request is still the latest.
type Gallery struct {
	fetcher PhotoFetcher
	log     *zap.Logger

	root      context.Context
	closeRoot context.CancelFunc
	wg        sync.WaitGroup

	mu          sync.Mutex
	state       GalleryState
	search      SearchState
	collection  ImageCollection
	err         error
	seq         uint64
	cancel      context.CancelFunc
	closed      bool
	nextID      int
	listeners   map[int]func(Snapshot)
	onScrollTop func()
}

func NewGallery(fetcher PhotoFetcher, logger *zap.Logger) *Gallery {
	root, cancel := context.WithCancel(context.Background())
	return &Gallery{
		fetcher:   fetcher,
		log:       logger.Named("gallery"),
		root:      root,
		closeRoot: cancel,
		search:    SearchState{Page: 1},
		listeners: make(map[int]func(Snapshot)),
	}
}

// OnScrollTop sets the hook run after a new keyword's first page lands.
func (g *Gallery) OnScrollTop(fn func()) {
	g.mu.Lock()
	g.onScrollTop = fn
	g.mu.Unlock()
}

// Subscribe registers fn to receive a snapshot after every state change.
func (g *Gallery) Subscribe(fn func(Snapshot)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gallery) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Gallery) snapshotLocked() Snapshot {
	s := Snapshot{
		State:  g.state,
		Search: g.search,
		Err:    g.err,
		Collection: ImageCollection{
			Items: append([]NormalizedImage(nil), g.collection.Items...),
		},
	}
	if g.collection.TotalPages != nil {
		s.Collection.TotalPages = intPtr(*g.collection.TotalPages)
	}
	return s
}

// SetKeyword starts a new search session at page 1. The empty keyword
// browses the unfiltered listing. Repeating the current keyword is a no-op
// once a session exists.
func (g *Gallery) SetKeyword(keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	g.mu.Lock()
	if g.closed || (g.state != StateIdle && keyword == g.search.Keyword) {
		g.mu.Unlock()
		return false
	}
	g.search = SearchState{Keyword: keyword, Page: 1}
	g.collection = ImageCollection{}
	g.err = nil
	g.state = StateLoading
	g.issueLocked()
	return g.unlockAndNotify()
}

// ReachedScrollThreshold requests the next page. It only acts on a loaded
// gallery with pages left, so at most one page fetch is ever outstanding.
// After a failed fetch it re-issues the failed page, so callers should only
// invoke it in Error on user input.
func (g *Gallery) ReachedScrollThreshold() bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	switch {
	case g.state == StateError:
		g.retryLocked()
	case g.state == StateLoaded && HasMore(g.search.Page, g.collection.TotalPages):
		g.search.Page++
		g.state = StateLoadingMore
		g.issueLocked()
	default:
		g.mu.Unlock()
		return false
	}
	return g.unlockAndNotify()
}

// Retry re-issues the fetch that failed.
func (g *Gallery) Retry() bool {
	g.mu.Lock()
	if g.closed || g.state != StateError {
		g.mu.Unlock()
		return false
	}
	g.retryLocked()
	return g.unlockAndNotify()
}

func (g *Gallery) retryLocked() {
	g.err = nil
	if g.search.Page == 1 {
		g.state = StateLoading
	} else {
		g.state = StateLoadingMore
	}
	g.issueLocked()
}

// Close cancels the outstanding fetch and waits for it to return.
func (g *Gallery) Close() {
	g.mu.Lock()
	g.closed = true
	g.cancel = nil
	g.mu.Unlock()
	g.closeRoot()
	g.wg.Wait()
}

func (g *Gallery) issueLocked() {
	if g.cancel != nil {
		g.cancel()
	}
	ctx, cancel := context.WithCancel(g.root)
	g.seq++
	g.cancel = cancel
	seq, page, keyword := g.seq, g.search.Page, g.search.Keyword

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		p, err := g.fetcher.FetchPage(ctx, page, keyword)
		g.apply(ctx, seq, page, p, err)
	}()
}

func (g *Gallery) apply(ctx context.Context, seq uint64, page int, p Page, err error) {
	g.mu.Lock()
	if seq != g.seq || ctx.Err() != nil || g.closed {
		g.mu.Unlock()
		g.log.Debug("dropped superseded response", zap.Int("page", page))
		return
	}
	g.cancel()
	g.cancel = nil

	scrollTop := false
	if err != nil {
		g.state = StateError
		g.err = err
		g.log.Error("fetch failed",
			zap.String("keyword", g.search.Keyword),
			zap.Int("page", page),
			zap.Error(err))
	} else {
		if page == 1 {
			g.collection.replace(p)
			scrollTop = true
		} else {
			g.collection.appendPage(p)
		}
		g.state = StateLoaded
		g.err = nil
	}
	hook := g.onScrollTop
	g.unlockAndNotify()
	if scrollTop && hook != nil {
		hook()
	}
}

// unlockAndNotify releases g.mu and delivers the new snapshot outside the
// lock. It always returns true.
func (g *Gallery) unlockAndNotify() bool {
	snap := g.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
	return true
}
