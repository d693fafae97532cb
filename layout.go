package main

import "sync"

// ViewportMetrics drives layout only; it is never persisted.
type ViewportMetrics struct {
	ViewportWidth        int `json:"viewport"`
	ColumnContainerWidth int `json:"container"`
}

type breakpoint struct {
	minWidth int
	columns  int
}

// ordered widest first
var breakpoints = []breakpoint{
	{minWidth: 768, columns: 3},
	{minWidth: 640, columns: 2},
	{minWidth: 0, columns: 1},
}

// ColumnCount returns the number of masonry columns for a viewport width.
func ColumnCount(viewportWidth int) int {
	for _, bp := range breakpoints {
		if viewportWidth >= bp.minWidth {
			return bp.columns
		}
	}
	return 1
}

// ComputeImageHeight returns the render height of an image that fills one
// column while keeping its aspect ratio. Any zero dimension yields 0.
func ComputeImageHeight(viewportWidth, columnContainerWidth, originalWidth, originalHeight int) float64 {
	if viewportWidth <= 0 || columnContainerWidth <= 0 || originalWidth <= 0 || originalHeight <= 0 {
		return 0
	}
	columnWidth := float64(columnContainerWidth) / float64(ColumnCount(viewportWidth))
	return columnWidth / float64(originalWidth) * float64(originalHeight)
}

// MasonryColumn lists the items placed in one column, by index into the
// laid out slice.
type MasonryColumn struct {
	Items  []int   `json:"items"`
	Height float64 `json:"height"`
}

// Masonry places every image into the currently shortest column, leftmost
// on ties.
func Masonry(items []NormalizedImage, m ViewportMetrics) []MasonryColumn {
	cols := make([]MasonryColumn, ColumnCount(m.ViewportWidth))
	for i, img := range items {
		shortest := 0
		for c := range cols {
			if cols[c].Height < cols[shortest].Height {
				shortest = c
			}
		}
		cols[shortest].Items = append(cols[shortest].Items, i)
		cols[shortest].Height += ComputeImageHeight(m.ViewportWidth, m.ColumnContainerWidth, img.OriginalWidth, img.OriginalHeight)
	}
	return cols
}

// ViewportTracker holds the latest viewport metrics and notifies its
// subscribers on every resize.
type ViewportTracker struct {
	mu        sync.Mutex
	metrics   ViewportMetrics
	nextID    int
	listeners map[int]func(ViewportMetrics)
}

func NewViewportTracker(initial ViewportMetrics) *ViewportTracker {
	return &ViewportTracker{
		metrics:   initial,
		listeners: make(map[int]func(ViewportMetrics)),
	}
}

func (vt *ViewportTracker) Metrics() ViewportMetrics {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return vt.metrics
}

// Subscribe registers fn and returns the function that removes it. The
// unsubscribe function is idempotent.
func (vt *ViewportTracker) Subscribe(fn func(ViewportMetrics)) func() {
	vt.mu.Lock()
	id := vt.nextID
	vt.nextID++
	vt.listeners[id] = fn
	vt.mu.Unlock()
	return func() {
		vt.mu.Lock()
		delete(vt.listeners, id)
		vt.mu.Unlock()
	}
}

// Resize stores m and calls the subscribers when it differs from the
// current metrics.
func (vt *ViewportTracker) Resize(m ViewportMetrics) {
	vt.mu.Lock()
	if m == vt.metrics {
		vt.mu.Unlock()
		return
	}
	vt.metrics = m
	fns := make([]func(ViewportMetrics), 0, len(vt.listeners))
	for _, fn := range vt.listeners {
		fns = append(fns, fn)
	}
	vt.mu.Unlock()
	for _, fn := range fns {
		fn(m)
	}
}

// ImageHeights recomputes the render height of every item for m.
func ImageHeights(items []NormalizedImage, m ViewportMetrics) map[string]float64 {
	heights := make(map[string]float64, len(items))
	for _, img := range items {
		heights[img.ID] = ComputeImageHeight(m.ViewportWidth, m.ColumnContainerWidth, img.OriginalWidth, img.OriginalHeight)
	}
	return heights
}
