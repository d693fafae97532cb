package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnCount(t *testing.T) {
	cases := map[int]int{
		1:    1,
		320:  1,
		639:  1,
		640:  2,
		700:  2,
		767:  2,
		768:  3,
		1920: 3,
	}
	for width, cols := range cases {
		assert.Equal(t, cols, ColumnCount(width), "viewport %d", width)
	}
}

func TestComputeImageHeight(t *testing.T) {
	// one column below 640
	assert.InDelta(t, 600.0/400*300, ComputeImageHeight(500, 600, 400, 300), 1e-9)
	assert.InDelta(t, 639.0/1000*1500, ComputeImageHeight(639, 639, 1000, 1500), 1e-9)

	// two columns in [640, 768)
	assert.InDelta(t, (700.0/2)/350*200, ComputeImageHeight(640, 700, 350, 200), 1e-9)
	assert.InDelta(t, (760.0/2)/4000*6000, ComputeImageHeight(767, 760, 4000, 6000), 1e-9)

	// three columns from 768
	assert.InDelta(t, (900.0/3)/600*900, ComputeImageHeight(768, 900, 600, 900), 1e-9)
	assert.InDelta(t, (1000.0/3)/5472*3648, ComputeImageHeight(1280, 1000, 5472, 3648), 1e-9)
}

func TestComputeImageHeightZeroArguments(t *testing.T) {
	assert.Zero(t, ComputeImageHeight(0, 600, 400, 300))
	assert.Zero(t, ComputeImageHeight(800, 0, 400, 300))
	assert.Zero(t, ComputeImageHeight(800, 600, 0, 300))
	assert.Zero(t, ComputeImageHeight(800, 600, 400, 0))
	assert.Zero(t, ComputeImageHeight(-1, 600, 400, 300))
}

func TestMasonryFillsShortestColumn(t *testing.T) {
	items := []NormalizedImage{
		{ID: "tall", OriginalWidth: 100, OriginalHeight: 300},
		{ID: "a", OriginalWidth: 100, OriginalHeight: 100},
		{ID: "b", OriginalWidth: 100, OriginalHeight: 100},
		{ID: "c", OriginalWidth: 100, OriginalHeight: 100},
		{ID: "d", OriginalWidth: 100, OriginalHeight: 100},
	}
	cols := Masonry(items, ViewportMetrics{ViewportWidth: 1024, ColumnContainerWidth: 900})
	assert.Len(t, cols, 3)
	assert.Equal(t, []int{0}, cols[0].Items)
	assert.Equal(t, []int{1, 3}, cols[1].Items)
	assert.Equal(t, []int{2, 4}, cols[2].Items)
	assert.InDelta(t, 900.0, cols[0].Height, 1e-9)
	assert.InDelta(t, 600.0, cols[1].Height, 1e-9)
}

func TestMasonrySingleColumn(t *testing.T) {
	items := []NormalizedImage{
		{ID: "a", OriginalWidth: 100, OriginalHeight: 50},
		{ID: "b", OriginalWidth: 100, OriginalHeight: 50},
	}
	cols := Masonry(items, ViewportMetrics{ViewportWidth: 400, ColumnContainerWidth: 400})
	assert.Len(t, cols, 1)
	assert.Equal(t, []int{0, 1}, cols[0].Items)
	assert.InDelta(t, 400.0, cols[0].Height, 1e-9)
}

func TestViewportTrackerNotifiesUntilUnsubscribed(t *testing.T) {
	vt := NewViewportTracker(ViewportMetrics{ViewportWidth: 1024, ColumnContainerWidth: 960})
	var got []ViewportMetrics
	unsubscribe := vt.Subscribe(func(m ViewportMetrics) { got = append(got, m) })

	small := ViewportMetrics{ViewportWidth: 600, ColumnContainerWidth: 580}
	vt.Resize(small)
	vt.Resize(small)
	assert.Equal(t, []ViewportMetrics{small}, got, "unchanged metrics do not notify")
	assert.Equal(t, small, vt.Metrics())

	unsubscribe()
	unsubscribe()
	vt.Resize(ViewportMetrics{ViewportWidth: 700, ColumnContainerWidth: 680})
	assert.Len(t, got, 1)
}

func TestImageHeightsFollowResize(t *testing.T) {
	items := []NormalizedImage{{ID: "x", OriginalWidth: 200, OriginalHeight: 100}}
	vt := NewViewportTracker(ViewportMetrics{})
	var heights map[string]float64
	defer vt.Subscribe(func(m ViewportMetrics) { heights = ImageHeights(items, m) })()

	vt.Resize(ViewportMetrics{ViewportWidth: 500, ColumnContainerWidth: 500})
	assert.InDelta(t, 250.0, heights["x"], 1e-9)
	vt.Resize(ViewportMetrics{ViewportWidth: 1200, ColumnContainerWidth: 1200})
	assert.InDelta(t, 200.0, heights["x"], 1e-9)
}
