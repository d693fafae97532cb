package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeReply struct {
	page Page
	err  error
}

type fakeCall struct {
	ctx     context.Context
	page    int
	keyword string
	reply   chan fakeReply
}

// fakeFetcher hands every FetchPage call to the test, which answers it
// explicitly. Calls ignore their context so a test can resolve a cancelled
// request late.
type fakeFetcher struct {
	calls chan *fakeCall
	done  chan struct{}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, page int, keyword string) (Page, error) {
	c := &fakeCall{ctx: ctx, page: page, keyword: keyword, reply: make(chan fakeReply, 1)}
	select {
	case f.calls <- c:
	case <-f.done:
		return Page{}, context.Canceled
	}
	select {
	case r := <-c.reply:
		return r.page, r.err
	case <-f.done:
		return Page{}, context.Canceled
	}
}

func newTestGallery(t *testing.T) (*Gallery, *fakeFetcher) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	f := &fakeFetcher{calls: make(chan *fakeCall, 8), done: make(chan struct{})}
	g := NewGallery(f, zap.NewNop())
	t.Cleanup(func() {
		close(f.done)
		g.Close()
	})
	return g, f
}

func nextCall(t *testing.T, f *fakeFetcher) *fakeCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch issued")
		return nil
	}
}

func assertNoCall(t *testing.T, f *fakeFetcher) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch of page %d for %q", c.page, c.keyword)
	case <-time.After(50 * time.Millisecond):
	}
}

func testImages(prefix string, first, n int) []NormalizedImage {
	out := make([]NormalizedImage, n)
	for i := range out {
		out[i] = NormalizedImage{
			ID:             fmt.Sprintf("%s%d", prefix, first+i),
			AltText:        "photo",
			OriginalWidth:  400,
			OriginalHeight: 300,
		}
	}
	return out
}

func waitForState(t *testing.T, g *Gallery, state GalleryState) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return g.Snapshot().State == state }, 2*time.Second, 5*time.Millisecond)
	return g.Snapshot()
}

func TestGalleryRandomListingPaginates(t *testing.T) {
	g, f := newTestGallery(t)

	assert.True(t, g.SetKeyword(""))
	c := nextCall(t, f)
	assert.Equal(t, 1, c.page)
	assert.Equal(t, "", c.keyword)
	c.reply <- fakeReply{page: Page{Items: testImages("r", 1, 21)}}

	snap := waitForState(t, g, StateLoaded)
	assert.Len(t, snap.Collection.Items, 21)
	assert.Nil(t, snap.Collection.TotalPages)
	assert.False(t, snap.EndOfResults())

	assert.True(t, g.ReachedScrollThreshold())
	assert.Equal(t, StateLoadingMore, g.Snapshot().State)
	c = nextCall(t, f)
	assert.Equal(t, 2, c.page)
	c.reply <- fakeReply{page: Page{Items: testImages("r", 22, 21)}}

	snap = waitForState(t, g, StateLoaded)
	require.Len(t, snap.Collection.Items, 42)
	assert.Equal(t, "r1", snap.Collection.Items[0].ID)
	assert.Equal(t, "r42", snap.Collection.Items[41].ID)
	assert.Equal(t, 2, snap.Search.Page)
}

func TestGalleryAppendSkipsDuplicateIds(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("")
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 1, 3)}}
	waitForState(t, g, StateLoaded)

	g.ReachedScrollThreshold()
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 3, 3)}}
	snap := waitForState(t, g, StateLoaded)

	ids := make([]string, 0, len(snap.Collection.Items))
	for _, img := range snap.Collection.Items {
		ids = append(ids, img.ID)
	}
	assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, ids)
}

func TestGalleryKeywordChangeResetsPage(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("")
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 1, 21)}}
	waitForState(t, g, StateLoaded)
	g.ReachedScrollThreshold()
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 22, 21)}}
	waitForState(t, g, StateLoaded)

	assert.True(t, g.SetKeyword("cats"))
	snap := g.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	assert.Equal(t, SearchState{Keyword: "cats", Page: 1}, snap.Search)
	assert.Empty(t, snap.Collection.Items)

	c := nextCall(t, f)
	assert.Equal(t, 1, c.page)
	assert.Equal(t, "cats", c.keyword)
	c.reply <- fakeReply{page: Page{TotalPages: intPtr(4), Items: testImages("c", 1, 21)}}
	snap = waitForState(t, g, StateLoaded)
	assert.Len(t, snap.Collection.Items, 21)
	assert.Equal(t, 4, *snap.Collection.TotalPages)
}

func TestGallerySameKeywordIsNoop(t *testing.T) {
	g, f := newTestGallery(t)

	assert.True(t, g.SetKeyword("dogs"))
	nextCall(t, f)
	assert.False(t, g.SetKeyword(" dogs "))
	assertNoCall(t, f)
}

func TestGallerySupersededResponseIsIgnored(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("a")
	first := nextCall(t, f)
	g.SetKeyword("b")
	second := nextCall(t, f)
	assert.Error(t, first.ctx.Err(), "superseded fetch must be cancelled")
	assert.NoError(t, second.ctx.Err())

	first.reply <- fakeReply{page: Page{TotalPages: intPtr(1), Items: testImages("a", 1, 5)}}
	assert.Never(t, func() bool { return g.Snapshot().State != StateLoading }, 100*time.Millisecond, 5*time.Millisecond)

	second.reply <- fakeReply{page: Page{TotalPages: intPtr(1), Items: testImages("b", 1, 2)}}
	snap := waitForState(t, g, StateLoaded)
	assert.Equal(t, "b", snap.Search.Keyword)
	require.Len(t, snap.Collection.Items, 2)
	assert.Equal(t, "b1", snap.Collection.Items[0].ID)
}

func TestGalleryLateSupersededResponseAfterNewer(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("a")
	first := nextCall(t, f)
	g.SetKeyword("b")
	second := nextCall(t, f)

	second.reply <- fakeReply{page: Page{TotalPages: intPtr(1), Items: testImages("b", 1, 2)}}
	waitForState(t, g, StateLoaded)

	first.reply <- fakeReply{err: errors.New("late failure")}
	assert.Never(t, func() bool {
		s := g.Snapshot()
		return s.State != StateLoaded || len(s.Collection.Items) != 2 || s.Collection.Items[0].ID != "b1"
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestGallerySearchStopsAtLastPage(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("mountains")
	for page := 1; page <= 3; page++ {
		c := nextCall(t, f)
		assert.Equal(t, page, c.page)
		c.reply <- fakeReply{page: Page{TotalPages: intPtr(3), Items: testImages(fmt.Sprintf("m%d-", page), 1, 10)}}
		waitForState(t, g, StateLoaded)
		if page < 3 {
			assert.True(t, g.ReachedScrollThreshold())
		}
	}

	assert.False(t, g.ReachedScrollThreshold())
	assertNoCall(t, f)
	snap := g.Snapshot()
	assert.True(t, snap.EndOfResults())
	assert.False(t, snap.Loading())
	assert.Len(t, snap.Collection.Items, 30)
	assert.Equal(t, 3, snap.Search.Page)
}

func TestGalleryEmptySearch(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("zzzzqx")
	nextCall(t, f).reply <- fakeReply{page: Page{TotalPages: intPtr(0)}}
	snap := waitForState(t, g, StateLoaded)
	assert.Empty(t, snap.Collection.Items)
	require.NotNil(t, snap.Collection.TotalPages)
	assert.Equal(t, 0, *snap.Collection.TotalPages)
	assert.True(t, snap.EndOfResults())
	assert.False(t, g.ReachedScrollThreshold())
}

func TestGalleryScrollIgnoredWhileLoading(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("")
	c := nextCall(t, f)
	assert.False(t, g.ReachedScrollThreshold())
	assertNoCall(t, f)
	c.reply <- fakeReply{page: Page{Items: testImages("r", 1, 21)}}
	waitForState(t, g, StateLoaded)
}

func TestGalleryErrorKeepsItemsUntilRetry(t *testing.T) {
	g, f := newTestGallery(t)

	g.SetKeyword("")
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 1, 21)}}
	waitForState(t, g, StateLoaded)

	assert.False(t, g.Retry())
	g.ReachedScrollThreshold()
	nextCall(t, f).reply <- fakeReply{err: errors.New("503 Service Unavailable")}
	snap := waitForState(t, g, StateError)
	assert.Len(t, snap.Collection.Items, 21)
	assert.EqualError(t, snap.Err, "503 Service Unavailable")
	assert.False(t, snap.Loading())

	// scrolling again re-issues the failed page instead of skipping it
	assert.True(t, g.ReachedScrollThreshold())
	c := nextCall(t, f)
	assert.Equal(t, 2, c.page)
	c.reply <- fakeReply{page: Page{Items: testImages("r", 22, 21)}}
	snap = waitForState(t, g, StateLoaded)
	assert.Len(t, snap.Collection.Items, 42)
	assert.NoError(t, snap.Err)
}

func TestGalleryScrollTopHook(t *testing.T) {
	g, f := newTestGallery(t)
	var calls atomic.Int32
	g.OnScrollTop(func() { calls.Add(1) })

	g.SetKeyword("")
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 1, 21)}}
	waitForState(t, g, StateLoaded)
	assert.Equal(t, int32(1), calls.Load())

	g.ReachedScrollThreshold()
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 22, 21)}}
	waitForState(t, g, StateLoaded)
	assert.Equal(t, int32(1), calls.Load(), "later pages keep the scroll position")
}

func TestGallerySubscribe(t *testing.T) {
	g, f := newTestGallery(t)
	states := make(chan GalleryState, 8)
	unsubscribe := g.Subscribe(func(s Snapshot) { states <- s.State })

	g.SetKeyword("")
	assert.Equal(t, StateLoading, <-states)
	nextCall(t, f).reply <- fakeReply{page: Page{Items: testImages("r", 1, 1)}}
	assert.Equal(t, StateLoaded, <-states)

	unsubscribe()
	g.SetKeyword("x")
	nextCall(t, f)
	assert.Empty(t, states)
}

func TestGalleryCloseCancelsFetch(t *testing.T) {
	defer goleak.VerifyNone(t)
	started := make(chan struct{})
	g := NewGallery(fetcherFunc(func(ctx context.Context, page int, keyword string) (Page, error) {
		close(started)
		<-ctx.Done()
		return Page{}, ctx.Err()
	}), zap.NewNop())

	g.SetKeyword("slow")
	<-started
	g.Close()
	assert.Equal(t, StateLoading, g.Snapshot().State)
	assert.False(t, g.SetKeyword("other"))
}

type fetcherFunc func(ctx context.Context, page int, keyword string) (Page, error)

func (f fetcherFunc) FetchPage(ctx context.Context, page int, keyword string) (Page, error) {
	return f(ctx, page, keyword)
}
