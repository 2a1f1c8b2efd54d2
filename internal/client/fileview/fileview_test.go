package fileview

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/folders"
	"github.com/cloudstore/cloudstore/internal/client/notify"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.UnixMilli(1_700_000_000_000)

type listResult struct {
	records []cloudsdk.RawRecord
	err     error
}

// fakeLister answers from a queue, or from fallback when the queue is empty.
// A non-nil gate blocks the call until it is closed.
type fakeLister struct {
	mu       sync.Mutex
	queue    []listResult
	fallback listResult
	gates    []chan struct{}
	calls    atomic.Int32
	trash    atomic.Int32
}

func (f *fakeLister) next() (listResult, chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := f.fallback
	if len(f.queue) > 0 {
		res, f.queue = f.queue[0], f.queue[1:]
	}
	var gate chan struct{}
	if len(f.gates) > 0 {
		gate, f.gates = f.gates[0], f.gates[1:]
	}
	return res, gate
}

func (f *fakeLister) List(ctx context.Context) ([]cloudsdk.RawRecord, error) {
	f.calls.Add(1)
	res, gate := f.next()
	if gate != nil {
		<-gate
	}
	return res.records, res.err
}

func (f *fakeLister) ListTrash(ctx context.Context) ([]cloudsdk.RawRecord, error) {
	f.trash.Add(1)
	return f.List(ctx)
}

type staticFolders []folders.Folder

func (s staticFolders) Folders() []folders.Folder { return s }

func rec(id int, name string) cloudsdk.RawRecord {
	return cloudsdk.RawRecord{ID: float64(id), DisplayName: name, S3Key: "k/" + name, LastModified: float64(now.UnixMilli())}
}

func newReconciler(l Lister, f FolderSource, n notify.Notifier) *Reconciler {
	return New(l, f, n, WithClock(func() time.Time { return now }), WithDebounce(20*time.Millisecond))
}

func TestFetch_CachesPerView(t *testing.T) {
	lister := &fakeLister{fallback: listResult{records: []cloudsdk.RawRecord{rec(1, "a.txt")}}}
	r := newReconciler(lister, staticFolders{{Path: "docs", Created: now}}, nil)
	ctx := context.Background()

	entries, err := r.Fetch(ctx, ViewAll, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsFolder())
	assert.Equal(t, "a.txt", entries[1].Name)

	_, err = r.Fetch(ctx, ViewAll, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), lister.calls.Load(), "second read served from cache")

	_, err = r.Fetch(ctx, ViewRecent, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load(), "each view has its own slot")

	_, err = r.Fetch(ctx, ViewAll, FetchOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, int32(3), lister.calls.Load())
}

func TestFetch_ReturnsCopies(t *testing.T) {
	lister := &fakeLister{fallback: listResult{records: []cloudsdk.RawRecord{rec(1, "a.txt")}}}
	r := newReconciler(lister, staticFolders{}, nil)

	entries, err := r.Fetch(context.Background(), ViewAll, FetchOptions{})
	require.NoError(t, err)
	entries[0].Name = "mutated"

	again, _ := r.Cached(ViewAll)
	assert.Equal(t, "a.txt", again[0].Name)
}

func TestFetch_TrashUsesTrashEndpoint(t *testing.T) {
	lister := &fakeLister{}
	r := newReconciler(lister, staticFolders{}, nil)

	_, err := r.Fetch(context.Background(), ViewTrash, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), lister.trash.Load())
}

func TestFetch_EmptyListingIsNotAnError(t *testing.T) {
	lister := &fakeLister{fallback: listResult{err: cloudsdk.ErrEmptyListing}}
	notes := &notify.Recorder{}
	r := newReconciler(lister, staticFolders{}, notes)

	entries, err := r.Fetch(context.Background(), ViewAll, FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
	assert.Empty(t, notes.All())
	assert.Empty(t, r.Filtered(ViewAll, "", now))
}

func TestFetch_EmptyListingKeepsFolders(t *testing.T) {
	lister := &fakeLister{fallback: listResult{err: cloudsdk.ErrEmptyListing}}
	r := newReconciler(lister, staticFolders{{Path: "a", Created: now}, {Path: "a/b", Created: now}}, nil)

	entries, err := r.Fetch(context.Background(), ViewAll, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a/b", entries[1].FullPath())
	assert.Equal(t, "a", entries[1].Path)
}

func TestFetch_ErrorKeepsLastGoodCache(t *testing.T) {
	apiErr := &cloudsdk.APIError{Op: "list files", Status: http.StatusInternalServerError, Message: "db down"}
	lister := &fakeLister{queue: []listResult{
		{records: []cloudsdk.RawRecord{rec(1, "a.txt")}},
		{err: apiErr},
		{err: apiErr},
	}}
	notes := &notify.Recorder{}
	r := newReconciler(lister, staticFolders{}, notes)
	ctx := context.Background()

	_, err := r.Fetch(ctx, ViewAll, FetchOptions{})
	require.NoError(t, err)

	entries, err := r.Fetch(ctx, ViewAll, FetchOptions{Force: true})
	assert.ErrorIs(t, err, apiErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
	require.Len(t, notes.All(), 1)
	assert.Equal(t, notify.LevelError, notes.All()[0].Level)
	assert.Equal(t, "db down", notes.All()[0].Message)

	_, err = r.Fetch(ctx, ViewAll, FetchOptions{Force: true, Background: true})
	assert.Error(t, err)
	assert.Len(t, notes.All(), 1, "background failures stay silent")
}

func TestFetch_ErrorWithoutCacheFallsBackToFolders(t *testing.T) {
	lister := &fakeLister{fallback: listResult{err: errors.New("connection refused")}}
	notes := &notify.Recorder{}
	r := newReconciler(lister, staticFolders{{Path: "docs", Created: now}}, notes)

	entries, err := r.Fetch(context.Background(), ViewAll, FetchOptions{})
	assert.Error(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsFolder())
	assert.Equal(t, "connection refused", notes.All()[0].Message)
}

func TestFetch_FailureWithoutCacheIsNotCached(t *testing.T) {
	lister := &fakeLister{queue: []listResult{
		{err: errors.New("connection refused")},
		{records: []cloudsdk.RawRecord{rec(1, "a.txt")}},
	}}
	r := newReconciler(lister, staticFolders{{Path: "docs", Created: now}}, nil)
	ctx := context.Background()

	_, err := r.Fetch(ctx, ViewAll, FetchOptions{})
	require.Error(t, err)
	_, ok := r.Cached(ViewAll)
	assert.False(t, ok)

	entries, err := r.Fetch(ctx, ViewAll, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[1].Name)
}

func TestFetch_CopiesDoNotShareSizes(t *testing.T) {
	record := rec(1, "a.txt")
	record.Size = float64(42)
	lister := &fakeLister{fallback: listResult{records: []cloudsdk.RawRecord{record}}}
	r := newReconciler(lister, staticFolders{}, nil)

	entries, err := r.Fetch(context.Background(), ViewAll, FetchOptions{})
	require.NoError(t, err)
	require.NotNil(t, entries[0].Size)
	*entries[0].Size = 0

	cached, _ := r.Cached(ViewAll)
	assert.Equal(t, int64(42), *cached[0].Size)
}

func TestFolderEntry_KeyOnValue(t *testing.T) {
	assert.Equal(t, "folder:a/b", FolderEntry("a/b", now).Key())
	assert.True(t, FolderEntry("a", now).IsFolder())
}

func TestFetch_UnknownView(t *testing.T) {
	r := newReconciler(&fakeLister{}, staticFolders{}, nil)
	_, err := r.Fetch(context.Background(), ViewType("starred"), FetchOptions{})
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestFetch_ConcurrentForcedFetchesLastWriteWins(t *testing.T) {
	slow := make(chan struct{})
	lister := &fakeLister{
		queue: []listResult{
			{records: []cloudsdk.RawRecord{rec(1, "first.txt")}},
			{records: []cloudsdk.RawRecord{rec(2, "second.txt")}},
		},
		gates: []chan struct{}{slow, nil},
	}
	r := newReconciler(lister, staticFolders{}, nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Fetch(ctx, ViewAll, FetchOptions{Force: true})
	}()
	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, r.Loading())

	// the second fetch starts later but finishes first
	entries, err := r.Fetch(ctx, ViewAll, FetchOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, "second.txt", entries[0].Name)

	close(slow)
	<-done

	cached, _ := r.Cached(ViewAll)
	require.Len(t, cached, 1)
	assert.Equal(t, "first.txt", cached[0].Name, "the slower response overwrote the newer one")
	assert.False(t, r.Loading())
}

func TestFetch_BackgroundUsesSeparateFlag(t *testing.T) {
	gate := make(chan struct{})
	lister := &fakeLister{gates: []chan struct{}{gate}}
	r := newReconciler(lister, staticFolders{}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Fetch(context.Background(), ViewAll, FetchOptions{Force: true, Background: true})
	}()
	require.Eventually(t, r.BackgroundLoading, time.Second, 5*time.Millisecond)
	assert.False(t, r.Loading())

	close(gate)
	<-done
	assert.False(t, r.BackgroundLoading())
}

func TestFiltered(t *testing.T) {
	records := []cloudsdk.RawRecord{
		{ID: float64(1), DisplayName: "fresh.txt", LastModified: float64(now.Add(-time.Hour).UnixMilli())},
		{ID: float64(2), DisplayName: "old.txt", LastModified: float64(now.Add(-8 * 24 * time.Hour).UnixMilli())},
		{ID: float64(3), DisplayName: "theirs.txt", SharedBy: "bob@example.com", LastModified: float64(now.UnixMilli())},
		{ID: float64(4), DisplayName: "docs/nested.txt", LastModified: float64(now.UnixMilli())},
	}
	lister := &fakeLister{fallback: listResult{records: records}}
	set := staticFolders{
		{Path: "docs", Created: now},
		{Path: "archive", Created: now.Add(-30 * 24 * time.Hour)},
	}
	r := newReconciler(lister, set, nil)
	ctx := context.Background()

	for _, v := range []ViewType{ViewAll, ViewRecent, ViewShared} {
		_, err := r.Fetch(ctx, v, FetchOptions{})
		require.NoError(t, err)
	}

	names := func(entries []Entry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.Name
		}
		return out
	}

	assert.Equal(t, []string{"docs", "archive", "fresh.txt", "old.txt", "theirs.txt"}, names(r.Filtered(ViewAll, "", now)))
	assert.Equal(t, []string{"docs", "fresh.txt", "theirs.txt"}, names(r.Filtered(ViewRecent, "", now)))
	assert.Equal(t, []string{"theirs.txt"}, names(r.Filtered(ViewShared, "", now)))
	assert.Equal(t, []string{"nested.txt"}, names(r.Filtered(ViewAll, "docs", now)))
	assert.Empty(t, r.Filtered(ViewTrash, "", now), "uncached view")
}

func TestFilesInFolder_SegmentBoundary(t *testing.T) {
	lister := &fakeLister{fallback: listResult{records: []cloudsdk.RawRecord{
		rec(1, "docs/report.pdf"),
		rec(2, "docs2/report.pdf"),
		rec(3, "docs/sub/deep.txt"),
		rec(4, "top.txt"),
	}}}
	r := newReconciler(lister, staticFolders{{Path: "docs/sub", Created: now}}, nil)
	_, err := r.Fetch(context.Background(), ViewAll, FetchOptions{})
	require.NoError(t, err)

	got := r.FilesInFolder("docs")
	require.Len(t, got, 2)
	assert.Equal(t, "docs/report.pdf", got[0].DisplayName)
	assert.Equal(t, "docs/sub/deep.txt", got[1].DisplayName)

	assert.Len(t, r.FilesInFolder(""), 4)
}

func TestInvalidateAndInsertOptimistic(t *testing.T) {
	lister := &fakeLister{fallback: listResult{records: []cloudsdk.RawRecord{rec(1, "a.txt")}}}
	r := newReconciler(lister, staticFolders{{Path: "x", Created: now}}, nil)
	ctx := context.Background()
	_, err := r.Fetch(ctx, ViewAll, FetchOptions{})
	require.NoError(t, err)

	folder := FolderEntry("new", now)
	r.InsertOptimistic(ViewAll, folder)
	r.InsertOptimistic(ViewAll, folder)
	r.InsertOptimistic(ViewShared, folder)

	cached, _ := r.Cached(ViewAll)
	require.Len(t, cached, 3)
	assert.Equal(t, "x", cached[0].Name)
	assert.Equal(t, "new", cached[1].Name)
	assert.Equal(t, "a.txt", cached[2].Name)

	_, ok := r.Cached(ViewShared)
	assert.False(t, ok)

	r.Invalidate(ViewAll)
	_, ok = r.Cached(ViewAll)
	assert.False(t, ok)
}

func TestScheduleRefresh_Debounces(t *testing.T) {
	lister := &fakeLister{}
	r := newReconciler(lister, staticFolders{}, nil)
	defer r.Close()

	for range 5 {
		r.ScheduleRefresh()
	}
	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), lister.calls.Load())

	_, ok := r.Cached(ViewAll)
	assert.True(t, ok)
}

func TestScheduleRefresh_AfterCloseIsNoop(t *testing.T) {
	lister := &fakeLister{}
	r := newReconciler(lister, staticFolders{}, nil)
	r.ScheduleRefresh()
	r.Close()
	r.Close()
	r.ScheduleRefresh()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, lister.calls.Load())
}

func TestParseViewType(t *testing.T) {
	v, err := ParseViewType(" Recent ")
	require.NoError(t, err)
	assert.Equal(t, ViewRecent, v)

	v, err = ParseViewType("")
	require.NoError(t, err)
	assert.Equal(t, ViewAll, v)

	_, err = ParseViewType("starred")
	assert.ErrorIs(t, err, ErrUnknownView)
	assert.Len(t, Views(), 4)
}
