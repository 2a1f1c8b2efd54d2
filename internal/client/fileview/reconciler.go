// Package fileview builds the per-view file lists: it fetches flat records
// from the backend, merges in the client-side folders and caches the result
// per view.
package fileview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/folders"
	"github.com/cloudstore/cloudstore/internal/client/notify"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/cloudstore/cloudstore/internal/pathutil"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	RecentWindow    = 7 * 24 * time.Hour
)

var ErrUnknownView = errors.New("unknown view")

// Lister is the part of the files API the reconciler reads from.
type Lister interface {
	List(ctx context.Context) ([]cloudsdk.RawRecord, error)
	ListTrash(ctx context.Context) ([]cloudsdk.RawRecord, error)
}

// FolderSource supplies the client-side folders.
type FolderSource interface {
	Folders() []folders.Folder
}

type FetchOptions struct {
	Force      bool // skip the cache
	Background bool // no notifications, separate loading counter
}

// Reconciler owns the view cache. Each slot is replaced wholesale by the
// fetch that finishes last; there is no generation check, so a slow fetch
// can overwrite a newer one.
type Reconciler struct {
	files    Lister
	folders  FolderSource
	notifier notify.Notifier
	now      func() time.Time
	debounce time.Duration

	mu      sync.Mutex
	cache   map[ViewType][]Entry
	current ViewType
	timer   *time.Timer
	closed  bool

	loading   atomic.Int32
	bgLoading atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithDebounce(d time.Duration) Option {
	return func(r *Reconciler) { r.debounce = d }
}

func New(files Lister, folderSrc FolderSource, notifier notify.Notifier, opts ...Option) *Reconciler {
	if notifier == nil {
		notifier = notify.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		files:    files,
		folders:  folderSrc,
		notifier: notifier,
		now:      time.Now,
		debounce: DefaultDebounce,
		cache:    make(map[ViewType][]Entry),
		current:  ViewAll,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch returns the entries of view. A cached slot is served as is unless
// opts.Force is set. An empty listing is not an error. On any other failure
// the last good slot (or the folders alone) is returned together with the
// error, and a foreground fetch also notifies.
func (r *Reconciler) Fetch(ctx context.Context, view ViewType, opts FetchOptions) ([]Entry, error) {
	if !view.Valid() {
		return nil, ErrUnknownView
	}

	r.mu.Lock()
	if !opts.Background {
		r.current = view
	}
	if cached, ok := r.cache[view]; ok && !opts.Force {
		r.mu.Unlock()
		return cloneEntries(cached), nil
	}
	r.mu.Unlock()

	counter := &r.loading
	if opts.Background {
		counter = &r.bgLoading
	}
	counter.Add(1)
	defer counter.Add(-1)

	records, err := r.list(ctx, view)
	if err != nil && !errors.Is(err, cloudsdk.ErrEmptyListing) {
		return r.fetchFailed(view, opts, err)
	}

	entries := Reconcile(records, r.folders.Folders(), r.now())

	r.mu.Lock()
	r.cache[view] = entries
	r.mu.Unlock()

	slog.Debug("fileview fetched", "view", view, "entries", len(entries), "background", opts.Background)
	return cloneEntries(entries), nil
}

func (r *Reconciler) list(ctx context.Context, view ViewType) ([]cloudsdk.RawRecord, error) {
	if view == ViewTrash {
		return r.files.ListTrash(ctx)
	}
	return r.files.List(ctx)
}

func (r *Reconciler) fetchFailed(view ViewType, opts FetchOptions, err error) ([]Entry, error) {
	slog.Warn("fileview fetch failed", "view", view, "background", opts.Background, "error", err)
	if !opts.Background {
		notify.Error(r.notifier, "Failed to load files", cloudsdk.MessageOr(err, err.Error()))
	}

	r.mu.Lock()
	cached, ok := r.cache[view]
	r.mu.Unlock()
	if ok {
		return cloneEntries(cached), err
	}
	// not cached: the next read must go to the server again
	return Reconcile(nil, r.folders.Folders(), r.now()), err
}

// Loading reports whether a foreground fetch is in flight.
func (r *Reconciler) Loading() bool {
	return r.loading.Load() > 0
}

func (r *Reconciler) BackgroundLoading() bool {
	return r.bgLoading.Load() > 0
}

// CurrentView is the view of the latest foreground fetch.
func (r *Reconciler) CurrentView() ViewType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Cached returns a copy of the slot for view and whether it exists.
func (r *Reconciler) Cached(view ViewType) ([]Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.cache[view]
	if !ok {
		return nil, false
	}
	return cloneEntries(entries), true
}

// Filtered returns the cached entries of view directly inside currentPath
// that pass the view's predicate.
func (r *Reconciler) Filtered(view ViewType, currentPath string, now time.Time) []Entry {
	entries, _ := r.Cached(view)
	return Filter(entries, view, currentPath, now)
}

// Filter is the pure form of Filtered.
func Filter(entries []Entry, view ViewType, currentPath string, now time.Time) []Entry {
	currentPath = pathutil.Clean(currentPath)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Path != currentPath {
			continue
		}
		switch view {
		case ViewShared:
			if !e.SharedWithMe() {
				continue
			}
		case ViewRecent:
			if now.Sub(e.Modified) > RecentWindow {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// FilesInFolder lists every file at any depth under folderPath, from the
// "all" slot or, if that is not cached, the current view's.
func (r *Reconciler) FilesInFolder(folderPath string) []Entry {
	r.mu.Lock()
	entries, ok := r.cache[ViewAll]
	if !ok {
		entries = r.cache[r.current]
	}
	entries = cloneEntries(entries)
	r.mu.Unlock()

	return FilesUnder(entries, folderPath)
}

// FilesUnder is the pure form of FilesInFolder.
func FilesUnder(entries []Entry, folderPath string) []Entry {
	folderPath = pathutil.Clean(folderPath)
	prefix := folderPath + pathutil.Sep

	out := make([]Entry, 0)
	for _, e := range entries {
		if e.IsFolder() {
			continue
		}
		if folderPath == "" || strings.HasPrefix(e.DisplayName, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Invalidate drops the given slots, or every slot when none is given.
func (r *Reconciler) Invalidate(views ...ViewType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(views) == 0 {
		clear(r.cache)
		return
	}
	for _, v := range views {
		delete(r.cache, v)
	}
}

// InsertOptimistic adds a just-created folder to a cached slot, after the
// folders already there. Uncached slots are left alone.
func (r *Reconciler) InsertOptimistic(view ViewType, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached, ok := r.cache[view]
	if !ok {
		return
	}
	for _, e := range cached {
		if e.Key() == entry.Key() {
			return
		}
	}

	at := 0
	for at < len(cached) && cached[at].IsFolder() {
		at++
	}
	next := make([]Entry, 0, len(cached)+1)
	next = append(next, cached[:at]...)
	next = append(next, entry)
	next = append(next, cached[at:]...)
	r.cache[view] = next
}

// ScheduleRefresh starts, or restarts, the debounce timer for a background
// forced fetch of the current view.
func (r *Reconciler) ScheduleRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.refresh)
}

func (r *Reconciler) refresh() {
	view := r.CurrentView()
	if _, err := r.Fetch(r.ctx, view, FetchOptions{Force: true, Background: true}); err != nil {
		slog.Debug("fileview background refresh failed", "view", view, "error", err)
	}
}

// Close stops the debounce timer and cancels a running background refresh.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.cancel()
}

// Views lists every view type.
func Views() []ViewType {
	return append([]ViewType(nil), views...)
}
