package fileops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/client/folders"
	"github.com/cloudstore/cloudstore/internal/client/kvstore"
	"github.com/cloudstore/cloudstore/internal/client/notify"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.UnixMilli(1_700_000_000_000)

type call struct {
	Method string
	Args   []string
}

// fakeFiles records calls and fails those listed in failures.
type fakeFiles struct {
	mu       sync.Mutex
	calls    []call
	blobs    map[string]string
	failures map[string]error // keyed by method or method:arg
	inFlight func()
}

func (f *fakeFiles) record(method string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{method, args})
	hook := f.inFlight
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := f.failures[method]; err != nil {
		return err
	}
	if len(args) > 0 {
		if err := f.failures[method+":"+args[0]]; err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFiles) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeFiles) Upload(ctx context.Context, name string, r io.ReadSeeker) (*cloudsdk.UploadResponse, error) {
	return &cloudsdk.UploadResponse{}, f.record("Upload", name)
}

func (f *fakeFiles) Download(ctx context.Context, s3Key string, w io.Writer) (int64, error) {
	if err := f.record("Download", s3Key); err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, f.blobs[s3Key])
	return int64(n), err
}

func (f *fakeFiles) Delete(ctx context.Context, fileName string) error {
	return f.record("Delete", fileName)
}

func (f *fakeFiles) DeleteFolder(ctx context.Context, folderPath string) error {
	return f.record("DeleteFolder", folderPath)
}

func (f *fakeFiles) Rename(ctx context.Context, s3Key, newDisplayName string) error {
	return f.record("Rename", s3Key, newDisplayName)
}

func (f *fakeFiles) RenameFolder(ctx context.Context, oldPath, newPath string) error {
	return f.record("RenameFolder", oldPath, newPath)
}

func (f *fakeFiles) Restore(ctx context.Context, s3Key string) error {
	return f.record("Restore", s3Key)
}

func (f *fakeFiles) PermanentDelete(ctx context.Context, s3Key string) error {
	return f.record("PermanentDelete", s3Key)
}

type fakeView struct {
	mu       sync.Mutex
	files    []fileview.Entry
	inserted map[fileview.ViewType][]fileview.Entry
}

func (v *fakeView) FilesInFolder(folderPath string) []fileview.Entry {
	return fileview.FilesUnder(v.files, folderPath)
}

func (v *fakeView) InsertOptimistic(view fileview.ViewType, entry fileview.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inserted == nil {
		v.inserted = make(map[fileview.ViewType][]fileview.Entry)
	}
	v.inserted[view] = append(v.inserted[view], entry)
}

type harness struct {
	exec    *Executor
	files   *fakeFiles
	folders *folders.Store
	view    *fakeView
	notes   *notify.Recorder
	results []Result
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		files:   &fakeFiles{blobs: map[string]string{}, failures: map[string]error{}},
		folders: folders.NewStore(kvstore.NewMemoryStore(), "alice@example.com"),
		view:    &fakeView{},
		notes:   &notify.Recorder{},
	}
	h.exec = New(h.files, h.folders, h.view, h.notes,
		WithClock(func() time.Time { return now }),
		WithOnSuccess(func(r Result) { h.results = append(h.results, r) }),
	)
	return h
}

func file(id int64, displayName, s3Key string) fileview.Entry {
	return fileview.Normalize(&cloudsdk.RawRecord{
		ID:           float64(id),
		DisplayName:  displayName,
		S3Key:        s3Key,
		LastModified: float64(now.UnixMilli()),
	}, now)
}

func TestRename_FileKeepsExtension(t *testing.T) {
	h := newHarness(t)
	entry := file(1, "docs/report.pdf", "u/1700000000000-report.pdf")

	require.NoError(t, h.exec.Rename(context.Background(), entry, "summary"))

	assert.Equal(t, []call{{"Rename", []string{"u/1700000000000-report.pdf", "docs/summary.pdf"}}}, h.files.Calls())
	require.Len(t, h.results, 1)
	assert.Equal(t, "docs/summary.pdf", h.results[0].NewPath)
	assert.Equal(t, 1, h.notes.Count(notify.LevelSuccess))
	assert.False(t, h.exec.State().Busy(entry.Key()))
}

func TestWithExtension(t *testing.T) {
	tests := []struct{ original, edited, want string }{
		{"report.pdf", "summary", "summary.pdf"},
		{"report.pdf", "summary.pdf", "summary.pdf"},
		{"report.pdf", "summary.PDF", "summary.pdf"},
		{"report.pdf", ".pdf", ".pdf.pdf"},
		{"Makefile", "GNUmakefile", "GNUmakefile"},
		{".bashrc", "zshrc", "zshrc"},
		{"a.tar.gz", "b", "b.gz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withExtension(tt.original, tt.edited), "%s -> %s", tt.original, tt.edited)
	}
}

func TestRename_UnchangedIsNoop(t *testing.T) {
	h := newHarness(t)
	entry := file(1, "report.pdf", "k1")

	require.NoError(t, h.exec.Rename(context.Background(), entry, "report"))
	require.NoError(t, h.exec.Rename(context.Background(), entry, "report.pdf"))
	assert.Empty(t, h.files.Calls())
	assert.Empty(t, h.notes.All())
}

func TestRename_ValidationBeforeNetwork(t *testing.T) {
	h := newHarness(t)

	err := h.exec.Rename(context.Background(), file(1, "a.txt", "k1"), "bad:name")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "cannot contain")

	err = h.exec.Rename(context.Background(), fileview.FolderEntry("docs", now), "con")
	assert.True(t, IsValidation(err))

	assert.Empty(t, h.files.Calls())
	assert.Equal(t, 2, h.notes.Count(notify.LevelWarn))
}

func TestRename_FolderRewritesClientFolders(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.folders.Save([]folders.Folder{{Path: "a/b"}, {Path: "a/b/c"}, {Path: "a/bc"}, {Path: "x"}}))

	require.NoError(t, h.exec.Rename(context.Background(), fileview.FolderEntry("a/b", now), "z"))

	assert.Equal(t, []call{{"RenameFolder", []string{"a/b", "a/z"}}}, h.files.Calls())
	assert.Equal(t, []string{"a/z", "a/z/c", "a/bc", "x"}, h.folders.Paths())
}

func TestRename_VirtualFolderUnknownToServer(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.folders.Save([]folders.Folder{{Path: "empty"}}))
	h.files.failures["RenameFolder"] = &cloudsdk.APIError{Op: "rename folder", Status: http.StatusNotFound}

	require.NoError(t, h.exec.Rename(context.Background(), fileview.FolderEntry("empty", now), "full"))
	assert.Equal(t, []string{"full"}, h.folders.Paths())
}

func TestRename_ServerMessagePreferred(t *testing.T) {
	h := newHarness(t)
	h.files.failures["Rename"] = &cloudsdk.APIError{Op: "rename", Status: http.StatusConflict, Message: "name already taken"}

	err := h.exec.Rename(context.Background(), file(1, "a.txt", "k1"), "b")
	require.Error(t, err)

	all := h.notes.All()
	require.Len(t, all, 1)
	assert.Equal(t, notify.Notification{Level: notify.LevelError, Title: "Rename failed", Message: "name already taken"}, all[0])
	assert.Empty(t, h.results)
}

func TestDelete_GenericMessageIncludesStatus(t *testing.T) {
	h := newHarness(t)
	h.files.failures["Delete"] = &cloudsdk.APIError{Op: "delete", Status: http.StatusBadGateway}

	entry := file(1, "a.txt", "k1")
	require.Error(t, h.exec.Delete(context.Background(), entry))
	assert.Equal(t, "delete failed (HTTP 502)", h.notes.All()[0].Message)
	assert.False(t, h.exec.State().Busy(entry.Key()))
}

func TestDelete_FileUsesStorageKey(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.exec.Delete(context.Background(), file(1, "docs/a.txt", "u/k1")))

	noKey := file(2, "docs/b.txt", "")
	require.NoError(t, h.exec.Delete(context.Background(), noKey))

	assert.Equal(t, []call{
		{"Delete", []string{"u/k1"}},
		{"Delete", []string{"docs/b.txt"}},
	}, h.files.Calls())
}

func TestDelete_FolderPrunesDescendants(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.folders.Save([]folders.Folder{{Path: "docs"}, {Path: "docs/2024"}, {Path: "docs2"}}))

	require.NoError(t, h.exec.Delete(context.Background(), fileview.FolderEntry("docs", now)))

	assert.Equal(t, []call{{"DeleteFolder", []string{"docs"}}}, h.files.Calls())
	assert.Equal(t, []string{"docs2"}, h.folders.Paths())
	require.Len(t, h.results, 1)
	assert.Equal(t, OpDelete, h.results[0].Op)
}

func TestDelete_FolderFailureKeepsClientFolders(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.folders.Save([]folders.Folder{{Path: "docs"}}))
	h.files.failures["DeleteFolder"] = errors.New("connection reset")

	require.Error(t, h.exec.Delete(context.Background(), fileview.FolderEntry("docs", now)))
	assert.Equal(t, []string{"docs"}, h.folders.Paths())
	assert.Equal(t, "connection reset", h.notes.All()[0].Message)
}

func TestFileOnlyOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	folder := fileview.FolderEntry("docs", now)

	assert.ErrorIs(t, h.exec.Restore(ctx, folder), ErrNotAFile)
	assert.ErrorIs(t, h.exec.PermanentDelete(ctx, folder), ErrNotAFile)
	assert.ErrorIs(t, h.exec.Download(ctx, folder, io.Discard), ErrNotAFile)

	keyless := file(1, "a.txt", "")
	assert.ErrorIs(t, h.exec.Restore(ctx, keyless), ErrMissingS3Key)
	assert.ErrorIs(t, h.exec.PermanentDelete(ctx, keyless), ErrMissingS3Key)
	assert.Empty(t, h.files.Calls())

	entry := file(2, "b.txt", "k2")
	require.NoError(t, h.exec.Restore(ctx, entry))
	require.NoError(t, h.exec.PermanentDelete(ctx, entry))
	assert.Equal(t, []call{{"Restore", []string{"k2"}}, {"PermanentDelete", []string{"k2"}}}, h.files.Calls())
}

func TestBusyWhileInFlight(t *testing.T) {
	h := newHarness(t)
	entry := file(1, "a.txt", "k1")

	var during bool
	h.files.inFlight = func() { during = h.exec.State().Busy(entry.Key()) }

	require.NoError(t, h.exec.Restore(context.Background(), entry))
	assert.True(t, during)
	assert.False(t, h.exec.State().Busy(entry.Key()))
	assert.Empty(t, h.exec.State().Snapshot())
}

func TestDownload(t *testing.T) {
	h := newHarness(t)
	h.files.blobs["k1"] = "hello"

	var buf bytes.Buffer
	require.NoError(t, h.exec.Download(context.Background(), file(1, "a.txt", "k1"), &buf))
	assert.Equal(t, "hello", buf.String())
}

func TestCreateFolder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.exec.CreateFolder(ctx, "docs", " reports ")
	require.NoError(t, err)
	assert.Equal(t, "docs/reports", entry.FullPath())
	assert.Equal(t, []string{"docs/reports"}, h.folders.Paths())
	assert.Len(t, h.view.inserted[fileview.ViewAll], 1)
	assert.Len(t, h.view.inserted[fileview.ViewRecent], 1)

	_, err = h.exec.CreateFolder(ctx, "docs/", "reports")
	assert.ErrorIs(t, err, ErrFolderExists)
	assert.Equal(t, []string{"docs/reports"}, h.folders.Paths())

	_, err = h.exec.CreateFolder(ctx, "", "   ")
	assert.True(t, IsValidation(err))
	assert.Empty(t, h.files.Calls(), "folders never hit the backend")
}

func TestUpload(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.exec.Upload(context.Background(), "docs", "notes.txt", strings.NewReader("x")))
	assert.Equal(t, []call{{"Upload", []string{"docs/notes.txt"}}}, h.files.Calls())

	err := h.exec.Upload(context.Background(), "", "a|b", strings.NewReader("x"))
	assert.True(t, IsValidation(err))
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestDownloadFolder_SkipsFailures(t *testing.T) {
	h := newHarness(t)
	h.view.files = []fileview.Entry{
		file(1, "docs/a.txt", "k1"),
		file(2, "docs/sub/1700000000000-b.txt", "k2"),
		file(3, "docs/broken.txt", "k3"),
		file(4, "docs2/other.txt", "k4"),
	}
	h.files.blobs = map[string]string{"k1": "A", "k2": "B", "k4": "other"}
	h.files.failures["Download:k3"] = &cloudsdk.APIError{Op: "download", Status: http.StatusInternalServerError}

	var buf bytes.Buffer
	summary, err := h.exec.DownloadFolder(context.Background(), "docs", &buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, summary.Archived)
	assert.Equal(t, []string{"docs/broken.txt"}, summary.Failed)
	assert.EqualValues(t, 2, summary.Bytes)
	assert.Equal(t, map[string]string{"a.txt": "A", "sub/b.txt": "B"}, readZip(t, buf.Bytes()))

	require.Len(t, h.notes.All(), 1)
	assert.Equal(t, notify.LevelSuccess, h.notes.All()[0].Level)
	assert.Equal(t, "2 files, 1 skipped", h.notes.All()[0].Message)
}

func TestDownloadFolder_Empty(t *testing.T) {
	h := newHarness(t)
	h.view.files = []fileview.Entry{file(1, "docs2/a.txt", "k1")}

	var buf bytes.Buffer
	_, err := h.exec.DownloadFolder(context.Background(), "docs", &buf)
	assert.ErrorIs(t, err, ErrNothingToDownload)
	assert.Zero(t, buf.Len())
	assert.Empty(t, h.files.Calls())
	assert.Equal(t, 1, h.notes.Count(notify.LevelInfo))
}

func TestDownloadFolder_AllFail(t *testing.T) {
	h := newHarness(t)
	h.view.files = []fileview.Entry{file(1, "docs/a.txt", "k1"), file(2, "docs/b.txt", "")}
	h.files.failures["Download"] = errors.New("offline")

	_, err := h.exec.DownloadFolder(context.Background(), "docs", io.Discard)
	assert.ErrorIs(t, err, ErrAllDownloadsFailed)
	assert.Equal(t, 1, h.notes.Count(notify.LevelError))
}

func TestDownloadFolder_BoundedConcurrency(t *testing.T) {
	h := newHarness(t)
	for i := range 12 {
		key := fmt.Sprintf("k%d", i)
		h.view.files = append(h.view.files, file(int64(i+1), fmt.Sprintf("big/f%02d.bin", i), key))
		h.files.blobs[key] = key
	}

	var mu sync.Mutex
	active, peak := 0, 0
	h.files.inFlight = func() {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	summary, err := h.exec.DownloadFolder(context.Background(), "big", io.Discard)
	require.NoError(t, err)
	assert.Len(t, summary.Archived, 12)
	assert.LessOrEqual(t, peak, defaultConcurrency)
	assert.Equal(t, "f00.bin", summary.Archived[0])
	assert.Equal(t, "f11.bin", summary.Archived[11])
}
