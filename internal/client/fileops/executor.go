// Package fileops runs the mutating file operations. Every operation has
// the same shape: validate, mark busy, call the backend, then on success run
// the success hook and notify; on failure notify with the server's message.
// The busy flag is cleared either way.
package fileops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/client/notify"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/cloudstore/cloudstore/internal/pathutil"
)

// FilesAPI is the subset of the backend the executor drives.
type FilesAPI interface {
	Upload(ctx context.Context, name string, r io.ReadSeeker) (*cloudsdk.UploadResponse, error)
	Download(ctx context.Context, s3Key string, w io.Writer) (int64, error)
	Delete(ctx context.Context, fileName string) error
	DeleteFolder(ctx context.Context, folderPath string) error
	Rename(ctx context.Context, s3Key, newDisplayName string) error
	RenameFolder(ctx context.Context, oldPath, newPath string) error
	Restore(ctx context.Context, s3Key string) error
	PermanentDelete(ctx context.Context, s3Key string) error
}

// FolderStore is the client-side folder set.
type FolderStore interface {
	Add(path string) error
	Rename(oldPrefix, newPrefix string) error
	RemoveByPrefix(prefix string) error
	Contains(path string) bool
}

// View is what the executor needs from the file view.
type View interface {
	FilesInFolder(folderPath string) []fileview.Entry
	InsertOptimistic(view fileview.ViewType, entry fileview.Entry)
}

type Op string

const (
	OpDownload        Op = "download"
	OpDownloadFolder  Op = "download folder"
	OpUpload          Op = "upload"
	OpDelete          Op = "delete"
	OpRename          Op = "rename"
	OpRestore         Op = "restore"
	OpPermanentDelete Op = "permanent delete"
	OpCreateFolder    Op = "create folder"
)

// Result describes a completed operation for the success hook.
type Result struct {
	Op      Op
	Entry   fileview.Entry
	OldPath string // rename only
	NewPath string // rename, create folder, upload
}

type Executor struct {
	files    FilesAPI
	folders  FolderStore
	view     View
	notifier notify.Notifier
	state    *LoadingState

	onSuccess   func(Result)
	now         func() time.Time
	concurrency int
}

type Option func(*Executor)

// WithOnSuccess sets the hook run after every successful operation, before
// the success notification.
func WithOnSuccess(fn func(Result)) Option {
	return func(e *Executor) { e.onSuccess = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithConcurrency bounds parallel downloads of a folder archive.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func New(files FilesAPI, folders FolderStore, view View, notifier notify.Notifier, opts ...Option) *Executor {
	if notifier == nil {
		notifier = notify.Discard
	}
	e := &Executor{
		files:       files,
		folders:     folders,
		view:        view,
		notifier:    notifier,
		state:       NewLoadingState(),
		now:         time.Now,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) State() *LoadingState {
	return e.state
}

// run wraps one backend call with the busy flag and the notifications.
func (e *Executor) run(key string, op Op, success string, res Result, call func() error) error {
	e.state.start(key)
	defer e.state.done(key)

	if err := call(); err != nil {
		slog.Warn("fileops failed", "op", op, "key", key, "error", err)
		notify.Error(e.notifier, opTitle(op)+" failed", failureMessage(string(op), err))
		return err
	}

	slog.Debug("fileops done", "op", op, "key", key)
	if e.onSuccess != nil {
		e.onSuccess(res)
	}
	notify.Success(e.notifier, success, res.Entry.Name)
	return nil
}

func (e *Executor) invalid(op Op, msg string) error {
	notify.Warn(e.notifier, opTitle(op)+" failed", msg)
	return &ValidationError{Message: msg}
}

func (e *Executor) requireFile(op Op, entry *fileview.Entry) error {
	if entry.IsFolder() {
		notify.Warn(e.notifier, opTitle(op)+" failed", "Only files support this operation")
		return ErrNotAFile
	}
	if entry.S3Key == "" {
		notify.Error(e.notifier, opTitle(op)+" failed", "File has no storage key")
		return ErrMissingS3Key
	}
	return nil
}

// Download writes one file to dst.
func (e *Executor) Download(ctx context.Context, entry fileview.Entry, dst io.Writer) error {
	if err := e.requireFile(OpDownload, &entry); err != nil {
		return err
	}

	return e.run(entry.Key(), OpDownload, "Downloaded", Result{Op: OpDownload, Entry: entry}, func() error {
		_, err := e.files.Download(ctx, entry.S3Key, dst)
		return err
	})
}

// Delete moves a file or a whole folder to the trash. Folders are also
// pruned from the client-side set, descendants included.
func (e *Executor) Delete(ctx context.Context, entry fileview.Entry) error {
	res := Result{Op: OpDelete, Entry: entry}

	if entry.IsFolder() {
		path := entry.FullPath()
		return e.run(entry.Key(), OpDelete, "Deleted", res, func() error {
			if err := e.files.DeleteFolder(ctx, path); err != nil && !isNotFound(err) {
				return err
			}
			if err := e.folders.RemoveByPrefix(path); err != nil {
				slog.Warn("fileops prune folders", "path", path, "error", err)
			}
			return nil
		})
	}

	name := entry.S3Key
	if name == "" {
		name = entry.DisplayName
	}
	return e.run(entry.Key(), OpDelete, "Deleted", res, func() error {
		return e.files.Delete(ctx, name)
	})
}

// Rename gives entry the leaf name newName. A file keeps its extension:
// only the part before it is editable, and a newName that repeats the
// extension is accepted. Renaming a folder rewrites every client-side
// folder under it.
func (e *Executor) Rename(ctx context.Context, entry fileview.Entry, newName string) error {
	newName = strings.TrimSpace(newName)
	if !entry.IsFolder() {
		newName = withExtension(entry.Name, newName)
	}
	if newName == entry.Name {
		return nil
	}
	if msg := pathutil.ValidateFileName(newName, entry.IsFolder()); msg != "" {
		return e.invalid(OpRename, msg)
	}

	oldPath := entry.FullPath()
	newPath := pathutil.Join(entry.Path, newName)
	res := Result{Op: OpRename, Entry: entry, OldPath: oldPath, NewPath: newPath}

	if entry.IsFolder() {
		return e.run(entry.Key(), OpRename, "Renamed", res, func() error {
			if err := e.files.RenameFolder(ctx, oldPath, newPath); err != nil && !isNotFound(err) {
				return err
			}
			return e.folders.Rename(oldPath, newPath)
		})
	}

	if entry.S3Key == "" {
		notify.Error(e.notifier, "Rename failed", "File has no storage key")
		return ErrMissingS3Key
	}
	return e.run(entry.Key(), OpRename, "Renamed", res, func() error {
		return e.files.Rename(ctx, entry.S3Key, newPath)
	})
}

// withExtension reassembles a file name from an edited base and the
// original extension.
func withExtension(original, edited string) string {
	_, ext := pathutil.SplitExt(original)
	if ext == "" || edited == "" {
		return edited
	}
	if strings.HasSuffix(strings.ToLower(edited), strings.ToLower(ext)) && len(edited) > len(ext) {
		edited = edited[:len(edited)-len(ext)]
	}
	return edited + ext
}

// Restore brings a trashed file back.
func (e *Executor) Restore(ctx context.Context, entry fileview.Entry) error {
	if err := e.requireFile(OpRestore, &entry); err != nil {
		return err
	}
	return e.run(entry.Key(), OpRestore, "Restored", Result{Op: OpRestore, Entry: entry}, func() error {
		return e.files.Restore(ctx, entry.S3Key)
	})
}

// PermanentDelete removes a trashed file for good.
func (e *Executor) PermanentDelete(ctx context.Context, entry fileview.Entry) error {
	if err := e.requireFile(OpPermanentDelete, &entry); err != nil {
		return err
	}
	return e.run(entry.Key(), OpPermanentDelete, "Permanently deleted", Result{Op: OpPermanentDelete, Entry: entry}, func() error {
		return e.files.PermanentDelete(ctx, entry.S3Key)
	})
}

// CreateFolder adds name under parent to the client-side folder set and
// shows it in the cached views right away.
func (e *Executor) CreateFolder(ctx context.Context, parent, name string) (fileview.Entry, error) {
	name = strings.TrimSpace(name)
	if msg := pathutil.ValidateFileName(name, true); msg != "" {
		return fileview.Entry{}, e.invalid(OpCreateFolder, msg)
	}

	path := pathutil.Join(pathutil.Clean(parent), name)
	if e.folders.Contains(path) {
		notify.Warn(e.notifier, "Create folder failed", fmt.Sprintf("A folder named %q already exists", name))
		return fileview.Entry{}, fmt.Errorf("%w: %s", ErrFolderExists, path)
	}

	entry := fileview.FolderEntry(path, e.now())
	res := Result{Op: OpCreateFolder, Entry: entry, NewPath: path}
	err := e.run(entry.Key(), OpCreateFolder, "Folder created", res, func() error {
		if err := e.folders.Add(path); err != nil {
			return err
		}
		e.view.InsertOptimistic(fileview.ViewAll, entry)
		e.view.InsertOptimistic(fileview.ViewRecent, entry)
		return nil
	})
	return entry, err
}

// Upload stores r as name inside parent.
func (e *Executor) Upload(ctx context.Context, parent, name string, r io.ReadSeeker) error {
	name = strings.TrimSpace(name)
	if msg := pathutil.ValidateFileName(name, false); msg != "" {
		return e.invalid(OpUpload, msg)
	}

	path := pathutil.Join(pathutil.Clean(parent), name)
	entry := fileview.Entry{Kind: fileview.KindFile, Name: name, DisplayName: path, Path: pathutil.Clean(parent)}
	res := Result{Op: OpUpload, Entry: entry, NewPath: path}

	return e.run("upload:"+path, OpUpload, "Uploaded", res, func() error {
		_, err := e.files.Upload(ctx, path, r)
		return err
	})
}

func isNotFound(err error) bool {
	return cloudsdk.StatusCode(err) == http.StatusNotFound
}

func opTitle(op Op) string {
	s := string(op)
	return strings.ToUpper(s[:1]) + s[1:]
}
