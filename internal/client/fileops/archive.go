package fileops

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/client/notify"
	"github.com/cloudstore/cloudstore/internal/pathutil"
)

const defaultConcurrency = 4

// DownloadSummary reports what went into a folder archive.
type DownloadSummary struct {
	Archived []string // archive paths, in folder order
	Failed   []string // display names that could not be fetched
	Bytes    int64
}

type fetched struct {
	data []byte
	err  error
}

// DownloadFolder fetches every file under folderPath and writes them to
// dst as one zip archive, with paths relative to the folder. A file that
// fails to download is logged and left out.
func (e *Executor) DownloadFolder(ctx context.Context, folderPath string, dst io.Writer) (DownloadSummary, error) {
	folderPath = pathutil.Clean(folderPath)
	files := e.view.FilesInFolder(folderPath)
	if len(files) == 0 {
		notify.Info(e.notifier, "Nothing to download", fmt.Sprintf("%q has no files", folderName(folderPath)))
		return DownloadSummary{}, ErrNothingToDownload
	}

	key := fileview.FolderEntry(folderPath, e.now()).Key()
	e.state.start(key)
	defer e.state.done(key)

	results := make([]fetched, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if f.S3Key == "" {
				results[i].err = ErrMissingS3Key
				return nil
			}
			var buf bytes.Buffer
			if _, err := e.files.Download(gctx, f.S3Key, &buf); err != nil {
				results[i].err = err
				return nil
			}
			results[i].data = buf.Bytes()
			return nil
		})
	}
	_ = g.Wait() // workers record failures instead of returning them

	summary, err := writeArchive(dst, folderPath, files, results)
	if err != nil {
		slog.Error("fileops archive write", "folder", folderPath, "error", err)
		notify.Error(e.notifier, "Download failed", err.Error())
		return summary, err
	}

	if len(summary.Archived) == 0 {
		notify.Error(e.notifier, "Download failed", "None of the files could be downloaded")
		return summary, ErrAllDownloadsFailed
	}

	if e.onSuccess != nil {
		e.onSuccess(Result{Op: OpDownloadFolder, Entry: fileview.FolderEntry(folderPath, e.now())})
	}
	msg := fmt.Sprintf("%d files", len(summary.Archived))
	if len(summary.Failed) > 0 {
		msg += fmt.Sprintf(", %d skipped", len(summary.Failed))
	}
	notify.Success(e.notifier, "Downloaded "+folderName(folderPath), msg)
	return summary, nil
}

func writeArchive(dst io.Writer, folderPath string, files []fileview.Entry, results []fetched) (DownloadSummary, error) {
	var summary DownloadSummary

	zw := zip.NewWriter(dst)
	for i, f := range files {
		if err := results[i].err; err != nil {
			slog.Warn("fileops folder download skipped file", "file", f.DisplayName, "error", err)
			summary.Failed = append(summary.Failed, f.DisplayName)
			continue
		}

		name := archivePath(folderPath, &f)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return summary, fmt.Errorf("archive %q: %w", name, err)
		}
		n, err := w.Write(results[i].data)
		if err != nil {
			return summary, fmt.Errorf("archive %q: %w", name, err)
		}
		summary.Archived = append(summary.Archived, name)
		summary.Bytes += int64(n)
	}

	if err := zw.Close(); err != nil {
		return summary, fmt.Errorf("archive close: %w", err)
	}
	return summary, nil
}

// archivePath is the file's path below folderPath, with the stored leaf
// replaced by the clean name.
func archivePath(folderPath string, f *fileview.Entry) string {
	rel := f.Path
	if folderPath != "" {
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, folderPath), pathutil.Sep)
	}
	return pathutil.Join(rel, f.Name)
}

func folderName(folderPath string) string {
	if folderPath == "" {
		return "Home"
	}
	return pathutil.Leaf(folderPath)
}
