package cloudsdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/imroc/req/v3"
)

const (
	fileList         = "/file/list"
	fileTrash        = "/file/trash"
	fileUpload       = "/file/upload"
	fileDownload     = "/file/download"
	fileDelete       = "/file/delete"
	fileDeleteFolder = "/file/delete-folder"
	fileRename       = "/file/rename"
	fileRenameFolder = "/file/rename-folder"
	fileRestore      = "/file/restore"
	filePermanent    = "/file/{s3Key}/permanent"
)

var ErrMissingS3Key = errors.New("sdk: storage key missing")

// FilesAPI wraps the /file endpoints. Every call is authenticated.
type FilesAPI struct {
	c *Client
}

// List returns the user's files. A 404 or a body that is not a JSON array
// yields ErrEmptyListing.
func (f *FilesAPI) List(ctx context.Context) ([]RawRecord, error) {
	return f.list(ctx, fileList, "list files")
}

// ListTrash returns soft-deleted files, with the same empty handling as List.
func (f *FilesAPI) ListTrash(ctx context.Context) ([]RawRecord, error) {
	return f.list(ctx, fileTrash, "list trash")
}

func (f *FilesAPI) list(ctx context.Context, path, op string) ([]RawRecord, error) {
	resp, err := f.c.Do(ctx, func(r *req.Request) (*req.Response, error) {
		return r.Get(path)
	})
	if err != nil {
		return nil, handleAPIError(resp, err, op)
	}
	if resp.GetStatusCode() == http.StatusNotFound {
		return nil, ErrEmptyListing
	}
	if err := handleAPIError(resp, nil, op); err != nil {
		return nil, err
	}
	return decodeRecords(resp.Bytes())
}

// decodeRecords accepts only a JSON array. Anything else is an empty
// listing; a malformed array is a real error.
func decodeRecords(body []byte) ([]RawRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrEmptyListing
	}

	var records []RawRecord
	if err := jsonUnmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("sdk: decode listing: %w", err)
	}
	return records, nil
}

// Upload sends r as multipart field "file" named name. name carries the
// folder path ("docs/report.pdf"); the server keeps it as the display name.
// r is rewound if the request has to be retried after a token refresh.
func (f *FilesAPI) Upload(ctx context.Context, name string, r io.ReadSeeker) (*UploadResponse, error) {
	var result UploadResponse

	resp, err := f.c.Do(ctx, func(rq *req.Request) (*req.Response, error) {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return rq.
			SetFileReader("file", name, io.NopCloser(r)).
			SetSuccessResult(&result).
			Post(fileUpload)
	})
	if err := handleAPIError(resp, err, "upload"); err != nil {
		return nil, err
	}
	return &result, nil
}

// Download streams the object stored under s3Key into w and returns the
// number of bytes written.
func (f *FilesAPI) Download(ctx context.Context, s3Key string, w io.Writer) (int64, error) {
	if s3Key == "" {
		return 0, ErrMissingS3Key
	}

	resp, err := f.c.Do(ctx, func(r *req.Request) (*req.Response, error) {
		return r.
			DisableAutoReadResponse().
			SetQueryParam("s3Key", s3Key).
			Get(fileDownload)
	})
	if err := handleAPIError(resp, err, "download"); err != nil {
		closeBody(resp)
		return 0, err
	}
	defer closeBody(resp)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: download: %w", ErrTransport, err)
	}
	return n, nil
}

// Delete soft-deletes a file by name.
func (f *FilesAPI) Delete(ctx context.Context, fileName string) error {
	return f.call(ctx, "delete", func(r *req.Request) (*req.Response, error) {
		return r.SetQueryParam("fileName", fileName).Delete(fileDelete)
	})
}

// DeleteFolder soft-deletes everything under folderPath.
func (f *FilesAPI) DeleteFolder(ctx context.Context, folderPath string) error {
	return f.call(ctx, "delete folder", func(r *req.Request) (*req.Response, error) {
		return r.SetQueryParam("folderPath", folderPath).Delete(fileDeleteFolder)
	})
}

func (f *FilesAPI) Rename(ctx context.Context, s3Key, newDisplayName string) error {
	if s3Key == "" {
		return ErrMissingS3Key
	}
	return f.call(ctx, "rename", func(r *req.Request) (*req.Response, error) {
		return r.
			SetQueryParam("s3Key", s3Key).
			SetQueryParam("newDisplayName", newDisplayName).
			Patch(fileRename)
	})
}

func (f *FilesAPI) RenameFolder(ctx context.Context, oldPath, newPath string) error {
	return f.call(ctx, "rename folder", func(r *req.Request) (*req.Response, error) {
		return r.
			SetQueryParam("oldFolderPath", oldPath).
			SetQueryParam("newFolderPath", newPath).
			Patch(fileRenameFolder)
	})
}

func (f *FilesAPI) Restore(ctx context.Context, s3Key string) error {
	if s3Key == "" {
		return ErrMissingS3Key
	}
	return f.call(ctx, "restore", func(r *req.Request) (*req.Response, error) {
		return r.SetQueryParam("s3Key", s3Key).Post(fileRestore)
	})
}

// PermanentDelete removes a trashed file for good.
func (f *FilesAPI) PermanentDelete(ctx context.Context, s3Key string) error {
	if s3Key == "" {
		return ErrMissingS3Key
	}
	return f.call(ctx, "permanent delete", func(r *req.Request) (*req.Response, error) {
		return r.SetPathParam("s3Key", s3Key).Delete(filePermanent)
	})
}

func (f *FilesAPI) call(ctx context.Context, op string, send SendFunc) error {
	resp, err := f.c.Do(ctx, send)
	return handleAPIError(resp, err, op)
}
