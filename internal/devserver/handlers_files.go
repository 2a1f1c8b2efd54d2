package devserver

import (
	"io"
	"mime"
	"net/http"
	"net/textproto"

	"github.com/gin-gonic/gin"

	"github.com/cloudstore/cloudstore/internal/pathutil"
	"github.com/cloudstore/cloudstore/internal/utils"
)

// fileRecord is one element of a listing, in the shape the web client
// reads.
type fileRecord struct {
	ID           int64  `json:"id"`
	FileName     string `json:"fileName"`
	DisplayName  string `json:"displayName"`
	S3Key        string `json:"s3Key"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"`
	ContentType  string `json:"contentType,omitempty"`
	SharedBy     string `json:"sharedBy,omitempty"`
}

type uploadResponse struct {
	Message string      `json:"message"`
	File    *fileRecord `json:"file"`
}

func toRecord(f *file, sharedBy string) *fileRecord {
	return &fileRecord{
		ID:           f.ID,
		FileName:     f.StoredName,
		DisplayName:  f.DisplayName,
		S3Key:        f.S3Key,
		Size:         int64(len(f.Data)),
		LastModified: f.LastModified.UnixMilli(),
		ContentType:  f.ContentType,
		SharedBy:     sharedBy,
	}
}

func toRecords(files []file, sharedBy func(*file) string) []*fileRecord {
	out := make([]*fileRecord, 0, len(files))
	for i := range files {
		out = append(out, toRecord(&files[i], sharedBy(&files[i])))
	}
	return out
}

// handleList answers 404 for an empty listing, like the production backend.
func (s *Server) handleList(c *gin.Context) {
	me := currentUser(c)

	records := toRecords(s.store.Files(me, false), func(*file) string { return "" })
	records = append(records, toRecords(s.store.SharedWith(me), func(f *file) string { return f.Owner })...)
	if len(records) == 0 {
		abortWithError(c, http.StatusNotFound, CodeNotFound, "no files found")
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleTrash(c *gin.Context) {
	records := toRecords(s.store.Files(currentUser(c), true), func(*file) string { return "" })
	if len(records) == 0 {
		abortWithError(c, http.StatusNotFound, CodeNotFound, "trash is empty")
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, "multipart field \"file\" is required")
		return
	}

	// FileHeader.Filename is already reduced to its base name
	name := rawFileName(fh.Header)
	if name == "" {
		name = fh.Filename
	}

	src, err := fh.Open()
	if err != nil {
		storeError(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		storeError(c, err)
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = utils.DetectContentType(name)
	}

	f, err := s.store.Upload(currentUser(c), name, contentType, data)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, &uploadResponse{Message: "file uploaded", File: toRecord(f, "")})
}

func rawFileName(h textproto.MIMEHeader) string {
	_, params, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

func (s *Server) handleDownload(c *gin.Context) {
	f, err := s.store.Readable(currentUser(c), c.Query("s3Key"))
	if err != nil {
		storeError(c, err)
		return
	}
	serveFile(c, f)
}

func serveFile(c *gin.Context, f *file) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": pathutil.Leaf(f.DisplayName)})
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

func (s *Server) handleDelete(c *gin.Context) {
	name := c.Query("fileName")
	if name == "" {
		abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, "fileName is required")
		return
	}
	if err := s.store.Trash(currentUser(c), name); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &messageResponse{Message: "file moved to trash"})
}

func (s *Server) handleDeleteFolder(c *gin.Context) {
	n, err := s.store.TrashFolder(currentUser(c), c.Query("folderPath"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "folder moved to trash", "count": n})
}

func (s *Server) handleRename(c *gin.Context) {
	if err := s.store.Rename(currentUser(c), c.Query("s3Key"), c.Query("newDisplayName")); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &messageResponse{Message: "file renamed"})
}

func (s *Server) handleRenameFolder(c *gin.Context) {
	n, err := s.store.RenameFolder(currentUser(c), c.Query("oldFolderPath"), c.Query("newFolderPath"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "folder renamed", "count": n})
}

func (s *Server) handleRestore(c *gin.Context) {
	if err := s.store.Restore(currentUser(c), c.Query("s3Key")); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &messageResponse{Message: "file restored"})
}

func (s *Server) handlePermanentDelete(c *gin.Context) {
	if err := s.store.Purge(currentUser(c), c.Param("s3Key")); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &messageResponse{Message: "file permanently deleted"})
}
