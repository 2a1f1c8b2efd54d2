package fileview

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudstore/cloudstore/internal/pathutil"
	"github.com/google/uuid"
)

type ViewType string

const (
	ViewAll    ViewType = "all"
	ViewRecent ViewType = "recent"
	ViewShared ViewType = "shared"
	ViewTrash  ViewType = "trash"
)

var views = []ViewType{ViewAll, ViewRecent, ViewShared, ViewTrash}

func (v ViewType) Valid() bool {
	switch v {
	case ViewAll, ViewRecent, ViewShared, ViewTrash:
		return true
	}
	return false
}

func ParseViewType(s string) (ViewType, error) {
	v := ViewType(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return ViewAll, nil
	}
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
	return v, nil
}

type Kind uint8

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// OwnerSelf marks entries owned by the signed-in user.
const OwnerSelf = "You"

// folderNamespace scopes folder ids; any fixed UUID works.
var folderNamespace = uuid.MustParse("5b0c3a9e-6f1d-4c1e-9d7a-2f8e4b6a1c3d")

// Entry is one row of a view. Files carry the server's numeric id; folders
// live only on this client and are identified by their path.
type Entry struct {
	Kind        Kind
	FileID      int64     // KindFile only
	FolderID    uuid.UUID // KindFolder only
	Name        string    // leaf, extension included
	DisplayName string    // server path-qualified name; the leaf for folders
	Category    pathutil.Category
	Size        *int64 // nil for folders and unknown sizes
	Modified    time.Time
	Owner       string
	S3Key       string // empty for folders
	Path        string // parent directory, "" at the root
}

func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// FullPath is the entry's location: the folder path for folders, the
// display name for files.
func (e Entry) FullPath() string {
	if e.IsFolder() {
		return pathutil.Join(e.Path, e.Name)
	}
	return e.DisplayName
}

// Key identifies the entry across reconciliation passes.
func (e Entry) Key() string {
	if e.IsFolder() {
		return "folder:" + e.FullPath()
	}
	return fmt.Sprintf("file:%d", e.FileID)
}

func (e Entry) SharedWithMe() bool {
	return e.Owner != OwnerSelf
}

// FolderEntry builds the synthetic entry for a folder path.
func FolderEntry(path string, created time.Time) Entry {
	path = pathutil.Clean(path)
	name := pathutil.Leaf(path)
	return Entry{
		Kind:        KindFolder,
		FolderID:    uuid.NewSHA1(folderNamespace, []byte(path)),
		Name:        name,
		DisplayName: name,
		Category:    pathutil.CategoryFolder,
		Modified:    created,
		Owner:       OwnerSelf,
		Path:        pathutil.Parent(path),
	}
}

func cloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Size != nil {
			size := *e.Size
			e.Size = &size
		}
		out[i] = e
	}
	return out
}
