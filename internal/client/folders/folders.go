// Package folders keeps the client-side folder tree. The backend only knows
// flat files with path-like display names; empty folders exist only here.
package folders

import (
	"time"

	"github.com/cloudstore/cloudstore/internal/pathutil"
)

type Folder struct {
	Path    string
	Created time.Time
}

// AddFolder appends path unless it is already present.
func AddFolder(set []Folder, path string, now time.Time) []Folder {
	path = pathutil.Clean(path)
	out := clone(set)
	if path == "" || indexOf(out, path) >= 0 {
		return out
	}
	return append(out, Folder{Path: path, Created: now})
}

// RenameFolders rewrites every folder at or under oldPrefix to sit under
// newPrefix. Siblings sharing a raw string prefix ("a/bc" for "a/b") are
// left alone. Creation times survive, and if the rename collides with an
// existing folder the earlier entry wins.
func RenameFolders(set []Folder, oldPrefix, newPrefix string) []Folder {
	oldPrefix, newPrefix = pathutil.Clean(oldPrefix), pathutil.Clean(newPrefix)

	out := make([]Folder, 0, len(set))
	for _, f := range set {
		if p, ok := pathutil.RewritePrefix(f.Path, oldPrefix, newPrefix); ok {
			f.Path = p
		}
		if indexOf(out, f.Path) >= 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// RemoveFolders drops prefix and everything under it.
func RemoveFolders(set []Folder, prefix string) []Folder {
	prefix = pathutil.Clean(prefix)

	out := make([]Folder, 0, len(set))
	for _, f := range set {
		if !pathutil.HasPathPrefix(f.Path, prefix) {
			out = append(out, f)
		}
	}
	return out
}

func indexOf(set []Folder, path string) int {
	for i, f := range set {
		if f.Path == path {
			return i
		}
	}
	return -1
}

func clone(set []Folder) []Folder {
	return append(make([]Folder, 0, len(set)+1), set...)
}
