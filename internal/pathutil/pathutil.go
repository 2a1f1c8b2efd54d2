// Package pathutil holds the pure path and file name helpers shared by the
// file view, the operation executor and the CLI. Paths are always
// `/`-separated and relative to the user's root, which is "".
package pathutil

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const Sep = "/"

// Crumb is one step of a breadcrumb trail.
type Crumb struct {
	Name string
	Path string
}

// Breadcrumbs returns Home followed by one crumb per segment of path.
func Breadcrumbs(path string) []Crumb {
	crumbs := []Crumb{{Name: "Home", Path: ""}}
	current := ""
	for _, seg := range strings.Split(path, Sep) {
		if seg == "" {
			continue
		}
		current = Join(current, seg)
		crumbs = append(crumbs, Crumb{Name: seg, Path: current})
	}
	return crumbs
}

// Leaf returns the last segment of a display name.
func Leaf(displayName string) string {
	if i := strings.LastIndex(displayName, Sep); i >= 0 {
		return displayName[i+1:]
	}
	return displayName
}

// Parent returns the display name without its last segment, "" at the root.
func Parent(displayName string) string {
	if i := strings.LastIndex(displayName, Sep); i >= 0 {
		return displayName[:i]
	}
	return ""
}

// Join joins a parent path and a leaf, ignoring an empty parent.
func Join(parent, leaf string) string {
	parent = strings.Trim(parent, Sep)
	if parent == "" {
		return leaf
	}
	return parent + Sep + leaf
}

// Clean trims surrounding separators and collapses empty segments.
func Clean(path string) string {
	parts := strings.Split(path, Sep)
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, Sep)
}

var uniquePrefix = regexp.MustCompile(`^\d{13}-`)

// StripUniquePrefix drops the "<13 digit ms timestamp>-" prefix the backend
// adds to stored names.
func StripUniquePrefix(name string) string {
	return uniquePrefix.ReplaceAllString(name, "")
}

// SplitExt splits name into base and extension (with the dot). A leading
// dot is part of the base.
func SplitExt(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// HasPathPrefix reports whether p is prefix itself or lies under it.
// The match is on whole segments: "a/bc" is not under "a/b".
func HasPathPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+Sep)
}

// RewritePrefix replaces the leading prefix segments of p with repl.
func RewritePrefix(p, prefix, repl string) (string, bool) {
	if !HasPathPrefix(p, prefix) {
		return p, false
	}
	return repl + p[len(prefix):], true
}

// Match reports whether name matches a doublestar glob pattern.
func Match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
