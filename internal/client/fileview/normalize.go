package fileview

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/folders"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/cloudstore/cloudstore/internal/pathutil"
)

// fallbackIDs hands out ids for records without a usable one. Seeded from
// the clock and strictly increasing, so two fallbacks never collide within
// a process.
var fallbackIDs atomic.Int64

func init() {
	fallbackIDs.Store(time.Now().UnixMilli())
}

func nextFallbackID() int64 {
	return fallbackIDs.Add(1)
}

// Reconcile merges server records with the folder set: folders first in
// store order, then files in server order.
func Reconcile(records []cloudsdk.RawRecord, set []folders.Folder, now time.Time) []Entry {
	entries := make([]Entry, 0, len(set)+len(records))
	for _, f := range set {
		entries = append(entries, FolderEntry(f.Path, f.Created))
	}
	for i := range records {
		entries = append(entries, Normalize(&records[i], now))
	}
	return entries
}

// Normalize turns one loosely typed record into a file entry.
func Normalize(raw *cloudsdk.RawRecord, now time.Time) Entry {
	display := raw.Name()
	name := pathutil.StripUniquePrefix(pathutil.Leaf(display))

	id, ok := toInt(firstNonNil(raw.ID, raw.FileID))
	if !ok {
		id = nextFallbackID()
	}

	var size *int64
	if n, ok := toInt(raw.Size); ok {
		size = &n
	}

	owner := raw.SharedBy
	if owner == "" {
		owner = OwnerSelf
	}

	return Entry{
		Kind:        KindFile,
		FileID:      id,
		Name:        name,
		DisplayName: display,
		Category:    pathutil.CategoryOf(name),
		Size:        size,
		Modified:    toTime(raw.LastModified, now),
		Owner:       owner,
		S3Key:       raw.S3Key,
		Path:        pathutil.Parent(display),
	}
}

func firstNonNil(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case interface{ Int64() (int64, error) }: // json.Number
		i, err := n.Int64()
		return i, err == nil
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// toTime reads epoch millis or a date string, else now.
func toTime(v any, now time.Time) time.Time {
	if ms, ok := toInt(v); ok {
		return time.UnixMilli(ms)
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return now
}

// Timestamp decodes a loosely typed server time the same way record dates
// are read: epoch millis or a known date layout, else now.
func Timestamp(v any, now time.Time) time.Time {
	return toTime(v, now)
}
