package folders

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"

	"github.com/cloudstore/cloudstore/internal/client/kvstore"
	"github.com/cloudstore/cloudstore/internal/utils"
)

const (
	storageKeyPrefix   = "virtualFolders_"
	storageKeyFallback = "virtualFolders"
)

// StorageKey is the kv key holding the folders of email.
func StorageKey(email string) string {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return storageKeyFallback
	}
	return storageKeyPrefix + email
}

type record struct {
	Path    string `json:"path"`
	Created int64  `json:"created"` // epoch ms
}

// Store is the persisted folder set of one identity. Loading never fails:
// an unreadable or corrupt value is an empty set.
type Store struct {
	mu       sync.RWMutex
	kv       kvstore.Store
	key      string
	folders  []Folder
	index    mapset.Set[string]
	onChange func()
	now      func() time.Time
}

func NewStore(kv kvstore.Store, email string) *Store {
	s := &Store{
		kv:    kv,
		key:   StorageKey(email),
		index: mapset.NewThreadUnsafeSet[string](),
		now:   time.Now,
	}
	s.Load()
	return s
}

// SetIdentity switches to another user's folders and loads them.
func (s *Store) SetIdentity(email string) []Folder {
	s.mu.Lock()
	s.key = StorageKey(email)
	s.mu.Unlock()
	return s.Load()
}

func (s *Store) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// OnChange registers fn to run after every successful mutation.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load reads the persisted set into memory and returns a copy of it.
func (s *Store) Load() []Folder {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(s.key)
	switch {
	case err != nil:
		slog.Warn("folders load failed", "key", s.key, "error", err)
		s.setLocked(nil)
	case !ok:
		s.setLocked(nil)
	default:
		folders, err := decode([]byte(raw), s.now())
		if err != nil {
			slog.Warn("folders value corrupt", "key", s.key, "error", err)
		}
		s.setLocked(folders)
	}
	return clone(s.folders)
}

// Save replaces the set in memory and writes it in one kv call. The
// in-memory state is updated even if the write fails.
func (s *Store) Save(folders []Folder) error {
	return s.mutate(func([]Folder) []Folder { return folders })
}

func (s *Store) Add(path string) error {
	return s.mutate(func(cur []Folder) []Folder { return AddFolder(cur, path, s.now()) })
}

func (s *Store) Rename(oldPrefix, newPrefix string) error {
	return s.mutate(func(cur []Folder) []Folder { return RenameFolders(cur, oldPrefix, newPrefix) })
}

func (s *Store) RemoveByPrefix(prefix string) error {
	return s.mutate(func(cur []Folder) []Folder { return RemoveFolders(cur, prefix) })
}

func (s *Store) mutate(fn func([]Folder) []Folder) error {
	s.mu.Lock()
	s.setLocked(fn(clone(s.folders)))
	data, err := encode(s.folders)
	if err == nil {
		err = s.kv.Set(s.key, string(data))
	}
	hook := s.onChange
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("save folders: %w", err)
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (s *Store) Folders() []Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.folders)
}

// Paths returns the folder paths in insertion order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, len(s.folders))
	for i, f := range s.folders {
		paths[i] = f.Path
	}
	return paths
}

func (s *Store) Contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Contains(path)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.folders)
}

func (s *Store) setLocked(folders []Folder) {
	s.folders = make([]Folder, 0, len(folders))
	s.index.Clear()
	for _, f := range folders {
		if f.Path == "" || s.index.Contains(f.Path) {
			continue
		}
		s.index.Add(f.Path)
		s.folders = append(s.folders, f)
	}
}

func encode(folders []Folder) ([]byte, error) {
	records := make([]record, len(folders))
	for i, f := range folders {
		records[i] = record{Path: f.Path, Created: f.Created.UnixMilli()}
	}
	return json.Marshal(records)
}

// decode accepts the current object form and the older plain string list.
// Legacy entries get now as their creation time.
func decode(data []byte, now time.Time) ([]Folder, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err == nil {
		folders := make([]Folder, 0, len(records))
		for _, r := range records {
			folders = append(folders, Folder{Path: r.Path, Created: time.UnixMilli(r.Created)})
		}
		return folders, nil
	}

	var legacy []string
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	folders := make([]Folder, 0, len(legacy))
	for _, p := range legacy {
		folders = append(folders, Folder{Path: p, Created: now})
	}
	return folders, nil
}
