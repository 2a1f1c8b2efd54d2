package devserver

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloudstore/cloudstore/internal/pathutil"
)

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("invalid email or password")
	ErrNotVerified      = errors.New("email not verified")
	ErrFileNotFound     = errors.New("file not found")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrNotInTrash       = errors.New("file is not in trash")
	ErrNameTaken        = errors.New("a file with that name already exists")
	ErrShareNotFound    = errors.New("share not found")
	ErrShareWithSelf    = errors.New("cannot share a file with yourself")
	ErrLinkNotFound     = errors.New("link not found or expired")
	ErrInvalidName      = errors.New("invalid file name")
	ErrInvalidFolderArg = errors.New("invalid folder path")
)

type user struct {
	Email    string
	Name     string
	Password []byte
	Verified bool
}

type file struct {
	ID           int64
	Owner        string
	StoredName   string
	DisplayName  string
	S3Key        string
	ContentType  string
	LastModified time.Time
	Deleted      bool
	Data         []byte
}

type share struct {
	ID         string
	FileKey    string
	Owner      string
	Target     string
	Permission string
	Created    time.Time
}

type link struct {
	Token   string
	FileKey string
	Owner   string
	Expires time.Time
}

type event struct {
	ID     string
	Actor  string
	Action string
	Target string
	At     time.Time
}

// Store is the dev server's whole world, kept in memory. Files are ordered
// by upload time.
type Store struct {
	now func() time.Time

	mu        sync.RWMutex
	users     map[string]*user
	files     []*file
	shares    map[string]*share
	links     map[string]*link
	events    []event
	nextID    int64
	lastStamp int64
}

func NewStore() *Store {
	return &Store{
		now:    time.Now,
		users:  make(map[string]*user),
		shares: make(map[string]*share),
		links:  make(map[string]*link),
		nextID: 1,
	}
}

func (s *Store) AddUser(email, name, password string, verified bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[email]; ok && existing.Verified {
		return ErrUserExists
	}
	s.users[email] = &user{Email: email, Name: name, Password: hash, Verified: verified}
	return nil
}

func (s *Store) HasUser(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[email]
	return ok
}

func (s *Store) Authenticate(email, password string) error {
	s.mu.RLock()
	u, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.Password, []byte(password)); err != nil {
		return ErrBadCredentials
	}
	if !u.Verified {
		return ErrNotVerified
	}
	return nil
}

func (s *Store) MarkVerified(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return ErrUserNotFound
	}
	u.Verified = true
	return nil
}

// stamp returns a unique millisecond timestamp for stored names.
func (s *Store) stamp(now time.Time) int64 {
	ms := now.UnixMilli()
	if ms <= s.lastStamp {
		ms = s.lastStamp + 1
	}
	s.lastStamp = ms
	return ms
}

// Upload stores data under "<owner>/<ms>-<leaf>" with displayName as the
// path-prefixed name the user sees.
func (s *Store) Upload(owner, displayName, contentType string, data []byte) (*file, error) {
	displayName = pathutil.Clean(displayName)
	if displayName == "" || strings.Contains(displayName, "..") {
		return nil, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := fmt.Sprintf("%d-%s", s.stamp(now), pathutil.Leaf(displayName))
	f := &file{
		ID:           s.nextID,
		Owner:        owner,
		StoredName:   stored,
		DisplayName:  displayName,
		S3Key:        owner + "/" + stored,
		ContentType:  contentType,
		LastModified: now,
		Data:         data,
	}
	s.nextID++
	s.files = append(s.files, f)
	s.record(owner, "upload", displayName)
	return f, nil
}

// Files returns live or trashed files owned by owner.
func (s *Store) Files(owner string, trashed bool) []file {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []file
	for _, f := range s.files {
		if f.Owner == owner && f.Deleted == trashed {
			out = append(out, *f)
		}
	}
	return out
}

// SharedWith returns the live files shared with target, in share order.
func (s *Store) SharedWith(target string) []file {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shares := make([]*share, 0)
	for _, sh := range s.shares {
		if sh.Target == target {
			shares = append(shares, sh)
		}
	}
	slices.SortFunc(shares, func(a, b *share) int { return a.Created.Compare(b.Created) })

	seen := make(map[string]bool)
	var out []file
	for _, sh := range shares {
		f := s.byKey(sh.FileKey)
		if f == nil || f.Deleted || seen[f.S3Key] {
			continue
		}
		seen[f.S3Key] = true
		out = append(out, *f)
	}
	return out
}

// Readable returns the file under key if caller owns it or it was shared
// with caller. Trashed files are not readable.
func (s *Store) Readable(caller, key string) (*file, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := s.byKey(key)
	if f == nil || f.Deleted {
		return nil, ErrFileNotFound
	}
	if f.Owner == caller {
		return f, nil
	}
	for _, sh := range s.shares {
		if sh.FileKey == key && sh.Target == caller {
			return f, nil
		}
	}
	return nil, ErrFileNotFound
}

// Trash soft-deletes the owner's live file whose storage key or display
// name is name.
func (s *Store) Trash(owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		if f.Owner == owner && !f.Deleted && (f.S3Key == name || f.DisplayName == name) {
			f.Deleted = true
			f.LastModified = s.now()
			s.record(owner, "delete", f.DisplayName)
			return nil
		}
	}
	return ErrFileNotFound
}

func (s *Store) TrashFolder(owner, folder string) (int, error) {
	folder = pathutil.Clean(folder)
	if folder == "" {
		return 0, ErrInvalidFolderArg
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := s.now()
	for _, f := range s.files {
		if f.Owner == owner && !f.Deleted && strings.HasPrefix(f.DisplayName, folder+pathutil.Sep) {
			f.Deleted = true
			f.LastModified = now
			n++
		}
	}
	if n == 0 {
		return 0, ErrFolderNotFound
	}
	s.record(owner, "delete-folder", folder)
	return n, nil
}

func (s *Store) Rename(owner, key, newName string) error {
	newName = pathutil.Clean(newName)
	if newName == "" || strings.Contains(newName, "..") {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.byKey(key)
	if f == nil || f.Owner != owner || f.Deleted {
		return ErrFileNotFound
	}
	if f.DisplayName == newName {
		return nil
	}
	for _, other := range s.files {
		if other.Owner == owner && !other.Deleted && other.DisplayName == newName {
			return ErrNameTaken
		}
	}

	s.record(owner, "rename", f.DisplayName+" -> "+newName)
	f.DisplayName = newName
	f.LastModified = s.now()
	return nil
}

func (s *Store) RenameFolder(owner, oldPath, newPath string) (int, error) {
	oldPath, newPath = pathutil.Clean(oldPath), pathutil.Clean(newPath)
	if oldPath == "" || newPath == "" || strings.Contains(newPath, "..") {
		return 0, ErrInvalidFolderArg
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, f := range s.files {
		if f.Owner != owner || f.Deleted {
			continue
		}
		if !strings.HasPrefix(f.DisplayName, oldPath+pathutil.Sep) {
			continue
		}
		f.DisplayName, _ = pathutil.RewritePrefix(f.DisplayName, oldPath, newPath)
		n++
	}
	if n == 0 {
		return 0, ErrFolderNotFound
	}
	s.record(owner, "rename-folder", oldPath+" -> "+newPath)
	return n, nil
}

func (s *Store) Restore(owner, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.byKey(key)
	if f == nil || f.Owner != owner {
		return ErrFileNotFound
	}
	if !f.Deleted {
		return ErrNotInTrash
	}
	f.Deleted = false
	f.LastModified = s.now()
	s.record(owner, "restore", f.DisplayName)
	return nil
}

// Purge removes a trashed file together with its shares and links.
func (s *Store) Purge(owner, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.files, func(f *file) bool { return f.S3Key == key && f.Owner == owner })
	if i < 0 {
		return ErrFileNotFound
	}
	f := s.files[i]
	if !f.Deleted {
		return ErrNotInTrash
	}

	s.files = slices.Delete(s.files, i, i+1)
	for id, sh := range s.shares {
		if sh.FileKey == key {
			delete(s.shares, id)
		}
	}
	for token, l := range s.links {
		if l.FileKey == key {
			delete(s.links, token)
		}
	}
	s.record(owner, "purge", f.DisplayName)
	return nil
}

func (s *Store) Share(owner, key, target, permission string) (*share, *file, error) {
	if owner == target {
		return nil, nil, ErrShareWithSelf
	}
	if permission == "" {
		permission = "read"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.byKey(key)
	if f == nil || f.Owner != owner || f.Deleted {
		return nil, nil, ErrFileNotFound
	}
	if _, ok := s.users[target]; !ok {
		return nil, nil, ErrUserNotFound
	}

	sh := &share{
		ID:         uuid.New().String(),
		FileKey:    key,
		Owner:      owner,
		Target:     target,
		Permission: permission,
		Created:    s.now(),
	}
	s.shares[sh.ID] = sh
	s.record(owner, "share", f.DisplayName+" -> "+target)
	return sh, f, nil
}

func (s *Store) Unshare(owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shares[id]
	if !ok || sh.Owner != owner {
		return ErrShareNotFound
	}
	delete(s.shares, id)
	s.record(owner, "unshare", sh.FileKey+" -> "+sh.Target)
	return nil
}

func (s *Store) CreateLink(owner, key string, expiry time.Duration) (*link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.byKey(key)
	if f == nil || f.Owner != owner || f.Deleted {
		return nil, ErrFileNotFound
	}

	l := &link{
		Token:   uuid.New().String(),
		FileKey: key,
		Owner:   owner,
		Expires: s.now().Add(expiry),
	}
	s.links[l.Token] = l
	s.record(owner, "link", f.DisplayName)
	return l, nil
}

// Resolve returns the live file behind an unexpired public link.
func (s *Store) Resolve(token string) (*file, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[token]
	if !ok || !s.now().Before(l.Expires) {
		return nil, ErrLinkNotFound
	}
	f := s.byKey(l.FileKey)
	if f == nil || f.Deleted {
		return nil, ErrLinkNotFound
	}
	return f, nil
}

// Events returns activity newest first, for one actor or for everybody
// when actor is empty.
func (s *Store) Events(actor string) []event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		if actor == "" || s.events[i].Actor == actor {
			out = append(out, s.events[i])
		}
	}
	return out
}

func (s *Store) record(actor, action, target string) {
	s.events = append(s.events, event{
		ID:     uuid.New().String(),
		Actor:  actor,
		Action: action,
		Target: target,
		At:     s.now(),
	})
}

func (s *Store) byKey(key string) *file {
	for _, f := range s.files {
		if f.S3Key == key {
			return f
		}
	}
	return nil
}

// Record appends an activity event that no store mutation produced.
func (s *Store) Record(actor, action, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(actor, action, target)
}
