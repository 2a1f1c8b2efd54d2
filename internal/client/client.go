// Package client wires the CloudStore session together: local state, the
// authenticated backend client, the folder set, the view cache and the
// operation executor.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/config"
	"github.com/cloudstore/cloudstore/internal/client/fileops"
	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/client/folders"
	"github.com/cloudstore/cloudstore/internal/client/kvstore"
	"github.com/cloudstore/cloudstore/internal/client/notify"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/cloudstore/cloudstore/internal/pathutil"
)

const tokenLeeway = 30 * time.Second

var ErrNotFound = errors.New("no such file or folder")

type Client struct {
	config   *config.Config
	kv       *kvstore.SqliteStore
	tokens   *cloudsdk.KVTokenStore
	sdk      *cloudsdk.Client
	folders  *folders.Store
	view     *fileview.Reconciler
	ops      *fileops.Executor
	notifier notify.Notifier
}

// New opens the local state and builds the session. A nil notifier logs.
func New(cfg *config.Config, notifier notify.Notifier) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	kv, err := kvstore.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	tokens, err := cloudsdk.NewKVTokenStore(kv)
	if err != nil {
		slog.Warn("client tokens unreadable, starting logged out", "error", err)
	}

	sdk, err := cloudsdk.New(&cloudsdk.Config{BaseURL: cfg.ServerURL, Tokens: tokens})
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("create sdk: %w", err)
	}

	c := &Client{
		config:   cfg,
		kv:       kv,
		tokens:   tokens,
		sdk:      sdk,
		notifier: notifier,
	}

	c.folders = folders.NewStore(kv, tokens.Tokens().Email)
	c.view = fileview.New(sdk.Files, c.folders, notifier)
	c.ops = fileops.New(sdk.Files, c.folders, c.view, notifier, fileops.WithOnSuccess(c.afterOperation))
	c.folders.OnChange(c.view.ScheduleRefresh)

	slog.Debug("client ready", "server", cfg.ServerURL, "state", cfg.StatePath, "user", tokens.Tokens().Email)
	return c, nil
}

// afterOperation drops the views that the operation made stale and
// refreshes the current one in the background, keeping it on screen
// meanwhile.
func (c *Client) afterOperation(res fileops.Result) {
	switch res.Op {
	case fileops.OpDownload, fileops.OpDownloadFolder:
		return
	case fileops.OpCreateFolder:
		// the folder store change already scheduled a refresh
		return
	}

	current := c.view.CurrentView()
	for _, v := range fileview.Views() {
		if v != current {
			c.view.Invalidate(v)
		}
	}
	c.view.ScheduleRefresh()
}

func (c *Client) Close() error {
	c.view.Close()
	return c.kv.Close()
}

func (c *Client) Config() *config.Config { return c.config }
func (c *Client) SDK() *cloudsdk.Client { return c.sdk }
func (c *Client) Folders() *folders.Store { return c.folders }
func (c *Client) View() *fileview.Reconciler { return c.view }
func (c *Client) Ops() *fileops.Executor { return c.ops }
func (c *Client) Tokens() cloudsdk.TokenStore { return c.tokens }
func (c *Client) Notifier() notify.Notifier { return c.notifier }

// Login signs in and switches the folder set and caches to the new user.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if _, err := c.sdk.Auth.Login(ctx, email, password); err != nil {
		return err
	}
	c.switchIdentity()
	return nil
}

// Verify confirms a registration code, which also signs in.
func (c *Client) Verify(ctx context.Context, email, code string) error {
	if _, err := c.sdk.Auth.Verify(ctx, email, code); err != nil {
		return err
	}
	c.switchIdentity()
	return nil
}

func (c *Client) Logout() error {
	if err := c.sdk.Auth.Logout(); err != nil {
		return err
	}
	c.switchIdentity()
	return nil
}

func (c *Client) switchIdentity() {
	c.folders.SetIdentity(c.tokens.Tokens().Email)
	c.view.Invalidate()
}

// Identity is the signed-in email, or "" when logged out.
func (c *Client) Identity() string {
	t := c.tokens.Tokens()
	if !t.LoggedIn() {
		return ""
	}
	if t.Email != "" {
		return t.Email
	}
	if claims, err := cloudsdk.InspectToken(t.AccessToken); err == nil {
		return claims.Identity()
	}
	return ""
}

// EnsureSession fails early when no call could succeed: nobody is signed
// in, or the access token expired and cannot be refreshed.
func (c *Client) EnsureSession() error {
	t := c.tokens.Tokens()
	if !t.LoggedIn() {
		return cloudsdk.ErrNotLoggedIn
	}

	now := time.Now()
	access, err := cloudsdk.InspectToken(t.AccessToken)
	if err != nil || !access.Expired(now, tokenLeeway) {
		// opaque tokens are left to the server to judge
		return nil
	}
	if t.RefreshToken == "" {
		return cloudsdk.ErrSessionExpired
	}
	if refresh, err := cloudsdk.InspectToken(t.RefreshToken); err == nil && refresh.Expired(now, 0) {
		return cloudsdk.ErrSessionExpired
	}
	return nil
}

// Lookup finds the entry at path in view, fetching the view if needed.
// Files match on their display name or their clean name in the folder.
func (c *Client) Lookup(ctx context.Context, view fileview.ViewType, path string) (fileview.Entry, error) {
	path = pathutil.Clean(path)
	if path == "" {
		return fileview.Entry{}, fmt.Errorf("%w: empty path", ErrNotFound)
	}

	entries, err := c.view.Fetch(ctx, view, fileview.FetchOptions{})
	if err != nil {
		return fileview.Entry{}, err
	}

	for _, e := range entries {
		if e.FullPath() == path || pathutil.Join(e.Path, e.Name) == path {
			return e, nil
		}
	}
	if view != fileview.ViewTrash && isImplicitFolder(entries, path) {
		return fileview.FolderEntry(path, time.Now()), nil
	}
	return fileview.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// isImplicitFolder reports a folder that exists only because files live
// under it.
func isImplicitFolder(entries []fileview.Entry, path string) bool {
	return len(fileview.FilesUnder(entries, path)) > 0
}
