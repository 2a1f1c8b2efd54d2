package cloudsdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/imroc/req/v3"
	"golang.org/x/sync/singleflight"
)

// Client talks to the CloudStore backend. Every call except the auth ones
// carries the bearer token and gets one transparent refresh-and-retry on 401.
type Client struct {
	http    *req.Client
	baseURL string
	tokens  TokenStore
	refresh singleflight.Group

	Auth     *AuthAPI
	Files    *FilesAPI
	Shares   *SharesAPI
	Activity *ActivityAPI
}

func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		http:    newHTTPClient(cfg.BaseURL, cfg.Timeout),
		baseURL: cfg.BaseURL,
		tokens:  cfg.Tokens,
	}
	c.Auth = &AuthAPI{c: c}
	c.Files = &FilesAPI{c: c}
	c.Shares = &SharesAPI{c: c}
	c.Activity = &ActivityAPI{c: c}

	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// SendFunc issues one request. It is called again with a fresh request on
// retry, so it must not consume anything it cannot replay.
type SendFunc func(r *req.Request) (*req.Response, error)

// Do sends an authenticated request. A 401 triggers at most one refresh and
// at most one retry; a 401 on the retry is handed back like any other status.
func (c *Client) Do(ctx context.Context, send SendFunc) (*req.Response, error) {
	sent := c.tokens.Tokens()

	resp, err := send(c.authRequest(ctx, sent.AccessToken))
	if err != nil {
		return resp, err
	}
	if resp.GetStatusCode() != http.StatusUnauthorized || sent.RefreshToken == "" {
		return resp, nil
	}

	closeBody(resp)
	if err := c.refreshTokens(ctx, sent.AccessToken); err != nil {
		slog.Warn("sdk token refresh failed", "error", err)
		return resp, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	slog.Debug("sdk retrying after token refresh")
	return send(c.authRequest(ctx, c.tokens.Tokens().AccessToken))
}

func (c *Client) authRequest(ctx context.Context, token string) *req.Request {
	r := c.http.R().SetContext(ctx)
	if token != "" {
		r.SetBearerAuthToken(token)
	}
	return r
}

// refreshTokens exchanges the refresh token for a new pair. Concurrent
// callers share one exchange, and a caller whose token was already replaced
// by someone else's refresh skips straight to its retry.
func (c *Client) refreshTokens(ctx context.Context, staleAccess string) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		current := c.tokens.Tokens()
		if current.AccessToken != "" && current.AccessToken != staleAccess {
			return nil, nil
		}
		if current.RefreshToken == "" {
			return nil, ErrNoRefreshToken
		}

		pair, err := c.Auth.Refresh(ctx, current.RefreshToken)
		if err != nil {
			return nil, err
		}

		current.AccessToken = pair.Access()
		if pair.RefreshToken != "" {
			current.RefreshToken = pair.RefreshToken
		}
		return nil, c.tokens.SetTokens(current)
	})
	return err
}

func closeBody(resp *req.Response) {
	if resp != nil && resp.Response != nil && resp.Body != nil {
		resp.Body.Close()
	}
}
