package cloudsdk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudstore/cloudstore/internal/utils"
)

const (
	authLogin    = "/auth/login"
	authRegister = "/auth/register"
	authVerify   = "/auth/verify"
	authRefresh  = "/auth/refresh"
	authReset    = "/auth/reset"
)

var errNoAccessToken = errors.New("sdk: auth response carried no token")

// AuthAPI wraps the unauthenticated /auth endpoints. None of them go
// through the refresh path.
type AuthAPI struct {
	c *Client
}

// Login exchanges credentials for a token pair and persists it.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (*AuthTokenResponse, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}

	pair, err := a.tokenCall(ctx, authLogin, "login", &LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return pair, a.persist(pair, email)
}

// Register creates an account. Most backends follow up with a code sent
// by email that goes to Verify.
func (a *AuthAPI) Register(ctx context.Context, req *RegisterRequest) (*MessageResponse, error) {
	req.Email = utils.NormalizeEmail(req.Email)
	if err := utils.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	return a.messageCall(ctx, authRegister, "register", req)
}

// Verify confirms an email with the code the server sent and persists the
// returned token pair.
func (a *AuthAPI) Verify(ctx context.Context, email, code string) (*AuthTokenResponse, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}

	pair, err := a.tokenCall(ctx, authVerify, "verify", &VerifyRequest{Email: email, Code: strings.TrimSpace(code)})
	if err != nil {
		return nil, err
	}
	return pair, a.persist(pair, email)
}

// Reset asks the server to send a password reset email.
func (a *AuthAPI) Reset(ctx context.Context, email string) (*MessageResponse, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	return a.messageCall(ctx, authReset, "reset", &ResetRequest{Email: email})
}

// Refresh exchanges a refresh token. It does not persist anything; the
// transport decides what to store.
func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (*AuthTokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	return a.tokenCall(ctx, authRefresh, "refresh", &RefreshRequest{RefreshToken: refreshToken})
}

// Logout forgets the local session. The backend keeps no session state.
func (a *AuthAPI) Logout() error {
	return a.c.tokens.Clear()
}

func (a *AuthAPI) tokenCall(ctx context.Context, path, op string, body any) (*AuthTokenResponse, error) {
	resp, err := a.c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err := handleAPIError(resp, err, op); err != nil {
		return nil, err
	}

	// decoded by hand: some backends reply with text/plain
	var pair AuthTokenResponse
	if err := jsonUnmarshal(resp.Bytes(), &pair); err != nil {
		return nil, fmt.Errorf("sdk: decode %s response: %w", op, err)
	}
	if pair.Access() == "" {
		return nil, errNoAccessToken
	}
	return &pair, nil
}

func (a *AuthAPI) messageCall(ctx context.Context, path, op string, body any) (*MessageResponse, error) {
	resp, err := a.c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err := handleAPIError(resp, err, op); err != nil {
		return nil, err
	}

	return &MessageResponse{Message: serverMessage(resp.Bytes())}, nil
}

func (a *AuthAPI) persist(pair *AuthTokenResponse, email string) error {
	if pair.Email != "" {
		email = pair.Email
	}
	return a.c.tokens.SetTokens(Tokens{
		AccessToken:  pair.Access(),
		RefreshToken: pair.RefreshToken,
		Email:        email,
	})
}
