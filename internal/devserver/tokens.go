package devserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

func newToken(subject, issuer, secret string, expiry time.Duration, tokenType TokenType) (string, string, error) {
	var expiresAt *jwt.NumericDate
	if expiry > 0 {
		expiresAt = jwt.NewNumericDate(time.Now().Add(expiry))
	}

	id := uuid.New().String()
	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return signed, id, nil
}

func parseClaims(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// tokenIssuer signs token pairs and remembers which access tokens are live,
// so a test can expire every session at once.
type tokenIssuer struct {
	config *Config

	mu   sync.Mutex
	live map[string]struct{}
}

func newTokenIssuer(config *Config) *tokenIssuer {
	return &tokenIssuer{
		config: config,
		live:   make(map[string]struct{}),
	}
}

func (t *tokenIssuer) issue(subject string) (access string, refresh string, err error) {
	access, id, err := newToken(subject, t.config.TokenIssuer, t.config.AccessTokenSecret, t.config.AccessTokenExpiry, AccessToken)
	if err != nil {
		return "", "", fmt.Errorf("access token: %w", err)
	}

	refresh, _, err = newToken(subject, t.config.TokenIssuer, t.config.RefreshTokenSecret, t.config.RefreshTokenExpiry, RefreshToken)
	if err != nil {
		return "", "", fmt.Errorf("refresh token: %w", err)
	}

	t.mu.Lock()
	t.live[id] = struct{}{}
	t.mu.Unlock()

	return access, refresh, nil
}

func (t *tokenIssuer) validateAccess(token string) (*Claims, error) {
	claims, err := t.validate(token, t.config.AccessTokenSecret, AccessToken)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	_, ok := t.live[claims.ID]
	t.mu.Unlock()
	if !ok {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (t *tokenIssuer) validateRefresh(token string) (*Claims, error) {
	return t.validate(token, t.config.RefreshTokenSecret, RefreshToken)
}

func (t *tokenIssuer) validate(token, secret string, want TokenType) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := parseClaims(token, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidToken, claims.Type)
	}
	return claims, nil
}

// revokeAccess forgets every issued access token. Refresh tokens stay good.
func (t *tokenIssuer) revokeAccess() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.live)
	clear(t.live)
	return n
}
