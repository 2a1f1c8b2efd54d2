package cloudsdk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/kvstore"
	"github.com/golang-jwt/jwt/v5"
)

// local storage keys, shared with the web client
const (
	keyAccessToken  = "token"
	keyRefreshToken = "refreshToken"
	keyUserEmail    = "userEmail"
)

type Tokens struct {
	AccessToken  string
	RefreshToken string
	Email        string
}

func (t Tokens) LoggedIn() bool {
	return t.AccessToken != ""
}

type TokenStore interface {
	Tokens() Tokens
	SetTokens(Tokens) error
	Clear() error
}

// MemoryTokenStore keeps tokens for the lifetime of the process.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens Tokens
}

func NewMemoryTokenStore(t Tokens) *MemoryTokenStore {
	return &MemoryTokenStore{tokens: t}
}

func (m *MemoryTokenStore) Tokens() Tokens {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens
}

func (m *MemoryTokenStore) SetTokens(t Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = t
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	return m.SetTokens(Tokens{})
}

// KVTokenStore persists tokens in the local key/value store and keeps a
// copy in memory so reads never hit the disk.
type KVTokenStore struct {
	mu     sync.RWMutex
	kv     kvstore.Store
	tokens Tokens
}

// NewKVTokenStore loads whatever tokens are persisted. A read error leaves
// the store logged out.
func NewKVTokenStore(kv kvstore.Store) (*KVTokenStore, error) {
	s := &KVTokenStore{kv: kv}

	var errs []error
	read := func(key string) string {
		v, _, err := kv.Get(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	s.tokens = Tokens{
		AccessToken:  read(keyAccessToken),
		RefreshToken: read(keyRefreshToken),
		Email:        read(keyUserEmail),
	}

	if err := errors.Join(errs...); err != nil {
		s.tokens = Tokens{}
		return s, fmt.Errorf("load tokens: %w", err)
	}
	return s, nil
}

func (s *KVTokenStore) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *KVTokenStore) SetTokens(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range map[string]string{
		keyAccessToken:  t.AccessToken,
		keyRefreshToken: t.RefreshToken,
		keyUserEmail:    t.Email,
	} {
		var err error
		if value == "" {
			err = s.kv.Delete(key)
		} else {
			err = s.kv.Set(key, value)
		}
		if err != nil {
			return fmt.Errorf("save tokens: %w", err)
		}
	}

	s.tokens = t
	return nil
}

func (s *KVTokenStore) Clear() error {
	return s.SetTokens(Tokens{})
}

type AuthTokenType string

const (
	AccessToken  AuthTokenType = "access"
	RefreshToken AuthTokenType = "refresh"
)

// TokenClaims is the part of a token payload the client looks at.
type TokenClaims struct {
	Type  AuthTokenType `json:"type,omitempty"`
	Email string        `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the email claim when present, else the subject.
func (c *TokenClaims) Identity() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

// Expired reports whether the token expires before now+leeway. A token
// without an exp claim never expires.
func (c *TokenClaims) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(leeway).Before(c.ExpiresAt.Time)
}

// InspectToken decodes a JWT payload without verifying its signature. Only
// the backend can verify; the client only reads exp and the identity.
func InspectToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("inspect token: %w", err)
	}
	return claims, nil
}
