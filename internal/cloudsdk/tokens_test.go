package cloudsdk

import (
	"testing"
	"time"

	"github.com/cloudstore/cloudstore/internal/client/kvstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVTokenStore_RoundTrip(t *testing.T) {
	kv := kvstore.NewMemoryStore()

	store, err := NewKVTokenStore(kv)
	require.NoError(t, err)
	assert.False(t, store.Tokens().LoggedIn())

	want := Tokens{AccessToken: "a1", RefreshToken: "r1", Email: "alice@example.com"}
	require.NoError(t, store.SetTokens(want))

	v, ok, err := kv.Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a1", v)

	reloaded, err := NewKVTokenStore(kv)
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.Tokens())
}

func TestKVTokenStore_ClearDeletesKeys(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store, err := NewKVTokenStore(kv)
	require.NoError(t, err)

	require.NoError(t, store.SetTokens(Tokens{AccessToken: "a", RefreshToken: "r", Email: "e@x.io"}))
	require.NoError(t, store.Clear())

	for _, key := range []string{"token", "refreshToken", "userEmail"} {
		_, ok, err := kv.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	require.NoError(t, err)
	return s
}

func TestInspectToken(t *testing.T) {
	now := time.Now()
	token := signed(t, &TokenClaims{
		Type:  AccessToken,
		Email: "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	claims, err := InspectToken(token)
	require.NoError(t, err)
	assert.Equal(t, AccessToken, claims.Type)
	assert.Equal(t, "alice@example.com", claims.Identity())
	assert.False(t, claims.Expired(now, time.Minute))
	assert.True(t, claims.Expired(now.Add(2*time.Hour), 0))
}

func TestInspectToken_SubjectFallbackAndNoExpiry(t *testing.T) {
	claims, err := InspectToken(signed(t, &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob@example.com"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Identity())
	assert.False(t, claims.Expired(time.Now().Add(100*365*24*time.Hour), 0))
}

func TestInspectToken_Garbage(t *testing.T) {
	_, err := InspectToken("not.a.jwt")
	assert.Error(t, err)
}
