package devserver

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
users:
  - email: Alice@Example.com
    name: Alice
    password: hunter22
    admin: true
  - email: bob@example.com
    password: hunter22
files:
  - owner: alice@example.com
    name: docs/readme.txt
    content: hello
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, seed.Users, 2)
	assert.True(t, seed.Users[0].Admin)
	assert.Equal(t, "docs/readme.txt", seed.Files[0].Name)

	empty, err := ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Users)

	_, err = ParseSeed(strings.NewReader("userz: []"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	srv := newTestServer(t, func(c *Config) { c.SeedFile = path })

	// seeded accounts are verified and seeded admins can read everything
	tok := signIn(t, srv, alice)
	files := listing(t, srv, "/file/list", tok.Token)
	require.Len(t, files, 1)
	assert.Equal(t, "docs/readme.txt", files[0].DisplayName)
	assert.Equal(t, int64(len("hello")), files[0].Size)

	w := do(t, srv, http.MethodGet, "/activity/all", tok.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	bobTok := signIn(t, srv, bob)
	w = do(t, srv, http.MethodGet, "/activity/all", bobTok.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestApplySeed_Errors(t *testing.T) {
	srv := newTestServer(t)

	err := srv.ApplySeed(&Seed{Users: []SeedUser{{Email: "not-an-email", Password: "x"}}})
	assert.Error(t, err)

	err = srv.ApplySeed(&Seed{Users: []SeedUser{{Email: alice}}})
	assert.ErrorContains(t, err, "password is required")

	err = srv.ApplySeed(&Seed{Files: []SeedFile{{Owner: "ghost@example.com", Name: "a.txt"}}})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = New(&Config{
		AccessTokenSecret:  "a",
		RefreshTokenSecret: "r",
		SeedFile:           filepath.Join(t.TempDir(), "missing.yaml"),
	})
	assert.Error(t, err)
}

func TestSecureHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	// plain http: no HSTS
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
