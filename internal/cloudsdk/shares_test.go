package cloudsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShares(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /share/user", func(w http.ResponseWriter, r *http.Request) {
		var body ShareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bob@example.com", body.TargetEmail)
		writeJSON(w, http.StatusCreated, `{"id":"s1","s3Key":"`+body.S3Key+`","targetEmail":"bob@example.com"}`)
	})
	mux.HandleFunc("GET /share/with-me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":3,"fileName":"x.txt","sharedBy":"carol@example.com"}]`)
	})
	mux.HandleFunc("DELETE /share/{shareId}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s1", r.PathValue("shareId"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /share/link", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"url":"http://x/public/abc"}`)
	})

	c, _ := newTestClient(t, mux, Tokens{AccessToken: "a1"})
	ctx := context.Background()

	share, err := c.Shares.ShareWithUser(ctx, &ShareRequest{S3Key: "k1", TargetEmail: "Bob@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "s1", share.ID)

	records, err := c.Shares.SharedWithMe(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "carol@example.com", records[0].SharedBy)

	require.NoError(t, c.Shares.Revoke(ctx, "s1"))
	assert.ErrorIs(t, c.Shares.Revoke(ctx, ""), ErrMissingShareID)

	link, err := c.Shares.CreatePublicLink(ctx, &PublicLinkRequest{S3Key: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "http://x/public/abc", link.URL)
}

func TestActivity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /activity", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"action":"upload","target":"a.txt"}]`)
	})
	mux.HandleFunc("GET /activity/all", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"error":"admins only"}`)
	})

	c, _ := newTestClient(t, mux, Tokens{AccessToken: "a1"})

	events, err := c.Activity.Mine(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "upload", events[0].Action)

	_, err = c.Activity.All(context.Background())
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.Equal(t, "admins only", MessageOr(err, ""))
}
