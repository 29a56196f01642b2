package contentindex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndexEmptyHasNoMatch(t *testing.T) {
	idx := NewMemoryIndex()
	_, found, err := idx.Nearest(context.Background(), "anything at all", nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryIndexDuplicateDetection(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Insert(ctx, Post{
		ID: "p1", UserID: "0xUserA",
		Text: "The community garden opens this weekend, bring your own seeds!",
	}))

	// Identical text sits at distance ~0
	m, found, err := idx.Nearest(ctx, "The community garden opens this weekend, bring your own seeds!", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "p1", m.PostID)
	assert.InDelta(t, 0, m.Distance, 1e-9)

	// Unrelated text is far away
	m, found, err = idx.Nearest(ctx, "Quarterly protocol fee revenue hit a new high in July.", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Greater(t, m.Distance, 0.5)
}

func TestMemoryIndexInsertConflict(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Insert(ctx, Post{ID: "p1", UserID: "0xUserA", Text: "hello world"}))
	err := idx.Insert(ctx, Post{ID: "p1", UserID: "0xUserB", Text: "different text"})
	assert.ErrorIs(t, err, ErrConflict)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryIndexDeleteOwnerMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Insert(ctx, Post{ID: "p1", UserID: "0xUserA", Text: "hello world"}))

	assert.ErrorIs(t, idx.Delete(ctx, "p1", "0xUserB"), ErrNotFound)
	assert.ErrorIs(t, idx.Delete(ctx, "missing", "0xUserA"), ErrNotFound)
	assert.NoError(t, idx.Delete(ctx, "p1", "0xUserA"))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHTTPIndexInsertConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/posts", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	idx := NewHTTPIndex(srv.URL, 0)
	idx.SetClient(srv.Client())
	err := idx.Insert(context.Background(), Post{ID: "p1", UserID: "0xUserA", Text: "hi there"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestHTTPIndexNearest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nearest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found":true,"post_id":"p9","distance":0.07}`))
	}))
	defer srv.Close()

	idx := NewHTTPIndex(srv.URL, 0)
	idx.SetClient(srv.Client())
	m, found, err := idx.Nearest(context.Background(), "some text", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "p9", m.PostID)
	assert.InDelta(t, 0.07, m.Distance, 1e-9)
}

func TestHTTPIndexDeleteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	idx := NewHTTPIndex(srv.URL, 0)
	idx.SetClient(srv.Client())
	assert.ErrorIs(t, idx.Delete(context.Background(), "p1", "0xUserA"), ErrNotFound)
}
