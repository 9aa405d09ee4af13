package asset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobsPutReadDelete(t *testing.T) {
	b := NewBlobs(t.TempDir(), nil)

	ref, err := b.PutTemplate([]byte("png-bytes"), "PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "templates/template_"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	data, err := b.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, b.Delete(ref))
	_, err = b.Read(ref)
	assert.Error(t, err)
	assert.NoError(t, b.Delete(ref), "deleting twice is fine")
}

func TestBlobsArtifactsAreUnique(t *testing.T) {
	b := NewBlobs(t.TempDir(), nil)

	a, err := b.PutArtifact([]byte("one"))
	require.NoError(t, err)
	c, err := b.PutArtifact([]byte("one"))
	require.NoError(t, err)

	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "artifacts/merged_menu_"))
}

func TestBlobsRejectEscapingRefs(t *testing.T) {
	b := NewBlobs(t.TempDir(), nil)
	for _, ref := range []string{"", "../etc/passwd", "/etc/passwd", "templates/../../x", `..\x`, "."} {
		_, err := b.Read(ref)
		assert.ErrorIs(t, err, ErrBadRef, ref)
	}
}

func TestBlobsRemoteWithoutFetcher(t *testing.T) {
	b := NewBlobs(t.TempDir(), nil)
	_, err := b.Load(context.Background(), "https://cdn.example.com/t.png")
	assert.Error(t, err)
	assert.NoError(t, b.Delete("https://cdn.example.com/t.png"))
}

func TestFetcherUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("template-v1"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	ctx := context.Background()

	first, err := f.Fetch(ctx, srv.URL+"/summer/1.png")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, []byte("template-v1"), first.Body)

	second, err := f.Fetch(ctx, srv.URL+"/summer/1.png")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcherFallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("dates"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	b := NewBlobs(t.TempDir(), f)
	ctx := context.Background()

	data, err := b.Load(ctx, srv.URL+"/dates.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("dates"), data)

	fail.Store(true)
	data, err = b.Load(ctx, srv.URL+"/dates.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("dates"), data)

	_, err = b.Load(ctx, srv.URL+"/never-fetched.png")
	assert.ErrorContains(t, err, "502")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/...(redacted)", redactURL("https://cdn.example.com/a/b.png?sig=abc"))
	assert.Equal(t, "...(redacted)", redactURL("not a url"))
}
