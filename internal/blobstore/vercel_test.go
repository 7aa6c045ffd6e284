package blobstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlobAPI mimics the list/put/delete/download surface of Vercel Blob.
type fakeBlobAPI struct {
	mu     sync.Mutex
	srv    *httptest.Server
	blobs  map[string]Blob
	bodies map[string][]byte
	seq    int
}

func newFakeBlobAPI(t *testing.T) *fakeBlobAPI {
	f := &fakeBlobAPI{blobs: map[string]Blob{}, bodies: map[string][]byte{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBlobAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"forbidden"}}`))
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		prefix := r.URL.Query().Get("prefix")
		out := vercelListResponse{Blobs: []Blob{}}
		for _, b := range f.blobs {
			if strings.HasPrefix(b.Pathname, prefix) {
				out.Blobs = append(out.Blobs, b)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/files/"):
		body, ok := f.bodies[strings.TrimPrefix(r.URL.Path, "/files/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	case r.Method == http.MethodPut:
		pathname := strings.TrimPrefix(r.URL.Path, "/")
		if r.Header.Get("x-add-random-suffix") == "1" {
			f.seq++
			pathname = strings.TrimSuffix(pathname, ".json") + "-v" + string(rune('a'+f.seq)) + ".json"
		}
		body, _ := io.ReadAll(r.Body)
		b := Blob{
			URL:        f.srv.URL + "/files/" + pathname,
			Pathname:   pathname,
			UploadedAt: time.Unix(int64(1700000000+f.seq), 0).UTC(),
		}
		f.blobs[b.URL] = b
		f.bodies[pathname] = body
		_ = json.NewEncoder(w).Encode(b)
	case r.Method == http.MethodPost && r.URL.Path == "/delete":
		var req struct {
			URLs []string `json:"urls"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, u := range req.URLs {
			if b, ok := f.blobs[u]; ok {
				delete(f.bodies, b.Pathname)
				delete(f.blobs, u)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestVercelStoreDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeBlobAPI(t)
	store := NewVercel("tok", api.srv.URL)
	doc := NewDocument(store, "leaderboard.json")

	for i := 1; i <= 3; i++ {
		var scores []int
		_, changed, err := doc.Update(ctx, &scores, func() (bool, error) {
			scores = append(scores, i)
			return true, nil
		})
		require.NoError(t, err)
		require.True(t, changed)
	}

	var scores []int
	ok, err := doc.Load(ctx, &scores)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, scores)

	blobs, err := store.List(ctx, "leaderboard")
	require.NoError(t, err)
	assert.Len(t, blobs, 1)
}

func TestVercelStoreErrors(t *testing.T) {
	ctx := context.Background()
	api := newFakeBlobAPI(t)

	_, err := NewVercel("wrong", api.srv.URL).List(ctx, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: 403")

	_, err = NewVercel("tok", api.srv.URL).Get(ctx, api.srv.URL+"/files/nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}
