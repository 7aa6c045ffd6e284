package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Snapshot {
	return Snapshot{
		Categories: []Category{
			{ID: "c1", Title: "Монтаж", CoverImage: "https://img/1.png"},
			{ID: "c2", Title: "Закрите", IsPrivate: true},
		},
		Items: []Item{
			{ID: "i1", CategoryID: "c1", Type: ItemYouTube, Title: "Урок", Content: "dQw4w9WgXcQ"},
			{ID: "i2", CategoryID: "c2", Type: ItemLink, Title: "Посилання", URL: "https://t.me"},
			{ID: "i3", CategoryID: "c1", Type: ItemText, Title: "Нотатка", Content: "..."},
		},
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	out, found := sample().DeleteCategory("c1")
	assert.True(t, found)
	require.Len(t, out.Categories, 1)
	assert.Equal(t, "c2", out.Categories[0].ID)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "i2", out.Items[0].ID)

	_, found = sample().DeleteCategory("missing")
	assert.False(t, found)

	empty, _ := Snapshot{Categories: []Category{{ID: "x"}}, Items: []Item{}}.DeleteCategory("x")
	assert.NotNil(t, empty.Categories)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, sample().Validate())
	bad := sample()
	bad.Items[0].Type = "video"
	assert.Error(t, bad.Validate())
}

func TestItemsIn(t *testing.T) {
	assert.Len(t, sample().ItemsIn("c1"), 2)
	assert.Empty(t, sample().ItemsIn("nope"))
}

func TestMemoryStoreNullUntilWritten(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	snap, err := m.Load(ctx)
	require.NoError(t, err)
	raw, _ := json.Marshal(snap)
	assert.JSONEq(t, `{"categories":null,"items":null}`, string(raw))

	require.NoError(t, m.Save(ctx, sample()))
	snap, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample(), snap)
}

func TestEdgeConfigStore(t *testing.T) {
	ctx := context.Background()
	var patched edgeConfigPatch
	var patchPath, patchTeam string

	read := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer read-tok" || r.URL.Path != "/ecfg_1/items" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"categories":[{"id":"c1","title":"A","description":"","coverImage":""}],"greeting":"hi"}`))
	}))
	defer read.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.Header.Get("Authorization") != "Bearer api-tok" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":"forbidden","message":"Not authorized"}}`))
			return
		}
		patchPath = r.URL.Path
		patchTeam = r.URL.Query().Get("teamId")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &patched)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer api.Close()

	store := NewEdgeConfig("ecfg_1", "read-tok", "api-tok", "team_9")
	store.ReadURL = read.URL
	store.APIURL = api.URL

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Categories, 1)
	assert.Nil(t, snap.Items)

	require.NoError(t, store.Save(ctx, sample()))
	assert.Equal(t, "/v1/edge-config/ecfg_1/items", patchPath)
	assert.Equal(t, "team_9", patchTeam)
	require.Len(t, patched.Items, 2)
	assert.Equal(t, "upsert", patched.Items[0].Operation)
	assert.Equal(t, KeyCategories, patched.Items[0].Key)
	assert.Equal(t, KeyItems, patched.Items[1].Key)

	store.APIToken = "wrong"
	err = store.Save(ctx, sample())
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusForbidden, upstream.Status)

	store.APIToken = ""
	assert.ErrorIs(t, store.Save(ctx, sample()), ErrNotConfigured)
}

func TestLibsqlStore(t *testing.T) {
	url := os.Getenv("TEST_LIBSQL_URL")
	if url == "" {
		t.Skip("Skipping test: TEST_LIBSQL_URL not set")
	}
	ctx := context.Background()
	store, err := OpenLibsql(ctx, url, os.Getenv("TEST_LIBSQL_AUTH_TOKEN"))
	if err != nil {
		t.Skip("Skipping test: libsql not available")
	}
	defer store.Close()

	require.NoError(t, store.Save(ctx, sample()))
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample(), snap)
}

func TestLibsqlDSN(t *testing.T) {
	dsn, err := libsqlDSN("libsql://db.turso.io", "")
	require.NoError(t, err)
	assert.Equal(t, "libsql://db.turso.io", dsn)

	token := "ey.J&x=y+z/"
	dsn, err = libsqlDSN("libsql://db.turso.io?tls=1", token)
	require.NoError(t, err)
	u, err := neturl.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.turso.io", u.Host)
	assert.Equal(t, token, u.Query().Get("authToken"))
	assert.Equal(t, "1", u.Query().Get("tls"))
	assert.Len(t, u.Query(), 2)
}
