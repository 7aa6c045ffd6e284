package blobstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the same document flow against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	name := "test_doc_" + t.Name() + ".json"
	doc := NewDocument(store, name)

	for _, v := range []string{"a", "b"} {
		v := v
		var cur []string
		_, _, err := doc.Update(ctx, &cur, func() (bool, error) {
			cur = append(cur, v)
			return true, nil
		})
		require.NoError(t, err)
	}

	var got []string
	ok, err := doc.Load(ctx, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	versions, err := Versions(ctx, store, name)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.NoError(t, store.Delete(ctx, versions[0].URL))

	_, err = store.Get(ctx, versions[0].URL)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping test: TEST_REDIS_URL not set")
	}
	client, err := DialRedis(context.Background(), url)
	if err != nil {
		t.Skip("Skipping test: redis not available")
	}
	defer client.Close()
	exerciseStore(t, NewRedis(client))
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping test: TEST_DATABASE_URL not set")
	}
	store, err := ConnectPostgres(context.Background(), url)
	if err != nil {
		t.Skip("Skipping test: database not available")
	}
	defer store.Close()
	exerciseStore(t, store)
}
