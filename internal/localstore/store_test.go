package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("ids", []string{"a", "b"}))
	require.NoError(t, s.Set("count", 3))

	reopened, err := Open(path)
	require.NoError(t, err)

	var ids []string
	ok, err := reopened.Get("ids", &ids)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []string{"count", "ids"}, reopened.Keys())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreGetMissingAndRemove(t *testing.T) {
	s := NewMemory()

	var n int
	ok, err := s.Get("missing", &n)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("n", 7))
	require.NoError(t, s.Remove("n"))
	require.NoError(t, s.Remove("n"))
	ok, _ = s.Get("n", &n)
	assert.False(t, ok)
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))
	_, err := Open(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.Keys())
}

func TestStoreSubscribe(t *testing.T) {
	s := NewMemory()

	var keyCalls, eventCalls int
	unsubKey := s.Subscribe("k", func() { keyCalls++ })
	unsubEvent := s.Subscribe("changed", func() {
		// Callbacks may read the store.
		var v int
		_, _ = s.Get("k", &v)
		eventCalls++
	})

	require.NoError(t, s.Set("k", 1))
	require.NoError(t, s.Set("other", 1))
	s.Emit("changed")
	assert.Equal(t, 1, keyCalls)
	assert.Equal(t, 1, eventCalls)

	require.NoError(t, s.Remove("k"))
	assert.Equal(t, 2, keyCalls)

	unsubKey()
	unsubKey()
	unsubEvent()
	require.NoError(t, s.Set("k", 2))
	s.Emit("changed")
	assert.Equal(t, 2, keyCalls)
	assert.Equal(t, 1, eventCalls)
}
