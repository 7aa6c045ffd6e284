package userstate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morentube/internal/localstore"
)

func TestBookmarks(t *testing.T) {
	store := localstore.NewMemory()
	b := NewBookmarks(store)
	other := NewBookmarks(store)

	var updates [][]string
	unsub := other.Subscribe(func(ids []string) { updates = append(updates, ids) })
	defer unsub()

	assert.Equal(t, []string{}, b.IDs())

	on, err := b.Toggle("a")
	require.NoError(t, err)
	assert.True(t, on)
	_, err = b.Toggle("b")
	require.NoError(t, err)
	assert.True(t, other.IsBookmarked("a"))

	on, err = b.Toggle("a")
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, []string{"b"}, other.IDs())

	require.NoError(t, b.Clear())
	assert.Empty(t, other.IDs())

	assert.Equal(t, [][]string{{"a"}, {"a", "b"}, {"b"}, {}}, updates)
}

func TestBookmarksCorruptValue(t *testing.T) {
	store := localstore.NewMemory()
	require.NoError(t, store.Set(BookmarksKey, map[string]int{"x": 1}))
	b := NewBookmarks(store)
	assert.Equal(t, []string{}, b.IDs())

	on, err := b.Toggle("x")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"x"}, b.IDs())
}

func TestProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := localstore.Open(path)
	require.NoError(t, err)
	p := NewProgress(store)

	for _, id := range []string{"i1", "i2", "i3"} {
		done, err := p.Toggle(id)
		require.NoError(t, err)
		assert.True(t, done)
	}
	done, err := p.Toggle("i2")
	require.NoError(t, err)
	assert.False(t, done)

	reopened, err := localstore.Open(path)
	require.NoError(t, err)
	p2 := NewProgress(reopened)
	assert.Equal(t, []string{"i1", "i3"}, p2.IDs())
	assert.True(t, p2.IsCompleted("i3"))
	assert.False(t, p2.IsCompleted("i2"))
	assert.Equal(t, 1, p2.CompletedIn([]string{"i2", "i3", "zz"}))
}

func TestStreak(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		visits []time.Time
		want   int
	}{
		{"first visit", []time.Time{day(10, 9)}, 1},
		{"same day twice", []time.Time{day(10, 1), day(10, 23)}, 1},
		{"consecutive days", []time.Time{day(10, 23), day(11, 0), day(12, 12)}, 3},
		{"missed day resets", []time.Time{day(10, 9), day(11, 9), day(13, 9)}, 1},
		{"across month end", []time.Time{time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC), day(1, 8)}, 2},
		{"local time counts in UTC", []time.Time{day(10, 12), time.Date(2026, 3, 11, 1, 0, 0, 0, time.FixedZone("EEST", 3*3600))}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStreak(localstore.NewMemory())
			var got int
			for _, v := range tt.visits {
				var err error
				got, err = s.Check(v)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreakReset(t *testing.T) {
	store := localstore.NewMemory()
	s := NewStreak(store)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := s.Check(now.AddDate(0, 0, -1))
	require.NoError(t, err)
	n, err := s.Check(now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Reset())
	assert.Empty(t, store.Keys())
	n, err = s.Check(now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
