package userstate

import "morentube/internal/localstore"

const (
	BookmarksKey   = "morentube_bookmarked_items"
	BookmarksEvent = "bookmarks_updated"
)

type Bookmarks struct {
	set idSet
}

func NewBookmarks(store *localstore.Store) *Bookmarks {
	return &Bookmarks{set: idSet{store: store, key: BookmarksKey, event: BookmarksEvent}}
}

func (b *Bookmarks) IDs() []string { return b.set.load() }

func (b *Bookmarks) IsBookmarked(itemID string) bool { return b.set.has(itemID) }

// Toggle bookmarks itemID or removes the bookmark. It reports the new state.
func (b *Bookmarks) Toggle(itemID string) (bool, error) { return b.set.toggle(itemID) }

func (b *Bookmarks) Clear() error { return b.set.save([]string{}) }

// Subscribe calls fn after every change made through any Bookmarks sharing
// the store.
func (b *Bookmarks) Subscribe(fn func(ids []string)) (unsubscribe func()) {
	return b.set.store.Subscribe(BookmarksEvent, func() { fn(b.IDs()) })
}
