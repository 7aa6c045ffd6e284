// Package catalog stores the categories and items shown in the Mini App.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

type ItemType string

const (
	ItemYouTube ItemType = "youtube"
	ItemLink    ItemType = "link"
	ItemText    ItemType = "text"
)

const (
	KeyCategories = "categories"
	KeyItems      = "items"
)

var ErrNotConfigured = errors.New("catalog store is not configured")

type Category struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverImage  string `json:"coverImage"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
}

type Item struct {
	ID         string   `json:"id"`
	CategoryID string   `json:"categoryId"`
	Type       ItemType `json:"type"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	URL        string   `json:"url,omitempty"`
	Thumbnail  string   `json:"thumbnail,omitempty"`
}

// Snapshot is the whole catalog. Nil slices mean the key was never written.
type Snapshot struct {
	Categories []Category `json:"categories"`
	Items      []Item     `json:"items"`
}

type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// UpstreamError carries a non-2xx answer from a hosted store.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog upstream error (status: %d): %s", e.Status, string(e.Body))
}

// Validate checks item types.
func (s Snapshot) Validate() error {
	for _, it := range s.Items {
		switch it.Type {
		case ItemYouTube, ItemLink, ItemText, "":
		default:
			return fmt.Errorf("item %q: unknown type %q", it.ID, it.Type)
		}
	}
	return nil
}

// DeleteCategory removes a category together with the items that belong to it.
func (s Snapshot) DeleteCategory(id string) (Snapshot, bool) {
	out := Snapshot{}
	found := false
	for _, c := range s.Categories {
		if c.ID == id {
			found = true
			continue
		}
		out.Categories = append(out.Categories, c)
	}
	for _, it := range s.Items {
		if it.CategoryID == id {
			continue
		}
		out.Items = append(out.Items, it)
	}
	if out.Categories == nil && s.Categories != nil {
		out.Categories = []Category{}
	}
	if out.Items == nil && s.Items != nil {
		out.Items = []Item{}
	}
	return out, found
}

// ItemsIn lists the items of one category in stored order.
func (s Snapshot) ItemsIn(categoryID string) []Item {
	var out []Item
	for _, it := range s.Items {
		if it.CategoryID == categoryID {
			out = append(out, it)
		}
	}
	return out
}
