// Package registry tracks the Telegram chats that started the bot. The list is
// the recipient set for broadcasts.
package registry

import (
	"context"

	"morentube/internal/blobstore"
)

const FileName = "chat_ids.json"

type Registry struct {
	doc *blobstore.Document
}

func New(store blobstore.Store) *Registry {
	return &Registry{doc: blobstore.NewDocument(store, FileName)}
}

// Add appends chatID unless it is already present.
func (r *Registry) Add(ctx context.Context, chatID int64) (bool, error) {
	var ids []int64
	_, added, err := r.doc.Update(ctx, &ids, func() (bool, error) {
		for _, id := range ids {
			if id == chatID {
				return false, nil
			}
		}
		ids = append(ids, chatID)
		return true, nil
	})
	return added, err
}

// All returns every registered chat in insertion order.
func (r *Registry) All(ctx context.Context) ([]int64, error) {
	var ids []int64
	if _, err := r.doc.Load(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
