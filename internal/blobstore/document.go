package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Document is one JSON value stored as a chain of blob versions.
//
// Writers in this process are serialized; writers in other processes are not,
// so concurrent instances can still overwrite each other (last write wins).
type Document struct {
	store Store
	name  string
	mu    sync.Mutex
}

func NewDocument(s Store, name string) *Document {
	return &Document{store: s, name: name}
}

func (d *Document) Name() string { return d.name }

// Load decodes the newest version into v. ok is false when no version exists.
func (d *Document) Load(ctx context.Context, v any) (bool, error) {
	_, ok, err := d.load(ctx, v)
	return ok, err
}

func (d *Document) load(ctx context.Context, v any) ([]Blob, bool, error) {
	versions, err := Versions(ctx, d.store, d.name)
	if err != nil {
		return nil, false, fmt.Errorf("list %s: %w", d.name, err)
	}
	if len(versions) == 0 {
		return nil, false, nil
	}
	raw, err := d.store.Get(ctx, versions[0].URL)
	if err != nil {
		return versions, false, fmt.Errorf("fetch %s: %w", d.name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return versions, false, fmt.Errorf("decode %s: %w", d.name, err)
	}
	return versions, true, nil
}

// Update loads the document into v, runs mutate and, if it reports a change,
// writes a new version and deletes the versions it replaced. Failing to delete
// old versions is logged and otherwise ignored.
func (d *Document) Update(ctx context.Context, v any, mutate func() (bool, error)) (Blob, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	old, _, err := d.load(ctx, v)
	if err != nil {
		return Blob{}, false, err
	}

	changed, err := mutate()
	if err != nil || !changed {
		return Blob{}, false, err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return Blob{}, false, fmt.Errorf("encode %s: %w", d.name, err)
	}
	blob, err := d.store.Put(ctx, d.name, body, PutOptions{ContentType: "application/json", AddRandomSuffix: true})
	if err != nil {
		return Blob{}, false, fmt.Errorf("put %s: %w", d.name, err)
	}

	stale := make([]string, 0, len(old))
	for _, b := range old {
		if b.Pathname != blob.Pathname {
			stale = append(stale, b.URL)
		}
	}
	if len(stale) > 0 {
		if err := d.store.Delete(ctx, stale...); err != nil {
			log.Printf("blobstore: gc %s: %v", d.name, err)
		}
	}
	return blob, true, nil
}
