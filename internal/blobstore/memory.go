package blobstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps blobs in process memory. Used by tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
	last  time.Time

	Now func() time.Time
}

type memBlob struct {
	meta Blob
	body []byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{blobs: map[string]memBlob{}, Now: time.Now}
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Blob, 0, len(m.blobs))
	for _, b := range m.blobs {
		if strings.HasPrefix(b.meta.Pathname, prefix) {
			out = append(out, b.meta)
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, url string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[url]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b.body...), nil
}

func (m *MemoryStore) Put(_ context.Context, pathname string, body []byte, opts PutOptions) (Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.AddRandomSuffix {
		pathname = withRandomSuffix(pathname)
	}
	// Keep upload times strictly increasing so "newest" is well defined.
	now := m.Now()
	if !now.After(m.last) {
		now = m.last.Add(time.Millisecond)
	}
	m.last = now

	meta := Blob{
		URL:        "memory://" + pathname,
		Pathname:   pathname,
		Size:       int64(len(body)),
		UploadedAt: now,
	}
	m.blobs[meta.URL] = memBlob{meta: meta, body: append([]byte(nil), body...)}
	return meta, nil
}

func (m *MemoryStore) Delete(_ context.Context, urls ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range urls {
		delete(m.blobs, u)
	}
	return nil
}

// Len reports the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
