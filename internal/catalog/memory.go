package catalog

import (
	"context"
	"encoding/json"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var snap Snapshot
	if m.data == nil {
		return snap, nil
	}
	err := json.Unmarshal(m.data, &snap)
	return snap, err
}

func (m *MemoryStore) Save(_ context.Context, s Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = raw
	m.mu.Unlock()
	return nil
}
