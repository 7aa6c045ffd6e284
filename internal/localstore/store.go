// Package localstore is the client side key-value storage of the Mini App:
// one JSON document on disk holding every key, plus in-process change
// notifications for components that share it.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultPath is where the terminal client keeps its state.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "morentube_state.json"
	}
	return filepath.Join(home, ".morentube", "state.json")
}

type Store struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage

	subMu  sync.Mutex
	subs   map[string]map[int]func()
	nextID int
}

// Open loads the file at path. A missing file is an empty store; the file is
// created on the first write. An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: map[string]json.RawMessage{}, subs: map[string]map[int]func(){}}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.data == nil {
		s.data = map[string]json.RawMessage{}
	}
	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory() *Store {
	s, _ := Open("")
	return s
}

func (s *Store) Path() string { return s.path }

// Get decodes key into v. It reports false when the key is absent.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores v under key, writes the file and notifies subscribers of key.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	s.mu.Lock()
	s.data[key] = raw
	err = s.flushLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.Emit(key)
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.data, key)
	err := s.flushLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.Emit(key)
	return nil
}

func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subscribe registers fn for a key or a named event. Callbacks run
// synchronously on the goroutine that caused the change and must not block.
func (s *Store) Subscribe(name string, fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	if s.subs[name] == nil {
		s.subs[name] = map[int]func(){}
	}
	s.subs[name][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs[name], id)
			if len(s.subs[name]) == 0 {
				delete(s.subs, name)
			}
			s.subMu.Unlock()
		})
	}
}

// Emit calls the subscribers of name.
func (s *Store) Emit(name string) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs[name]))
	for id := range s.subs[name] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[name][id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// flushLocked rewrites the whole file through a temp file in the same
// directory. Caller holds s.mu.
func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
