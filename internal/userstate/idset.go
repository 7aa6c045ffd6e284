// Package userstate keeps per-device reading state: bookmarks, finished
// items and the daily login streak.
package userstate

import (
	"log"

	"morentube/internal/localstore"
)

// idSet is an ordered list of item ids persisted under one key.
type idSet struct {
	store *localstore.Store
	key   string
	event string
}

func (s idSet) load() []string {
	var ids []string
	if _, err := s.store.Get(s.key, &ids); err != nil {
		log.Printf("userstate: failed to parse %s: %v", s.key, err)
		return []string{}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func (s idSet) save(ids []string) error {
	if err := s.store.Set(s.key, ids); err != nil {
		return err
	}
	if s.event != "" {
		s.store.Emit(s.event)
	}
	return nil
}

func (s idSet) has(id string) bool {
	for _, v := range s.load() {
		if v == id {
			return true
		}
	}
	return false
}

// toggle adds id at the end or removes it, and reports whether it is now
// present.
func (s idSet) toggle(id string) (bool, error) {
	ids := s.load()
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	return !found, s.save(out)
}
