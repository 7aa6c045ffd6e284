package userstate

import "morentube/internal/localstore"

const ProgressKey = "twa_user_progress_items"

// Progress tracks which catalog items the user marked as done.
type Progress struct {
	set idSet
}

func NewProgress(store *localstore.Store) *Progress {
	return &Progress{set: idSet{store: store, key: ProgressKey}}
}

func (p *Progress) IDs() []string { return p.set.load() }

func (p *Progress) IsCompleted(itemID string) bool { return p.set.has(itemID) }

func (p *Progress) Toggle(itemID string) (bool, error) { return p.set.toggle(itemID) }

// CompletedIn counts how many of itemIDs are done.
func (p *Progress) CompletedIn(itemIDs []string) int {
	done := map[string]bool{}
	for _, id := range p.set.load() {
		done[id] = true
	}
	n := 0
	for _, id := range itemIDs {
		if done[id] {
			n++
		}
	}
	return n
}
