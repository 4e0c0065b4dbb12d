package refresh

import (
	"sync"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

// LiveState is the in-memory "currently loaded" category and item lists the
// UI renders from. The bulk refresh resets it and repopulates categories; the
// lazy loader merges fetched items into it. It is deliberately independent of
// the cache store: eviction or re-fetch in the cache never mutates what the
// user is currently looking at.
type LiveState struct {
	mu         sync.RWMutex
	categories map[catalog.Kind][]catalog.Category
	items      map[catalog.Kind][]catalog.Item
}

func NewLiveState() *LiveState {
	return &LiveState{
		categories: make(map[catalog.Kind][]catalog.Category),
		items:      make(map[catalog.Kind][]catalog.Item),
	}
}

// Reset clears every kind's categories and items (refresh step "clear").
func (l *LiveState) Reset() {
	l.mu.Lock()
	l.categories = make(map[catalog.Kind][]catalog.Category)
	l.items = make(map[catalog.Kind][]catalog.Item)
	l.mu.Unlock()
}

// SetCategories replaces one kind's category list.
func (l *LiveState) SetCategories(kind catalog.Kind, cats []catalog.Category) {
	cp := make([]catalog.Category, len(cats))
	copy(cp, cats)
	l.mu.Lock()
	l.categories[kind] = cp
	l.mu.Unlock()
}

// Categories returns a copy of one kind's category list.
func (l *LiveState) Categories(kind catalog.Kind) []catalog.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]catalog.Category, len(l.categories[kind]))
	copy(out, l.categories[kind])
	return out
}

// MergeItems merges fetched items into one kind's list by id: existing ids
// are overwritten in place, new ids are appended. Items loaded earlier for
// other categories are never dropped.
func (l *LiveState) MergeItems(kind catalog.Kind, items []catalog.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	existing := l.items[kind]
	index := make(map[int]int, len(existing))
	for i, it := range existing {
		index[it.ItemID()] = i
	}
	for _, it := range items {
		if i, ok := index[it.ItemID()]; ok {
			existing[i] = it
			continue
		}
		index[it.ItemID()] = len(existing)
		existing = append(existing, it)
	}
	l.items[kind] = existing
}

// Items returns a copy of one kind's current item list.
func (l *LiveState) Items(kind catalog.Kind) []catalog.Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]catalog.Item, len(l.items[kind]))
	copy(out, l.items[kind])
	return out
}
