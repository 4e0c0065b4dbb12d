package resolve

import (
	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/groups"
	"github.com/iptvdeck/iptv-deck/internal/visibility"
)

// ItemSource is the live in-memory item list (what the user has loaded this
// session).
type ItemSource interface {
	Items(kind catalog.Kind) []catalog.Item
}

// CacheReader is the read side of the cache store.
type CacheReader interface {
	AllItems(serverID string, kind catalog.Kind) ([]catalog.Item, bool)
}

// Resolver turns favorite ids and history entries back into full items by
// looking them up in the live list first and the cache second, and suppresses
// favorites whose category (and every containing group) is hidden.
type Resolver struct {
	Cache      CacheReader
	Live       ItemSource
	Visibility *visibility.Filter
	Groups     *groups.Manager
	Favorites  *Favorites
	History    *History
}

// index builds an id lookup for one kind. Cache items go in first, then live
// items overwrite them: when both know an item, the in-memory copy wins.
func (r *Resolver) index(serverID string, kind catalog.Kind) map[int]catalog.Item {
	idx := make(map[int]catalog.Item)
	if r.Cache != nil {
		if items, ok := r.Cache.AllItems(serverID, kind); ok {
			for _, it := range items {
				idx[it.ItemID()] = it
			}
		}
	}
	if r.Live != nil {
		for _, it := range r.Live.Items(kind) {
			idx[it.ItemID()] = it
		}
	}
	return idx
}

// itemVisible reports whether a favorite should surface: its own category is
// visible, or it belongs to at least one visible custom group of the kind.
func (r *Resolver) itemVisible(serverID string, kind catalog.Kind, item catalog.Item) bool {
	if r.Visibility == nil {
		return true
	}
	if r.Visibility.IsVisible(serverID, kind, catalog.CategoryKey(item.ItemCategory())) {
		return true
	}
	if r.Groups == nil {
		return false
	}
	for _, g := range r.Groups.Groups(serverID) {
		if g.Kind != kind || !g.Contains(item.ItemID()) {
			continue
		}
		if r.Visibility.IsVisible(serverID, kind, g.ID) {
			return true
		}
	}
	return false
}

// ResolveFavorites returns the favorite items of one kind, in addition order.
// Ids that resolve to nothing (item gone from provider and cache) are
// skipped, as are items hidden by the visibility filter.
func (r *Resolver) ResolveFavorites(serverID string, kind catalog.Kind) []catalog.Item {
	idx := r.index(serverID, kind)
	ids := r.Favorites.IDs(serverID, kind)
	out := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		item, ok := idx[id]
		if !ok {
			continue
		}
		if !r.itemVisible(serverID, kind, item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// HistoryItem pairs a history entry with its resolved item. Item is nil when
// the content no longer resolves; the entry still carries name-independent
// state (id, kind, resume position).
type HistoryItem struct {
	Entry HistoryEntry
	Item  catalog.Item
}

// ResolveHistory returns the watch history, most recent first, with items
// resolved where possible. History is not visibility-filtered: what the user
// watched stays listed even if they later hid the category.
func (r *Resolver) ResolveHistory(serverID string) []HistoryItem {
	entries := r.History.Entries(serverID)
	indexes := make(map[catalog.Kind]map[int]catalog.Item)
	out := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		idx, ok := indexes[e.Kind]
		if !ok {
			idx = r.index(serverID, e.Kind)
			indexes[e.Kind] = idx
		}
		out = append(out, HistoryItem{Entry: e, Item: idx[e.ContentID]})
	}
	return out
}
