// Package visibility decides which categories and custom groups are shown in
// navigation, per server and kind. The model is a sparse hidden-set: absence
// of an entry means visible, so a fresh server shows everything and only
// explicit "hide" actions are stored.
package visibility

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

const kvNamespace = "visibility"

// KV is the durable key-value store visibility state lives in (one record
// per server). May be nil for memory-only use.
type KV interface {
	KVGet(ns, key string) ([]byte, bool, error)
	KVPut(ns, key string, payload []byte) error
}

// Ids are strings so the same filter covers integer category ids and opaque
// custom-group ids; use catalog.CategoryKey for the former.
type hiddenSet map[catalog.Kind]map[string]bool

// Filter answers and mutates visibility. Safe for concurrent use.
type Filter struct {
	mu     sync.RWMutex
	hidden map[string]hiddenSet // server -> kind -> id -> hidden
	kv     KV
}

func NewFilter(kv KV) *Filter {
	return &Filter{
		hidden: make(map[string]hiddenSet),
		kv:     kv,
	}
}

// LoadServer restores one server's hidden-set from the KV store.
func (f *Filter) LoadServer(serverID string) error {
	if f.kv == nil {
		return nil
	}
	payload, ok, err := f.kv.KVGet(kvNamespace, serverID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var hs hiddenSet
	if err := json.Unmarshal(payload, &hs); err != nil {
		// Corrupt visibility state: fall back to everything-visible.
		log.Printf("visibility: discarding corrupt state for %s: %v", serverID, err)
		return nil
	}
	f.mu.Lock()
	f.hidden[serverID] = hs
	f.mu.Unlock()
	return nil
}

func (f *Filter) saveLocked(serverID string) {
	if f.kv == nil {
		return
	}
	payload, err := json.Marshal(f.hidden[serverID])
	if err != nil {
		log.Printf("visibility: marshal state for %s: %v", serverID, err)
		return
	}
	if err := f.kv.KVPut(kvNamespace, serverID, payload); err != nil {
		log.Printf("visibility: persist state for %s: %v", serverID, err)
	}
}

// IsVisible reports whether an id is shown. Default is visible.
func (f *Filter) IsVisible(serverID string, kind catalog.Kind, id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.hidden[serverID][kind][id]
}

// SetVisible shows or hides one id.
func (f *Filter) SetVisible(serverID string, kind catalog.Kind, id string, visible bool) {
	f.mu.Lock()
	f.setLocked(serverID, kind, id, visible)
	f.saveLocked(serverID)
	f.mu.Unlock()
}

// SetAllVisible shows or hides a batch of ids (the "show all"/"hide all"
// actions). One persist for the whole batch.
func (f *Filter) SetAllVisible(serverID string, kind catalog.Kind, ids []string, visible bool) {
	f.mu.Lock()
	for _, id := range ids {
		f.setLocked(serverID, kind, id, visible)
	}
	f.saveLocked(serverID)
	f.mu.Unlock()
}

// ShowOnly hides every id in all except selected, which is shown — the
// accordion "show one at a time" behavior.
func (f *Filter) ShowOnly(serverID string, kind catalog.Kind, all []string, selected string) {
	f.mu.Lock()
	for _, id := range all {
		f.setLocked(serverID, kind, id, id == selected)
	}
	f.saveLocked(serverID)
	f.mu.Unlock()
}

func (f *Filter) setLocked(serverID string, kind catalog.Kind, id string, visible bool) {
	hs := f.hidden[serverID]
	if visible {
		if hs == nil {
			return
		}
		delete(hs[kind], id)
		if len(hs[kind]) == 0 {
			delete(hs, kind)
		}
		return
	}
	if hs == nil {
		hs = make(hiddenSet)
		f.hidden[serverID] = hs
	}
	if hs[kind] == nil {
		hs[kind] = make(map[string]bool)
	}
	hs[kind][id] = true
}

// VisibleCategories filters a category list down to the visible ones,
// preserving order.
func (f *Filter) VisibleCategories(serverID string, cats []catalog.Category) []catalog.Category {
	out := make([]catalog.Category, 0, len(cats))
	for _, c := range cats {
		if f.IsVisible(serverID, c.Kind, catalog.CategoryKey(c.ID)) {
			out = append(out, c)
		}
	}
	return out
}
