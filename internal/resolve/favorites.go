// Package resolve maintains favorites and watch history and resolves their
// item ids against the currently loaded content, falling back to the cache
// for items not loaded in memory yet.
package resolve

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

const (
	favoritesNamespace = "favorites"
	historyNamespace   = "history"
)

// KV is the durable store for favorites and history (one record per server
// each). May be nil for memory-only use.
type KV interface {
	KVGet(ns, key string) ([]byte, bool, error)
	KVPut(ns, key string, payload []byte) error
}

// Favorites holds per-server, per-kind favorite item ids in the order the
// user added them. Safe for concurrent use.
type Favorites struct {
	mu       sync.RWMutex
	byServer map[string]map[catalog.Kind][]int
	kv       KV
}

func NewFavorites(kv KV) *Favorites {
	return &Favorites{
		byServer: make(map[string]map[catalog.Kind][]int),
		kv:       kv,
	}
}

// LoadServer restores one server's favorites from the KV store.
func (f *Favorites) LoadServer(serverID string) error {
	if f.kv == nil {
		return nil
	}
	payload, ok, err := f.kv.KVGet(favoritesNamespace, serverID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var m map[catalog.Kind][]int
	if err := json.Unmarshal(payload, &m); err != nil {
		log.Printf("favorites: discarding corrupt state for %s: %v", serverID, err)
		return nil
	}
	f.mu.Lock()
	f.byServer[serverID] = m
	f.mu.Unlock()
	return nil
}

func (f *Favorites) saveLocked(serverID string) {
	if f.kv == nil {
		return
	}
	payload, err := json.Marshal(f.byServer[serverID])
	if err != nil {
		log.Printf("favorites: marshal state for %s: %v", serverID, err)
		return
	}
	if err := f.kv.KVPut(favoritesNamespace, serverID, payload); err != nil {
		log.Printf("favorites: persist state for %s: %v", serverID, err)
	}
}

// Add marks an item as favorite. Idempotent; order of first addition is kept.
func (f *Favorites) Add(serverID string, kind catalog.Kind, contentID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.byServer[serverID]
	if m == nil {
		m = make(map[catalog.Kind][]int)
		f.byServer[serverID] = m
	}
	for _, id := range m[kind] {
		if id == contentID {
			return
		}
	}
	m[kind] = append(m[kind], contentID)
	f.saveLocked(serverID)
}

// Remove unmarks a favorite. No-op when absent.
func (f *Favorites) Remove(serverID string, kind catalog.Kind, contentID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.byServer[serverID][kind]
	for i, id := range ids {
		if id == contentID {
			f.byServer[serverID][kind] = append(ids[:i], ids[i+1:]...)
			f.saveLocked(serverID)
			return
		}
	}
}

// IsFavorite reports whether an item is marked.
func (f *Favorites) IsFavorite(serverID string, kind catalog.Kind, contentID int) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, id := range f.byServer[serverID][kind] {
		if id == contentID {
			return true
		}
	}
	return false
}

// IDs returns the favorite ids for a kind, in addition order.
func (f *Favorites) IDs(serverID string, kind catalog.Kind) []int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := f.byServer[serverID][kind]
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}
