// Package cache holds the per-server content cache: category lists and
// category→items buckets for each kind. Reads never trigger network activity;
// writes replace whole keys (a bucket is always a complete snapshot of one
// category as of its last successful fetch — partial fetches are never
// written). An optional Persister mirrors every write to durable storage and
// restores it on load.
package cache

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

// Bucket is one category's complete item list plus the schema version it was
// written under. Movie buckets with a stale schema are treated as a miss on
// read (never surfaced), forcing a re-fetch.
type Bucket struct {
	Items  []catalog.Item
	Schema int
}

// Snapshot is the durable form of one server's cache.
type Snapshot struct {
	Categories  map[catalog.Kind][]catalog.Category
	Buckets     map[catalog.Kind]map[int]Bucket
	LastUpdated time.Time
}

// Persister mirrors cache mutations to durable storage. Implementations must
// tolerate concurrent calls. All methods are best-effort from the store's
// point of view: a persist failure is logged, not propagated, so a flaky disk
// cannot abort a refresh run.
type Persister interface {
	Load(serverID string) (*Snapshot, error)
	SaveCategories(serverID string, kind catalog.Kind, cats []catalog.Category, updated time.Time) error
	SaveItems(serverID string, kind catalog.Kind, categoryID int, items []catalog.Item, schema int) error
	DeleteServer(serverID string) error
	DeleteKind(serverID string, kind catalog.Kind) error
}

type serverCache struct {
	categories  map[catalog.Kind][]catalog.Category
	buckets     map[catalog.Kind]map[int]Bucket
	lastUpdated time.Time
}

func newServerCache() *serverCache {
	return &serverCache{
		categories: make(map[catalog.Kind][]catalog.Category),
		buckets:    make(map[catalog.Kind]map[int]Bucket),
	}
}

// Store is the in-memory read path, partitioned by server identity.
// Safe for concurrent use; each write fully replaces its key.
type Store struct {
	mu      sync.RWMutex
	servers map[string]*serverCache
	persist Persister // nil = memory only
}

// New returns a store backed by persist (may be nil for memory-only use).
func New(persist Persister) *Store {
	return &Store{
		servers: make(map[string]*serverCache),
		persist: persist,
	}
}

// LoadServer restores a server's cache from the persister (load-on-start).
// Without a persister, or when nothing was stored, the server starts empty.
func (s *Store) LoadServer(serverID string) error {
	if s.persist == nil {
		return nil
	}
	snap, err := s.persist.Load(serverID)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	sc := newServerCache()
	for kind, cats := range snap.Categories {
		sc.categories[kind] = cats
	}
	for kind, buckets := range snap.Buckets {
		sc.buckets[kind] = buckets
	}
	sc.lastUpdated = snap.LastUpdated
	s.mu.Lock()
	s.servers[serverID] = sc
	s.mu.Unlock()
	return nil
}

func (s *Store) server(serverID string) *serverCache {
	sc, ok := s.servers[serverID]
	if !ok {
		sc = newServerCache()
		s.servers[serverID] = sc
	}
	return sc
}

// Categories returns the cached category list for one kind, or ok=false when
// that kind has not been fetched for this server.
func (s *Store) Categories(serverID string, kind catalog.Kind) ([]catalog.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.servers[serverID]
	if !ok {
		return nil, false
	}
	cats, ok := sc.categories[kind]
	if !ok {
		return nil, false
	}
	out := make([]catalog.Category, len(cats))
	copy(out, cats)
	return out, true
}

// SetCategories replaces the category list for one kind wholesale and bumps
// the server's lastUpdated stamp.
func (s *Store) SetCategories(serverID string, kind catalog.Kind, cats []catalog.Category) {
	now := time.Now()
	s.mu.Lock()
	sc := s.server(serverID)
	cp := make([]catalog.Category, len(cats))
	copy(cp, cats)
	sc.categories[kind] = cp
	sc.lastUpdated = now
	s.mu.Unlock()
	if s.persist != nil {
		if err := s.persist.SaveCategories(serverID, kind, cats, now); err != nil {
			log.Printf("cache: persist categories %s/%s: %v", serverID, kind, err)
		}
	}
}

// bucketVisible reports whether a bucket may be surfaced: movie buckets
// written under an older schema are treated as absent.
func bucketVisible(kind catalog.Kind, b Bucket) bool {
	if kind == catalog.KindMovie && b.Schema < catalog.MovieSchemaVersion {
		return false
	}
	return true
}

// Items returns one category's cached items, or ok=false when that category
// has not been fetched (or its movie bucket predates the current schema).
func (s *Store) Items(serverID string, kind catalog.Kind, categoryID int) ([]catalog.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.servers[serverID]
	if !ok {
		return nil, false
	}
	b, ok := sc.buckets[kind][categoryID]
	if !ok || !bucketVisible(kind, b) {
		return nil, false
	}
	out := make([]catalog.Item, len(b.Items))
	copy(out, b.Items)
	return out, true
}

// SetItems replaces one category's bucket wholesale. The bucket is tagged
// with the current schema version for its kind.
func (s *Store) SetItems(serverID string, kind catalog.Kind, categoryID int, items []catalog.Item) {
	schema := 1
	if kind == catalog.KindMovie {
		schema = catalog.MovieSchemaVersion
	}
	s.mu.Lock()
	sc := s.server(serverID)
	if sc.buckets[kind] == nil {
		sc.buckets[kind] = make(map[int]Bucket)
	}
	cp := make([]catalog.Item, len(items))
	copy(cp, items)
	sc.buckets[kind][categoryID] = Bucket{Items: cp, Schema: schema}
	s.mu.Unlock()
	if s.persist != nil {
		if err := s.persist.SaveItems(serverID, kind, categoryID, items, schema); err != nil {
			log.Printf("cache: persist items %s/%s/%d: %v", serverID, kind, categoryID, err)
		}
	}
}

// AllItems flattens every cached category bucket for one kind, deduplicating
// by item id. Buckets are visited in ascending category-id order and a later
// bucket's copy of a duplicate id replaces the earlier one in place, so the
// result is deterministic regardless of fetch order. ok=false when no bucket
// exists (or every movie bucket is schema-stale).
func (s *Store) AllItems(serverID string, kind catalog.Kind) ([]catalog.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.servers[serverID]
	if !ok {
		return nil, false
	}
	buckets := sc.buckets[kind]
	catIDs := make([]int, 0, len(buckets))
	for id, b := range buckets {
		if bucketVisible(kind, b) {
			catIDs = append(catIDs, id)
		}
	}
	if len(catIDs) == 0 {
		return nil, false
	}
	sort.Ints(catIDs)
	var out []catalog.Item
	index := make(map[int]int)
	for _, catID := range catIDs {
		for _, it := range buckets[catID].Items {
			if pos, seen := index[it.ItemID()]; seen {
				out[pos] = it
				continue
			}
			index[it.ItemID()] = len(out)
			out = append(out, it)
		}
	}
	return out, true
}

// Clear resets the whole server cache to empty.
func (s *Store) Clear(serverID string) {
	s.mu.Lock()
	s.servers[serverID] = newServerCache()
	s.mu.Unlock()
	if s.persist != nil {
		if err := s.persist.DeleteServer(serverID); err != nil {
			log.Printf("cache: persist clear %s: %v", serverID, err)
		}
	}
}

// ClearKind resets the category list and all item buckets for one kind,
// leaving other kinds untouched.
func (s *Store) ClearKind(serverID string, kind catalog.Kind) {
	s.mu.Lock()
	if sc, ok := s.servers[serverID]; ok {
		delete(sc.categories, kind)
		delete(sc.buckets, kind)
	}
	s.mu.Unlock()
	if s.persist != nil {
		if err := s.persist.DeleteKind(serverID, kind); err != nil {
			log.Printf("cache: persist clear %s/%s: %v", serverID, kind, err)
		}
	}
}

// LastUpdated returns the server's last category-write time (zero when never
// written).
func (s *Store) LastUpdated(serverID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sc, ok := s.servers[serverID]; ok {
		return sc.lastUpdated
	}
	return time.Time{}
}

// Stats reads back per-kind category and deduplicated item counts. This is
// what a refresh run reports, so the numbers always match what readers of the
// cache will see.
func (s *Store) Stats(serverID string) catalog.RefreshStats {
	stats := catalog.RefreshStats{LastUpdated: s.LastUpdated(serverID)}
	for _, kind := range catalog.Kinds() {
		cats, _ := s.Categories(serverID, kind)
		items, _ := s.AllItems(serverID, kind)
		switch kind {
		case catalog.KindLive:
			stats.LiveCategories = len(cats)
			stats.Channels = len(items)
		case catalog.KindMovie:
			stats.MovieCategories = len(cats)
			stats.Movies = len(items)
		case catalog.KindSeries:
			stats.SeriesCategories = len(cats)
			stats.Series = len(items)
		}
	}
	return stats
}
