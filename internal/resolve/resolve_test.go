package resolve

import (
	"testing"
	"time"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/groups"
	"github.com/iptvdeck/iptv-deck/internal/visibility"
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) KVGet(ns, key string) ([]byte, bool, error) {
	b, ok := m.data[ns+"/"+key]
	return b, ok, nil
}

func (m *memKV) KVPut(ns, key string, payload []byte) error {
	m.data[ns+"/"+key] = payload
	return nil
}

type fakeLive struct {
	items map[catalog.Kind][]catalog.Item
}

func (f *fakeLive) Items(kind catalog.Kind) []catalog.Item { return f.items[kind] }

type fakeCache struct {
	items map[catalog.Kind][]catalog.Item
}

func (f *fakeCache) AllItems(serverID string, kind catalog.Kind) ([]catalog.Item, bool) {
	items, ok := f.items[kind]
	return items, ok
}

func ch(id, cat int, name string) catalog.Channel {
	return catalog.Channel{ID: id, Name: name, CategoryID: cat}
}

func newResolver(live *fakeLive, cached *fakeCache) *Resolver {
	return &Resolver{
		Cache:      cached,
		Live:       live,
		Visibility: visibility.NewFilter(nil),
		Groups:     groups.NewManager(nil),
		Favorites:  NewFavorites(nil),
		History:    NewHistory(nil),
	}
}

func TestFavoritesAddRemoveOrder(t *testing.T) {
	f := NewFavorites(nil)
	f.Add("srv", catalog.KindLive, 3)
	f.Add("srv", catalog.KindLive, 1)
	f.Add("srv", catalog.KindLive, 3) // idempotent
	f.Add("srv", catalog.KindLive, 2)
	if got := f.IDs("srv", catalog.KindLive); len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Errorf("ids = %v", got)
	}
	f.Remove("srv", catalog.KindLive, 1)
	if f.IsFavorite("srv", catalog.KindLive, 1) {
		t.Error("removed id still favorite")
	}
	if !f.IsFavorite("srv", catalog.KindLive, 3) {
		t.Error("other ids must survive a remove")
	}
}

func TestFavoritesPersistAndReload(t *testing.T) {
	kv := newMemKV()
	f := NewFavorites(kv)
	f.Add("srv", catalog.KindMovie, 9)

	f2 := NewFavorites(kv)
	if err := f2.LoadServer("srv"); err != nil {
		t.Fatal(err)
	}
	if !f2.IsFavorite("srv", catalog.KindMovie, 9) {
		t.Error("favorite lost across reload")
	}
}

func TestResolveFavoritesLiveWinsOverCache(t *testing.T) {
	live := &fakeLive{items: map[catalog.Kind][]catalog.Item{
		catalog.KindLive: {ch(1, 5, "fresh name")},
	}}
	cached := &fakeCache{items: map[catalog.Kind][]catalog.Item{
		catalog.KindLive: {ch(1, 5, "stale name"), ch(2, 5, "cache only")},
	}}
	r := newResolver(live, cached)
	r.Favorites.Add("srv", catalog.KindLive, 1)
	r.Favorites.Add("srv", catalog.KindLive, 2)
	r.Favorites.Add("srv", catalog.KindLive, 99) // resolves to nothing

	got := r.ResolveFavorites("srv", catalog.KindLive)
	if len(got) != 2 {
		t.Fatalf("resolved = %d items", len(got))
	}
	if got[0].ItemName() != "fresh name" {
		t.Errorf("item 1 = %q, want live copy", got[0].ItemName())
	}
	if got[1].ItemName() != "cache only" {
		t.Errorf("item 2 = %q, want cache fallback", got[1].ItemName())
	}
}

func TestResolveFavoritesHiddenCategorySuppressed(t *testing.T) {
	live := &fakeLive{items: map[catalog.Kind][]catalog.Item{
		catalog.KindLive: {ch(1, 5, "a"), ch(2, 6, "b")},
	}}
	r := newResolver(live, &fakeCache{})
	r.Favorites.Add("srv", catalog.KindLive, 1)
	r.Favorites.Add("srv", catalog.KindLive, 2)
	r.Visibility.SetVisible("srv", catalog.KindLive, catalog.CategoryKey(5), false)

	got := r.ResolveFavorites("srv", catalog.KindLive)
	if len(got) != 1 || got[0].ItemID() != 2 {
		t.Errorf("resolved = %+v", got)
	}
}

func TestResolveFavoritesVisibleGroupOverridesHiddenCategory(t *testing.T) {
	live := &fakeLive{items: map[catalog.Kind][]catalog.Item{
		catalog.KindLive: {ch(1, 5, "a")},
	}}
	r := newResolver(live, &fakeCache{})
	r.Favorites.Add("srv", catalog.KindLive, 1)
	r.Visibility.SetVisible("srv", catalog.KindLive, catalog.CategoryKey(5), false)

	g := r.Groups.Create("srv", "picks", catalog.KindLive)
	if err := r.Groups.AddContent("srv", g.ID, 1); err != nil {
		t.Fatal(err)
	}
	if got := r.ResolveFavorites("srv", catalog.KindLive); len(got) != 1 {
		t.Fatalf("visible group should surface the favorite, got %+v", got)
	}

	// Hiding the group too suppresses it again.
	r.Visibility.SetVisible("srv", catalog.KindLive, g.ID, false)
	if got := r.ResolveFavorites("srv", catalog.KindLive); len(got) != 0 {
		t.Errorf("hidden everywhere, got %+v", got)
	}
}

func TestHistoryRecordUpdatesInPlace(t *testing.T) {
	h := NewHistory(nil)
	h.Record("srv", catalog.KindMovie, 7, 120)
	h.Record("srv", catalog.KindMovie, 7, 300)
	entries := h.Entries("srv")
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].ProgressSecs != 300 {
		t.Errorf("progress = %d, want latest", entries[0].ProgressSecs)
	}
	e, ok := h.Entry("srv", catalog.KindMovie, 7)
	if !ok || e.UpdatedAt.IsZero() {
		t.Errorf("entry = %+v ok=%v", e, ok)
	}
}

func TestHistoryOrderAndPersist(t *testing.T) {
	kv := newMemKV()
	h := NewHistory(kv)
	h.Record("srv", catalog.KindMovie, 1, 10)
	time.Sleep(2 * time.Millisecond)
	h.Record("srv", catalog.KindLive, 2, 0)

	entries := h.Entries("srv")
	if len(entries) != 2 || entries[0].ContentID != 2 {
		t.Errorf("entries = %+v, want most recent first", entries)
	}

	h2 := NewHistory(kv)
	if err := h2.LoadServer("srv"); err != nil {
		t.Fatal(err)
	}
	if _, ok := h2.Entry("srv", catalog.KindMovie, 1); !ok {
		t.Error("history lost across reload")
	}
}

func TestResolveHistoryMissingItem(t *testing.T) {
	live := &fakeLive{items: map[catalog.Kind][]catalog.Item{
		catalog.KindMovie: {catalog.Movie{ID: 7, Name: "seen", CategoryID: 1}},
	}}
	r := newResolver(live, &fakeCache{})
	r.History.Record("srv", catalog.KindMovie, 7, 60)
	r.History.Record("srv", catalog.KindMovie, 404, 5)

	got := r.ResolveHistory("srv")
	if len(got) != 2 {
		t.Fatalf("history = %d entries", len(got))
	}
	var resolved, missing int
	for _, hi := range got {
		if hi.Item != nil {
			resolved++
			if hi.Item.ItemName() != "seen" {
				t.Errorf("resolved item = %q", hi.Item.ItemName())
			}
		} else {
			missing++
			if hi.Entry.ContentID != 404 {
				t.Errorf("missing entry = %+v", hi.Entry)
			}
		}
	}
	if resolved != 1 || missing != 1 {
		t.Errorf("resolved=%d missing=%d", resolved, missing)
	}
}

func TestResolveHistoryHiddenCategoryStillListed(t *testing.T) {
	live := &fakeLive{items: map[catalog.Kind][]catalog.Item{
		catalog.KindLive: {ch(1, 5, "a")},
	}}
	r := newResolver(live, &fakeCache{})
	r.History.Record("srv", catalog.KindLive, 1, 0)
	r.Visibility.SetVisible("srv", catalog.KindLive, catalog.CategoryKey(5), false)

	if got := r.ResolveHistory("srv"); len(got) != 1 || got[0].Item == nil {
		t.Errorf("history = %+v, want entry kept despite hidden category", got)
	}
}
