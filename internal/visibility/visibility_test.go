package visibility

import (
	"testing"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

type memKV struct {
	data map[string][]byte
	puts int
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) KVGet(ns, key string) ([]byte, bool, error) {
	b, ok := m.data[ns+"/"+key]
	return b, ok, nil
}

func (m *memKV) KVPut(ns, key string, payload []byte) error {
	m.puts++
	m.data[ns+"/"+key] = payload
	return nil
}

func TestDefaultVisible(t *testing.T) {
	f := NewFilter(nil)
	if !f.IsVisible("srv", catalog.KindLive, "1") {
		t.Error("absent entry should be visible")
	}
}

func TestHideAndShow(t *testing.T) {
	f := NewFilter(nil)
	f.SetVisible("srv", catalog.KindLive, "1", false)
	if f.IsVisible("srv", catalog.KindLive, "1") {
		t.Error("hidden id should not be visible")
	}
	// Hiding is scoped to (server, kind).
	if !f.IsVisible("srv", catalog.KindMovie, "1") {
		t.Error("other kind should be unaffected")
	}
	if !f.IsVisible("other", catalog.KindLive, "1") {
		t.Error("other server should be unaffected")
	}
	f.SetVisible("srv", catalog.KindLive, "1", true)
	if !f.IsVisible("srv", catalog.KindLive, "1") {
		t.Error("re-shown id should be visible")
	}
}

func TestSetAllVisible(t *testing.T) {
	f := NewFilter(nil)
	ids := []string{"1", "2", "3"}
	f.SetAllVisible("srv", catalog.KindMovie, ids, false)
	for _, id := range ids {
		if f.IsVisible("srv", catalog.KindMovie, id) {
			t.Errorf("id %s should be hidden", id)
		}
	}
	f.SetAllVisible("srv", catalog.KindMovie, ids, true)
	for _, id := range ids {
		if !f.IsVisible("srv", catalog.KindMovie, id) {
			t.Errorf("id %s should be visible again", id)
		}
	}
}

func TestShowOnly(t *testing.T) {
	f := NewFilter(nil)
	all := []string{"a", "b", "c"}
	f.ShowOnly("srv", catalog.KindSeries, all, "b")
	if f.IsVisible("srv", catalog.KindSeries, "a") || f.IsVisible("srv", catalog.KindSeries, "c") {
		t.Error("non-selected ids should be hidden")
	}
	if !f.IsVisible("srv", catalog.KindSeries, "b") {
		t.Error("selected id should be visible")
	}
}

func TestVisibleCategories(t *testing.T) {
	f := NewFilter(nil)
	cats := []catalog.Category{
		{ID: 1, Name: "a", Kind: catalog.KindLive},
		{ID: 2, Name: "b", Kind: catalog.KindLive},
		{ID: 3, Name: "c", Kind: catalog.KindLive},
	}
	f.SetVisible("srv", catalog.KindLive, "2", false)
	got := f.VisibleCategories("srv", cats)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("VisibleCategories = %+v", got)
	}
}

func TestPersistAndReload(t *testing.T) {
	kv := newMemKV()
	f := NewFilter(kv)
	f.SetVisible("srv", catalog.KindLive, "1", false)
	f.SetAllVisible("srv", catalog.KindMovie, []string{"5", "6"}, false)

	f2 := NewFilter(kv)
	if err := f2.LoadServer("srv"); err != nil {
		t.Fatal(err)
	}
	if f2.IsVisible("srv", catalog.KindLive, "1") {
		t.Error("hidden live/1 should survive reload")
	}
	if f2.IsVisible("srv", catalog.KindMovie, "5") || f2.IsVisible("srv", catalog.KindMovie, "6") {
		t.Error("hidden movie ids should survive reload")
	}
	if !f2.IsVisible("srv", catalog.KindSeries, "1") {
		t.Error("untouched kind should stay visible")
	}
}
