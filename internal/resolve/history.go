package resolve

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

// HistoryEntry records one watched item and the resume position.
type HistoryEntry struct {
	ContentID    int          `json:"content_id"`
	Kind         catalog.Kind `json:"kind"`
	ProgressSecs int          `json:"progress_secs"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// History holds per-server watch history keyed by (kind, id). Re-watching an
// item updates its entry in place. Safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	byServer map[string]map[string]HistoryEntry
	kv       KV
}

func historyKey(kind catalog.Kind, id int) string {
	return string(kind) + "/" + catalog.CategoryKey(id)
}

func NewHistory(kv KV) *History {
	return &History{
		byServer: make(map[string]map[string]HistoryEntry),
		kv:       kv,
	}
}

// LoadServer restores one server's history from the KV store.
func (h *History) LoadServer(serverID string) error {
	if h.kv == nil {
		return nil
	}
	payload, ok, err := h.kv.KVGet(historyNamespace, serverID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var m map[string]HistoryEntry
	if err := json.Unmarshal(payload, &m); err != nil {
		log.Printf("history: discarding corrupt state for %s: %v", serverID, err)
		return nil
	}
	h.mu.Lock()
	h.byServer[serverID] = m
	h.mu.Unlock()
	return nil
}

func (h *History) saveLocked(serverID string) {
	if h.kv == nil {
		return
	}
	payload, err := json.Marshal(h.byServer[serverID])
	if err != nil {
		log.Printf("history: marshal state for %s: %v", serverID, err)
		return
	}
	if err := h.kv.KVPut(historyNamespace, serverID, payload); err != nil {
		log.Printf("history: persist state for %s: %v", serverID, err)
	}
}

// Record upserts a history entry with the current time.
func (h *History) Record(serverID string, kind catalog.Kind, contentID, progressSecs int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.byServer[serverID]
	if m == nil {
		m = make(map[string]HistoryEntry)
		h.byServer[serverID] = m
	}
	m[historyKey(kind, contentID)] = HistoryEntry{
		ContentID:    contentID,
		Kind:         kind,
		ProgressSecs: progressSecs,
		UpdatedAt:    time.Now(),
	}
	h.saveLocked(serverID)
}

// Remove deletes one entry. No-op when absent.
func (h *History) Remove(serverID string, kind catalog.Kind, contentID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.byServer[serverID]
	if _, ok := m[historyKey(kind, contentID)]; !ok {
		return
	}
	delete(m, historyKey(kind, contentID))
	h.saveLocked(serverID)
}

// Entry returns one item's history entry.
func (h *History) Entry(serverID string, kind catalog.Kind, contentID int) (HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.byServer[serverID][historyKey(kind, contentID)]
	return e, ok
}

// Entries returns all of a server's history, most recently watched first.
func (h *History) Entries(serverID string) []HistoryEntry {
	h.mu.RLock()
	out := make([]HistoryEntry, 0, len(h.byServer[serverID]))
	for _, e := range h.byServer[serverID] {
		out = append(out, e)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
