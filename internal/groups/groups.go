// Package groups manages user-defined content groups: locally created
// collections of item ids, independent of server categories. Groups mutate
// only through explicit user action, never during a fetch/cache cycle.
package groups

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

const kvNamespace = "groups"

// KV is the durable store (one record per server). May be nil.
type KV interface {
	KVGet(ns, key string) ([]byte, bool, error)
	KVPut(ns, key string, payload []byte) error
}

// Group is one user-defined collection. ID is an opaque generated id,
// stable for the group's lifetime.
type Group struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Kind       catalog.Kind `json:"kind"`
	ContentIDs []int        `json:"content_ids"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Contains reports whether the group holds an item id.
func (g *Group) Contains(contentID int) bool {
	for _, id := range g.ContentIDs {
		if id == contentID {
			return true
		}
	}
	return false
}

// Manager holds groups per server. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	byServer map[string][]Group
	kv       KV
}

func NewManager(kv KV) *Manager {
	return &Manager{
		byServer: make(map[string][]Group),
		kv:       kv,
	}
}

// LoadServer restores one server's groups from the KV store.
func (m *Manager) LoadServer(serverID string) error {
	if m.kv == nil {
		return nil
	}
	payload, ok, err := m.kv.KVGet(kvNamespace, serverID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var gs []Group
	if err := json.Unmarshal(payload, &gs); err != nil {
		log.Printf("groups: discarding corrupt state for %s: %v", serverID, err)
		return nil
	}
	m.mu.Lock()
	m.byServer[serverID] = gs
	m.mu.Unlock()
	return nil
}

func (m *Manager) saveLocked(serverID string) {
	if m.kv == nil {
		return
	}
	payload, err := json.Marshal(m.byServer[serverID])
	if err != nil {
		log.Printf("groups: marshal state for %s: %v", serverID, err)
		return
	}
	if err := m.kv.KVPut(kvNamespace, serverID, payload); err != nil {
		log.Printf("groups: persist state for %s: %v", serverID, err)
	}
}

// Create adds a new empty group and returns it.
func (m *Manager) Create(serverID, name string, kind catalog.Kind) Group {
	g := Group{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.byServer[serverID] = append(m.byServer[serverID], g)
	m.saveLocked(serverID)
	m.mu.Unlock()
	return g
}

// Delete removes a group by id. Deleting an unknown id is a no-op.
func (m *Manager) Delete(serverID, groupID string) {
	m.mu.Lock()
	gs := m.byServer[serverID]
	for i := range gs {
		if gs[i].ID == groupID {
			m.byServer[serverID] = append(gs[:i], gs[i+1:]...)
			m.saveLocked(serverID)
			break
		}
	}
	m.mu.Unlock()
}

// Groups returns a copy of all groups for a server.
func (m *Manager) Groups(serverID string) []Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gs := m.byServer[serverID]
	out := make([]Group, len(gs))
	copy(out, gs)
	return out
}

// Group returns one group by id.
func (m *Manager) Group(serverID, groupID string) (Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.byServer[serverID] {
		if g.ID == groupID {
			return g, true
		}
	}
	return Group{}, false
}

// AddContent adds an item id to a group (idempotent).
func (m *Manager) AddContent(serverID, groupID string, contentID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs := m.byServer[serverID]
	for i := range gs {
		if gs[i].ID != groupID {
			continue
		}
		if gs[i].Contains(contentID) {
			return nil
		}
		gs[i].ContentIDs = append(gs[i].ContentIDs, contentID)
		m.saveLocked(serverID)
		return nil
	}
	return fmt.Errorf("group %s not found", groupID)
}

// RemoveContent removes an item id from a group (no-op when absent).
func (m *Manager) RemoveContent(serverID, groupID string, contentID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs := m.byServer[serverID]
	for i := range gs {
		if gs[i].ID != groupID {
			continue
		}
		for j, id := range gs[i].ContentIDs {
			if id == contentID {
				gs[i].ContentIDs = append(gs[i].ContentIDs[:j], gs[i].ContentIDs[j+1:]...)
				m.saveLocked(serverID)
				break
			}
		}
		return nil
	}
	return fmt.Errorf("group %s not found", groupID)
}
