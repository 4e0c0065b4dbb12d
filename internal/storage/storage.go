// Package storage is the durable backing for the content cache and the
// small key-value state the app keeps per server (visibility, custom groups,
// favorites, watch history). One sqlite database file holds everything;
// every write is a single-row upsert so readers never observe a partially
// written record.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iptvdeck/iptv-deck/internal/cache"
	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_categories (
	server_id  TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (server_id, kind)
);
CREATE TABLE IF NOT EXISTS cache_items (
	server_id      TEXT NOT NULL,
	kind           TEXT NOT NULL,
	category_id    INTEGER NOT NULL,
	schema_version INTEGER NOT NULL,
	payload        BLOB NOT NULL,
	PRIMARY KEY (server_id, kind, category_id)
);
CREATE TABLE IF NOT EXISTS kv (
	ns      TEXT NOT NULL,
	key     TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (ns, key)
);
`

// DB wraps the sqlite handle. Implements cache.Persister.
type DB struct {
	db *sql.DB
}

// Open creates/opens the database at path and ensures the schema exists.
// Parent directories are created as needed.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(filepath.Clean(path))
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// Single writer; WAL keeps readers unblocked during refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Load restores one server's cache snapshot. Returns nil when nothing is
// stored. Rows that fail to decode are skipped rather than failing the load —
// a corrupt bucket costs one re-fetch, not the whole cache.
func (d *DB) Load(serverID string) (*cache.Snapshot, error) {
	snap := &cache.Snapshot{
		Categories: make(map[catalog.Kind][]catalog.Category),
		Buckets:    make(map[catalog.Kind]map[int]cache.Bucket),
	}
	found := false

	rows, err := d.db.Query(
		"SELECT kind, payload, updated_at FROM cache_categories WHERE server_id = ?", serverID)
	if err != nil {
		return nil, fmt.Errorf("storage: load categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var payload []byte
		var updatedAt int64
		if err := rows.Scan(&kind, &payload, &updatedAt); err != nil {
			return nil, err
		}
		var cats []catalog.Category
		if err := json.Unmarshal(payload, &cats); err != nil {
			continue
		}
		snap.Categories[catalog.Kind(kind)] = cats
		if ts := time.Unix(updatedAt, 0); ts.After(snap.LastUpdated) {
			snap.LastUpdated = ts
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	irows, err := d.db.Query(
		"SELECT kind, category_id, schema_version, payload FROM cache_items WHERE server_id = ?", serverID)
	if err != nil {
		return nil, fmt.Errorf("storage: load items: %w", err)
	}
	defer irows.Close()
	for irows.Next() {
		var kind string
		var categoryID, schemaVersion int
		var payload []byte
		if err := irows.Scan(&kind, &categoryID, &schemaVersion, &payload); err != nil {
			return nil, err
		}
		k := catalog.Kind(kind)
		items, err := catalog.UnmarshalItems(k, payload)
		if err != nil {
			continue
		}
		if snap.Buckets[k] == nil {
			snap.Buckets[k] = make(map[int]cache.Bucket)
		}
		snap.Buckets[k][categoryID] = cache.Bucket{Items: items, Schema: schemaVersion}
		found = true
	}
	if err := irows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return snap, nil
}

func (d *DB) SaveCategories(serverID string, kind catalog.Kind, cats []catalog.Category, updated time.Time) error {
	payload, err := json.Marshal(cats)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT OR REPLACE INTO cache_categories (server_id, kind, payload, updated_at) VALUES (?, ?, ?, ?)",
		serverID, string(kind), payload, updated.Unix())
	return err
}

func (d *DB) SaveItems(serverID string, kind catalog.Kind, categoryID int, items []catalog.Item, schemaVersion int) error {
	payload, err := catalog.MarshalItems(kind, items)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT OR REPLACE INTO cache_items (server_id, kind, category_id, schema_version, payload) VALUES (?, ?, ?, ?, ?)",
		serverID, string(kind), categoryID, schemaVersion, payload)
	return err
}

func (d *DB) DeleteServer(serverID string) error {
	if _, err := d.db.Exec("DELETE FROM cache_categories WHERE server_id = ?", serverID); err != nil {
		return err
	}
	_, err := d.db.Exec("DELETE FROM cache_items WHERE server_id = ?", serverID)
	return err
}

func (d *DB) DeleteKind(serverID string, kind catalog.Kind) error {
	if _, err := d.db.Exec(
		"DELETE FROM cache_categories WHERE server_id = ? AND kind = ?", serverID, string(kind)); err != nil {
		return err
	}
	_, err := d.db.Exec(
		"DELETE FROM cache_items WHERE server_id = ? AND kind = ?", serverID, string(kind))
	return err
}

// KVGet reads one record from the key-value area. ok=false when absent.
func (d *DB) KVGet(ns, key string) ([]byte, bool, error) {
	var payload []byte
	err := d.db.QueryRow("SELECT payload FROM kv WHERE ns = ? AND key = ?", ns, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// KVPut upserts one record.
func (d *DB) KVPut(ns, key string, payload []byte) error {
	_, err := d.db.Exec("INSERT OR REPLACE INTO kv (ns, key, payload) VALUES (?, ?, ?)", ns, key, payload)
	return err
}

// KVDelete removes one record (no error when absent).
func (d *DB) KVDelete(ns, key string) error {
	_, err := d.db.Exec("DELETE FROM kv WHERE ns = ? AND key = ?", ns, key)
	return err
}

// KVList returns every record in a namespace, keyed by key.
func (d *DB) KVList(ns string) (map[string][]byte, error) {
	rows, err := d.db.Query("SELECT key, payload FROM kv WHERE ns = ?", ns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, err
		}
		out[key] = payload
	}
	return out, rows.Err()
}
