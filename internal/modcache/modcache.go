// Package modcache persists serialized compiled modules (.tsb blobs, see
// internal/bytecode's EncodeProgram) keyed by source content hash in a
// SQLite database, so repeated runs of an unchanged file skip re-emission.
package modcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tscore-lang/tscore/internal/bytecode"
)

// Cache is a handle to one on-disk module cache.
type Cache struct {
	db *sql.DB
}

// Open creates (or opens) the cache database under dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("modcache: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "modcache.db"))
	if err != nil {
		return nil, fmt.Errorf("modcache: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS modules (
	source_hash TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	blob        BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("modcache: init schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Key hashes source content into the cache key.
func Key(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached compiled program for the given source hash, or
// (nil, false) on a miss. A blob that no longer decodes (format change) is
// treated as a miss and evicted.
func (c *Cache) Get(key string) (*bytecode.Program, bool) {
	var blob []byte
	err := c.db.QueryRow(`SELECT blob FROM modules WHERE source_hash = ?`, key).Scan(&blob)
	if err != nil {
		return nil, false
	}
	prog, derr := bytecode.DecodeProgram(blob)
	if derr != nil {
		_, _ = c.db.Exec(`DELETE FROM modules WHERE source_hash = ?`, key)
		return nil, false
	}
	return prog, true
}

// Put stores prog under key.
func (c *Cache) Put(key, path string, prog *bytecode.Program) error {
	blob, err := bytecode.EncodeProgram(prog)
	if err != nil {
		return fmt.Errorf("modcache: encode: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO modules (source_hash, path, blob, created_at) VALUES (?, ?, ?, ?)`,
		key, path, blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("modcache: store: %w", err)
	}
	return nil
}

// Prune removes entries older than maxAge and returns how many were evicted.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	res, err := c.db.Exec(`DELETE FROM modules WHERE created_at < ?`, time.Now().Add(-maxAge).Unix())
	if err != nil {
		return 0, fmt.Errorf("modcache: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
