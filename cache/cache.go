// Package cache is a small disk-backed store for completion results, with
// per-entry expiry. Lookups and stores are best effort; a broken cache
// degrades to recomputing, never to a failed request.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = 24 * time.Hour

// Cache wraps a badger database.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) the cache at dir.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db, ttl: DefaultTTL}, nil
}

// OpenInMemory opens a cache that lives only for the process, used in
// tests and as a fallback when the cache directory is unusable.
func OpenInMemory() (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory cache: %w", err)
	}
	return &Cache{db: db, ttl: DefaultTTL}, nil
}

// WithTTL sets the expiry applied to subsequent stores.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// Get returns the stored value for key. Missing or expired entries return
// ok=false.
func (c *Cache) Get(key string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("cache lookup failed", "err", err)
		}
		return nil, false
	}
	return out, true
}

// Set stores value under key with the cache TTL. Failures are logged and
// swallowed.
func (c *Cache) Set(key string, value []byte) {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		slog.Warn("cache store failed", "err", err)
	}
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		slog.Warn("cache delete failed", "err", err)
	}
}

// Entries counts the live entries.
func (c *Cache) Entries() (int, error) {
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

// Close flushes and closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
