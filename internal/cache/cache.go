// Package cache is the two-tier cache layer: an in-process keyed file
// cache for coarse blobs (stock history strings, fundamentals reports)
// and a pass-through to the document store for structured quotes and
// basics (those already live in Mongo and don't need a second copy).
//
// Grounded on the teacher's internal/clientdata/{repository.go,ttl.go}
// TTL-keyed repository shape, adapted from exchange-rate-specific caching
// to generic blob caching and re-pointed at disk instead of the
// client_data.db sqlite file.
package cache

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("cache: not found")

// entry is the on-disk envelope for one cached blob.
type entry struct {
	Value     []byte    `msgpack:"value"`
	ExpiresAt time.Time `msgpack:"expires_at"`
}

// FileCache is a keyed blob cache backed by one file per key under Dir.
// Entries are msgpack-encoded, the same serialization the teacher uses
// for its cache repository.
type FileCache struct {
	dir string
	mu  sync.Mutex
}

// NewFileCache creates a FileCache rooted at dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, hex.EncodeToString([]byte(key))+".cache")
}

// Set stores value under key with the given TTL.
func (c *FileCache) Set(key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{Value: value, ExpiresAt: time.Now().Add(ttl)}
	data, err := msgpack.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(key), data, 0o644)
}

// Get returns the cached value for key, or ErrNotFound if absent or
// expired (an expired file is removed on read, not eagerly swept).
func (c *FileCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var e entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if time.Now().After(e.ExpiresAt) {
		_ = os.Remove(c.path(key))
		return nil, ErrNotFound
	}
	return e.Value, nil
}

// Delete removes a cached entry if present.
func (c *FileCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
