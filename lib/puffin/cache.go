// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package puffin

import (
	"container/list"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// spillThreshold is the entry size above which an evicted buffer is
// written to disk instead of being discarded. Small buffers are cheap
// to re-transcode; disk writes have latency.
const spillThreshold = 16 * 1024

// LRUCache is a bounded byte-buffer cache keyed by deflate block
// index. Entries evicted for space are discarded, except those larger
// than spillThreshold, which are spilled to files in a private
// temporary directory and lazily reloaded on a later miss.
//
// The size limit is soft in one deliberate way: eviction stops once
// the cache is empty, so a single entry larger than maxSize is still
// admitted. Callers rely on Put always succeeding.
//
// Spill I/O failures are logged and degrade to cache misses; they
// never fail a stream operation, the worst case is a re-transcode.
//
// The cache is not safe for concurrent use. It is owned by a single
// stream instance.
type LRUCache struct {
	maxSize uint64
	size    uint64

	order  *list.List            // front is most recently used; holds *cacheEntry
	items  map[int]*list.Element // block index → list node
	onDisk map[int]struct{}      // keys with a spill file

	tempDir string // empty when spilling is unavailable
	logger  *slog.Logger
}

type cacheEntry struct {
	key  int
	data []byte
}

// NewLRUCache creates a cache holding at most maxSize bytes of
// buffers. A maxSize of zero disables caching: Get always misses and
// Put is a no-op. The spill directory is created eagerly; if that
// fails the cache still works, it just cannot spill.
func NewLRUCache(maxSize uint64) *LRUCache {
	c := &LRUCache{
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[int]*list.Element),
		onDisk:  make(map[int]struct{}),
		logger:  slog.Default(),
	}
	if maxSize > 0 {
		dir, err := os.MkdirTemp("", "puffin-lru-*")
		if err != nil {
			c.logger.Error("creating cache spill directory failed, spilling disabled",
				"error", err)
		} else {
			c.tempDir = dir
		}
	}
	return c
}

// Capacity returns the configured maximum size in bytes.
func (c *LRUCache) Capacity() uint64 {
	return c.maxSize
}

// Size returns the total bytes currently held in memory.
func (c *LRUCache) Size() uint64 {
	return c.size
}

// Get returns the buffer for key, promoting it to most recently used.
// On an in-memory miss it checks the spill files and reloads a hit
// back into the cache.
func (c *LRUCache) Get(key int) ([]byte, bool) {
	element, ok := c.items[key]
	if !ok {
		if _, spilled := c.onDisk[key]; spilled {
			data, err := c.readFromDisk(key)
			if err != nil {
				c.logger.Error("reading spilled cache entry failed",
					"key", key, "error", err)
				return nil, false
			}
			c.Put(key, data)
			return data, true
		}
		return nil, false
	}
	c.order.MoveToFront(element)
	return element.Value.(*cacheEntry).data, true
}

// Put inserts or replaces the buffer for key, evicting least recently
// used entries as needed. With a zero capacity Put does nothing.
func (c *LRUCache) Put(key int, data []byte) {
	if c.maxSize == 0 {
		return
	}
	if element, ok := c.items[key]; ok {
		c.size -= uint64(len(element.Value.(*cacheEntry).data))
		c.order.Remove(element)
		delete(c.items, key)
	}
	c.EnsureSpace(uint64(len(data)))
	c.size += uint64(len(data))
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
}

// EnsureSpace evicts least recently used entries until size more
// bytes fit within the capacity. It stops when the cache is empty
// even if still over budget — the soft limit described above.
func (c *LRUCache) EnsureSpace(size uint64) {
	for c.size+size > c.maxSize {
		if !c.evictLRU() {
			return
		}
	}
}

// evictLRU drops the least recently used entry, spilling it to disk
// first when it is large enough to be worth keeping. Returns false
// when the cache is empty.
func (c *LRUCache) evictLRU() bool {
	element := c.order.Back()
	if element == nil {
		return false
	}
	entry := element.Value.(*cacheEntry)
	c.size -= uint64(len(entry.data))
	if len(entry.data) > spillThreshold {
		if err := c.writeToDisk(entry.key, entry.data); err != nil {
			c.logger.Error("spilling cache entry failed",
				"key", entry.key, "size", len(entry.data), "error", err)
		}
	}
	c.order.Remove(element)
	delete(c.items, entry.key)
	return true
}

// spillPath returns the spill file for a key: raw buffer bytes in a
// file named by the decimal block index. Process-private, not an
// interchange format.
func (c *LRUCache) spillPath(key int) string {
	return filepath.Join(c.tempDir, strconv.Itoa(key))
}

func (c *LRUCache) writeToDisk(key int, data []byte) error {
	if c.tempDir == "" {
		return fmt.Errorf("no spill directory")
	}
	if err := os.WriteFile(c.spillPath(key), data, 0o644); err != nil {
		return err
	}
	c.onDisk[key] = struct{}{}
	return nil
}

func (c *LRUCache) readFromDisk(key int) ([]byte, error) {
	return os.ReadFile(c.spillPath(key))
}

// Close removes the spill directory and everything in it. The cache
// must not be used afterwards.
func (c *LRUCache) Close() error {
	if c.tempDir == "" {
		return nil
	}
	if err := os.RemoveAll(c.tempDir); err != nil {
		c.logger.Error("removing cache spill directory failed",
			"dir", c.tempDir, "error", err)
		return err
	}
	c.tempDir = ""
	return nil
}
