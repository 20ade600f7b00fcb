// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package puffin

import (
	"bytes"
	"testing"
)

func TestCachePutGet(t *testing.T) {
	c := NewLRUCache(1024)
	defer c.Close()

	c.Put(1, []byte("one"))
	c.Put(2, []byte("two"))

	got, ok := c.Get(1)
	if !ok || string(got) != "one" {
		t.Errorf("Get(1) = %q, %v, want %q, true", got, ok, "one")
	}
	if _, ok := c.Get(3); ok {
		t.Error("Get(3) should miss")
	}
	if c.Size() != 6 {
		t.Errorf("Size = %d, want 6", c.Size())
	}
}

func TestCacheReplaceKey(t *testing.T) {
	c := NewLRUCache(1024)
	defer c.Close()

	c.Put(7, []byte("short"))
	c.Put(7, []byte("a longer value"))

	got, ok := c.Get(7)
	if !ok || string(got) != "a longer value" {
		t.Errorf("Get(7) = %q, %v after replace", got, ok)
	}
	if c.Size() != 14 {
		t.Errorf("Size = %d after replace, want 14", c.Size())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	c.Put(1, []byte("aaaa"))
	c.Put(2, []byte("bbbb"))
	// Touch 1 so that 2 becomes the eviction candidate.
	if _, ok := c.Get(1); !ok {
		t.Fatal("Get(1) should hit")
	}
	c.Put(3, []byte("cccc"))

	if _, ok := c.Get(2); ok {
		t.Error("2 should have been evicted as least recently used")
	}
	if _, ok := c.Get(1); !ok {
		t.Error("1 should have survived")
	}
	if _, ok := c.Get(3); !ok {
		t.Error("3 should be present")
	}
}

func TestCacheSoftLimit(t *testing.T) {
	c := NewLRUCache(8)
	defer c.Close()

	// A single entry larger than the capacity is still admitted:
	// eviction stops on an empty cache rather than rejecting the put.
	big := bytes.Repeat([]byte{0xEE}, 100)
	c.Put(1, big)

	got, ok := c.Get(1)
	if !ok || !bytes.Equal(got, big) {
		t.Error("oversized entry should still be cached")
	}
	if c.Size() != 100 {
		t.Errorf("Size = %d, want 100 (soft limit exceeded)", c.Size())
	}
}

func TestCacheSpillAndReload(t *testing.T) {
	c := NewLRUCache(spillThreshold + 1024)
	defer c.Close()

	large := bytes.Repeat([]byte{0xAB}, spillThreshold+1)
	c.Put(1, large)
	// Inserting a second large entry evicts the first, which is over
	// the spill threshold and goes to disk.
	other := bytes.Repeat([]byte{0xCD}, spillThreshold+1)
	c.Put(2, other)

	got, ok := c.Get(1)
	if !ok {
		t.Fatal("spilled entry should reload from disk")
	}
	if !bytes.Equal(got, large) {
		t.Error("reloaded entry differs from original")
	}
	// The reload re-inserted 1, which in turn evicted 2 — also large
	// enough to spill. Both directions of the cycle must work.
	got, ok = c.Get(2)
	if !ok {
		t.Fatal("second spilled entry should reload from disk")
	}
	if !bytes.Equal(got, other) {
		t.Error("second reloaded entry differs from original")
	}
}

func TestCacheSmallEvictionNotSpilled(t *testing.T) {
	c := NewLRUCache(16)
	defer c.Close()

	c.Put(1, []byte("small entry converts"))
	c.Put(2, []byte("evicts the first"))

	if _, ok := c.Get(1); ok {
		t.Error("small evicted entry should be gone, not spilled")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := NewLRUCache(0)
	defer c.Close()

	c.Put(1, []byte("ignored"))
	if _, ok := c.Get(1); ok {
		t.Error("zero-capacity cache should never hit")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestCacheCloseDropsSpillFiles(t *testing.T) {
	c := NewLRUCache(spillThreshold + 1024)

	large := bytes.Repeat([]byte{0x11}, spillThreshold+1)
	c.Put(1, large)
	c.Put(2, bytes.Repeat([]byte{0x22}, spillThreshold+1))

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// The in-memory entry for 2 is still reachable, but the spilled
	// entry for 1 is gone with the directory.
	if _, ok := c.Get(1); ok {
		t.Error("spilled entry should be unavailable after Close")
	}
}
