// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package bitio

import "fmt"

// maxCachedBits is the largest number of bits CacheBits can guarantee.
// The cache is a uint64 refilled a byte at a time, so once 57 bits are
// cached another whole byte may not fit.
const maxCachedBits = 57

// BitReader consumes a byte slice bit by bit, least significant bit
// first. It never copies the input.
type BitReader struct {
	data   []byte
	pos    int    // index of the next byte to load into the cache
	cache  uint64 // loaded bits, low bits are oldest
	cached uint   // number of valid bits in cache
}

// NewBitReader creates a reader over data.
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// CacheBits ensures at least n bits are available to ReadBits. It
// fails when the input has fewer bits left or n exceeds the cache
// capacity of 57 bits.
func (r *BitReader) CacheBits(n uint) error {
	if n > maxCachedBits {
		return fmt.Errorf("bitio: cannot cache %d bits (max %d)", n, maxCachedBits)
	}
	for r.cached < n {
		if r.pos >= len(r.data) {
			return fmt.Errorf("bitio: input exhausted caching %d bits (%d available)", n, r.cached)
		}
		r.cache |= uint64(r.data[r.pos]) << r.cached
		r.pos++
		r.cached += 8
	}
	return nil
}

// ReadBits returns the n oldest cached bits without consuming them.
// The caller must have cached at least n bits.
func (r *BitReader) ReadBits(n uint) uint32 {
	return uint32(r.cache & (1<<n - 1))
}

// DropBits consumes n cached bits. The caller must have cached at
// least n bits.
func (r *BitReader) DropBits(n uint) {
	r.cache >>= n
	r.cached -= n
}

// Offset returns the number of input bytes consumed so far. A
// partially consumed byte counts as consumed; only whole unread bytes
// sitting in the cache are excluded.
func (r *BitReader) Offset() int {
	return r.pos - int(r.cached/8)
}

// BitOffset returns the number of input bits consumed so far.
func (r *BitReader) BitOffset() int {
	return r.pos*8 - int(r.cached)
}

// BitsLeft returns the number of unconsumed bits, cached or not.
func (r *BitReader) BitsLeft() int {
	return (len(r.data)-r.pos)*8 + int(r.cached)
}
