// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package bitio

import "fmt"

// BitWriter produces a bit stream into a fixed-size byte slice, least
// significant bit first. After every WriteBits call the buffer holds
// all bits written so far, including a trailing partial byte (its
// unwritten high bits are zero). Size reports the byte length of the
// stream, counting that partial byte.
type BitWriter struct {
	data   []byte
	pos    int    // number of complete bytes written
	cache  uint64 // pending bits not yet forming a complete byte
	cached uint   // number of valid bits in cache, always < 8
}

// NewBitWriter creates a writer over data. Writing more than
// len(data)*8 bits fails.
func NewBitWriter(data []byte) *BitWriter {
	return &BitWriter{data: data}
}

// WriteBits appends the n low bits of bits to the stream. n may be
// zero, which writes nothing and always succeeds.
func (w *BitWriter) WriteBits(n uint, bits uint32) error {
	if n > 32 {
		return fmt.Errorf("bitio: cannot write %d bits at once (max 32)", n)
	}
	if w.pos*8+int(w.cached)+int(n) > len(w.data)*8 {
		return fmt.Errorf("bitio: output overflow writing %d bits (%d of %d bits used)",
			n, w.pos*8+int(w.cached), len(w.data)*8)
	}
	w.cache |= uint64(bits&(1<<n-1)) << w.cached
	w.cached += n
	for w.cached >= 8 {
		w.data[w.pos] = byte(w.cache)
		w.pos++
		w.cache >>= 8
		w.cached -= 8
	}
	if w.cached > 0 {
		// Keep the partial byte visible in the buffer.
		w.data[w.pos] = byte(w.cache)
	}
	return nil
}

// Size returns the stream length in bytes, counting a trailing
// partial byte as a full byte.
func (w *BitWriter) Size() int {
	if w.cached > 0 {
		return w.pos + 1
	}
	return w.pos
}

// BitOffset returns the number of bits written so far.
func (w *BitWriter) BitOffset() int {
	return w.pos*8 + int(w.cached)
}
