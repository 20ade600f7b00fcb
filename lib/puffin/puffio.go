// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package puffin

import "fmt"

// PuffWriter is the bounded byte sink a [Puffer] expands a deflate
// block run into. The stream verifies after the codec returns that
// exactly the expected number of puff bytes was produced, so the
// writer tracks its size precisely and refuses to overflow.
type PuffWriter struct {
	data []byte
	pos  int
}

// NewPuffWriter creates a writer over data. The codec may produce at
// most len(data) bytes.
func NewPuffWriter(data []byte) *PuffWriter {
	return &PuffWriter{data: data}
}

// Write appends p to the puff buffer, all or nothing.
func (w *PuffWriter) Write(p []byte) error {
	if w.pos+len(p) > len(w.data) {
		return fmt.Errorf("puffin: puff output overflow: %d bytes into %d-byte buffer at %d",
			len(p), len(w.data), w.pos)
	}
	copy(w.data[w.pos:], p)
	w.pos += len(p)
	return nil
}

// WriteByte appends a single byte.
func (w *PuffWriter) WriteByte(b byte) error {
	if w.pos >= len(w.data) {
		return fmt.Errorf("puffin: puff output overflow: 1 byte into %d-byte buffer at %d",
			len(w.data), w.pos)
	}
	w.data[w.pos] = b
	w.pos++
	return nil
}

// Size returns the number of puff bytes produced so far.
func (w *PuffWriter) Size() int {
	return w.pos
}

// PuffReader is the bounded byte source a [Huffer] reads a puff
// buffer back from. The stream verifies after the codec returns that
// the buffer was fully drained.
type PuffReader struct {
	data []byte
	pos  int
}

// NewPuffReader creates a reader over data.
func NewPuffReader(data []byte) *PuffReader {
	return &PuffReader{data: data}
}

// Read fills p from the puff buffer, all or nothing.
func (r *PuffReader) Read(p []byte) error {
	if r.pos+len(p) > len(r.data) {
		return fmt.Errorf("puffin: puff input underflow: %d bytes from %d left",
			len(p), len(r.data)-r.pos)
	}
	copy(p, r.data[r.pos:])
	r.pos += len(p)
	return nil
}

// ReadByte consumes a single byte.
func (r *PuffReader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("puffin: puff input underflow: empty")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// BytesLeft returns the number of unconsumed puff bytes.
func (r *PuffReader) BytesLeft() int {
	return len(r.data) - r.pos
}
