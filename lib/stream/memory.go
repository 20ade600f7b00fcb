// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "fmt"

// Memory is a Stream over an in-memory byte buffer. Reads are bounded
// by the current length; writes extend the buffer as needed. The zero
// value is an empty writable stream.
type Memory struct {
	data   []byte
	pos    uint64
	closed bool
}

// NewMemory creates a memory stream over data. The slice is used
// directly, not copied — the caller must not modify it while the
// stream is in use. Writes past the end of the slice reallocate.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

// Bytes returns the stream's current contents. The returned slice
// aliases the stream's buffer.
func (m *Memory) Bytes() []byte {
	return m.data
}

// Seek moves the position to an absolute byte offset. Seeking past
// the current end is allowed only up to the end itself; subsequent
// writes extend the buffer from there.
func (m *Memory) Seek(offset uint64) error {
	if m.closed {
		return ErrClosed
	}
	if offset > uint64(len(m.data)) {
		return fmt.Errorf("memory stream: seek to %d beyond size %d", offset, len(m.data))
	}
	m.pos = offset
	return nil
}

// Read fills p completely from the current position or fails.
func (m *Memory) Read(p []byte) error {
	if m.closed {
		return ErrClosed
	}
	if m.pos+uint64(len(p)) > uint64(len(m.data)) {
		return fmt.Errorf("memory stream: read of %d bytes at %d beyond size %d",
			len(p), m.pos, len(m.data))
	}
	copy(p, m.data[m.pos:])
	m.pos += uint64(len(p))
	return nil
}

// Write writes all of p at the current position, growing the buffer
// if the write extends past the current end.
func (m *Memory) Write(p []byte) error {
	if m.closed {
		return ErrClosed
	}
	if end := m.pos + uint64(len(p)); end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:], p)
	m.pos += uint64(len(p))
	return nil
}

// Size returns the current buffer length.
func (m *Memory) Size() (uint64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	return uint64(len(m.data)), nil
}

// Close marks the stream closed. The buffer remains readable via
// Bytes, which callers use to collect the result of a huff pass.
func (m *Memory) Close() error {
	m.closed = true
	return nil
}
