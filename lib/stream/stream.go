// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "errors"

// ErrClosed is returned by operations on a closed stream.
var ErrClosed = errors.New("stream: closed")

// Stream is a seekable byte stream with all-or-nothing reads and
// writes. Implementations must fill the entire buffer on Read and
// consume the entire buffer on Write, or return an error. Partial
// progress is reported as failure.
type Stream interface {
	// Seek moves the stream position to an absolute byte offset.
	Seek(offset uint64) error

	// Read fills p completely from the current position or fails.
	Read(p []byte) error

	// Write writes all of p at the current position or fails.
	Write(p []byte) error

	// Size returns the current length of the stream in bytes.
	Size() (uint64, error)

	// Close releases the stream. Operations after Close fail.
	Close() error
}
