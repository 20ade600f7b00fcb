// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"io"
	"os"
)

// File is a Stream over an operating system file. The file's own
// position is the stream position; Seek maps directly onto the file
// descriptor.
type File struct {
	file   *os.File
	closed bool
}

// Open opens an existing file as a read-only stream.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &File{file: f}, nil
}

// Create creates (or truncates) a file as a read-write stream.
func Create(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &File{file: f}, nil
}

// Seek moves the file position to an absolute byte offset.
func (f *File) Seek(offset uint64) error {
	if f.closed {
		return ErrClosed
	}
	if _, err := f.file.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("seeking %s to %d: %w", f.file.Name(), offset, err)
	}
	return nil
}

// Read fills p completely from the current position. A short read,
// including one caused by end of file, is an error.
func (f *File) Read(p []byte) error {
	if f.closed {
		return ErrClosed
	}
	if _, err := io.ReadFull(f.file, p); err != nil {
		return fmt.Errorf("reading %d bytes from %s: %w", len(p), f.file.Name(), err)
	}
	return nil
}

// Write writes all of p at the current position.
func (f *File) Write(p []byte) error {
	if f.closed {
		return ErrClosed
	}
	if _, err := f.file.Write(p); err != nil {
		return fmt.Errorf("writing %d bytes to %s: %w", len(p), f.file.Name(), err)
	}
	return nil
}

// Size returns the file's current length.
func (f *File) Size() (uint64, error) {
	if f.closed {
		return 0, ErrClosed
	}
	info, err := f.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", f.file.Name(), err)
	}
	return uint64(info.Size()), nil
}

// Close closes the underlying file. Closing twice is an error from
// the OS, not a panic.
func (f *File) Close() error {
	f.closed = true
	return f.file.Close()
}
