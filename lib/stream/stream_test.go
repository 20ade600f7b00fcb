// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryReadWrite(t *testing.T) {
	m := NewMemory([]byte("hello world"))

	buf := make([]byte, 5)
	if err := m.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("Read = %q, want %q", buf, "hello")
	}

	if err := m.Seek(6); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if err := m.Read(buf); err != nil {
		t.Fatalf("Read after Seek failed: %v", err)
	}
	if string(buf) != "world" {
		t.Errorf("Read = %q, want %q", buf, "world")
	}
}

func TestMemoryShortReadFails(t *testing.T) {
	m := NewMemory([]byte("abc"))
	buf := make([]byte, 4)
	if err := m.Read(buf); err == nil {
		t.Error("Read past end should fail, not short-read")
	}
}

func TestMemorySeekPastEndFails(t *testing.T) {
	m := NewMemory([]byte("abc"))
	if err := m.Seek(4); err == nil {
		t.Error("Seek past end should fail")
	}
	if err := m.Seek(3); err != nil {
		t.Errorf("Seek to end should succeed: %v", err)
	}
}

func TestMemoryWriteGrows(t *testing.T) {
	m := NewMemory(nil)
	if err := m.Write([]byte("abcdef")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := m.Seek(3); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if err := m.Write([]byte("XYZW")); err != nil {
		t.Fatalf("overlapping Write failed: %v", err)
	}
	if got := string(m.Bytes()); got != "abcXYZW" {
		t.Errorf("Bytes = %q, want %q", got, "abcXYZW")
	}
	size, err := m.Size()
	if err != nil || size != 7 {
		t.Errorf("Size = %d, %v, want 7", size, err)
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory([]byte("abc"))
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Read(make([]byte, 1)); err == nil {
		t.Error("Read after Close should fail")
	}
	if err := m.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.bin")
	content := bytes.Repeat([]byte{0xA5, 0x5A, 0x00, 0xFF}, 64)

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.Write(content); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	size, err := r.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != uint64(len(content)) {
		t.Errorf("Size = %d, want %d", size, len(content))
	}

	if err := r.Seek(4); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	buf := make([]byte, 4)
	if err := r.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(buf, content[4:8]) {
		t.Errorf("Read = %x, want %x", buf, content[4:8])
	}
}

func TestFileReadPastEndFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, []byte("ab"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if err := f.Read(make([]byte, 3)); err == nil {
		t.Error("Read past end of file should fail")
	}
}
