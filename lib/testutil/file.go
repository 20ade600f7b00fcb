// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// TempFile writes contents to name inside a fresh per-test temporary
// directory and returns the full path. The directory is removed when
// the test completes.
func TempFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// ReadFile reads the file at path, failing the test on error.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return data
}

// RandomBytes returns n pseudo-random bytes from a fixed seed:
// incompressible like real payload data, identical on every run.
func RandomBytes(t *testing.T, seed int64, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}
