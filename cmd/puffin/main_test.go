// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/xiaoxindada/delta-generator-build/lib/extentfile"
	"github.com/xiaoxindada/delta-generator-build/lib/testutil"
)

func gzipFixture(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buffer, gzip.NoCompression)
	if err != nil {
		t.Fatalf("gzip.NewWriterLevel: %v", err)
	}
	if _, err := writer.Write(payload); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buffer.Bytes()
}

func TestFindPuffHuffPipeline(t *testing.T) {
	payload := testutil.RandomBytes(t, 17, 200000)
	original := gzipFixture(t, payload)

	inputPath := testutil.TempFile(t, "input.gz", original)
	workDir := filepath.Dir(inputPath)
	extentsPath := filepath.Join(workDir, "input.pfxt")
	puffedPath := filepath.Join(workDir, "input.puff")
	restoredPath := filepath.Join(workDir, "restored.gz")

	var out bytes.Buffer
	if err := run([]string{"find", "--extents", extentsPath, inputPath}, &out); err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !strings.Contains(out.String(), "deflate runs") {
		t.Errorf("find output %q missing summary", out.String())
	}

	table, err := extentfile.Load(extentsPath)
	if err != nil {
		t.Fatalf("loading extent table: %v", err)
	}
	if table.PuffSize <= uint64(len(payload)) {
		t.Errorf("puff size %d not larger than payload %d", table.PuffSize, len(payload))
	}

	out.Reset()
	err = run([]string{"puff", "--extents", extentsPath, "--output", puffedPath,
		"--cache-size", "65536", "--verify", inputPath}, &out)
	if err != nil {
		t.Fatalf("puff failed: %v", err)
	}
	if !strings.Contains(out.String(), "verified") {
		t.Errorf("puff output %q missing verification line", out.String())
	}

	puffed := testutil.ReadFile(t, puffedPath)
	if uint64(len(puffed)) != table.PuffSize {
		t.Fatalf("puffed file is %d bytes, extent table says %d", len(puffed), table.PuffSize)
	}
	// The puffed form of a stored run contains the literal payload
	// byte-aligned; spot-check that a slice of the payload surfaces.
	if !bytes.Contains(puffed, payload[1000:2000]) {
		t.Error("puffed file does not contain the literal payload bytes")
	}

	out.Reset()
	err = run([]string{"huff", "--extents", extentsPath, "--output", restoredPath,
		"--verify", puffedPath}, &out)
	if err != nil {
		t.Fatalf("huff failed: %v", err)
	}

	restored := testutil.ReadFile(t, restoredPath)
	if !bytes.Equal(restored, original) {
		t.Fatal("restored gzip differs from the original")
	}
}

func TestRunErrors(t *testing.T) {
	valid := testutil.TempFile(t, "valid.gz", gzipFixture(t, []byte("payload")))
	notGzip := testutil.TempFile(t, "plain.txt", []byte("not a gzip file"))

	tests := []struct {
		name string
		args []string
	}{
		{"no subcommand", nil},
		{"unknown subcommand", []string{"transmogrify"}},
		{"find without extents", []string{"find", valid}},
		{"find without input", []string{"find", "--extents", "out.pfxt"}},
		{"find on non-gzip input", []string{"find", "--extents", "out.pfxt", notGzip}},
		{"puff without output", []string{"puff", "--extents", "x.pfxt", valid}},
		{"huff with missing extent file", []string{"huff", "--extents", "absent.pfxt", "--output", "o.gz", valid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(tt.args, &out); err == nil {
				t.Errorf("run(%v) should fail", tt.args)
			}
		})
	}
}

func TestVersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"version"}, &out); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "puffin") {
		t.Errorf("version output %q missing binary name", out.String())
	}

	out.Reset()
	if err := run([]string{"help"}, &out); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(out.String(), "usage: puffin") {
		t.Errorf("help output %q missing usage", out.String())
	}
}
