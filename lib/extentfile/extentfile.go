// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

// Package extentfile persists the extent tables of a deflate stream
// between pipeline stages.
//
// Locating deflate blocks and transcoding them happen at different
// times, often on different machines: the build side finds the blocks
// and records where they live, the apply side opens the puffed view
// using those records. The extent file carries the (puff size,
// deflate extents, puff extents) triple across that gap.
//
// The format is a small binary envelope around a deterministic CBOR
// payload: a magic/version header, a compression tag, the
// uncompressed payload size, and a BLAKE3-256 checksum of the stored
// payload. The payload is lz4 block-compressed unless that would not
// shrink it, in which case it is stored raw. Load verifies the
// envelope, the checksum, the exact decompressed size, and the extent
// invariants before returning anything.
package extentfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/xiaoxindada/delta-generator-build/lib/codec"
	"github.com/xiaoxindada/delta-generator-build/lib/puffin"
)

// FormatVersion is the current extent file format version. Readers
// reject files written with a different version.
const FormatVersion uint32 = 1

// ErrCorrupt is wrapped by every Unmarshal and Load failure caused by
// the file's contents rather than by I/O.
var ErrCorrupt = errors.New("extentfile: corrupt file")

const (
	fileMagic = "PFXT"

	compressionNone uint8 = 0
	compressionLZ4  uint8 = 1

	// magic + version + tag + uncompressed size + checksum.
	headerSize = 4 + 4 + 1 + 8 + 32

	// maxPayloadSize bounds the decode allocation. An extent table
	// this large would describe hundreds of millions of blocks; a
	// declared size beyond it is corruption, not data.
	maxPayloadSize = 1 << 31
)

// Table is the extent metadata for one deflate stream: everything
// needed to construct a puffin stream over it except the stream
// itself and the codec.
type Table struct {
	PuffSize uint64              `cbor:"puff_size"`
	Deflates []puffin.BitExtent  `cbor:"deflates"`
	Puffs    []puffin.ByteExtent `cbor:"puffs"`
}

// Marshal serializes the table into the extent file format. The
// table's invariants are checked first so a malformed table can never
// be persisted.
func Marshal(table *Table) ([]byte, error) {
	if err := puffin.ValidateExtents(table.Deflates, table.Puffs, table.PuffSize); err != nil {
		return nil, err
	}

	payload, err := codec.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("extentfile: encoding payload: %w", err)
	}

	tag := compressionLZ4
	body, err := compressLZ4(payload)
	if errors.Is(err, errIncompressible) {
		tag = compressionNone
		body = payload
	} else if err != nil {
		return nil, err
	}

	checksum := blake3.Sum256(body)

	out := make([]byte, headerSize+len(body))
	copy(out, fileMagic)
	binary.LittleEndian.PutUint32(out[4:], FormatVersion)
	out[8] = tag
	binary.LittleEndian.PutUint64(out[9:], uint64(len(payload)))
	copy(out[17:], checksum[:])
	copy(out[headerSize:], body)
	return out, nil
}

// Unmarshal parses and verifies an extent file. Any mismatch in the
// envelope, checksum, size, or extent invariants wraps [ErrCorrupt].
func Unmarshal(data []byte) (*Table, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrCorrupt, len(data), headerSize)
	}
	if string(data[:4]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[:4])
	}
	if version := binary.LittleEndian.Uint32(data[4:]); version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d, reader supports %d", ErrCorrupt, version, FormatVersion)
	}
	tag := data[8]
	uncompressedSize := binary.LittleEndian.Uint64(data[9:])
	if uncompressedSize > maxPayloadSize {
		return nil, fmt.Errorf("%w: declared payload size %d exceeds limit", ErrCorrupt, uncompressedSize)
	}

	body := data[headerSize:]
	checksum := blake3.Sum256(body)
	if !bytes.Equal(checksum[:], data[17:17+32]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var payload []byte
	switch tag {
	case compressionNone:
		if uint64(len(body)) != uncompressedSize {
			return nil, fmt.Errorf("%w: raw payload is %d bytes, declared %d",
				ErrCorrupt, len(body), uncompressedSize)
		}
		payload = body
	case compressionLZ4:
		payload = make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(body, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 decompress: %v", ErrCorrupt, err)
		}
		if uint64(read) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed to %d bytes, declared %d",
				ErrCorrupt, read, uncompressedSize)
		}
	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrCorrupt, tag)
	}

	var table Table
	if err := codec.Unmarshal(payload, &table); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrCorrupt, err)
	}
	if err := puffin.ValidateExtents(table.Deflates, table.Puffs, table.PuffSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &table, nil
}

// Save writes the table to path atomically enough for build tooling:
// marshal fully, then a single WriteFile.
func Save(path string, table *Table) error {
	data, err := Marshal(table)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("extentfile: writing %s: %w", path, err)
	}
	return nil
}

// Load reads and verifies the table at path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extentfile: reading %s: %w", path, err)
	}
	table, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

var errIncompressible = errors.New("extentfile: incompressible payload")

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("extentfile: lz4 compress: %w", err)
	}
	// CompressBlock returns 0 when it determines the data is
	// incompressible; storing the raw payload is also better whenever
	// compression does not actually shrink it.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}
