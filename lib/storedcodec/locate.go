// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package storedcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/xiaoxindada/delta-generator-build/lib/puffin"
)

// gzip member framing (RFC 1952).
const (
	gzipID1           = 0x1F
	gzipID2           = 0x8B
	gzipMethodDeflate = 8

	gzipFlagHeaderCRC = 1 << 1
	gzipFlagExtra     = 1 << 2
	gzipFlagName      = 1 << 3
	gzipFlagComment   = 1 << 4

	gzipBaseHeaderSize = 10
	gzipTrailerSize    = 8
)

// FindDeflates scans a gzip file whose members hold stored deflate
// blocks and returns the bit extent of each member's deflate run
// together with the run's puffed length. Member headers and trailers
// fall between extents and pass through transcoding untouched.
//
// Files produced with klauspost/compress/gzip or compress/gzip at
// [flate.NoCompression] have exactly this shape. Any other block type
// is an error: locating huffman-coded blocks needs a full decoder.
func FindDeflates(data []byte) ([]puffin.BitExtent, []uint64, error) {
	var (
		deflates    []puffin.BitExtent
		puffLengths []uint64
	)

	pos := 0
	for member := 0; pos < len(data); member++ {
		headerEnd, err := parseMemberHeader(data, pos)
		if err != nil {
			return nil, nil, fmt.Errorf("storedcodec: gzip member %d: %w", member, err)
		}

		runStart := headerEnd
		runPuffLength := uint64(0)
		pos = headerEnd
		for {
			if pos+5 > len(data) {
				return nil, nil, fmt.Errorf("storedcodec: gzip member %d: truncated block header", member)
			}
			header := data[pos]
			if blockType := header >> 1 & 3; blockType != 0 {
				return nil, nil, fmt.Errorf("storedcodec: gzip member %d: block type %d at byte %d, only stored blocks supported",
					member, blockType, pos)
			}
			if header&0xF8 != 0 {
				return nil, nil, fmt.Errorf("storedcodec: gzip member %d: nonzero padding at byte %d", member, pos)
			}
			length := int(binary.LittleEndian.Uint16(data[pos+1:]))
			inverse := binary.LittleEndian.Uint16(data[pos+3:])
			if inverse != ^uint16(length) {
				return nil, nil, fmt.Errorf("storedcodec: gzip member %d: LEN/NLEN mismatch at byte %d", member, pos)
			}
			if pos+5+length > len(data) {
				return nil, nil, fmt.Errorf("storedcodec: gzip member %d: truncated block data", member)
			}
			pos += 5 + length
			runPuffLength += uint64(3 + length)
			if header&1 == 1 {
				break
			}
		}

		deflates = append(deflates, puffin.BitExtent{
			Offset: uint64(runStart) * 8,
			Length: uint64(pos-runStart) * 8,
		})
		puffLengths = append(puffLengths, runPuffLength)

		if pos+gzipTrailerSize > len(data) {
			return nil, nil, fmt.Errorf("storedcodec: gzip member %d: truncated trailer", member)
		}
		pos += gzipTrailerSize
	}

	return deflates, puffLengths, nil
}

// parseMemberHeader validates the fixed gzip header at pos and skips
// the optional fields, returning the offset of the deflate data.
func parseMemberHeader(data []byte, pos int) (int, error) {
	if pos+gzipBaseHeaderSize > len(data) {
		return 0, fmt.Errorf("truncated header")
	}
	if data[pos] != gzipID1 || data[pos+1] != gzipID2 {
		return 0, fmt.Errorf("bad magic %#x %#x", data[pos], data[pos+1])
	}
	if data[pos+2] != gzipMethodDeflate {
		return 0, fmt.Errorf("compression method %d, want deflate", data[pos+2])
	}
	flags := data[pos+3]
	pos += gzipBaseHeaderSize

	if flags&gzipFlagExtra != 0 {
		if pos+2 > len(data) {
			return 0, fmt.Errorf("truncated extra field")
		}
		extraLength := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2 + extraLength
		if pos > len(data) {
			return 0, fmt.Errorf("truncated extra field")
		}
	}
	for _, flag := range []byte{gzipFlagName, gzipFlagComment} {
		if flags&flag == 0 {
			continue
		}
		for {
			if pos >= len(data) {
				return 0, fmt.Errorf("unterminated header string")
			}
			pos++
			if data[pos-1] == 0 {
				break
			}
		}
	}
	if flags&gzipFlagHeaderCRC != 0 {
		pos += 2
		if pos > len(data) {
			return 0, fmt.Errorf("truncated header checksum")
		}
	}
	return pos, nil
}
