// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package puffin

import (
	"errors"
	"fmt"
)

// ErrInvalidExtents is wrapped by all extent table validation
// failures. Check with errors.Is.
var ErrInvalidExtents = errors.New("puffin: invalid extent tables")

// BitExtent is a bit range in the compressed deflate stream. Offset
// and Length are in bits. Extents are immutable once constructed; the
// caller who discovered the deflate block boundaries supplies them.
type BitExtent struct {
	Offset uint64 `cbor:"offset"`
	Length uint64 `cbor:"length"`
}

// ByteExtent is a byte range in the logical puffed stream. The i-th
// ByteExtent is the puffed expansion of the i-th BitExtent.
type ByteExtent struct {
	Offset uint64 `cbor:"offset"`
	Length uint64 `cbor:"length"`
}

// ValidateExtents checks that the two parallel tables are well formed
// for a puffed stream of puffSize bytes: equal lengths, both sorted
// and non-overlapping, and puffSize covering the last puff extent.
func ValidateExtents(deflates []BitExtent, puffs []ByteExtent, puffSize uint64) error {
	if len(deflates) != len(puffs) {
		return fmt.Errorf("%w: %d deflates but %d puffs",
			ErrInvalidExtents, len(deflates), len(puffs))
	}
	if len(puffs) > 0 {
		last := puffs[len(puffs)-1]
		if puffSize < last.Offset+last.Length {
			return fmt.Errorf("%w: puff size %d smaller than last puff end %d",
				ErrInvalidExtents, puffSize, last.Offset+last.Length)
		}
	}
	for i := 1; i < len(deflates); i++ {
		if deflates[i-1].Offset+deflates[i-1].Length > deflates[i].Offset {
			return fmt.Errorf("%w: deflate extents %d and %d overlap or are unsorted",
				ErrInvalidExtents, i-1, i)
		}
	}
	for i := 1; i < len(puffs); i++ {
		if puffs[i-1].Offset+puffs[i-1].Length > puffs[i].Offset {
			return fmt.Errorf("%w: puff extents %d and %d overlap or are unsorted",
				ErrInvalidExtents, i-1, i)
		}
	}
	return nil
}

// extentTable holds the validated deflate/puff extent pairs plus the
// derived lookup data the stream needs. Both slices carry one extra
// sentinel pair covering "after the last real extent, up to the end of
// the stream", so the seek/read/write loops never special-case the
// tail. A single index addresses both slices; they always move in
// lockstep.
type extentTable struct {
	deflates []BitExtent  // sorted, with trailing sentinel
	puffs    []ByteExtent // sorted, with trailing sentinel

	// upperBounds[i] is the end offset of puffs[i] in the puffed
	// stream, with a final puffSize+1 sentinel so that any offset
	// ≤ puffSize has a strict upper bound.
	upperBounds []uint64

	// Buffer sizing, computed once over the real extents.
	maxPuffLength   uint64 // largest puff extent, in bytes
	maxDeflateBytes uint64 // largest deflate extent's byte span, worst alignment
}

// newExtentTable validates the tables and builds the derived data.
func newExtentTable(deflates []BitExtent, puffs []ByteExtent, puffSize uint64) (*extentTable, error) {
	if err := ValidateExtents(deflates, puffs, puffSize); err != nil {
		return nil, err
	}

	t := &extentTable{
		deflates:    make([]BitExtent, len(deflates), len(deflates)+1),
		puffs:       make([]ByteExtent, len(puffs), len(puffs)+1),
		upperBounds: make([]uint64, 0, len(puffs)+1),
	}
	copy(t.deflates, deflates)
	copy(t.puffs, puffs)

	for _, p := range puffs {
		t.upperBounds = append(t.upperBounds, p.Offset+p.Length)
		if p.Length > t.maxPuffLength {
			t.maxPuffLength = p.Length
		}
	}
	t.upperBounds = append(t.upperBounds, puffSize+1)

	for _, d := range deflates {
		// A deflate extent of L bits spans at most (L+7)/8+1 bytes
		// once its start falls mid-byte.
		if span := (d.Length+7)/8 + 1; span > t.maxDeflateBytes {
			t.maxDeflateBytes = span
		}
	}

	// The compressed stream's size is not knowable from the stream
	// itself (in the huff direction it is still being written), but
	// it follows from the extents: the tail of the compressed stream
	// after the last deflate is the same bytes as the tail of the
	// puffed stream after the last puff.
	deflateStreamSize := puffSize
	if len(puffs) > 0 {
		lastDeflate := deflates[len(deflates)-1]
		lastPuff := puffs[len(puffs)-1]
		deflateStreamSize = (lastDeflate.Offset+lastDeflate.Length)/8 +
			puffSize - (lastPuff.Offset + lastPuff.Length)
	}
	t.deflates = append(t.deflates, BitExtent{Offset: deflateStreamSize * 8})
	t.puffs = append(t.puffs, ByteExtent{Offset: puffSize})

	return t, nil
}

// len returns the number of extent pairs including the sentinel.
func (t *extentTable) len() int {
	return len(t.puffs)
}
