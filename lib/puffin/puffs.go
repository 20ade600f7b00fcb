// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package puffin

import "fmt"

// FindPuffs computes the puff extent table matching a set of located
// deflate extents. puffLengths[i] is the puffed size of deflates[i],
// as reported by whatever located the blocks; deflateSize is the
// total size of the compressed stream in bytes.
//
// Each gap between deflate extents appears in the puffed stream as
// whole bytes: every byte touching the gap is included, so a deflate
// ending mid-byte shares its last byte with the following gap and a
// deflate starting mid-byte shares its first. The returned table and
// total puff size satisfy the construction invariants of
// [NewForPuff].
func FindPuffs(deflates []BitExtent, puffLengths []uint64,
	deflateSize uint64) ([]ByteExtent, uint64, error) {
	if len(deflates) != len(puffLengths) {
		return nil, 0, fmt.Errorf("%w: %d deflates, %d puff lengths",
			ErrInvalidExtents, len(deflates), len(puffLengths))
	}

	puffs := make([]ByteExtent, 0, len(deflates))
	var puffOffset, previousEndBit uint64
	for i, d := range deflates {
		if d.Offset < previousEndBit {
			return nil, 0, fmt.Errorf("%w: deflate extent %d overlaps its predecessor",
				ErrInvalidExtents, i)
		}
		// Raw bytes between the previous deflate's last bit and this
		// one's first bit, counted once each.
		puffOffset += (d.Offset+7)/8 - previousEndBit/8
		puffs = append(puffs, ByteExtent{Offset: puffOffset, Length: puffLengths[i]})
		puffOffset += puffLengths[i]
		previousEndBit = d.Offset + d.Length
	}

	if (previousEndBit+7)/8 > deflateSize {
		return nil, 0, fmt.Errorf("%w: deflate extents run past the %d-byte stream",
			ErrInvalidExtents, deflateSize)
	}
	puffSize := puffOffset + deflateSize - previousEndBit/8
	return puffs, puffSize, nil
}
