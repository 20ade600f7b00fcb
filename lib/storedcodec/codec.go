// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

// Package storedcodec transcodes stored (uncompressed) deflate
// blocks between their bit-level form and a byte-aligned puff form.
//
// A stored block is BTYPE 00: a 3-bit header, zero padding to the
// next byte boundary, a little-endian LEN/NLEN pair, and LEN literal
// bytes. Deflate writers emit runs of these at compression level 0 —
// klauspost/compress and the standard library both do — which makes
// stored runs the simplest real deflate input that still exercises
// the whole transcoding machinery.
//
// The puff form of a block is 1 header byte (bit 0 = final flag), a
// little-endian 2-byte length, and the literal bytes: everything
// byte-aligned, so a puffed stream can be patched and sliced without
// bit arithmetic. A run puffs to 3 bytes less per block than its
// deflate form occupies (the 5 padding bits and NLEN disappear) and
// huffs back bit-exactly.
//
// [FindDeflates] locates stored runs inside a gzip file so the
// command-line tool can build extent tables from real archives.
package storedcodec

import (
	"fmt"

	"github.com/xiaoxindada/delta-generator-build/lib/bitio"
	"github.com/xiaoxindada/delta-generator-build/lib/puffin"
)

// Codec puffs and huffs runs of stored deflate blocks. It is
// stateless; the zero value is ready to use.
type Codec struct{}

var (
	_ puffin.Puffer = Codec{}
	_ puffin.Huffer = Codec{}
)

// PuffDeflate reads stored blocks until the final-block flag and
// writes their puff form. Runs must start byte-aligned, which deflate
// guarantees for a stream's first block and stored blocks guarantee
// for every successor.
func (Codec) PuffDeflate(r *bitio.BitReader, w *puffin.PuffWriter) error {
	if r.BitOffset()%8 != 0 {
		return fmt.Errorf("storedcodec: block run starts at unaligned bit %d", r.BitOffset())
	}
	for {
		if err := r.CacheBits(8); err != nil {
			return fmt.Errorf("storedcodec: block header: %w", err)
		}
		final := r.ReadBits(1)
		r.DropBits(1)
		if blockType := r.ReadBits(2); blockType != 0 {
			return fmt.Errorf("storedcodec: block type %d, only stored blocks supported", blockType)
		}
		r.DropBits(2)
		if padding := r.ReadBits(5); padding != 0 {
			return fmt.Errorf("storedcodec: nonzero padding bits %#x", padding)
		}
		r.DropBits(5)

		if err := r.CacheBits(32); err != nil {
			return fmt.Errorf("storedcodec: block length: %w", err)
		}
		length := r.ReadBits(16)
		r.DropBits(16)
		inverse := r.ReadBits(16)
		r.DropBits(16)
		if inverse != ^length&0xFFFF {
			return fmt.Errorf("storedcodec: LEN %#x does not match NLEN %#x", length, inverse)
		}

		if err := w.WriteByte(byte(final)); err != nil {
			return err
		}
		if err := w.WriteByte(byte(length)); err != nil {
			return err
		}
		if err := w.WriteByte(byte(length >> 8)); err != nil {
			return err
		}
		for i := uint32(0); i < length; i++ {
			if err := r.CacheBits(8); err != nil {
				return fmt.Errorf("storedcodec: block data: %w", err)
			}
			if err := w.WriteByte(byte(r.ReadBits(8))); err != nil {
				return err
			}
			r.DropBits(8)
		}

		if final == 1 {
			return nil
		}
	}
}

// HuffDeflate reads puffed blocks and re-emits their exact deflate
// bits, consuming the puff buffer to the end.
func (Codec) HuffDeflate(r *puffin.PuffReader, w *bitio.BitWriter) error {
	for {
		header, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("storedcodec: puff header: %w", err)
		}
		if header > 1 {
			return fmt.Errorf("storedcodec: puff header %#x, want 0 or 1", header)
		}
		low, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("storedcodec: puff length: %w", err)
		}
		high, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("storedcodec: puff length: %w", err)
		}
		length := uint32(low) | uint32(high)<<8

		if err := w.WriteBits(1, uint32(header)); err != nil {
			return err
		}
		if err := w.WriteBits(2, 0); err != nil {
			return err
		}
		if err := w.WriteBits(5, 0); err != nil {
			return err
		}
		if err := w.WriteBits(16, length); err != nil {
			return err
		}
		if err := w.WriteBits(16, ^length&0xFFFF); err != nil {
			return err
		}
		for i := uint32(0); i < length; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return fmt.Errorf("storedcodec: puff data: %w", err)
			}
			if err := w.WriteBits(8, uint32(b)); err != nil {
				return err
			}
		}

		if header == 1 {
			if left := r.BytesLeft(); left != 0 {
				return fmt.Errorf("storedcodec: %d puff bytes after the final block", left)
			}
			return nil
		}
		if r.BytesLeft() == 0 {
			return fmt.Errorf("storedcodec: puff run ends without a final block")
		}
	}
}
