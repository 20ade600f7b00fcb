// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package puffin

import (
	"errors"
	"fmt"
	"sort"

	"github.com/xiaoxindada/delta-generator-build/lib/bitio"
	"github.com/xiaoxindada/delta-generator-build/lib/stream"
)

// ErrClosed is returned by operations on a closed PuffinStream.
var ErrClosed = errors.New("puffin: stream closed")

// PuffinStream is a seekable view of the puffed form of a deflate
// stream. In the puff direction (created with [NewForPuff]) it reads
// compressed bytes from the underlying stream and serves puffed
// bytes. In the huff direction (created with [NewForHuff]) it accepts
// sequential writes of puffed bytes and emits the reconstructed
// compressed bytes to the underlying stream.
//
// A PuffinStream is not safe for concurrent use: the cursor is
// unsynchronized mutable state. Callers needing parallelism use
// independent instances over independent underlying streams.
type PuffinStream struct {
	stream stream.Stream
	puffer Puffer // non-nil in the puff direction
	huffer Huffer // non-nil in the huff direction

	puffSize uint64
	table    *extentTable
	cache    *LRUCache

	// The cursor. blockIndex addresses both extent slices of table in
	// lockstep. puffPos is the puffed-stream position of the start of
	// the current extent or gap; skipBytes is the distance from
	// puffPos to the externally visible position, and is only nonzero
	// while the cursor is inside a puff extent. deflateBitPos is the
	// matching bit position in the compressed stream. lastByte and
	// extraByte carry the partially assembled byte shared between
	// adjacent deflate blocks, huff direction only.
	blockIndex    int
	puffPos       uint64
	skipBytes     uint64
	deflateBitPos uint64
	lastByte      byte
	extraByte     uint64

	closed bool

	// Scratch buffers sized once from the largest extents. puffBuffer
	// has one spare byte for the deferred boundary byte in the huff
	// direction; deflateBuffer covers the worst-case byte span of the
	// largest deflate extent.
	puffBuffer    []byte
	deflateBuffer []byte
}

// PuffinStream behaves as a stream.Stream itself.
var _ stream.Stream = (*PuffinStream)(nil)

// NewForPuff creates a puff-direction stream: Read returns the puffed
// expansion of the compressed bytes in underlying. The extent tables
// are validated up front; puffSize is the total size of the puffed
// stream. maxCacheSize bounds the transcoded-block cache in bytes,
// zero disables it.
func NewForPuff(underlying stream.Stream, puffer Puffer, puffSize uint64,
	deflates []BitExtent, puffs []ByteExtent, maxCacheSize uint64) (*PuffinStream, error) {
	if puffer == nil {
		return nil, fmt.Errorf("puffin: nil puffer")
	}
	return newPuffinStream(underlying, puffer, nil, puffSize, deflates, puffs, maxCacheSize)
}

// NewForHuff creates a huff-direction stream: Write accepts the
// puffed stream sequentially and writes the reconstructed compressed
// bytes to underlying. Huffing has no cache — every block is huffed
// exactly once, in order.
func NewForHuff(underlying stream.Stream, huffer Huffer, puffSize uint64,
	deflates []BitExtent, puffs []ByteExtent) (*PuffinStream, error) {
	if huffer == nil {
		return nil, fmt.Errorf("puffin: nil huffer")
	}
	return newPuffinStream(underlying, nil, huffer, puffSize, deflates, puffs, 0)
}

func newPuffinStream(underlying stream.Stream, puffer Puffer, huffer Huffer,
	puffSize uint64, deflates []BitExtent, puffs []ByteExtent,
	maxCacheSize uint64) (*PuffinStream, error) {
	table, err := newExtentTable(deflates, puffs, puffSize)
	if err != nil {
		return nil, err
	}
	if err := underlying.Seek(0); err != nil {
		return nil, fmt.Errorf("puffin: seeking underlying stream: %w", err)
	}

	s := &PuffinStream{
		stream:        underlying,
		puffer:        puffer,
		huffer:        huffer,
		puffSize:      puffSize,
		table:         table,
		cache:         NewLRUCache(maxCacheSize),
		puffBuffer:    make([]byte, table.maxPuffLength+1),
		deflateBuffer: make([]byte, table.maxDeflateBytes),
	}
	if err := s.Seek(0); err != nil {
		s.cache.Close()
		return nil, err
	}
	return s, nil
}

// Size returns the total size of the puffed stream.
func (s *PuffinStream) Size() (uint64, error) {
	return s.puffSize, nil
}

// Offset returns the current position in the puffed stream.
func (s *PuffinStream) Offset() uint64 {
	return s.puffPos + s.skipBytes
}

// Seek positions the stream at an absolute offset in the puffed
// stream. The huff direction accepts only offset zero: huffing must
// process extents in order to assemble the bytes shared between
// adjacent deflate blocks. A failed Seek leaves the cursor in an
// undefined state; the stream must not be used afterwards.
func (s *PuffinStream) Seek(offset uint64) error {
	if s.closed {
		return ErrClosed
	}
	if s.huffer != nil && offset != 0 {
		return fmt.Errorf("puffin: huff direction is sequential, cannot seek to %d", offset)
	}
	if offset > s.puffSize {
		return fmt.Errorf("puffin: seek to %d beyond stream size %d", offset, s.puffSize)
	}

	// First extent whose end lies strictly beyond offset: either the
	// puff containing offset or the next one after it. The final
	// upper bound is puffSize+1, so the search always succeeds.
	index := sort.Search(len(s.table.upperBounds), func(i int) bool {
		return s.table.upperBounds[i] > offset
	})
	if index == len(s.table.upperBounds) {
		return fmt.Errorf("puffin: no extent covers offset %d", offset)
	}
	s.blockIndex = index

	currentDeflate := s.table.deflates[index]
	currentPuff := s.table.puffs[index]
	if offset < currentPuff.Offset {
		// Between two puffs. The deflate position mirrors the byte
		// distance back from the next deflate's first whole byte, but
		// never retreats into the previous deflate's tail.
		s.puffPos = offset
		backTrackBytes := currentPuff.Offset - offset
		s.deflateBitPos = ((currentDeflate.Offset+7)/8 - backTrackBytes) * 8
		if index > 0 {
			previous := s.table.deflates[index-1]
			if end := previous.Offset + previous.Length; s.deflateBitPos < end {
				s.deflateBitPos = end
			}
		}
	} else {
		// Inside a puff: snap to the extent start and remember the
		// remaining distance in skipBytes so Read resumes mid-block.
		s.puffPos = currentPuff.Offset
		s.deflateBitPos = currentDeflate.Offset
	}
	s.skipBytes = offset - s.puffPos

	if s.huffer != nil && offset == 0 {
		if err := s.stream.Seek(0); err != nil {
			return fmt.Errorf("puffin: seeking underlying stream: %w", err)
		}
		if err := s.setExtraByte(); err != nil {
			return err
		}
	}
	return nil
}

// Read fills p with the next len(p) bytes of the puffed stream,
// alternating between raw passthrough regions and transcoded deflate
// blocks. Exactly len(p) bytes are produced or an error is returned;
// a request running past the end of the stream is an error, not a
// short read.
func (s *PuffinStream) Read(p []byte) error {
	if s.closed {
		return ErrClosed
	}
	if s.puffer == nil {
		return fmt.Errorf("puffin: stream is huff-direction, cannot Read")
	}
	length := uint64(len(p))
	if s.blockIndex >= s.table.len() {
		if length == 0 {
			return nil
		}
		return fmt.Errorf("puffin: read past end of stream")
	}

	var bytesRead uint64
	for bytesRead < length {
		currentDeflate := s.table.deflates[s.blockIndex]
		currentPuff := s.table.puffs[s.blockIndex]

		if s.puffPos < currentPuff.Offset {
			// Raw passthrough between two deflates. Bytes straddling a
			// deflate bit boundary are included with the deflate bits
			// stripped: the first byte may carry the previous
			// deflate's tail in its low bits, the last byte may carry
			// the next deflate's head in its high bits.
			startByte := s.deflateBitPos / 8
			endByte := (currentDeflate.Offset + 7) / 8
			bytesToRead := min(length-bytesRead, endByte-startByte)
			if bytesToRead < 1 {
				return fmt.Errorf("puffin: empty passthrough at puff position %d", s.puffPos)
			}

			chunk := p[bytesRead : bytesRead+bytesToRead]
			if err := s.stream.Seek(startByte); err != nil {
				return fmt.Errorf("puffin: seeking passthrough at byte %d: %w", startByte, err)
			}
			if err := s.stream.Read(chunk); err != nil {
				return fmt.Errorf("puffin: reading passthrough at byte %d: %w", startByte, err)
			}

			// Mask off the next deflate's leading bits first, then
			// shift out the previous deflate's trailing bits. The
			// order matters: with a single byte between two deflates
			// both corrections hit the same byte.
			if (startByte+bytesToRead)*8 > currentDeflate.Offset {
				chunk[bytesToRead-1] &= 1<<(currentDeflate.Offset&7) - 1
			}
			if startByte*8 < s.deflateBitPos {
				chunk[0] >>= s.deflateBitPos & 7
			}

			s.deflateBitPos -= s.deflateBitPos & 7
			s.deflateBitPos += bytesToRead * 8
			if s.deflateBitPos > currentDeflate.Offset {
				// The last byte read reaches into the deflate.
				s.deflateBitPos = currentDeflate.Offset
			}

			bytesRead += bytesToRead
			s.puffPos += bytesToRead
			if s.puffPos > currentPuff.Offset {
				return fmt.Errorf("puffin: passthrough overran puff extent %d", s.blockIndex)
			}
		} else {
			// Inside a deflate block run. puffPos stays pinned to the
			// extent start; skipBytes tracks how much of the expansion
			// has already been handed out.
			startByte := currentDeflate.Offset / 8
			endByte := (currentDeflate.Offset + currentDeflate.Length + 7) / 8
			bytesToRead := endByte - startByte

			// With the cache disabled and the whole extent requested
			// from its start, the codec writes into the caller's
			// buffer and the copy below is skipped.
			directly := s.cache.Capacity() == 0 && s.skipBytes == 0 &&
				length-bytesRead >= currentPuff.Length

			var puffData []byte
			cached := false
			if s.cache.Capacity() > 0 {
				puffData, cached = s.cache.Get(s.blockIndex)
			}
			if cached {
				// Skip the block's bytes without re-transcoding.
				if err := s.stream.Seek(startByte + bytesToRead); err != nil {
					return fmt.Errorf("puffin: seeking past cached block %d: %w", s.blockIndex, err)
				}
			} else {
				deflateData := s.deflateBuffer[:bytesToRead]
				if err := s.stream.Seek(startByte); err != nil {
					return fmt.Errorf("puffin: seeking block %d at byte %d: %w", s.blockIndex, startByte, err)
				}
				if err := s.stream.Read(deflateData); err != nil {
					return fmt.Errorf("puffin: reading block %d: %w", s.blockIndex, err)
				}

				var target []byte
				switch {
				case directly:
					target = p[bytesRead : bytesRead+currentPuff.Length]
				case s.cache.Capacity() > 0:
					puffData = make([]byte, currentPuff.Length)
					target = puffData
				default:
					puffData = s.puffBuffer[:currentPuff.Length]
					target = puffData
				}

				bitReader := bitio.NewBitReader(deflateData)
				puffWriter := NewPuffWriter(target)

				// The block starts mid-byte: drop the leading bits
				// that belong to the raw region before it.
				leadingBits := uint(currentDeflate.Offset & 7)
				if err := bitReader.CacheBits(leadingBits); err != nil {
					return fmt.Errorf("puffin: block %d: %w", s.blockIndex, err)
				}
				bitReader.DropBits(leadingBits)

				if err := s.puffer.PuffDeflate(bitReader, puffWriter); err != nil {
					return fmt.Errorf("puffin: puffing block %d: %w", s.blockIndex, err)
				}
				// A count mismatch means the extents and the codec
				// disagree about the block: corrupt input, not
				// recoverable here.
				if consumed := uint64(bitReader.Offset()); consumed != bytesToRead {
					return fmt.Errorf("puffin: block %d: codec consumed %d of %d deflate bytes",
						s.blockIndex, consumed, bytesToRead)
				}
				if produced := uint64(puffWriter.Size()); produced != currentPuff.Length {
					return fmt.Errorf("puffin: block %d: codec produced %d of %d puff bytes",
						s.blockIndex, produced, currentPuff.Length)
				}

				if s.cache.Capacity() > 0 {
					s.cache.Put(s.blockIndex, puffData)
				}
			}

			bytesToCopy := min(length-bytesRead, currentPuff.Length-s.skipBytes)
			if !directly {
				copy(p[bytesRead:bytesRead+bytesToCopy], puffData[s.skipBytes:])
			}
			s.skipBytes += bytesToCopy
			bytesRead += bytesToCopy

			if s.puffPos+s.skipBytes == currentPuff.Offset+currentPuff.Length {
				// Extent finished: move both tables to the next pair.
				s.puffPos += s.skipBytes
				s.skipBytes = 0
				s.deflateBitPos = currentDeflate.Offset + currentDeflate.Length
				s.blockIndex++
				if s.blockIndex >= s.table.len() {
					break
				}
			}
		}
	}

	if bytesRead != length {
		return fmt.Errorf("puffin: stream ended after %d of %d requested bytes", bytesRead, length)
	}
	return nil
}

// Write consumes the next len(p) bytes of the puffed stream,
// buffering each puff extent until it is complete and huffing it back
// into deflate bits. Writes are strictly sequential. Exactly len(p)
// bytes are consumed or an error is returned.
func (s *PuffinStream) Write(p []byte) error {
	if s.closed {
		return ErrClosed
	}
	if s.huffer == nil {
		return fmt.Errorf("puffin: stream is puff-direction, cannot Write")
	}
	length := uint64(len(p))
	if s.blockIndex >= s.table.len() && length > 0 {
		return fmt.Errorf("puffin: write past end of stream")
	}

	var bytesWrote uint64
	for bytesWrote < length {
		currentDeflate := s.table.deflates[s.blockIndex]
		currentPuff := s.table.puffs[s.blockIndex]

		if s.deflateBitPos < currentDeflate.Offset&^uint64(7) {
			// Between two puffs or before the first one. The previous
			// block's boundary byte has already been handled, so the
			// position here is always byte-aligned; copy straight
			// through, stopping before any byte that contains deflate
			// bits.
			if s.deflateBitPos&7 != 0 {
				return fmt.Errorf("puffin: passthrough at unaligned bit position %d", s.deflateBitPos)
			}
			copyLen := min(currentDeflate.Offset/8-s.deflateBitPos/8, length-bytesWrote)
			if err := s.stream.Write(p[bytesWrote : bytesWrote+copyLen]); err != nil {
				return fmt.Errorf("puffin: writing passthrough: %w", err)
			}
			bytesWrote += copyLen
			s.puffPos += copyLen
			s.deflateBitPos += copyLen * 8
		} else {
			// Inside a puff. Buffer incoming bytes until the whole
			// extent (plus a deferred boundary byte, when one is due)
			// has accumulated, then huff it in one shot.

			if s.deflateBitPos < currentDeflate.Offset {
				// The current byte is split: its low bits belong to
				// the previous deflate (already in lastByte), the
				// incoming byte supplies the high bits.
				s.lastByte |= p[bytesWrote] << (s.deflateBitPos & 7)
				bytesWrote++
				s.skipBytes = 0
				s.deflateBitPos = currentDeflate.Offset
				s.puffPos++
				if s.puffPos != currentPuff.Offset {
					return fmt.Errorf("puffin: cursor desynchronized at puff extent %d", s.blockIndex)
				}
			}

			copyLen := min(length-bytesWrote, currentPuff.Length+s.extraByte-s.skipBytes)
			if uint64(len(s.puffBuffer)) < s.skipBytes+copyLen {
				return fmt.Errorf("puffin: puff buffer overflow at extent %d", s.blockIndex)
			}
			copy(s.puffBuffer[s.skipBytes:], p[bytesWrote:bytesWrote+copyLen])
			s.skipBytes += copyLen
			bytesWrote += copyLen

			if s.skipBytes == currentPuff.Length+s.extraByte {
				startByte := currentDeflate.Offset / 8
				endByte := (currentDeflate.Offset + currentDeflate.Length + 7) / 8
				bytesToWrite := endByte - startByte

				deflateData := s.deflateBuffer[:bytesToWrite]
				bitWriter := bitio.NewBitWriter(deflateData)
				puffReader := NewPuffReader(s.puffBuffer[:currentPuff.Length])

				// Leading bits of the block's first byte belong to
				// the previous deflate; emit them before the codec
				// appends the block's own bits.
				if err := bitWriter.WriteBits(uint(currentDeflate.Offset&7), uint32(s.lastByte)); err != nil {
					return fmt.Errorf("puffin: block %d: %w", s.blockIndex, err)
				}
				s.lastByte = 0

				if err := s.huffer.HuffDeflate(puffReader, bitWriter); err != nil {
					return fmt.Errorf("puffin: huffing block %d: %w", s.blockIndex, err)
				}
				if produced := uint64(bitWriter.Size()); produced != bytesToWrite {
					return fmt.Errorf("puffin: block %d: codec produced %d of %d deflate bytes",
						s.blockIndex, produced, bytesToWrite)
				}
				if left := puffReader.BytesLeft(); left != 0 {
					return fmt.Errorf("puffin: block %d: codec left %d puff bytes unconsumed",
						s.blockIndex, left)
				}

				s.deflateBitPos = currentDeflate.Offset + currentDeflate.Length
				if s.extraByte == 1 {
					// The byte after the block's last bit was deferred
					// into the puff buffer; merge it in above the
					// block's final bits.
					deflateData[bytesToWrite-1] |=
						s.puffBuffer[currentPuff.Length] << (s.deflateBitPos & 7)
					s.deflateBitPos = (s.deflateBitPos + 7) &^ uint64(7)
				} else if s.deflateBitPos&7 != 0 {
					// This deflate and the next one share a byte: the
					// shared byte cannot be written until the next
					// block is huffed, so hold it back in lastByte.
					s.lastByte = deflateData[bytesToWrite-1]
					bytesToWrite--
				}

				if err := s.stream.Write(deflateData[:bytesToWrite]); err != nil {
					return fmt.Errorf("puffin: writing block %d: %w", s.blockIndex, err)
				}

				s.puffPos += s.skipBytes
				s.skipBytes = 0
				s.blockIndex++
				if s.blockIndex >= s.table.len() {
					break
				}
				if err := s.setExtraByte(); err != nil {
					return err
				}
			}
		}
	}

	if bytesWrote != length {
		return fmt.Errorf("puffin: stream ended after %d of %d written bytes", bytesWrote, length)
	}
	return nil
}

// setExtraByte decides whether the boundary after the current deflate
// needs a deferred byte: true exactly when the block ends mid-byte
// and the rounded-up byte boundary still falls at or before the next
// deflate's start, leaving no raw gap byte to absorb the slack.
func (s *PuffinStream) setExtraByte() error {
	if s.blockIndex >= len(s.table.deflates) {
		return fmt.Errorf("puffin: extra-byte check past end of extents")
	}
	if s.blockIndex+1 == len(s.table.deflates) {
		s.extraByte = 0
		return nil
	}
	endBit := s.table.deflates[s.blockIndex].Offset + s.table.deflates[s.blockIndex].Length
	if endBit&7 != 0 && (endBit+7)&^uint64(7) <= s.table.deflates[s.blockIndex+1].Offset {
		s.extraByte = 1
	} else {
		s.extraByte = 0
	}
	return nil
}

// Close closes the underlying stream and discards the cache's spill
// directory.
func (s *PuffinStream) Close() error {
	s.closed = true
	cacheErr := s.cache.Close()
	if err := s.stream.Close(); err != nil {
		return err
	}
	return cacheErr
}
