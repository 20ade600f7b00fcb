// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

// Package bitio provides buffer-backed bit readers and writers in
// deflate bit order: within each byte the least significant bit comes
// first.
//
// [BitReader] exposes an explicit cache-then-consume API (CacheBits,
// ReadBits, DropBits) rather than a single read call. Deflate codecs
// need to peek at a code's worth of bits before knowing how many of
// them the decoded symbol actually consumed, so caching and dropping
// are separate steps.
//
// [BitWriter] keeps its output buffer current after every WriteBits
// call, including a trailing partial byte. Callers that splice bit
// streams together read the last byte of the buffer directly to merge
// in bits produced later, so the partial byte must already be there.
package bitio
