// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

// Package puffin implements a seekable transcoding stream between a
// raw DEFLATE byte stream and its byte-aligned "puff" expansion.
//
// A deflate stream is a bit stream: compressed blocks start and end at
// arbitrary bit positions, with raw passthrough bytes between them.
// That makes the compressed form hostile to byte-oriented delta
// tooling. The puff form re-expresses each deflate block as plain
// bytes, so the whole stream becomes byte-addressable, while keeping
// enough information to reconstruct the original bit stream exactly.
//
// [PuffinStream] performs this conversion lazily. Created with
// [NewForPuff], it reads from an underlying compressed stream and
// serves the puffed bytes, transcoding blocks on demand and caching
// the results in a bounded [LRUCache] that spills large evictions to
// disk. Created with [NewForHuff], it accepts sequential writes of
// puffed bytes and emits the reconstructed compressed stream.
//
// The caller supplies two parallel extent tables: [BitExtent]s
// locating each deflate block run in the compressed bit stream, and
// [ByteExtent]s locating each run's expansion in the puffed stream.
// The actual block transform is delegated to a [Puffer] or [Huffer]
// codec; this package only tracks positions, boundary bytes shared
// between adjacent blocks, and the interleaving of passthrough and
// transcoded regions.
package puffin
