// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package puffin

import "github.com/xiaoxindada/delta-generator-build/lib/bitio"

// Puffer transforms one deflate block run into its byte-aligned puff
// representation. PuffDeflate must consume the run's bits from r,
// through and including the run's last block, and write the expansion
// to w. The stream verifies the exact bit and byte counts afterwards;
// a run that consumes or produces a different amount than its extents
// declare is a hard transcoding error.
type Puffer interface {
	PuffDeflate(r *bitio.BitReader, w *PuffWriter) error
}

// Huffer is the inverse of [Puffer]: it reads a puff representation
// from r and regenerates the original deflate bits into w, bit for
// bit. The writer may already hold leading bits belonging to the
// previous block's final shared byte; the codec simply appends.
type Huffer interface {
	HuffDeflate(r *PuffReader, w *bitio.BitWriter) error
}
