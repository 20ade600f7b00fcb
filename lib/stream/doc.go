// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream provides the byte-addressable stream abstraction the
// transcoding layer operates on.
//
// [Stream] differs from io.ReadWriteSeeker in one deliberate way: Read
// and Write are all-or-nothing. A Read that cannot fill the caller's
// buffer completely is an error, never a short count. The transcoding
// state machine depends on this — every byte it requests is accounted
// for in its cursor arithmetic, and a silent short read would corrupt
// the deflate bit position.
//
// [File] wraps an os.File. [Memory] wraps a growable in-memory buffer
// and is used by tests and by callers that assemble small streams.
package stream
