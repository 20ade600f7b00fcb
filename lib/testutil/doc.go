// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [TempFile] writes fixture bytes into a per-test temporary directory
// and returns the path, for tests driving file-based interfaces.
// [RandomBytes] produces seeded pseudo-random payloads so fixtures
// are incompressible but reproducible across runs.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
