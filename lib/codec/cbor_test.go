// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleExtent mirrors the shape of the extent records persisted by
// the transcoding layer.
type sampleExtent struct {
	Offset uint64 `cbor:"offset"`
	Length uint64 `cbor:"length"`
}

type samplePayload struct {
	Tag      string         `cbor:"tag,omitempty"`
	PuffSize uint64         `cbor:"puff_size"`
	Extents  []sampleExtent `cbor:"extents"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := samplePayload{
		Tag:      "rootfs.img",
		PuffSize: 48291,
		Extents:  []sampleExtent{{Offset: 0, Length: 513}, {Offset: 520, Length: 9001}},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded samplePayload
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Tag != original.Tag || decoded.PuffSize != original.PuffSize {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
	if len(decoded.Extents) != len(original.Extents) {
		t.Fatalf("extent count = %d, want %d", len(decoded.Extents), len(original.Extents))
	}
	for i := range original.Extents {
		if decoded.Extents[i] != original.Extents[i] {
			t.Errorf("extent %d: got %+v, want %+v", i, decoded.Extents[i], original.Extents[i])
		}
	}
}

func TestMarshalDeterministic(t *testing.T) {
	payload := samplePayload{
		PuffSize: 7,
		Extents:  []sampleExtent{{Offset: 1, Length: 2}},
	}

	first, err := Marshal(payload)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(payload)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	payloads := []samplePayload{
		{Tag: "a", PuffSize: 1},
		{Tag: "b", PuffSize: 2, Extents: []sampleExtent{{Offset: 3, Length: 4}}},
		{PuffSize: 0},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, payload := range payloads {
		if err := encoder.Encode(payload); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range payloads {
		var got samplePayload
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode payload %d: %v", i, err)
		}
		if got.Tag != want.Tag || got.PuffSize != want.PuffSize {
			t.Errorf("payload %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withTag := samplePayload{Tag: "x", PuffSize: 1}
	withoutTag := samplePayload{PuffSize: 1}

	dataWith, err := Marshal(withTag)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutTag)
	if err != nil {
		t.Fatal(err)
	}
	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var payload samplePayload
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &payload); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	// Forward compatibility: a newer writer may add fields.
	data, err := Marshal(map[string]any{
		"puff_size": uint64(9),
		"extents":   []sampleExtent{},
		"added_in_v2": "future",
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded samplePayload
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if decoded.PuffSize != 9 {
		t.Errorf("PuffSize = %d, want 9", decoded.PuffSize)
	}
}

func BenchmarkMarshal(b *testing.B) {
	payload := samplePayload{
		Tag:      "rootfs.img",
		PuffSize: 48291,
		Extents:  []sampleExtent{{Offset: 0, Length: 513}, {Offset: 520, Length: 9001}},
	}
	b.ReportAllocs()
	for b.Loop() {
		Marshal(payload)
	}
}
