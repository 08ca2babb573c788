// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"
)

func TestCompressFrameRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("artifact bytes "), 512)
	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := compressFrame(payload, tag)
			if err != nil {
				t.Fatalf("compressFrame() error: %v", err)
			}
			if len(compressed) >= len(payload) {
				t.Fatalf("repetitive payload did not shrink: %d -> %d", len(payload), len(compressed))
			}
			restored, err := decompressFrame(compressed, tag, len(payload))
			if err != nil {
				t.Fatalf("decompressFrame() error: %v", err)
			}
			if !bytes.Equal(restored, payload) {
				t.Error("payload corrupted by compression round trip")
			}
		})
	}
}

func TestZstdExpansionCappedAtFrameLimit(t *testing.T) {
	// A hostile peer can compress a huge run of zeros into a few
	// kilobytes and pair it with a small declared uncompressed size,
	// passing every header check. The decoder must refuse to expand
	// past the frame limit instead of allocating the full payload and
	// only then noticing the size mismatch.
	bomb := zstdEncoder.EncodeAll(make([]byte, MaxFrameSize+1), nil)
	if len(bomb) >= MaxFrameSize {
		t.Fatalf("zero run failed to compress: %d bytes", len(bomb))
	}

	if _, err := decompressFrame(bomb, CompressionZstd, 1024); err == nil {
		t.Fatal("over-expanding frame decoded without error")
	}
}

func TestZstdFrameLimitSizedPayloadStillDecodes(t *testing.T) {
	// The expansion cap must not reject the largest legitimate frame.
	payload := make([]byte, MaxFrameSize)
	compressed := zstdEncoder.EncodeAll(payload, nil)

	restored, err := decompressFrame(compressed, CompressionZstd, len(payload))
	if err != nil {
		t.Fatalf("decompressFrame() at the frame limit: %v", err)
	}
	if len(restored) != len(payload) {
		t.Errorf("restored %d bytes, want %d", len(restored), len(payload))
	}
}
