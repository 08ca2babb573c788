// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"
)

func TestCapabilityWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	local := NewCapability()
	if err := writeCapability(&buf, local); err != nil {
		t.Fatalf("writeCapability() error: %v", err)
	}

	// The stream starts with the capability preamble; readCapability
	// takes over right after it, as the negotiator's scanner does.
	if !bytes.HasPrefix(buf.Bytes(), capabilityPreamble) {
		t.Fatal("capability payload does not start with its preamble")
	}
	buf.Next(len(capabilityPreamble))

	decoded, err := readCapability(&buf, nil)
	if err != nil {
		t.Fatalf("readCapability() error: %v", err)
	}
	if decoded.Protocol != local.Protocol {
		t.Errorf("protocol = %d, want %d", decoded.Protocol, local.Protocol)
	}
	if len(decoded.Compressions) != len(local.Compressions) {
		t.Errorf("compressions = %v, want %v", decoded.Compressions, local.Compressions)
	}
}

func TestCapabilitySupports(t *testing.T) {
	capability := Capability{Protocol: 1, Compressions: []CompressionTag{CompressionLZ4}}

	if !capability.Supports(CompressionNone) {
		t.Error("Supports(none) = false; none is the negotiation floor")
	}
	if !capability.Supports(CompressionLZ4) {
		t.Error("Supports(lz4) = false")
	}
	if capability.Supports(CompressionZstd) {
		t.Error("Supports(zstd) = true, not advertised")
	}
}

func TestCommonCompression(t *testing.T) {
	full := NewCapability()
	lz4Only := Capability{Protocol: 1, Compressions: []CompressionTag{CompressionLZ4}}
	bare := Capability{}

	tests := []struct {
		name        string
		local, peer Capability
		want        CompressionTag
	}{
		{"both full", full, full, CompressionZstd},
		{"peer lz4 only", full, lz4Only, CompressionLZ4},
		{"peer bare", full, bare, CompressionNone},
		{"both bare", bare, bare, CompressionNone},
	}
	for _, tt := range tests {
		if got := CommonCompression(tt.local, tt.peer); got != tt.want {
			t.Errorf("%s: CommonCompression() = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestReadCapabilityOversized(t *testing.T) {
	var buf bytes.Buffer
	// Declared length far beyond the sanity bound.
	buf.Write([]byte{0x7f, 0xff, 0xff, 0xff})
	if _, err := readCapability(&buf, nil); err == nil {
		t.Error("readCapability() accepted an oversized declaration")
	}
}

func TestCompressionTagStringParse(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil {
			t.Errorf("ParseCompressionTag(%q) error: %v", tag.String(), err)
			continue
		}
		if parsed != tag {
			t.Errorf("ParseCompressionTag(%q) = %v, want %v", tag.String(), parsed, tag)
		}
	}
	if _, err := ParseCompressionTag("brotli"); err == nil {
		t.Error("ParseCompressionTag(brotli) succeeded, want error")
	}
}
