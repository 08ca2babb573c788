// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"
)

func TestModeStringParseRoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeNegotiate, ModeBinary, ModeText} {
		parsed, err := ParseMode(mode.String())
		if err != nil {
			t.Errorf("ParseMode(%q) error: %v", mode.String(), err)
			continue
		}
		if parsed != mode {
			t.Errorf("ParseMode(%q) = %v, want %v", mode.String(), parsed, mode)
		}
	}
	if _, err := ParseMode("morse"); err == nil {
		t.Error("ParseMode(morse) succeeded, want error")
	}
}

func TestPreambles(t *testing.T) {
	if ModeNegotiate.Preamble() != nil {
		t.Error("ModeNegotiate has a preamble; a negotiating peer must announce nothing")
	}

	// The three markers must be pairwise distinct and none may be a
	// full prefix of another, or the concurrent scan would be
	// ambiguous.
	markers := [][]byte{binaryPreamble, textPreamble, capabilityPreamble}
	for i, a := range markers {
		for j, b := range markers {
			if i == j {
				continue
			}
			if bytes.HasPrefix(b, a) {
				t.Errorf("marker %d is a prefix of marker %d", i, j)
			}
		}
	}
}
