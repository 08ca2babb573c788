// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// Mode is the wire encoding for all post-handshake traffic. These
// values are local; what crosses the wire is each mode's preamble.
type Mode int

const (
	// ModeNegotiate means this side has no preference and adopts
	// whatever concrete mode the peer announces. A resolved channel
	// never operates in ModeNegotiate; at least one peer must be
	// fixed.
	ModeNegotiate Mode = iota

	// ModeBinary frames envelopes as length-prefixed binary frames.
	// This is the default for direct socket connections.
	ModeBinary

	// ModeText carries each frame as one base64 line, keeping the
	// stream printable for transports that mangle binary data.
	ModeText
)

// Preamble byte sequences recognized during the handshake. These are
// protocol constants — changing them breaks compatibility with every
// deployed peer. They share the "<===[" prefix (the concurrent
// scanner keeps one cursor per marker, so shared prefixes are fine)
// but none is a full prefix of another.
var (
	binaryPreamble     = []byte("<===[REMOTING BINARY STREAM]===>")
	textPreamble       = []byte("<===[REMOTING TEXT STREAM]===>")
	capabilityPreamble = []byte("<===[REMOTING CAPABILITY]===>")
)

// Preamble returns the fixed byte marker announcing this mode on the
// wire. ModeNegotiate has no marker — a negotiating peer announces
// nothing until it hears the peer's choice.
func (m Mode) Preamble() []byte {
	switch m {
	case ModeBinary:
		return binaryPreamble
	case ModeText:
		return textPreamble
	default:
		return nil
	}
}

// String returns the mode name used in logs and configuration files.
func (m Mode) String() string {
	switch m {
	case ModeNegotiate:
		return "negotiate"
	case ModeBinary:
		return "binary"
	case ModeText:
		return "text"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMode parses a mode name from configuration.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "negotiate":
		return ModeNegotiate, nil
	case "binary":
		return ModeBinary, nil
	case "text":
		return ModeText, nil
	default:
		return 0, fmt.Errorf("unknown transmission mode: %q", name)
	}
}
