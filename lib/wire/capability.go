// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bureau-foundation/remoting/lib/classfilter"
	"github.com/bureau-foundation/remoting/lib/codec"
)

// CapabilityClass is the envelope class tag of a capability payload.
// Like every inbound payload, the capability passes through the
// deserialization filter before its body is decoded.
const CapabilityClass = "remoting.Capability"

// maxCapabilitySize bounds the declared length of a capability
// payload. A peer announcing more than this is either corrupt or
// hostile; the handshake fails rather than allocating the buffer.
const maxCapabilitySize = 1 << 16

// Capability describes the feature set a peer advertises during the
// handshake. It is exchanged exactly once per connection, before any
// command flows, and is immutable afterwards.
//
// A peer that completes the handshake without announcing a capability
// (a minimal or legacy implementation) is treated as the zero
// Capability: protocol 0, no compression support.
type Capability struct {
	// Protocol is the peer's protocol revision. Revision 1 is the
	// current one; 0 means "never announced".
	Protocol uint32 `cbor:"protocol"`

	// Compressions lists the frame compression algorithms the peer
	// can decode, in no particular order. CompressionNone is implied
	// and never listed.
	Compressions []CompressionTag `cbor:"compressions,omitempty"`
}

// NewCapability returns the capability this implementation advertises
// by default: current protocol, all supported compressions.
func NewCapability() Capability {
	return Capability{
		Protocol:     1,
		Compressions: []CompressionTag{CompressionLZ4, CompressionZstd},
	}
}

// Supports reports whether the peer can decode frames compressed with
// tag. CompressionNone is always supported.
func (c Capability) Supports(tag CompressionTag) bool {
	if tag == CompressionNone {
		return true
	}
	for _, t := range c.Compressions {
		if t == tag {
			return true
		}
	}
	return false
}

// CommonCompression picks the frame compression for a channel whose
// two ends advertise the given capabilities: the strongest algorithm
// both support, preferring zstd over lz4 over none.
func CommonCompression(local, peer Capability) CompressionTag {
	for _, tag := range []CompressionTag{CompressionZstd, CompressionLZ4} {
		if local.Supports(tag) && peer.Supports(tag) {
			return tag
		}
	}
	return CompressionNone
}

// writeCapability writes the capability preamble followed by the
// length-prefixed capability envelope. The explicit length keeps the
// peer's byte-level preamble scanner intact: it can consume the
// payload exactly and resume scanning at the next byte.
func writeCapability(w io.Writer, c Capability) error {
	body, err := codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding capability: %w", err)
	}
	envelope, err := codec.Marshal(Envelope{Class: CapabilityClass, Body: body})
	if err != nil {
		return fmt.Errorf("encoding capability envelope: %w", err)
	}

	if _, err := w.Write(capabilityPreamble); err != nil {
		return fmt.Errorf("writing capability preamble: %w", err)
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(envelope)))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("writing capability length: %w", err)
	}
	if _, err := w.Write(envelope); err != nil {
		return fmt.Errorf("writing capability payload: %w", err)
	}
	return nil
}

// readCapability reads the length-prefixed capability envelope that
// follows a matched capability preamble. The filter is consulted on
// the envelope's class tag before the body is decoded.
func readCapability(r io.Reader, filter classfilter.Filter) (Capability, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return Capability{}, fmt.Errorf("reading capability length: %w", err)
	}
	size := binary.BigEndian.Uint32(length[:])
	if size > maxCapabilitySize {
		return Capability{}, fmt.Errorf("capability payload declares %d bytes, limit %d", size, maxCapabilitySize)
	}

	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Capability{}, fmt.Errorf("reading capability payload: %w", err)
	}

	var envelope Envelope
	if err := codec.Unmarshal(raw, &envelope); err != nil {
		return Capability{}, fmt.Errorf("decoding capability envelope: %w", err)
	}
	if err := classfilter.Check(filter, envelope.Class); err != nil {
		return Capability{}, err
	}
	if envelope.Class != CapabilityClass {
		return Capability{}, fmt.Errorf("capability payload has class %q, want %q", envelope.Class, CapabilityClass)
	}

	var capability Capability
	if err := codec.Unmarshal(envelope.Body, &capability); err != nil {
		return Capability{}, fmt.Errorf("decoding capability body: %w", err)
	}
	return capability, nil
}
