// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/remoting/lib/classfilter"
)

// ErrProtocolMismatch reports that both peers announced fixed but
// different transmission modes. There is no silent fallback: the
// connection attempt is dead.
var ErrProtocolMismatch = errors.New("protocol negotiation failure")

// ErrStreamTerminated reports that the inbound stream ended before
// any mode marker completed. This is distinct from a generic read
// error: the transport worked, but the peer (or an intermediary) hung
// up mid-handshake.
var ErrStreamTerminated = errors.New("unexpected stream termination")

// NegotiateOptions configures one handshake attempt.
type NegotiateOptions struct {
	// Mode is the local transmission mode. ModeNegotiate adopts
	// whatever concrete mode the peer announces.
	Mode Mode

	// Capability is advertised to the peer before anything else.
	// The zero value announces protocol 0 with no features; use
	// [NewCapability] for the current defaults.
	Capability Capability

	// Filter guards deserialization of the peer's capability
	// payload. Nil means permissive.
	Filter classfilter.Filter

	// Header, if non-nil, receives every inbound byte consumed
	// before the handshake completed — login banners, shell noise,
	// and the marker bytes themselves. Useful when diagnosing a
	// connection that never completes.
	Header io.Writer
}

// Result is the outcome of a successful handshake.
type Result struct {
	// Mode is the agreed concrete mode. Never ModeNegotiate.
	Mode Mode

	// Local is the capability this side advertised.
	Local Capability

	// Peer is the capability the other side advertised, or the zero
	// Capability if it announced none before its mode marker.
	Peer Capability
}

// Negotiate performs the handshake over a raw stream pair. It writes
// the local capability (preamble plus payload), then — if the local
// mode is fixed — that mode's preamble, and scans the inbound stream
// for the peer's markers.
//
// The scan advances three independent cursors, one per marker, each
// resetting on a mismatching byte. Markers may share prefixes without
// interfering. Bytes that complete no marker are tolerated (leading
// garbage from remote shells and the like) and mirrored to
// options.Header when set.
//
// A completed capability marker decodes the payload that follows and
// scanning continues. A completed mode marker ends the handshake: a
// negotiating side adopts the peer's mode and echoes its preamble so
// a mutually negotiating pair converges; a fixed side that hears a
// different fixed mode fails with [ErrProtocolMismatch]. End of
// stream before any mode marker completes fails with
// [ErrStreamTerminated].
//
// Negotiate is a single blocking pass with no internal timeout.
// Callers needing bounded setup must close the underlying stream from
// elsewhere, which surfaces here as the stream's own error.
func Negotiate(in io.Reader, out io.Writer, options NegotiateOptions) (*Result, error) {
	if err := writeCapability(out, options.Capability); err != nil {
		return nil, err
	}

	mode := options.Mode
	if mode != ModeNegotiate {
		if _, err := out.Write(mode.Preamble()); err != nil {
			return nil, fmt.Errorf("writing mode preamble: %w", err)
		}
	}

	markers := [3][]byte{binaryPreamble, textPreamble, capabilityPreamble}
	modes := [2]Mode{ModeBinary, ModeText}
	var cursors [3]int

	// If the peer completes its mode marker without ever announcing
	// a capability, it is assumed to have none.
	var peer Capability

	var buf [1]byte
	for {
		if _, err := io.ReadFull(in, buf[:]); err != nil {
			if err == io.EOF {
				return nil, ErrStreamTerminated
			}
			return nil, fmt.Errorf("reading handshake stream: %w", err)
		}
		b := buf[0]

		for i, marker := range markers {
			if marker[cursors[i]] != b {
				cursors[i] = 0
				continue
			}
			cursors[i]++
			if cursors[i] < len(marker) {
				continue
			}
			cursors[i] = 0

			if i == 2 {
				// Capability marker: decode the payload and keep
				// scanning for the mode marker.
				decoded, err := readCapability(in, options.Filter)
				if err != nil {
					return nil, err
				}
				peer = decoded
				continue
			}

			// Mode marker.
			announced := modes[i]
			if mode == ModeNegotiate {
				// Now we know what the peer wants; echo the matching
				// preamble so a peer that is also negotiating
				// converges symmetrically.
				mode = announced
				if _, err := out.Write(mode.Preamble()); err != nil {
					return nil, fmt.Errorf("echoing mode preamble: %w", err)
				}
			} else if announced != mode {
				return nil, fmt.Errorf("%w: local %s, peer %s", ErrProtocolMismatch, mode, announced)
			}

			return &Result{Mode: mode, Local: options.Capability, Peer: peer}, nil
		}

		if options.Header != nil {
			// Mirror every scanned byte, marker bytes included; only
			// capability payload bytes bypass the sink.
			if _, err := options.Header.Write(buf[:]); err != nil {
				return nil, fmt.Errorf("writing to header sink: %w", err)
			}
		}
	}
}
