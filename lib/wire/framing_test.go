// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/bureau-foundation/remoting/lib/classfilter"
	"github.com/bureau-foundation/remoting/lib/codec"
)

type ping struct {
	Sequence int    `cbor:"sequence"`
	Note     string `cbor:"note,omitempty"`
}

func transportPair(mode Mode, compression CompressionTag, filter classfilter.Filter) (sender, receiver *Transport, buf *bytes.Buffer) {
	buf = &bytes.Buffer{}
	capability := Capability{Protocol: 1}
	if compression != CompressionNone {
		capability.Compressions = []CompressionTag{compression}
	}
	result := &Result{Mode: mode, Local: capability, Peer: capability}
	sender = NewTransport(strings.NewReader(""), buf, result, nil)
	receiver = NewTransport(buf, io.Discard, result, filter)
	return sender, receiver, buf
}

func TestEnvelopeRoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeBinary, ModeText} {
		for _, compression := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
			name := mode.String() + "/" + compression.String()
			t.Run(name, func(t *testing.T) {
				sender, receiver, _ := transportPair(mode, compression, nil)
				if got := sender.Compression(); got != compression {
					t.Fatalf("negotiated compression = %s, want %s", got, compression)
				}

				// A repetitive note compresses; the frame must survive
				// either way.
				envelope, err := NewEnvelope("remoting.Ping", ping{
					Sequence: 42,
					Note:     strings.Repeat("badger ", 200),
				})
				if err != nil {
					t.Fatalf("NewEnvelope() error: %v", err)
				}
				if err := sender.WriteEnvelope(envelope); err != nil {
					t.Fatalf("WriteEnvelope() error: %v", err)
				}

				received, err := receiver.ReadEnvelope()
				if err != nil {
					t.Fatalf("ReadEnvelope() error: %v", err)
				}
				if received.Class != "remoting.Ping" {
					t.Errorf("received class %q", received.Class)
				}
				var body ping
				if err := received.DecodeBody(&body); err != nil {
					t.Fatalf("DecodeBody() error: %v", err)
				}
				if body.Sequence != 42 {
					t.Errorf("body.Sequence = %d, want 42", body.Sequence)
				}
			})
		}
	}
}

func TestIncompressibleFrameFallsBack(t *testing.T) {
	sender, receiver, _ := transportPair(ModeBinary, CompressionZstd, nil)

	// High-entropy body: compression cannot shrink it, so the writer
	// must tag the frame as uncompressed rather than fail.
	noise := make([]byte, 256)
	rand.New(rand.NewSource(1)).Read(noise)
	envelope, err := NewEnvelope("remoting.Noise", noise)
	if err != nil {
		t.Fatalf("NewEnvelope() error: %v", err)
	}
	if err := sender.WriteEnvelope(envelope); err != nil {
		t.Fatalf("WriteEnvelope() error: %v", err)
	}

	received, err := receiver.ReadEnvelope()
	if err != nil {
		t.Fatalf("ReadEnvelope() error: %v", err)
	}
	var body []byte
	if err := received.DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody() error: %v", err)
	}
	if !bytes.Equal(body, noise) {
		t.Error("noise body corrupted in transit")
	}
}

func TestTextModeIsPrintable(t *testing.T) {
	sender, _, buf := transportPair(ModeText, CompressionNone, nil)

	envelope, err := NewEnvelope("remoting.Ping", ping{Sequence: 7})
	if err != nil {
		t.Fatalf("NewEnvelope() error: %v", err)
	}
	if err := sender.WriteEnvelope(envelope); err != nil {
		t.Fatalf("WriteEnvelope() error: %v", err)
	}

	wire := buf.String()
	if !strings.HasSuffix(wire, "\n") {
		t.Error("text frame not newline terminated")
	}
	for _, b := range []byte(strings.TrimSuffix(wire, "\n")) {
		if b < 0x20 || b > 0x7e {
			t.Fatalf("text frame contains non-printable byte 0x%02x", b)
		}
	}
}

func TestReadEnvelopeFilterVeto(t *testing.T) {
	filter, err := classfilter.NewPattern(`Security218`)
	if err != nil {
		t.Fatalf("NewPattern() error: %v", err)
	}
	sender, receiver, _ := transportPair(ModeBinary, CompressionNone, filter)

	hostile, err := NewEnvelope("attack.Security218", ping{Sequence: 1})
	if err != nil {
		t.Fatalf("NewEnvelope() error: %v", err)
	}
	benign, err := NewEnvelope("remoting.Ping", ping{Sequence: 2})
	if err != nil {
		t.Fatalf("NewEnvelope() error: %v", err)
	}
	if err := sender.WriteEnvelope(hostile); err != nil {
		t.Fatalf("WriteEnvelope(hostile) error: %v", err)
	}
	if err := sender.WriteEnvelope(benign); err != nil {
		t.Fatalf("WriteEnvelope(benign) error: %v", err)
	}

	_, err = receiver.ReadEnvelope()
	var rejected *classfilter.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("ReadEnvelope() error = %v, want *classfilter.RejectedError", err)
	}
	if rejected.Class != "attack.Security218" {
		t.Errorf("rejected class = %q", rejected.Class)
	}

	// The veto consumed exactly one frame; the channel stays usable.
	received, err := receiver.ReadEnvelope()
	if err != nil {
		t.Fatalf("ReadEnvelope() after veto error: %v", err)
	}
	if received.Class != "remoting.Ping" {
		t.Errorf("class after veto = %q, want remoting.Ping", received.Class)
	}
}

func TestReadEnvelopeDecodeErrorCarriesDiagnostic(t *testing.T) {
	// A well-formed frame whose payload is valid CBOR but not an
	// envelope map. The error must render the payload in diagnostic
	// notation so the offending frame is identifiable from logs.
	payload, err := codec.Marshal([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = byte(CompressionNone)
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	buf := &bytes.Buffer{}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(frame)))
	buf.Write(length[:])
	buf.Write(frame)

	result := &Result{Mode: ModeBinary}
	receiver := NewTransport(buf, io.Discard, result, nil)

	_, err = receiver.ReadEnvelope()
	if err == nil {
		t.Fatal("non-envelope payload decoded without error")
	}
	if !strings.Contains(err.Error(), "[1, 2, 3]") {
		t.Errorf("error %q does not carry the payload diagnostic", err)
	}
}

func TestReadEnvelopeCleanEOF(t *testing.T) {
	for _, mode := range []Mode{ModeBinary, ModeText} {
		t.Run(mode.String(), func(t *testing.T) {
			_, receiver, _ := transportPair(mode, CompressionNone, nil)
			if _, err := receiver.ReadEnvelope(); err != io.EOF {
				t.Errorf("ReadEnvelope() on empty stream = %v, want io.EOF", err)
			}
		})
	}
}
