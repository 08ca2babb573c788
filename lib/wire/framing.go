// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/bureau-foundation/remoting/lib/classfilter"
	"github.com/bureau-foundation/remoting/lib/codec"
)

// Envelope is one unit of post-handshake traffic: a class tag naming
// the payload type plus the still-encoded payload itself. Keeping the
// body raw lets the receiver consult its deserialization filter on
// the tag before any body byte is decoded.
type Envelope struct {
	// Class names the payload type, e.g. "remoting.Capability".
	Class string `cbor:"class"`

	// Body is the CBOR-encoded payload. Decoded only after Class
	// clears the filter.
	Body codec.RawMessage `cbor:"body,omitempty"`
}

// NewEnvelope encodes body under the given class tag.
func NewEnvelope(class string, body any) (Envelope, error) {
	encoded, err := codec.Marshal(body)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s body: %w", class, err)
	}
	return Envelope{Class: class, Body: encoded}, nil
}

// DecodeBody decodes the envelope body into v. Callers must have
// cleared the class tag through the filter first; the transport read
// path does this for every inbound envelope.
func (e Envelope) DecodeBody(v any) error {
	if err := codec.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("decoding %s body: %w", e.Class, err)
	}
	return nil
}

// MaxFrameSize bounds both the on-wire frame length and the declared
// uncompressed payload size. A peer exceeding it is corrupt or
// hostile; the read fails before any allocation of the declared size.
const MaxFrameSize = 64 << 20

// frameHeaderSize is the per-frame overhead inside the frame body:
// one compression tag byte plus the 4-byte uncompressed size.
const frameHeaderSize = 5

// Transport frames envelopes over a negotiated stream pair. Writes
// are serialized by an internal mutex; reads must come from a single
// goroutine (the channel's reader loop).
type Transport struct {
	mode        Mode
	compression CompressionTag
	filter      classfilter.Filter

	in    io.Reader
	lines *bufio.Reader // text mode only
	out   io.Writer

	writeMu sync.Mutex
}

// NewTransport wraps a stream pair for the handshake's agreed mode.
// The frame compression is the strongest algorithm both capabilities
// advertise. The filter guards every inbound envelope's class tag;
// nil means permissive.
func NewTransport(in io.Reader, out io.Writer, result *Result, filter classfilter.Filter) *Transport {
	t := &Transport{
		mode:        result.Mode,
		compression: CommonCompression(result.Local, result.Peer),
		filter:      filter,
		in:          in,
		out:         out,
	}
	if t.mode == ModeText {
		t.lines = bufio.NewReader(in)
	}
	return t
}

// Mode returns the transport's concrete transmission mode.
func (t *Transport) Mode() Mode { return t.mode }

// Compression returns the negotiated frame compression.
func (t *Transport) Compression() CompressionTag { return t.compression }

// WriteEnvelope frames and sends one envelope. Safe for concurrent
// use.
func (t *Transport) WriteEnvelope(envelope Envelope) error {
	payload, err := codec.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("envelope %s is %d bytes, frame limit %d", envelope.Class, len(payload), MaxFrameSize)
	}

	tag := t.compression
	data := payload
	if tag != CompressionNone {
		compressed, err := compressFrame(payload, tag)
		switch {
		case err == errIncompressible:
			tag = CompressionNone
		case err != nil:
			return fmt.Errorf("compressing frame: %w", err)
		default:
			data = compressed
		}
	}

	frame := make([]byte, frameHeaderSize+len(data))
	frame[0] = byte(tag)
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[frameHeaderSize:], data)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	switch t.mode {
	case ModeBinary:
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(frame)))
		if _, err := t.out.Write(length[:]); err != nil {
			return fmt.Errorf("writing frame length: %w", err)
		}
		if _, err := t.out.Write(frame); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
		return nil

	case ModeText:
		line := make([]byte, base64.StdEncoding.EncodedLen(len(frame))+1)
		base64.StdEncoding.Encode(line, frame)
		line[len(line)-1] = '\n'
		if _, err := t.out.Write(line); err != nil {
			return fmt.Errorf("writing frame line: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("transport in unresolved mode %s", t.mode)
	}
}

// ReadEnvelope reads the next inbound envelope. The class tag is
// checked against the filter before the body is decoded; a veto
// surfaces as *classfilter.RejectedError and consumes exactly one
// frame, leaving the transport usable. A cleanly closed stream at a
// frame boundary returns io.EOF unchanged.
func (t *Transport) ReadEnvelope() (Envelope, error) {
	frame, err := t.readFrame()
	if err != nil {
		return Envelope{}, err
	}
	if len(frame) < frameHeaderSize {
		return Envelope{}, fmt.Errorf("frame is %d bytes, below minimum %d", len(frame), frameHeaderSize)
	}

	tag := CompressionTag(frame[0])
	rawLen := binary.BigEndian.Uint32(frame[1:5])
	if rawLen > MaxFrameSize {
		return Envelope{}, fmt.Errorf("frame declares %d uncompressed bytes, limit %d", rawLen, MaxFrameSize)
	}

	payload, err := decompressFrame(frame[frameHeaderSize:], tag, int(rawLen))
	if err != nil {
		return Envelope{}, err
	}

	var envelope Envelope
	if err := codec.Unmarshal(payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w (payload %s)", err, diagnosePayload(payload))
	}
	if err := classfilter.Check(t.filter, envelope.Class); err != nil {
		return Envelope{}, err
	}
	return envelope, nil
}

// diagnosePayload renders a payload that failed to decode as an
// envelope in CBOR diagnostic notation, truncated so one corrupt
// frame cannot flood the error message.
func diagnosePayload(payload []byte) string {
	const limit = 256
	diagnostic, err := codec.Diagnose(payload)
	if err != nil {
		return fmt.Sprintf("<%d undiagnosable bytes>", len(payload))
	}
	if len(diagnostic) > limit {
		diagnostic = diagnostic[:limit] + "..."
	}
	return diagnostic
}

func (t *Transport) readFrame() ([]byte, error) {
	switch t.mode {
	case ModeBinary:
		var length [4]byte
		if _, err := io.ReadFull(t.in, length[:]); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading frame length: %w", err)
		}
		size := binary.BigEndian.Uint32(length[:])
		if size > MaxFrameSize {
			return nil, fmt.Errorf("frame declares %d bytes, limit %d", size, MaxFrameSize)
		}
		frame := make([]byte, size)
		if _, err := io.ReadFull(t.in, frame); err != nil {
			return nil, fmt.Errorf("reading frame: %w", err)
		}
		return frame, nil

	case ModeText:
		line, err := t.lines.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(line) == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading frame line: %w", err)
		}
		line = bytes.TrimSuffix(line, []byte("\n"))
		if base64.StdEncoding.DecodedLen(len(line)) > MaxFrameSize+frameHeaderSize {
			return nil, fmt.Errorf("frame line declares %d bytes, limit %d", len(line), MaxFrameSize)
		}
		frame := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
		n, err := base64.StdEncoding.Decode(frame, line)
		if err != nil {
			return nil, fmt.Errorf("decoding frame line: %w", err)
		}
		return frame[:n], nil

	default:
		return nil, fmt.Errorf("transport in unresolved mode %s", t.mode)
	}
}
