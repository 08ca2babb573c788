// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the handshake and framing layer of a
// remoting channel: the byte-level protocol that turns a raw stream
// pair into a typed envelope transport.
//
// A connection starts with both peers writing a capability preamble
// followed by their capability payload, and — unless they are
// negotiating — the fixed preamble of their transmission mode. Each
// peer scans the inbound stream byte by byte against three marker
// patterns at once (binary mode, text mode, capability), tolerating
// any amount of leading garbage such as login banners from an
// intermediary shell. Once a mode marker completes, the handshake is
// done and the streams are wrapped for that mode.
//
// Post-handshake traffic is a sequence of frames, each carrying one
// CBOR [Envelope]: a class tag plus an undecoded body. Binary mode
// uses length-prefixed frames; text mode carries the same frame
// payload as one base64 line, keeping the stream printable. Frame
// payloads are compressed with the strongest algorithm both
// capabilities advertise.
//
// Key exports:
//
//   - [Mode], [Capability] -- the negotiated encoding and feature set
//   - [Negotiate] -- the handshake; returns a [Result]
//   - [NewTransport] -- frames envelopes over the agreed mode
//   - [ErrProtocolMismatch], [ErrStreamTerminated] -- handshake
//     failure taxonomy
package wire
