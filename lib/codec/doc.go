// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for every payload
// that crosses a remoting channel: the capability exchanged during
// the handshake, command envelopes, and command bodies.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// The same logical value always produces identical bytes, which keeps
// frame contents reproducible across peers and makes captured traffic
// diffable.
//
// Key exports:
//
//   - [Marshal] and [Unmarshal] -- one-shot encode/decode
//   - [RawMessage] -- delayed decoding, used by the envelope format
//     so a class tag can be inspected before its body is decoded
//   - [Diagnose] -- diagnostic notation for decode-failure errors
//
// This package depends on no other remoting packages.
package codec
