// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel assembles the remoting substrate: a [Builder]
// negotiates the handshake over a raw stream pair and produces a
// [Channel] — the configured transport plus the per-channel state
// every remote invocation touches.
//
// A Channel owns one export table (object ids are meaningless outside
// their channel), the deserialization filter for its inbound
// direction, and the callable filter chain bracketing inbound work.
// The dispatch loop that gives commands business meaning lives above
// this package; collaborators drive the channel through Send,
// Receive, the export operations, and Execute.
//
// Key exports:
//
//   - [Builder] -- handshake configuration: mode, capability, class
//     filter, callable filters, header sink, restriction
//   - [Channel] -- the live substrate
//   - [RestrictedError] -- refusal of unregistered inbound classes on
//     a restricted channel
package channel
