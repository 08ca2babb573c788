// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport supplies the raw byte-stream pairs a remoting
// channel is built on. The handshake and framing layers are agnostic
// about where their streams come from; this package provides the two
// sources used in practice:
//
//   - [TCPListener] and [TCPDialer] for direct socket connections
//   - [Pipe] for in-process pairs in tests
//
// Pipe buffers writes, unlike net.Pipe: the remoting handshake has
// both sides write their capability before either reads, which would
// deadlock on a synchronous pipe. A real socket absorbs those bytes
// in its kernel buffer; Pipe reproduces that behavior in memory.
package transport
