// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"sync"
)

// Pipe returns an in-process duplex stream pair. Writes on one end
// become reads on the other. Unlike net.Pipe, writes never block:
// each direction buffers unboundedly, mimicking a socket's kernel
// buffer. Both ends are safe for one concurrent reader plus one
// concurrent writer.
func Pipe() (*PipeConn, *PipeConn) {
	aToB := newPipeBuffer()
	bToA := newPipeBuffer()
	a := &PipeConn{reads: bToA, writes: aToB}
	b := &PipeConn{reads: aToB, writes: bToA}
	return a, b
}

// PipeConn is one end of an in-process stream pair.
type PipeConn struct {
	reads  *pipeBuffer
	writes *pipeBuffer
}

// Read blocks until data is available or the peer end is closed.
// After the peer closes and the buffer drains, Read returns io.EOF.
func (c *PipeConn) Read(p []byte) (int, error) {
	return c.reads.read(p)
}

// Write appends to the outbound buffer. It never blocks. Writing to a
// closed conn returns io.ErrClosedPipe.
func (c *PipeConn) Write(p []byte) (int, error) {
	return c.writes.write(p)
}

// Close closes the outbound direction. The peer's pending and future
// reads drain the buffer and then return io.EOF. Close is idempotent.
func (c *PipeConn) Close() error {
	c.writes.close()
	return nil
}

// pipeBuffer is one direction of a Pipe: an unbounded byte queue with
// blocking reads.
type pipeBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	closed bool
}

func newPipeBuffer() *pipeBuffer {
	b := &pipeBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *pipeBuffer) write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return len(p), nil
}

func (b *pipeBuffer) read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *pipeBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
