// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"testing"
	"time"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	if _, err := a.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	buf := make([]byte, 16)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("Read() = %q, want %q", buf[:n], "hello")
	}
}

func TestPipeWritesDoNotBlock(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	// Both ends write before either reads. On net.Pipe this
	// deadlocks; here both writes land in the buffers.
	done := make(chan struct{})
	go func() {
		a.Write([]byte("from a"))
		b.Write([]byte("from b"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writes blocked")
	}
}

func TestPipeEOFAfterClose(t *testing.T) {
	a, b := Pipe()

	a.Write([]byte("tail"))
	a.Close()

	buf := make([]byte, 16)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("Read() before drain error: %v", err)
	}
	if string(buf[:n]) != "tail" {
		t.Errorf("Read() = %q, want %q", buf[:n], "tail")
	}

	if _, err := b.Read(buf); err != io.EOF {
		t.Errorf("Read() after drain = %v, want io.EOF", err)
	}

	if _, err := a.Write([]byte("x")); err != io.ErrClosedPipe {
		t.Errorf("Write() after Close = %v, want io.ErrClosedPipe", err)
	}
}
