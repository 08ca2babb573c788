// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTCPListenerAddress(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	address := listener.Address()
	if address == "" {
		t.Error("Address() returned empty string")
	}
	if !strings.Contains(address, ":") {
		t.Errorf("Address() = %q, expected host:port format", address)
	}
}

func TestTCPRoundTrip(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type accepted struct {
		data []byte
		err  error
	}
	results := make(chan accepted, 1)
	go func() {
		conn, err := listener.Accept(ctx)
		if err != nil {
			results <- accepted{err: err}
			return
		}
		defer conn.Close()
		data, err := io.ReadAll(conn)
		results <- accepted{data: data, err: err}
	}()

	dialer := &TCPDialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, listener.Address())
	if err != nil {
		t.Fatalf("DialContext() error: %v", err)
	}
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	conn.Close()

	result := <-results
	if result.err != nil {
		t.Fatalf("accept side error: %v", result.err)
	}
	if string(result.data) != "ping" {
		t.Errorf("accept side read %q, want %q", result.data, "ping")
	}
}

func TestTCPAcceptCancelled(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := listener.Accept(ctx); err != context.Canceled {
		t.Errorf("Accept() with cancelled context = %v, want context.Canceled", err)
	}
}
