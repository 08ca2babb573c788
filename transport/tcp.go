// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"
)

// TCPListener accepts inbound TCP connections whose conns feed the
// remoting handshake. This is the development and same-LAN transport;
// anything needing NAT traversal sits behind a relay that still
// terminates in a plain conn.
type TCPListener struct {
	listener net.Listener
}

// NewTCPListener listens on the given address (e.g. ":7941" or
// "192.168.1.10:7941"). Use ":0" for a random available port.
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{listener: listener}, nil
}

// Accept blocks until the next inbound connection arrives or ctx is
// cancelled. Each accepted conn carries exactly one channel; the
// caller runs the handshake on it.
func (l *TCPListener) Accept(ctx context.Context) (net.Conn, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.listener.Close()
		case <-done:
		}
	}()

	conn, err := l.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

// Address returns the listener's address in "host:port" format, for
// publishing to peers.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close shuts down the listener. A blocked Accept returns its error.
func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// TCPDialer opens TCP connections to a peer's listener.
type TCPDialer struct {
	// Timeout is the maximum time to wait for the TCP connection to
	// be established. Zero means only the context deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to the given address
// (host:port). The returned conn is the byte-stream pair handed to
// the handshake.
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}
