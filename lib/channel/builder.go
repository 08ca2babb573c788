// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/remoting/lib/callable"
	"github.com/bureau-foundation/remoting/lib/classfilter"
	"github.com/bureau-foundation/remoting/lib/clock"
	"github.com/bureau-foundation/remoting/lib/export"
	"github.com/bureau-foundation/remoting/lib/wire"
)

// Builder accumulates channel configuration, then performs the
// handshake. One Builder can build any number of independent channels;
// each Build call negotiates its own stream pair.
type Builder struct {
	name            string
	mode            wire.Mode
	capability      wire.Capability
	filter          classfilter.Filter
	callableFilters []callable.Filter
	header          io.Writer
	restricted      bool
	allowed         []string
	logger          *slog.Logger
	clock           clock.Clock
}

// NewBuilder returns a Builder with the defaults: negotiating mode,
// the current capability, a permissive class filter, no callable
// filters, and an unrestricted channel. The name identifies the
// channel in errors and logs; it carries no wire significance.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:       name,
		mode:       wire.ModeNegotiate,
		capability: wire.NewCapability(),
		logger:     slog.New(slog.DiscardHandler),
		clock:      clock.Real(),
	}
}

// WithMode fixes the transmission mode instead of negotiating.
func (b *Builder) WithMode(mode wire.Mode) *Builder {
	b.mode = mode
	return b
}

// WithCapability replaces the advertised capability.
func (b *Builder) WithCapability(capability wire.Capability) *Builder {
	b.capability = capability
	return b
}

// WithClassFilter installs the deserialization filter consulted for
// every inbound class tag, the peer's capability payload included.
func (b *Builder) WithClassFilter(filter classfilter.Filter) *Builder {
	b.filter = filter
	return b
}

// WithCallableFilter appends a filter to the chain bracketing inbound
// work. Filters run in registration order, first registered outermost.
func (b *Builder) WithCallableFilter(filter callable.Filter) *Builder {
	b.callableFilters = append(b.callableFilters, filter)
	return b
}

// WithHeaderStream mirrors every pre-handshake inbound byte to w:
// login banners, shell noise, and the marker bytes themselves.
func (b *Builder) WithHeaderStream(w io.Writer) *Builder {
	b.header = w
	return b
}

// WithRestricted marks the channel restricted: inbound envelopes whose
// class is not registered via [Builder.AllowClass] or
// [Channel.RegisterClass] are refused. Use for channels talking to a
// peer trusted to do only a narrow set of things.
func (b *Builder) WithRestricted() *Builder {
	b.restricted = true
	return b
}

// AllowClass registers classes accepted on a restricted channel. A
// no-op for unrestricted channels.
func (b *Builder) AllowClass(classes ...string) *Builder {
	b.allowed = append(b.allowed, classes...)
	return b
}

// WithLogger sets the logger for the channel and its export table.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the time source. Tests use a fake.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clock = clk
	return b
}

// Build negotiates the handshake over the stream pair and returns the
// live channel. On handshake failure the streams are left in an
// undefined position and must be discarded.
func (b *Builder) Build(in io.Reader, out io.Writer) (*Channel, error) {
	result, err := wire.Negotiate(in, out, wire.NegotiateOptions{
		Mode:       b.mode,
		Capability: b.capability,
		Filter:     b.filter,
		Header:     b.header,
	})
	if err != nil {
		return nil, fmt.Errorf("negotiating channel %s: %w", b.name, err)
	}
	b.logger.Debug("channel negotiated",
		"channel", b.name,
		"mode", result.Mode.String(),
		"peer_protocol", result.Peer.Protocol)

	allowed := make(map[string]struct{}, len(b.allowed))
	for _, class := range b.allowed {
		allowed[class] = struct{}{}
	}

	return &Channel{
		name:            b.name,
		transport:       wire.NewTransport(in, out, result, b.filter),
		result:          result,
		exports:         export.NewTable(export.Options{Logger: b.logger, Clock: b.clock}),
		callableFilters: b.callableFilters,
		restricted:      b.restricted,
		allowed:         allowed,
		logger:          b.logger,
	}, nil
}
