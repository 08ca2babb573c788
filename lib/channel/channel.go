// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/remoting/lib/callable"
	"github.com/bureau-foundation/remoting/lib/export"
	"github.com/bureau-foundation/remoting/lib/wire"
)

// RestrictedError reports an inbound envelope refused because the
// channel is restricted and its class is not registered. The envelope
// is consumed; the channel stays usable.
type RestrictedError struct {
	Channel string
	Class   string
}

func (e *RestrictedError) Error() string {
	return fmt.Sprintf("channel %s is restricted: refusing class %q", e.Channel, e.Class)
}

// Channel is a negotiated remoting substrate over one stream pair. It
// owns the export table scoping this connection's object ids, the
// framed transport, and the callable filter chain bracketing inbound
// work.
//
// Sends are safe from any goroutine. Receives must come from a single
// goroutine, conventionally the owner's reader loop.
type Channel struct {
	name            string
	transport       *wire.Transport
	result          *wire.Result
	exports         *export.Table
	callableFilters []callable.Filter
	restricted      bool
	logger          *slog.Logger

	allowedMu sync.RWMutex
	allowed   map[string]struct{}
}

// Name returns the channel's diagnostic name.
func (c *Channel) Name() string { return c.name }

// Mode returns the agreed transmission mode.
func (c *Channel) Mode() wire.Mode { return c.transport.Mode() }

// LocalCapability returns the capability this side advertised.
func (c *Channel) LocalCapability() wire.Capability { return c.result.Local }

// PeerCapability returns the capability the peer advertised, or the
// zero Capability if it announced none.
func (c *Channel) PeerCapability() wire.Capability { return c.result.Peer }

// Restricted reports whether inbound classes must be registered.
func (c *Channel) Restricted() bool { return c.restricted }

// RegisterClass adds classes to the restricted channel's accept set.
// A no-op for unrestricted channels.
func (c *Channel) RegisterClass(classes ...string) {
	c.allowedMu.Lock()
	defer c.allowedMu.Unlock()
	for _, class := range classes {
		c.allowed[class] = struct{}{}
	}
}

// Send encodes body under the class tag and writes it as one frame.
func (c *Channel) Send(class string, body any) error {
	envelope, err := wire.NewEnvelope(class, body)
	if err != nil {
		return err
	}
	return c.transport.WriteEnvelope(envelope)
}

// Receive reads the next inbound envelope. The class tag has already
// cleared the deserialization filter when Receive returns; on a
// restricted channel an unregistered class is refused with
// *RestrictedError after consuming exactly one frame. A cleanly closed
// stream returns io.EOF unchanged.
func (c *Channel) Receive() (wire.Envelope, error) {
	envelope, err := c.transport.ReadEnvelope()
	if err != nil {
		return wire.Envelope{}, err
	}
	if c.restricted {
		c.allowedMu.RLock()
		_, ok := c.allowed[envelope.Class]
		c.allowedMu.RUnlock()
		if !ok {
			c.logger.Warn("restricted channel refused envelope",
				"channel", c.name, "class", envelope.Class)
			return wire.Envelope{}, &RestrictedError{Channel: c.name, Class: envelope.Class}
		}
	}
	return envelope, nil
}

// Execute runs work through the channel's callable filter chain.
// Filters run in registration order, first registered outermost; each
// filter's cleanup runs whether work returns, fails, or panics.
func (c *Channel) Execute(ctx context.Context, work callable.Work) (any, error) {
	return callable.Wrap(work, c.callableFilters...)(ctx)
}

// Exports returns the channel's export table for operations beyond
// the delegating helpers below, such as Dump or recording sessions.
func (c *Channel) Exports() *export.Table { return c.exports }

// Export publishes object on this channel and returns its id.
func (c *Channel) Export(object any) int64 { return c.exports.Export(object) }

// ExportInto publishes object and records the reference in recording.
func (c *Channel) ExportInto(recording *export.Recording, object any) int64 {
	return c.exports.ExportInto(recording, object)
}

// Get resolves an id the peer sent back to the exported object.
func (c *Channel) Get(id int64) (any, error) { return c.exports.Get(id) }

// Unexport drops one reference to object.
func (c *Channel) Unexport(object any) { c.exports.Unexport(object) }

// UnexportByID drops one reference to the object with the given id.
func (c *Channel) UnexportByID(id int64) { c.exports.UnexportByID(id) }

// Pin makes object survive reference counting for the channel's life.
func (c *Channel) Pin(object any) int64 { return c.exports.Pin(object) }

// StartRecording begins a reference recording session; see
// [export.Recording].
func (c *Channel) StartRecording() *export.Recording { return c.exports.StartRecording() }
