// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package classfilter guards deserialization of remote-originated
// payloads. Every inbound envelope on a channel names the class of
// its body; the channel consults a [Filter] with that name before a
// single byte of the body is decoded. A veto aborts the decode with a
// [RejectedError] naming the offending class, so no constructor-like
// side effect of the rejected type can run on this side.
//
// Each direction of a channel carries its own Filter, so two peers
// need not extend equal trust to each other.
//
// Key exports:
//
//   - [Filter] -- the deny predicate, safe for concurrent use
//   - [AcceptAll] -- the default permissive policy
//   - [NewPattern] -- a regexp deny-list filter
//   - [Check] -- the veto-or-nil helper called on the decode path
package classfilter
