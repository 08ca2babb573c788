// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time observation for testability.
// Production code injects [Real]; tests inject [Fake] with
// deterministic time control.
//
// The remoting substrate only observes time (export forensics
// timestamps, cache mtime touches); it never sleeps or schedules
// timers. The interface is therefore deliberately minimal.
package clock

import "time"

// Clock provides the current time. Every function in this module that
// calls time.Now accepts a Clock (or is a method on a struct holding
// one) instead of calling the time package directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
