// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package callable composes cross-cutting hooks around the execution
// of one inbound unit of work. A [Filter] brackets the work with
// setup and cleanup; filters compose by strict nesting, so the first
// filter's setup runs first and its cleanup runs last. Cleanup runs
// on every exit path — normal return, error, or panic — and an inner
// failure propagates through outer cleanups unchanged unless a filter
// deliberately translates it.
package callable

import "context"

// Work is one unit of inbound work: the execution of a decoded
// remote invocation.
type Work func(ctx context.Context) (any, error)

// Filter wraps the execution of one Work. A typical implementation:
//
//	func (f traceFilter) Call(ctx context.Context, next Work) (any, error) {
//		f.enter()
//		defer f.exit()
//		return next(ctx)
//	}
//
// Using defer for the exit path is what makes the cleanup guarantee
// hold across panics; implementations that need cleanup must follow
// this shape.
type Filter interface {
	Call(ctx context.Context, next Work) (any, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(ctx context.Context, next Work) (any, error)

// Call invokes f.
func (f FilterFunc) Call(ctx context.Context, next Work) (any, error) {
	return f(ctx, next)
}

// Wrap nests filters around work: filters[0] is outermost. With no
// filters, work is returned as is.
func Wrap(work Work, filters ...Filter) Work {
	wrapped := work
	for i := len(filters) - 1; i >= 0; i-- {
		filter := filters[i]
		next := wrapped
		wrapped = func(ctx context.Context) (any, error) {
			return filter.Call(ctx, next)
		}
	}
	return wrapped
}

// BeforeAfter is the common bracket filter: Before runs ahead of the
// work, After runs on every exit path including panics. Either hook
// may be nil.
type BeforeAfter struct {
	Before func(ctx context.Context)
	After  func(ctx context.Context)
}

// Call runs the bracket around next.
func (f BeforeAfter) Call(ctx context.Context, next Work) (any, error) {
	if f.Before != nil {
		f.Before(ctx)
	}
	if f.After != nil {
		defer f.After(ctx)
	}
	return next(ctx)
}
