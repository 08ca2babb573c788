// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jarcache

import (
	"context"
	"fmt"
	"io"
)

// Fetcher streams the bytes of one artifact from the peer into a
// sink. Supplied by the caller: the cache knows nothing about the
// channel the bytes arrive on. Fetches may block on network I/O, so
// callers run Retrieve off any goroutine that must stay responsive
// for command dispatch.
type Fetcher interface {
	WriteArtifact(ctx context.Context, key Key, w io.Writer) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key Key, w io.Writer) error

// WriteArtifact invokes f.
func (f FetcherFunc) WriteArtifact(ctx context.Context, key Key, w io.Writer) error {
	return f(ctx, key, w)
}

// Cache resolves artifact keys to local file paths, fetching from the
// peer on miss.
type Cache interface {
	// Lookup returns the local path for key if the artifact is
	// already cached. It performs no fetch.
	Lookup(key Key) (path string, ok bool)

	// Retrieve returns the local path for key, using fetcher to
	// stream the artifact from the peer on a miss. Concurrent
	// retrieves of the same key are safe and at most one transfer's
	// work is wasted.
	Retrieve(ctx context.Context, key Key, fetcher Fetcher) (path string, err error)
}

// FetchError reports a transfer-level failure while retrieving an
// artifact from the peer: the fetcher failed, or the fetched bytes
// did not verify against the key. The local filesystem is fine.
type FetchError struct {
	Key Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching artifact %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MaterializeError reports that a successfully fetched artifact could
// not be persisted at its final path — for example the filesystem
// went read-only between fetch and rename. Distinct from FetchError
// because the remedy is local, not retrying the peer.
type MaterializeError struct {
	Key  Key
	Path string
	Err  error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materializing artifact %s at %s: %v", e.Key, e.Path, e.Err)
}

func (e *MaterializeError) Unwrap() error { return e.Err }
