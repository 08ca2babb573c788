// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jarcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/remoting/lib/clock"
)

// Compile-time interface check.
var _ Cache = (*FSCache)(nil)

// FSCacheOptions configures a filesystem-backed artifact cache.
type FSCacheOptions struct {
	// Root is the cache directory. Created if absent. Required.
	Root string

	// Touch refreshes a cached file's modification time on every
	// hit, so an external LRU reaper (see [Reap]) evicts genuinely
	// cold artifacts. Costs one utimes per hit.
	Touch bool

	// Verify re-checksums fetched bytes against the key before the
	// artifact is moved into place. A mismatch is a FetchError: the
	// transfer (or the peer) is lying about the content.
	Verify bool

	// Logger receives debug-level hit/fetch reports. Nil discards.
	Logger *slog.Logger

	// Clock supplies touch timestamps. Nil means the real clock.
	Clock clock.Clock
}

// FSCache stores artifacts as plain files under a root directory,
// sharded by the top byte of the key. Safe for concurrent use within
// a process (an inflight map collapses duplicate fetches) and across
// processes sharing the directory (atomic rename, existence wins).
type FSCache struct {
	root   string
	touch  bool
	verify bool
	logger *slog.Logger
	clock  clock.Clock

	mu       sync.Mutex
	inflight map[Key]*inflightFetch
}

// inflightFetch is one in-progress retrieve that duplicate callers
// wait on instead of fetching again.
type inflightFetch struct {
	done chan struct{}
	path string
	err  error
}

// NewFSCache creates (or reopens) a cache rooted at options.Root.
func NewFSCache(options FSCacheOptions) (*FSCache, error) {
	if options.Root == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	if err := os.MkdirAll(options.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &FSCache{
		root:     options.Root,
		touch:    options.Touch,
		verify:   options.Verify,
		logger:   logger,
		clock:    clk,
		inflight: make(map[Key]*inflightFetch),
	}, nil
}

// Path returns the deterministic location for key: a pure function of
// the key bits, so every process sharing the root agrees on it. The
// top byte of Sum1 selects a two-hex-digit shard directory; the
// remaining 120 bits form the file name.
func (c *FSCache) Path(key Key) string {
	return filepath.Join(c.root,
		fmt.Sprintf("%02x", key.Sum1>>56),
		fmt.Sprintf("%014x%016x.jar", key.Sum1&0x00ffffffffffffff, key.Sum2))
}

// Lookup returns the local path for key if a correctly named file
// exists at its deterministic location. With Touch enabled the file's
// mtime is refreshed; a failed touch is logged and does not fail the
// hit.
func (c *FSCache) Lookup(key Key) (string, bool) {
	path := c.Path(key)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	if c.touch {
		now := c.clock.Now()
		if err := os.Chtimes(path, now, now); err != nil {
			c.logger.Warn("touching cached artifact failed", "key", key.String(), "error", err)
		}
	}
	c.logger.Debug("artifact cache hit", "key", key.String())
	return path, true
}

// Retrieve returns the local path for key, fetching on miss. The
// fetch streams into a temporary file in the final directory, then
// renames it into place; the rename losing to a concurrent winner is
// success. Duplicate in-process retrieves share one fetch.
func (c *FSCache) Retrieve(ctx context.Context, key Key, fetcher Fetcher) (string, error) {
	if path, ok := c.Lookup(key); ok {
		return path, nil
	}

	c.mu.Lock()
	if existing := c.inflight[key]; existing != nil {
		c.mu.Unlock()
		select {
		case <-existing.done:
			return existing.path, existing.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	fetch := &inflightFetch{done: make(chan struct{})}
	c.inflight[key] = fetch
	c.mu.Unlock()

	fetch.path, fetch.err = c.fetch(ctx, key, fetcher)
	close(fetch.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return fetch.path, fetch.err
}

func (c *FSCache) fetch(ctx context.Context, key Key, fetcher Fetcher) (string, error) {
	target := c.Path(key)
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", &MaterializeError{Key: key, Path: target, Err: err}
	}

	// The temporary file lives in the target directory so the final
	// move never crosses a filesystem boundary.
	tmp, err := os.CreateTemp(parent, filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", &MaterializeError{Key: key, Path: target, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	c.logger.Debug("retrieving artifact", "key", key.String())
	fetchErr := fetcher.WriteArtifact(ctx, key, tmp)
	closeErr := tmp.Close()
	if fetchErr != nil {
		return "", &FetchError{Key: key, Err: fetchErr}
	}
	if closeErr != nil {
		return "", &MaterializeError{Key: key, Path: target, Err: closeErr}
	}

	if c.verify {
		fetched, err := ChecksumFile(tmpPath)
		if err != nil {
			return "", &MaterializeError{Key: key, Path: target, Err: err}
		}
		if fetched != key {
			return "", &FetchError{Key: key, Err: fmt.Errorf("fetched content has checksum %s", fetched)}
		}
	}

	renameErr := os.Rename(tmpPath, target)
	if _, statErr := os.Stat(target); statErr == nil {
		// Even when the rename itself failed, a correctly named file
		// at the target means a concurrent fetch of the same key won
		// the race; its content is definitionally ours.
		return target, nil
	}
	if renameErr == nil {
		renameErr = fmt.Errorf("renamed artifact missing at %s", target)
	}
	return "", &MaterializeError{Key: key, Path: target, Err: renameErr}
}
