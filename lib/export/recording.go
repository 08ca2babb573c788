// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import "sync"

// Recording batches the exports made during one outward call so they
// can be released as a single unit when the peer has fully consumed
// the call's results. The caller threads the recording through every
// [Table.ExportInto] it wants batched; there is no implicit
// goroutine-local scope.
type Recording struct {
	table *Table

	mu       sync.Mutex
	entries  []*entry
	stopped  bool
	released bool
}

// StartRecording returns a new, empty recording attached to this
// table.
func (t *Table) StartRecording() *Recording {
	return &Recording{table: t}
}

// add appends an entry. Called by ExportInto under the table lock;
// the recording lock is nested inside it, never the other way around.
func (r *Recording) add(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.released {
		return
	}
	r.entries = append(r.entries, e)
}

// Stop detaches the recording from further exports without releasing
// anything already recorded. ExportInto calls naming a stopped
// recording behave like plain Export.
func (r *Recording) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

// Release drops one reference for every recorded export, exactly once
// each regardless of order, and stops the recording. A second Release
// is a no-op.
func (r *Recording) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	r.stopped = true
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	r.table.mu.Lock()
	defer r.table.mu.Unlock()
	for _, e := range entries {
		r.table.releaseLocked(e)
	}
}

// Len returns the number of recorded exports (one per ExportInto
// call, so a doubly exported object counts twice).
func (r *Recording) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
