// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bureau-foundation/remoting/lib/clock"
)

// DefaultUnexportLogSize is the number of recently released entries
// retained for diagnosing invalid-reference errors.
const DefaultUnexportLogSize = 1024

// pinBoost is added to an entry's reference count by Pin. Half the
// representable range: ordinary unexport traffic cannot practically
// drain it, and a count near or above the boost is itself evidence of
// a pin (or of a counting bug) in diagnostics.
const pinBoost = math.MaxInt64 / 2

// Options configures a Table. The zero value is usable: discard
// logger, real clock, default log size.
type Options struct {
	// Logger receives error-level reports of unexport misuse
	// (releasing something that was never exported). Nil discards.
	Logger *slog.Logger

	// Clock supplies forensics timestamps. Nil means the real clock.
	Clock clock.Clock

	// UnexportLogSize overrides DefaultUnexportLogSize when positive.
	UnexportLogSize int
}

// Table assigns remote-visible ids to local objects. One per channel;
// safe for concurrent use by every goroutine touching that channel.
//
// Exported objects are map keys, so they must be comparable — in
// practice they are pointers, which compare by identity exactly as
// the export contract requires.
type Table struct {
	mu sync.Mutex

	logger *slog.Logger
	clock  clock.Clock

	// next is the id the next new entry receives. Starts at 1; id 0
	// is reserved for "no object".
	next int64

	entries map[int64]*entry
	reverse map[any]*entry

	unexportLog     []*entry
	unexportLogSize int
}

// entry is one exported object.
type entry struct {
	id int64

	// object is the live object while exported. After release it is
	// replaced by a short type-descriptor string so forensics keep a
	// name without keeping the object alive.
	object any

	referenceCount int64

	allocatedAt     time.Time
	allocationStack []byte

	releasedAt   time.Time
	releaseStack []byte
}

// NewTable creates an empty export table.
func NewTable(options Options) *Table {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logSize := options.UnexportLogSize
	if logSize <= 0 {
		logSize = DefaultUnexportLogSize
	}
	return &Table{
		logger:          logger,
		clock:           clk,
		next:            1,
		entries:         make(map[int64]*entry),
		reverse:         make(map[any]*entry),
		unexportLogSize: logSize,
	}
}

// Export assigns an id to object, or bumps the reference count of an
// existing export, and returns the id. A nil object returns 0. The
// export is not attached to any recording; use [Table.ExportInto] for
// exports that should be released with an invocation scope.
func (t *Table) Export(object any) int64 {
	return t.ExportInto(nil, object)
}

// ExportInto is Export with recording: when recording is non-nil and
// still accumulating, the entry is appended to it so the recording's
// Release drops this reference. A nil object returns 0 and records
// nothing.
func (t *Table) ExportInto(recording *Recording, object any) int64 {
	if object == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.reverse[object]
	if e == nil {
		e = &entry{
			id:              t.next,
			object:          object,
			allocatedAt:     t.clock.Now(),
			allocationStack: debug.Stack(),
		}
		t.next++
		t.entries[e.id] = e
		t.reverse[object] = e
	}
	e.referenceCount++

	// Recorded under the table lock so a racing Release cannot slip
	// between the count bump and the recording append.
	if recording != nil {
		recording.add(e)
	}
	return e.id
}

// Get returns the live object for id. id 0 returns nil with no error.
// An unknown or already-released id fails with an
// *InvalidReferenceError carrying whatever forensics survive.
func (t *Table) Get(id int64) (any, error) {
	if id == 0 {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e := t.entries[id]; e != nil {
		return e.object, nil
	}
	return nil, t.diagnoseLocked(id)
}

// Pin raises the object's reference count by a very large constant so
// ordinary unexport traffic cannot practically release it. The object
// is exported first if necessary. This is a safety margin against
// counting bugs, not a true immortal flag, and there is no unpin.
func (t *Table) Pin(object any) int64 {
	if object == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.reverse[object]
	if e == nil {
		e = &entry{
			id:              t.next,
			object:          object,
			allocatedAt:     t.clock.Now(),
			allocationStack: debug.Stack(),
		}
		t.next++
		t.entries[e.id] = e
		t.reverse[object] = e
	}
	// Skip when already boosted: a second pin must not overflow.
	if e.referenceCount < pinBoost {
		e.referenceCount += pinBoost
	}
	return e.id
}

// Unexport drops one reference to object. At zero references the
// entry is removed and pushed onto the release log. Unexporting nil
// is a no-op; unexporting an object that is not exported is reported
// at error level and otherwise ignored — it indicates a protocol or
// bookkeeping bug on the caller's side, not a recoverable condition
// here.
func (t *Table) Unexport(object any) {
	if object == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.reverse[object]
	if e == nil {
		t.logger.Error("unexport of an object that is not exported",
			"type", fmt.Sprintf("%T", object))
		return
	}
	t.releaseLocked(e)
}

// UnexportByID drops one reference to the object exported under id.
// id 0 is a no-op. An unknown id is reported at error level with the
// same diagnosis Get would produce, and otherwise ignored.
func (t *Table) UnexportByID(id int64) {
	if id == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entries[id]
	if e == nil {
		t.logger.Error("unexport of an id that is not exported",
			"id", id, "diagnosis", t.diagnoseLocked(id).Error())
		return
	}
	t.releaseLocked(e)
}

// IsExported reports whether object currently holds an id.
func (t *Table) IsExported(object any) bool {
	if object == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reverse[object] != nil
}

// Count returns the number of live exports.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Dump writes every live entry — id, reference count, object, both
// traces — to w. Diagnostic aid for leak hunts; the table stays
// locked for the duration.
func (t *Table) Dump(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if _, err := io.WriteString(w, e.dump()); err != nil {
			return err
		}
	}
	return nil
}

// releaseLocked drops one reference and retires the entry at zero.
// Caller holds t.mu.
func (t *Table) releaseLocked(e *entry) {
	e.referenceCount--
	if e.referenceCount != 0 {
		return
	}

	delete(t.entries, e.id)
	delete(t.reverse, e.object)

	// Keep a name for forensics without keeping the object alive.
	e.object = fmt.Sprintf("%T", e.object)
	e.releasedAt = t.clock.Now()
	e.releaseStack = debug.Stack()

	t.unexportLog = append(t.unexportLog, e)
	if len(t.unexportLog) > t.unexportLogSize {
		t.unexportLog = t.unexportLog[len(t.unexportLog)-t.unexportLogSize:]
	}
}

// diagnoseLocked builds the invalid-reference error for id. Caller
// holds t.mu.
func (t *Table) diagnoseLocked(id int64) *InvalidReferenceError {
	invalid := &InvalidReferenceError{ID: id, NextID: t.next}

	for _, e := range t.unexportLog {
		if e.id != id {
			continue
		}
		invalid.Released = true
		invalid.Class, _ = e.object.(string)
		invalid.AllocatedAt = e.allocatedAt
		invalid.AllocationStack = string(e.allocationStack)
		invalid.ReleasedAt = e.releasedAt
		invalid.ReleaseStack = string(e.releaseStack)
		return invalid
	}

	if len(t.unexportLog) > 0 && id < t.next {
		// Issued, but its release fell out of the log window: all we
		// know is it was gone before the oldest retained release.
		invalid.ReleasedBefore = t.unexportLog[0].releasedAt
	}
	return invalid
}

// dump renders one entry for Table.Dump.
func (e *entry) dump() string {
	s := fmt.Sprintf("#%d (ref.%d) : %v\n  created at %s\n%s", e.id, e.referenceCount, e.object,
		e.allocatedAt.Format(time.RFC3339Nano), indentStack(e.allocationStack))
	if e.releaseStack != nil {
		s += fmt.Sprintf("  released at %s\n%s", e.releasedAt.Format(time.RFC3339Nano), indentStack(e.releaseStack))
	}
	return s
}
