// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"
	"strings"
	"time"
)

// InvalidReferenceError reports a lookup of an id that is not live.
// It always distinguishes an id that was never issued from one that
// was issued and then released, and carries both forensics traces
// when the release is still inside the unexport log window. These
// errors indicate protocol or bookkeeping bugs, so they are as loud
// as possible: timestamps and goroutine stacks of both the allocation
// and the release.
type InvalidReferenceError struct {
	// ID is the id that failed to resolve.
	ID int64

	// NextID is the table's next unissued id; ID >= NextID proves
	// the id was never issued by this table.
	NextID int64

	// Released is true when the id's release is still in the
	// unexport log. The fields below are then populated.
	Released bool

	// Class is the type descriptor retained at release.
	Class string

	AllocatedAt     time.Time
	AllocationStack string
	ReleasedAt      time.Time
	ReleaseStack    string

	// ReleasedBefore is set when the id was issued but its release
	// has already been evicted from the log: all that is known is
	// that it was gone before the oldest retained release.
	ReleasedBefore time.Time
}

func (e *InvalidReferenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid exported reference id %d (next unissued id %d)", e.ID, e.NextID)

	switch {
	case e.ID >= e.NextID:
		b.WriteString(": id was never issued")
	case e.Released:
		fmt.Fprintf(&b, ": object %s was recently released\n", e.Class)
		fmt.Fprintf(&b, "  created at %s\n%s", e.AllocatedAt.Format(time.RFC3339Nano), indent(e.AllocationStack))
		fmt.Fprintf(&b, "  released at %s\n%s", e.ReleasedAt.Format(time.RFC3339Nano), indent(e.ReleaseStack))
	case !e.ReleasedBefore.IsZero():
		fmt.Fprintf(&b, ": released at least before %s (outside the unexport log window)",
			e.ReleasedBefore.Format(time.RFC3339Nano))
	default:
		b.WriteString(": released (no release log retained)")
	}
	return b.String()
}

// indent prefixes every stack line for readable nesting inside the
// error message.
func indent(stack string) string {
	if stack == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(stack, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n") + "\n"
}

// indentStack is the []byte convenience used by entry dumps.
func indentStack(stack []byte) string {
	return indent(string(stack))
}
