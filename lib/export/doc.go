// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package export maps live local objects to the small integer ids a
// remote peer uses to reference them. Each channel owns one [Table];
// tables are never shared between channels, so channels in one
// process do not contend on each other's lock.
//
// An object is exported on first reference and assigned a
// monotonically increasing positive id; id 0 is reserved and means
// "no object". Repeated exports of the same object return the same id
// and bump a reference count. When the count reaches zero the entry
// is removed, the object reference is dropped (replaced by a short
// type descriptor), and the entry moves to a bounded log of recent
// releases used purely for diagnosing invalid-reference errors.
//
// Every entry carries allocation and release forensics — timestamp
// plus goroutine stack — because reference-counting bugs across a
// process boundary are rare and otherwise nearly impossible to
// reproduce. [InvalidReferenceError] reports whether an id was never
// issued or issued and then released, with both traces when the
// release is still inside the log window.
//
// A [Recording] batches the exports made during one outward call so
// the whole object subgraph can be released as a single unit once the
// peer has consumed the results. Recordings are explicit values
// threaded through export calls; there is no hidden goroutine-local
// state.
//
// All operations are O(1) map work under one mutex and never perform
// I/O, so the single serialization point stays cheap.
package export
