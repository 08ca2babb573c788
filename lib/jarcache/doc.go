// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jarcache stores code artifacts fetched from a remote peer,
// addressed by the checksum of their content. A [Key] is two 64-bit
// checksum halves supplied by the caller; the on-disk location is a
// pure function of the key, so a lookup is one stat and never a
// directory scan, and independently started processes sharing a cache
// directory agree on every path.
//
// Retrieval is idempotent under concurrency without any cross-process
// locking: a miss streams the artifact into a temporary file in the
// final directory and atomically renames it into place. When two
// fetchers race for the same key, the loser's rename failing against
// an existing, correctly named file is success — at most one transfer
// is wasted. Within one process, an inflight map additionally
// collapses concurrent retrieves of the same key into a single fetch.
//
// Layout (part of the shared on-disk contract): a shard directory
// named by the top byte of the key's first half in two hex digits,
// then the remaining 120 bits as the file name with a ".jar" suffix.
//
// Key exports:
//
//   - [Cache], [FSCache] -- the contract and its filesystem backend
//   - [Fetcher] -- the caller-supplied capability to stream artifact
//     bytes from the peer
//   - [Checksum], [ChecksumFile] -- BLAKE3-based key derivation and
//     post-fetch verification
//   - [Reap] -- mtime-ordered eviction for shared cache directories
//   - [FetchError], [MaterializeError] -- failure taxonomy: transfer
//     versus local filesystem
package jarcache
