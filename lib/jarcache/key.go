// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jarcache

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Key addresses one artifact by content checksum: two 64-bit halves,
// usually the leading 128 bits of a cryptographic digest. The cache
// treats keys as opaque — any collision-resistant source works — but
// [Checksum] is the derivation this module uses when it computes keys
// itself.
type Key struct {
	Sum1 uint64
	Sum2 uint64
}

// String renders the key as 32 hex digits, matching the forensic
// format used in logs.
func (k Key) String() string {
	return fmt.Sprintf("%016x%016x", k.Sum1, k.Sum2)
}

// ParseKey parses the 32-hex-digit form produced by String.
func ParseKey(s string) (Key, error) {
	if len(s) != 32 {
		return Key{}, fmt.Errorf("artifact key %q is %d hex digits, want 32", s, len(s))
	}
	var k Key
	if _, err := fmt.Sscanf(s, "%016x%016x", &k.Sum1, &k.Sum2); err != nil {
		return Key{}, fmt.Errorf("parsing artifact key %q: %w", s, err)
	}
	return k, nil
}

// Checksum derives the cache key for the artifact bytes read from r:
// the first 128 bits of the content's BLAKE3 digest, big-endian. The
// content is streamed through the hash, so memory use is constant
// regardless of artifact size.
func Checksum(r io.Reader) (Key, error) {
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Key{}, fmt.Errorf("hashing artifact: %w", err)
	}
	digest := hasher.Sum(nil)
	return Key{
		Sum1: binary.BigEndian.Uint64(digest[0:8]),
		Sum2: binary.BigEndian.Uint64(digest[8:16]),
	}, nil
}

// ChecksumFile derives the cache key for the file at path.
func ChecksumFile(path string) (Key, error) {
	file, err := os.Open(path)
	if err != nil {
		return Key{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()
	return Checksum(file)
}
