// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// hashChunkSize is the buffer size used when streaming input files
// through the hash function. Files of any size hash with constant
// memory usage.
const hashChunkSize = 16 * 1024

// Hash128 is an XXH3-128 digest. The low half is serialized first in
// asset records.
type Hash128 struct {
	Lo uint64
	Hi uint64
}

// IsZero reports whether both halves are zero. The all-zero digest is
// what accessors return on failure paths, so callers use this to tell
// "no hash" from a real digest.
func (h Hash128) IsZero() bool {
	return h.Lo == 0 && h.Hi == 0
}

// String returns the canonical 32-character hex representation, high
// half first. This is the format used in verify output and logs.
func (h Hash128) String() string {
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// HashData128 computes the XXH3-128 digest of data in one shot. Used
// by readers to recompute asset hashes over mapped byte ranges.
func HashData128(data []byte) Hash128 {
	sum := xxh3.Hash128(data)
	return Hash128{Lo: sum.Lo, Hi: sum.Hi}
}

// HashFile128 streams the file at path through XXH3-128 and returns
// the digest together with the file size in bytes.
func HashFile128(path string) (Hash128, uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return Hash128{}, 0, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hash, size, err := hashReader128(file)
	if err != nil {
		return Hash128{}, 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hash, size, nil
}

// hashReader128 streams r through XXH3-128 in fixed-size chunks and
// returns the digest and total byte count.
func hashReader128(r io.Reader) (Hash128, uint64, error) {
	hasher := xxh3.New()
	buffer := make([]byte, hashChunkSize)
	size, err := io.CopyBuffer(hasher, r, buffer)
	if err != nil {
		return Hash128{}, 0, err
	}
	sum := hasher.Sum128()
	return Hash128{Lo: sum.Lo, Hi: sum.Hi}, uint64(size), nil
}
