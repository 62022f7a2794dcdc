// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

// Package bbf implements the Bound Book Format (BBF) container: a
// single-file archive that packs an ordered sequence of binary assets
// (typically the page images of a book) together with hierarchical
// section markers and key/value metadata.
//
// The container is content-addressed — identical payloads are stored
// once and referenced by any number of pages — and alignment-aware:
// payloads are placed on power-of-two boundaries so readers can
// memory-map the file and hand byte ranges directly to decoders.
// XXH3-128 digests of every payload and an XXH3-64 digest of the
// directory region are embedded for integrity checking.
//
// Three entry points cover the lifecycle:
//
//   - [Builder] ingests input files, deduplicates them by content
//     hash, and finalizes a self-describing file with the directory
//     (footer + index tables) at the tail.
//   - [Reader] memory-maps a finalized file and serves bounds-checked,
//     zero-copy views of its records, payloads, and strings.
//   - [PetrifyFile] rewrites a finalized file so the directory sits
//     immediately after the header, letting readers discover the whole
//     structure from the first page of the mapping.
//
// All multi-byte integers in the format are little-endian and record
// layouts are byte-exact; serialization is explicit field-by-field
// rather than struct casting, so the package is portable across
// architectures.
package bbf
