// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// writeBufferSize is the buffered-writer size for the output file.
const writeBufferSize = 64 * 1024

// BuilderConfig holds the construction parameters for a [Builder].
// Zero values for the exponents select the writer defaults; Flags is
// taken as-is (zero means fixed alignment for every asset).
type BuilderConfig struct {
	// AlignmentExp is the payload alignment exponent. 0 selects
	// [DefaultGuardAlignment].
	AlignmentExp uint8

	// ReamSizeExp is the small-asset threshold exponent, relevant only
	// with [FlagVariableReam]. 0 selects [DefaultSmallReamThreshold].
	ReamSizeExp uint8

	// Flags is written into the header flag field. Set
	// [FlagVariableReam] to pack small assets on 8-byte boundaries.
	Flags uint32
}

// Builder assembles a BBF file: it streams input files into the
// payload region as they are added, accumulates the index tables in
// memory, and writes the directory on [Builder.Finalize].
//
// A Builder owns its output file exclusively and is not safe for
// concurrent use. A Builder abandoned before Finalize leaves a partial
// file on disk; the caller is responsible for deleting it.
type Builder struct {
	file          *os.File
	writer        *bufio.Writer
	currentOffset uint64

	config BuilderConfig

	pool   *stringPool
	lookup *dedupeIndex

	assets   []Asset
	pages    []Page
	sections []Section
	metas    []Meta
}

// NewBuilder creates a builder writing to path. The output file is
// created (or truncated) immediately and a 64-byte zero placeholder
// header is written; the real header lands at offset 0 during
// [Builder.Finalize].
func NewBuilder(path string, config BuilderConfig) (*Builder, error) {
	if config.AlignmentExp == 0 {
		config.AlignmentExp = DefaultGuardAlignment
	}
	if config.ReamSizeExp == 0 {
		config.ReamSizeExp = DefaultSmallReamThreshold
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", path, err)
	}

	writer := bufio.NewWriterSize(file, writeBufferSize)

	var blank [HeaderSize]byte
	if _, err := writer.Write(blank[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing placeholder header to %s: %w", path, err)
	}

	return &Builder{
		file:          file,
		writer:        writer,
		currentOffset: HeaderSize,
		config:        config,
		pool:          newStringPool(),
		lookup:        newDedupeIndex(),
	}, nil
}

// AssetCount returns the number of unique payloads recorded so far.
func (b *Builder) AssetCount() uint64 { return uint64(len(b.assets)) }

// PageCount returns the number of pages recorded so far.
func (b *Builder) PageCount() uint64 { return uint64(len(b.pages)) }

// SectionCount returns the number of section markers recorded so far.
func (b *Builder) SectionCount() uint64 { return uint64(len(b.sections)) }

// MetaCount returns the number of metadata records so far.
func (b *Builder) MetaCount() uint64 { return uint64(len(b.metas)) }

// AddPage ingests the file at path as the next page of the book. The
// file is hashed with XXH3-128 in streaming chunks; if an asset with
// the same content hash was already added, the new page references it
// and no payload bytes are written. Otherwise the payload is placed at
// the next aligned offset and a new asset record is created.
//
// pageFlags and assetFlags are stored verbatim in the respective
// records. An unopenable input fails the call without mutating any
// builder state; an I/O error mid-stream additionally leaves the
// output unusable, like any other write failure.
func (b *Builder) AddPage(path string, pageFlags, assetFlags uint32) error {
	if b.file == nil {
		return fmt.Errorf("builder is finalized")
	}

	mediaType := DetectMediaType(path)

	input, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening page input %s: %w", path, err)
	}
	defer input.Close()

	hash, fileSize, err := hashReader128(input)
	if err != nil {
		return fmt.Errorf("hashing page input %s: %w", path, err)
	}

	// Duplicate content: reference the existing asset, write nothing.
	if assetIndex, ok := b.lookup.find(hash); ok {
		b.pages = append(b.pages, Page{AssetIndex: assetIndex, Flags: pageFlags})
		return nil
	}

	alignment := uint64(1) << b.config.AlignmentExp
	if b.config.Flags&FlagVariableReam != 0 {
		if fileSize < uint64(1)<<b.config.ReamSizeExp {
			alignment = 8
		}
	}

	if err := b.writePadding(alignment); err != nil {
		return fmt.Errorf("padding to %d-byte boundary: %w", alignment, err)
	}
	startOffset := b.currentOffset

	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding page input %s: %w", path, err)
	}

	written, err := io.Copy(b.writer, input)
	if err != nil {
		return fmt.Errorf("writing payload of %s: %w", path, err)
	}
	if uint64(written) != fileSize {
		return fmt.Errorf("payload of %s changed size during write: hashed %d bytes, copied %d", path, fileSize, written)
	}
	b.currentOffset += fileSize

	assetIndex := uint64(len(b.assets))
	b.assets = append(b.assets, Asset{
		FileOffset: startOffset,
		Hash:       hash,
		FileSize:   fileSize,
		Flags:      assetFlags,
		Type:       mediaType,
	})
	b.pages = append(b.pages, Page{AssetIndex: assetIndex, Flags: pageFlags})
	b.lookup.insert(hash, assetIndex)

	return nil
}

// AddMeta records a key/value metadata entry. The key, value, and
// optional parent key are interned in the string pool; pass an empty
// parent for a top-level entry. Empty key or value is rejected.
func (b *Builder) AddMeta(key, value, parent string) error {
	if key == "" || value == "" {
		return fmt.Errorf("metadata key and value must be non-empty")
	}

	keyOffset := b.pool.intern(key)
	valueOffset := b.pool.intern(value)
	parentOffset := b.pool.intern(parent) // "" interns to the sentinel

	b.metas = append(b.metas, Meta{
		KeyOffset:    keyOffset,
		ValueOffset:  valueOffset,
		ParentOffset: parentOffset,
	})
	return nil
}

// AddSection records a section marker starting at page startIndex
// (0-based). startIndex may equal the current page count, marking a
// section that the next added page opens. Pass an empty parent for a
// top-level section.
func (b *Builder) AddSection(name string, startIndex uint64, parent string) error {
	if name == "" {
		return fmt.Errorf("section name must be non-empty")
	}
	if startIndex > uint64(len(b.pages)) {
		return fmt.Errorf("section %q start index %d is out of bounds (have %d pages)", name, startIndex, len(b.pages))
	}

	parentOffset := b.pool.intern(parent)
	titleOffset := b.pool.intern(name)

	b.sections = append(b.sections, Section{
		TitleOffset:    titleOffset,
		StartPageIndex: startIndex,
		ParentOffset:   parentOffset,
	})
	return nil
}

// Finalize appends the index tables and string pool to the payload
// region, writes the footer, and rewrites the header at offset 0 with
// the footer's position. The table bytes are fed through a running
// XXH3-64 exactly as written; the digest becomes the footer's index
// hash. The output file is flushed, synced, and closed.
//
// Finalizing an empty book (no assets) fails and leaves the partial
// file on disk for the caller to delete.
func (b *Builder) Finalize() error {
	if b.file == nil {
		return fmt.Errorf("builder is finalized")
	}
	if len(b.assets) == 0 {
		return fmt.Errorf("cannot finalize: no assets were added")
	}

	hasher := xxh3.New()

	writeRecord := func(raw []byte) error {
		if _, err := b.writer.Write(raw); err != nil {
			return err
		}
		hasher.Write(raw)
		b.currentOffset += uint64(len(raw))
		return nil
	}

	footer := Footer{
		FooterLen:      FooterSize,
		AssetCount:     uint64(len(b.assets)),
		PageCount:      uint64(len(b.pages)),
		SectionCount:   uint64(len(b.sections)),
		MetaCount:      uint64(len(b.metas)),
		StringPoolSize: b.pool.size(),
	}

	footer.AssetOffset = b.currentOffset
	for _, asset := range b.assets {
		raw := asset.encode()
		if err := writeRecord(raw[:]); err != nil {
			return fmt.Errorf("writing asset table: %w", err)
		}
	}

	footer.PageOffset = b.currentOffset
	for _, page := range b.pages {
		raw := page.encode()
		if err := writeRecord(raw[:]); err != nil {
			return fmt.Errorf("writing page table: %w", err)
		}
	}

	footer.SectionOffset = b.currentOffset
	for _, section := range b.sections {
		raw := section.encode()
		if err := writeRecord(raw[:]); err != nil {
			return fmt.Errorf("writing section table: %w", err)
		}
	}

	footer.MetaOffset = b.currentOffset
	for _, meta := range b.metas {
		raw := meta.encode()
		if err := writeRecord(raw[:]); err != nil {
			return fmt.Errorf("writing metadata table: %w", err)
		}
	}

	// Expansion table reserved: offset 0, count 0.

	footer.StringPoolOffset = b.currentOffset
	if pool := b.pool.bytes(); len(pool) > 0 {
		if err := writeRecord(pool); err != nil {
			return fmt.Errorf("writing string pool: %w", err)
		}
	}

	footer.FooterHash = hasher.Sum64()

	footerOffset := b.currentOffset
	footerRaw := footer.encode()
	if _, err := b.writer.Write(footerRaw[:]); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}

	if err := b.writer.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}

	header := Header{
		Magic:        headerMagic,
		Version:      Version,
		HeaderLen:    HeaderSize,
		Flags:        b.config.Flags,
		Alignment:    b.config.AlignmentExp,
		ReamSize:     b.config.ReamSizeExp,
		FooterOffset: footerOffset,
	}
	headerRaw := header.encode()
	if _, err := b.file.WriteAt(headerRaw[:], 0); err != nil {
		return fmt.Errorf("rewriting header: %w", err)
	}

	if err := b.file.Sync(); err != nil {
		return fmt.Errorf("syncing output: %w", err)
	}
	if err := b.file.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	b.file = nil
	b.writer = nil

	return nil
}

// Close releases the output file without finalizing. The partial file
// stays on disk; callers abandoning a build should remove it. Close
// after a successful Finalize is a no-op.
func (b *Builder) Close() error {
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	b.writer = nil
	return err
}

// writePadding advances the output to the next multiple of boundary by
// writing zero bytes.
func (b *Builder) writePadding(boundary uint64) error {
	remainder := b.currentOffset % boundary
	if remainder == 0 {
		return nil
	}
	padding := boundary - remainder

	var zeros [4096]byte
	for padding > 0 {
		chunk := padding
		if chunk > uint64(len(zeros)) {
			chunk = uint64(len(zeros))
		}
		if _, err := b.writer.Write(zeros[:chunk]); err != nil {
			return err
		}
		b.currentOffset += chunk
		padding -= chunk
	}
	return nil
}
