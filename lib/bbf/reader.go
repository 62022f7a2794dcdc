// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
)

// Sentinel errors returned by reader accessors. All of them mean "the
// requested view does not exist in this file" — the reader never reads
// past the mapping, so a corrupted file degrades into errors rather
// than faults.
var (
	// ErrOutOfBounds means a requested range falls outside the mapped
	// file (or its offset arithmetic would wrap).
	ErrOutOfBounds = errors.New("bbf: range is outside the mapped file")

	// ErrBadMagic means the header does not carry the BBF3 signature.
	ErrBadMagic = errors.New("bbf: bad header magic")

	// ErrBadString means a string-pool offset is absent, lands outside
	// the pool, or the entry has no terminator within the scan cap.
	ErrBadString = errors.New("bbf: invalid string pool reference")
)

// Reader serves validated, zero-copy views over a memory-mapped BBF
// file. Every accessor is gated by a single bounds predicate; byte
// slices returned by [Reader.AssetData] and the table accessors alias
// the mapping and must not be written to or used after [Reader.Close].
//
// Multiple readers may open the same file concurrently; a single
// Reader is not safe for concurrent use (it caches the footer).
type Reader struct {
	file    *os.File
	data    []byte
	size    uint64
	release func() error

	// footer caches the directory record after the first successful
	// Footer call; string accessors load it through the same path.
	footer *Footer
}

// OpenReader opens path read-only and maps its entire contents. The
// file size is captured at open time and never re-checked.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}
	if info.Size() == 0 {
		file.Close()
		return nil, fmt.Errorf("%s is empty", path)
	}

	data, release, err := mapFile(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}

	return &Reader{
		file:    file,
		data:    data,
		size:    uint64(info.Size()),
		release: release,
	}, nil
}

// Close releases the mapping and the underlying file. Views handed out
// earlier become invalid.
func (r *Reader) Close() error {
	if r.data == nil {
		return nil
	}
	releaseErr := r.release()
	closeErr := r.file.Close()
	r.data = nil
	r.footer = nil
	if releaseErr != nil {
		return releaseErr
	}
	return closeErr
}

// Size returns the mapped file size in bytes.
func (r *Reader) Size() uint64 { return r.size }

// Data returns the whole mapping. The slice is read-only: the pages
// are mapped without write permission and writing to them faults.
func (r *Reader) Data() []byte { return r.data }

// isSafe reports whether [offset, offset+length) lies within the
// mapping without wrapping.
func (r *Reader) isSafe(offset, length uint64) bool {
	if r.data == nil {
		return false
	}
	end := offset + length
	if end < offset {
		return false
	}
	return end <= r.size
}

// Header returns the file header. Magic is not checked here; use
// [Header.MagicValid] to validate the signature.
func (r *Reader) Header() (Header, error) {
	if !r.isSafe(0, HeaderSize) {
		return Header{}, fmt.Errorf("reading header: %w", ErrOutOfBounds)
	}
	return decodeHeader(r.data[:HeaderSize]), nil
}

// Footer locates the directory record through the header's footer
// offset, validates it, and caches it for subsequent calls. Validation
// covers the footer range, the recorded footer length, and a
// plausibility ceiling on the directory region size.
func (r *Reader) Footer() (Footer, error) {
	if r.footer != nil {
		return *r.footer, nil
	}

	header, err := r.Header()
	if err != nil {
		return Footer{}, err
	}
	if !header.MagicValid() {
		return Footer{}, ErrBadMagic
	}
	if !r.isSafe(header.FooterOffset, FooterSize) {
		return Footer{}, fmt.Errorf("footer at offset %d: %w", header.FooterOffset, ErrOutOfBounds)
	}

	footer := decodeFooter(r.data[header.FooterOffset : header.FooterOffset+FooterSize])
	if footer.FooterLen != FooterSize {
		return Footer{}, fmt.Errorf("footer length is %d, want %d", footer.FooterLen, FooterSize)
	}

	// The string pool is the last component of the index region in
	// both layouts, so pool end minus asset table start bounds the
	// whole directory.
	poolEnd := footer.StringPoolOffset + footer.StringPoolSize
	if poolEnd < footer.StringPoolOffset || poolEnd < footer.AssetOffset {
		return Footer{}, fmt.Errorf("footer directory offsets are inconsistent")
	}
	if poolEnd-footer.AssetOffset > MaxBaleSize {
		return Footer{}, fmt.Errorf("directory region of %d bytes exceeds the %d-byte ceiling", poolEnd-footer.AssetOffset, uint64(MaxBaleSize))
	}
	if !r.isSafe(footer.AssetOffset, poolEnd-footer.AssetOffset) {
		return Footer{}, fmt.Errorf("directory region: %w", ErrOutOfBounds)
	}

	r.footer = &footer
	return footer, nil
}

// table returns the raw bytes of a directory table given its offset,
// per-record size, and entry count.
func (r *Reader) table(offset, recordSize, count uint64) ([]byte, error) {
	length := recordSize * count
	if count != 0 && length/count != recordSize {
		return nil, fmt.Errorf("table size overflows: %w", ErrOutOfBounds)
	}
	if !r.isSafe(offset, length) {
		return nil, fmt.Errorf("table at offset %d: %w", offset, ErrOutOfBounds)
	}
	return r.data[offset : offset+length], nil
}

// AssetTable returns the raw asset table bytes (assetCount records of
// 48 bytes).
func (r *Reader) AssetTable() ([]byte, error) {
	footer, err := r.Footer()
	if err != nil {
		return nil, err
	}
	return r.table(footer.AssetOffset, assetSize, footer.AssetCount)
}

// PageTable returns the raw page table bytes.
func (r *Reader) PageTable() ([]byte, error) {
	footer, err := r.Footer()
	if err != nil {
		return nil, err
	}
	return r.table(footer.PageOffset, pageSize, footer.PageCount)
}

// SectionTable returns the raw section table bytes.
func (r *Reader) SectionTable() ([]byte, error) {
	footer, err := r.Footer()
	if err != nil {
		return nil, err
	}
	return r.table(footer.SectionOffset, sectionSize, footer.SectionCount)
}

// MetaTable returns the raw metadata table bytes.
func (r *Reader) MetaTable() ([]byte, error) {
	footer, err := r.Footer()
	if err != nil {
		return nil, err
	}
	return r.table(footer.MetaOffset, metaSize, footer.MetaCount)
}

// ExpansionTable returns the raw expansion table bytes. Current
// writers emit none, so this is normally empty.
func (r *Reader) ExpansionTable() ([]byte, error) {
	footer, err := r.Footer()
	if err != nil {
		return nil, err
	}
	return r.table(footer.ExpansionOffset, expansionSize, footer.ExpansionCount)
}

// Asset returns the asset record at index, bounds-checked against the
// footer's asset count.
func (r *Reader) Asset(index uint64) (Asset, error) {
	footer, err := r.Footer()
	if err != nil {
		return Asset{}, err
	}
	if index >= footer.AssetCount {
		return Asset{}, fmt.Errorf("asset index %d out of range [0, %d): %w", index, footer.AssetCount, ErrOutOfBounds)
	}
	offset := footer.AssetOffset + index*assetSize
	if !r.isSafe(offset, assetSize) {
		return Asset{}, fmt.Errorf("asset record %d: %w", index, ErrOutOfBounds)
	}
	return decodeAsset(r.data[offset : offset+assetSize]), nil
}

// Page returns the page record at index.
func (r *Reader) Page(index uint64) (Page, error) {
	footer, err := r.Footer()
	if err != nil {
		return Page{}, err
	}
	if index >= footer.PageCount {
		return Page{}, fmt.Errorf("page index %d out of range [0, %d): %w", index, footer.PageCount, ErrOutOfBounds)
	}
	offset := footer.PageOffset + index*pageSize
	if !r.isSafe(offset, pageSize) {
		return Page{}, fmt.Errorf("page record %d: %w", index, ErrOutOfBounds)
	}
	return decodePage(r.data[offset : offset+pageSize]), nil
}

// Section returns the section record at index.
func (r *Reader) Section(index uint64) (Section, error) {
	footer, err := r.Footer()
	if err != nil {
		return Section{}, err
	}
	if index >= footer.SectionCount {
		return Section{}, fmt.Errorf("section index %d out of range [0, %d): %w", index, footer.SectionCount, ErrOutOfBounds)
	}
	offset := footer.SectionOffset + index*sectionSize
	if !r.isSafe(offset, sectionSize) {
		return Section{}, fmt.Errorf("section record %d: %w", index, ErrOutOfBounds)
	}
	return decodeSection(r.data[offset : offset+sectionSize]), nil
}

// Meta returns the metadata record at index.
func (r *Reader) Meta(index uint64) (Meta, error) {
	footer, err := r.Footer()
	if err != nil {
		return Meta{}, err
	}
	if index >= footer.MetaCount {
		return Meta{}, fmt.Errorf("metadata index %d out of range [0, %d): %w", index, footer.MetaCount, ErrOutOfBounds)
	}
	offset := footer.MetaOffset + index*metaSize
	if !r.isSafe(offset, metaSize) {
		return Meta{}, fmt.Errorf("metadata record %d: %w", index, ErrOutOfBounds)
	}
	return decodeMeta(r.data[offset : offset+metaSize]), nil
}

// Expansion returns the expansion record at index.
func (r *Reader) Expansion(index uint64) (Expansion, error) {
	footer, err := r.Footer()
	if err != nil {
		return Expansion{}, err
	}
	if index >= footer.ExpansionCount {
		return Expansion{}, fmt.Errorf("expansion index %d out of range [0, %d): %w", index, footer.ExpansionCount, ErrOutOfBounds)
	}
	offset := footer.ExpansionOffset + index*expansionSize
	if !r.isSafe(offset, expansionSize) {
		return Expansion{}, fmt.Errorf("expansion record %d: %w", index, ErrOutOfBounds)
	}
	return decodeExpansion(r.data[offset : offset+expansionSize]), nil
}

// AssetData returns the payload bytes of asset as a view into the
// mapping: exactly asset.FileSize bytes starting at asset.FileOffset.
func (r *Reader) AssetData(asset Asset) ([]byte, error) {
	if !r.isSafe(asset.FileOffset, asset.FileSize) {
		return nil, fmt.Errorf("asset payload at offset %d (%d bytes): %w", asset.FileOffset, asset.FileSize, ErrOutOfBounds)
	}
	return r.data[asset.FileOffset : asset.FileOffset+asset.FileSize], nil
}

// String returns the string-pool entry at the pool-relative offset.
// The sentinel, offsets beyond the pool, and entries with no NUL
// within [MaxFormeSize] bytes all return [ErrBadString].
func (r *Reader) String(offset uint64) (string, error) {
	raw, err := r.StringBytes(offset)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// StringBytes is [Reader.String] without the copy: the returned slice
// aliases the mapping and excludes the terminating NUL.
func (r *Reader) StringBytes(offset uint64) ([]byte, error) {
	footer, err := r.Footer()
	if err != nil {
		return nil, err
	}
	if offset == AbsentOffset || offset >= footer.StringPoolSize {
		return nil, fmt.Errorf("string offset %d: %w", offset, ErrBadString)
	}

	start := footer.StringPoolOffset + offset
	if start < footer.StringPoolOffset {
		return nil, fmt.Errorf("string offset %d wraps: %w", offset, ErrBadString)
	}

	remaining := footer.StringPoolSize - offset
	scanLimit := uint64(MaxFormeSize)
	if remaining < scanLimit {
		scanLimit = remaining
	}
	if !r.isSafe(start, scanLimit) {
		return nil, fmt.Errorf("string pool at offset %d: %w", start, ErrOutOfBounds)
	}

	window := r.data[start : start+scanLimit]
	for i, c := range window {
		if c == 0 {
			return window[:i], nil
		}
	}
	return nil, fmt.Errorf("string at pool offset %d has no terminator within %d bytes: %w", offset, scanLimit, ErrBadString)
}

// ComputeAssetHash recomputes the XXH3-128 digest of the asset's
// mapped payload. Verification compares it against the stored
// [Asset.Hash]. A page fault from failing storage surfaces as an error
// instead of crashing the process.
func (r *Reader) ComputeAssetHash(asset Asset) (hash Hash128, err error) {
	data, dataErr := r.AssetData(asset)
	if dataErr != nil {
		return Hash128{}, dataErr
	}

	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if fault := recover(); fault != nil {
			err = fmt.Errorf("page fault hashing asset at offset %d: %v", asset.FileOffset, fault)
		}
	}()

	return HashData128(data), nil
}
