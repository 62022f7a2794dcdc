// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"encoding/binary"
)

// Format version written into every header.
const Version = 3

// Header flag bits.
const (
	// FlagPetrified marks a file whose footer immediately follows the
	// header instead of sitting at the tail. Set by [PetrifyFile].
	FlagPetrified = 0x00000001

	// FlagVariableReam relaxes alignment to 8 bytes for assets smaller
	// than the ream-size threshold, reducing internal fragmentation
	// for books of small pages.
	FlagVariableReam = 0x00000002
)

// Writer defaults and reader ceilings. Alignment values are base-2
// exponents: 12 means 4096-byte boundaries.
const (
	// DefaultGuardAlignment is the default payload alignment exponent
	// (4096-byte boundaries).
	DefaultGuardAlignment = 12

	// DefaultSmallReamThreshold is the default ream-size exponent: with
	// FlagVariableReam set, assets under 2^16 bytes are packed on
	// 8-byte boundaries instead of full alignment.
	DefaultSmallReamThreshold = 16

	// MaxBaleSize is the ceiling on a plausible directory region
	// (tables + string pool). Footers describing a larger region are
	// rejected as corrupt.
	MaxBaleSize = 16_000_000

	// MaxFormeSize is the ceiling on a single string-pool entry. String
	// accessors stop scanning for the terminating NUL after this many
	// bytes so a corrupted pool cannot trigger an unbounded scan.
	MaxFormeSize = 2048
)

// AbsentOffset is the sentinel stored in optional string-pool offset
// fields (section and metadata parents) meaning "no value". It is never
// used for file offsets.
const AbsentOffset = ^uint64(0)

// Fixed sizes of the on-disk structures in bytes.
const (
	HeaderSize    = 64
	FooterSize    = 208
	assetSize     = 48
	pageSize      = 16
	sectionSize   = 32
	metaSize      = 32
	expansionSize = 84
)

// headerMagic is the four-byte file signature "BBF3".
var headerMagic = [4]byte{0x42, 0x42, 0x46, 0x33}

// Header is the fixed 64-byte structure at offset 0 of every file.
type Header struct {
	Magic        [4]byte
	Version      uint16
	HeaderLen    uint16
	Flags        uint32
	Alignment    uint8 // payload alignment exponent
	ReamSize     uint8 // small-asset threshold exponent
	FooterOffset uint64
}

// MagicValid reports whether the header carries the "BBF3" signature.
func (h Header) MagicValid() bool {
	return h.Magic == headerMagic
}

// Petrified reports whether the petrified flag is set, i.e. the footer
// immediately follows the header.
func (h Header) Petrified() bool {
	return h.Flags&FlagPetrified != 0
}

func (h Header) encode() [HeaderSize]byte {
	var raw [HeaderSize]byte
	copy(raw[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(raw[4:6], h.Version)
	binary.LittleEndian.PutUint16(raw[6:8], h.HeaderLen)
	binary.LittleEndian.PutUint32(raw[8:12], h.Flags)
	raw[12] = h.Alignment
	raw[13] = h.ReamSize
	// raw[14:16] reserved
	binary.LittleEndian.PutUint64(raw[16:24], h.FooterOffset)
	// raw[24:64] reserved
	return raw
}

func decodeHeader(raw []byte) Header {
	var h Header
	copy(h.Magic[:], raw[0:4])
	h.Version = binary.LittleEndian.Uint16(raw[4:6])
	h.HeaderLen = binary.LittleEndian.Uint16(raw[6:8])
	h.Flags = binary.LittleEndian.Uint32(raw[8:12])
	h.Alignment = raw[12]
	h.ReamSize = raw[13]
	h.FooterOffset = binary.LittleEndian.Uint64(raw[16:24])
	return h
}

// Footer is the fixed 208-byte directory record: absolute offsets and
// entry counts of every index table, the string pool extent, and the
// XXH3-64 digest of the index region. It sits at the file tail, or
// immediately after the header when the file is petrified.
type Footer struct {
	AssetOffset      uint64
	PageOffset       uint64
	SectionOffset    uint64
	MetaOffset       uint64
	ExpansionOffset  uint64
	StringPoolOffset uint64
	StringPoolSize   uint64

	AssetCount     uint64
	PageCount      uint64
	SectionCount   uint64
	MetaCount      uint64
	ExpansionCount uint64

	Flags      uint32
	FooterLen  uint8
	FooterHash uint64 // XXH3-64 of the index region
}

func (f Footer) encode() [FooterSize]byte {
	var raw [FooterSize]byte
	binary.LittleEndian.PutUint64(raw[0:8], f.AssetOffset)
	binary.LittleEndian.PutUint64(raw[8:16], f.PageOffset)
	binary.LittleEndian.PutUint64(raw[16:24], f.SectionOffset)
	binary.LittleEndian.PutUint64(raw[24:32], f.MetaOffset)
	binary.LittleEndian.PutUint64(raw[32:40], f.ExpansionOffset)
	binary.LittleEndian.PutUint64(raw[40:48], f.StringPoolOffset)
	binary.LittleEndian.PutUint64(raw[48:56], f.StringPoolSize)
	binary.LittleEndian.PutUint64(raw[56:64], f.AssetCount)
	binary.LittleEndian.PutUint64(raw[64:72], f.PageCount)
	binary.LittleEndian.PutUint64(raw[72:80], f.SectionCount)
	binary.LittleEndian.PutUint64(raw[80:88], f.MetaCount)
	binary.LittleEndian.PutUint64(raw[88:96], f.ExpansionCount)
	binary.LittleEndian.PutUint32(raw[96:100], f.Flags)
	raw[100] = f.FooterLen
	// raw[101:104] padding
	binary.LittleEndian.PutUint64(raw[104:112], f.FooterHash)
	// raw[112:208] reserved
	return raw
}

func decodeFooter(raw []byte) Footer {
	var f Footer
	f.AssetOffset = binary.LittleEndian.Uint64(raw[0:8])
	f.PageOffset = binary.LittleEndian.Uint64(raw[8:16])
	f.SectionOffset = binary.LittleEndian.Uint64(raw[16:24])
	f.MetaOffset = binary.LittleEndian.Uint64(raw[24:32])
	f.ExpansionOffset = binary.LittleEndian.Uint64(raw[32:40])
	f.StringPoolOffset = binary.LittleEndian.Uint64(raw[40:48])
	f.StringPoolSize = binary.LittleEndian.Uint64(raw[48:56])
	f.AssetCount = binary.LittleEndian.Uint64(raw[56:64])
	f.PageCount = binary.LittleEndian.Uint64(raw[64:72])
	f.SectionCount = binary.LittleEndian.Uint64(raw[72:80])
	f.MetaCount = binary.LittleEndian.Uint64(raw[80:88])
	f.ExpansionCount = binary.LittleEndian.Uint64(raw[88:96])
	f.Flags = binary.LittleEndian.Uint32(raw[96:100])
	f.FooterLen = raw[100]
	f.FooterHash = binary.LittleEndian.Uint64(raw[104:112])
	return f
}

// Asset is a 48-byte record describing one unique payload: where it
// lives in the file, its XXH3-128 content hash, and its media type.
// Multiple pages may reference the same asset.
type Asset struct {
	FileOffset uint64
	Hash       Hash128
	FileSize   uint64
	Flags      uint32
	Type       MediaType
}

func (a Asset) encode() [assetSize]byte {
	var raw [assetSize]byte
	binary.LittleEndian.PutUint64(raw[0:8], a.FileOffset)
	binary.LittleEndian.PutUint64(raw[8:16], a.Hash.Lo)
	binary.LittleEndian.PutUint64(raw[16:24], a.Hash.Hi)
	binary.LittleEndian.PutUint64(raw[24:32], a.FileSize)
	binary.LittleEndian.PutUint32(raw[32:36], a.Flags)
	// raw[36:38] reserved
	raw[38] = uint8(a.Type)
	// raw[39:48] reserved
	return raw
}

func decodeAsset(raw []byte) Asset {
	var a Asset
	a.FileOffset = binary.LittleEndian.Uint64(raw[0:8])
	a.Hash.Lo = binary.LittleEndian.Uint64(raw[8:16])
	a.Hash.Hi = binary.LittleEndian.Uint64(raw[16:24])
	a.FileSize = binary.LittleEndian.Uint64(raw[24:32])
	a.Flags = binary.LittleEndian.Uint32(raw[32:36])
	a.Type = MediaType(raw[38])
	return a
}

// Page is a 16-byte record: an ordered position in the book referring
// to exactly one asset.
type Page struct {
	AssetIndex uint64
	Flags      uint32
}

func (p Page) encode() [pageSize]byte {
	var raw [pageSize]byte
	binary.LittleEndian.PutUint64(raw[0:8], p.AssetIndex)
	binary.LittleEndian.PutUint32(raw[8:12], p.Flags)
	// raw[12:16] reserved
	return raw
}

func decodePage(raw []byte) Page {
	var p Page
	p.AssetIndex = binary.LittleEndian.Uint64(raw[0:8])
	p.Flags = binary.LittleEndian.Uint32(raw[8:12])
	return p
}

// Section is a 32-byte record associating a string label (and optional
// parent label) with a starting page index. Offsets index the string
// pool; ParentOffset is [AbsentOffset] for top-level sections.
type Section struct {
	TitleOffset    uint64
	StartPageIndex uint64
	ParentOffset   uint64
}

func (s Section) encode() [sectionSize]byte {
	var raw [sectionSize]byte
	binary.LittleEndian.PutUint64(raw[0:8], s.TitleOffset)
	binary.LittleEndian.PutUint64(raw[8:16], s.StartPageIndex)
	binary.LittleEndian.PutUint64(raw[16:24], s.ParentOffset)
	// raw[24:32] reserved
	return raw
}

func decodeSection(raw []byte) Section {
	var s Section
	s.TitleOffset = binary.LittleEndian.Uint64(raw[0:8])
	s.StartPageIndex = binary.LittleEndian.Uint64(raw[8:16])
	s.ParentOffset = binary.LittleEndian.Uint64(raw[16:24])
	return s
}

// Meta is a 32-byte key/value metadata record. All three offsets index
// the string pool; ParentOffset is [AbsentOffset] when the entry has no
// parent key.
type Meta struct {
	KeyOffset    uint64
	ValueOffset  uint64
	ParentOffset uint64
}

func (m Meta) encode() [metaSize]byte {
	var raw [metaSize]byte
	binary.LittleEndian.PutUint64(raw[0:8], m.KeyOffset)
	binary.LittleEndian.PutUint64(raw[8:16], m.ValueOffset)
	binary.LittleEndian.PutUint64(raw[16:24], m.ParentOffset)
	// raw[24:32] reserved
	return raw
}

func decodeMeta(raw []byte) Meta {
	var m Meta
	m.KeyOffset = binary.LittleEndian.Uint64(raw[0:8])
	m.ValueOffset = binary.LittleEndian.Uint64(raw[8:16])
	m.ParentOffset = binary.LittleEndian.Uint64(raw[16:24])
	return m
}

// Expansion is an 84-byte record reserved for forward compatibility.
// Current writers emit an expansion count of zero; the layout exists so
// older readers can skip over tables written by future versions.
type Expansion struct {
	Flags uint32
}

func decodeExpansion(raw []byte) Expansion {
	var e Expansion
	e.Flags = binary.LittleEndian.Uint32(raw[80:84])
	return e
}
