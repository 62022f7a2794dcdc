// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

// Package main builds libbbf, the C ABI over the BBF reader for host
// runtimes that embed it as a shared library:
//
//	go build -buildmode=c-shared -o libbbf.so ./bind/libbbf
//
// The surface is an opaque reader handle plus one function per view
// accessor. Every view function returns a raw pointer into the
// read-only file mapping, or NULL when the view is absent (bad handle
// arithmetic never escapes: all bounds checks happen on the Go side
// before a pointer is produced). These are thin pass-throughs with no
// added semantics; lifetime of every returned pointer ends at
// bbf_reader_close.
package main

/*
#include <stdint.h>

typedef struct {
	uint64_t low64;
	uint64_t high64;
} bbf_hash128;
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/boundbook/bbf/lib/bbf"
)

// assetRecordSize mirrors the on-disk asset record stride for entry
// pointer arithmetic.
const (
	assetRecordSize     = 48
	pageRecordSize      = 16
	sectionRecordSize   = 32
	metaRecordSize      = 32
	expansionRecordSize = 84
)

func reader(handle C.uintptr_t) *bbf.Reader {
	return cgo.Handle(handle).Value().(*bbf.Reader)
}

// base returns the start of the mapping as an unsafe pointer.
func base(r *bbf.Reader) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(r.Data()))
}

//export bbf_reader_open
func bbf_reader_open(path *C.char) C.uintptr_t {
	r, err := bbf.OpenReader(C.GoString(path))
	if err != nil {
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(r))
}

//export bbf_reader_close
func bbf_reader_close(handle C.uintptr_t) {
	if handle == 0 {
		return
	}
	h := cgo.Handle(handle)
	h.Value().(*bbf.Reader).Close()
	h.Delete()
}

//export bbf_reader_header
func bbf_reader_header(handle C.uintptr_t) unsafe.Pointer {
	r := reader(handle)
	if _, err := r.Header(); err != nil {
		return nil
	}
	return base(r)
}

//export bbf_reader_footer
func bbf_reader_footer(handle C.uintptr_t) unsafe.Pointer {
	r := reader(handle)
	header, err := r.Header()
	if err != nil {
		return nil
	}
	if _, err := r.Footer(); err != nil {
		return nil
	}
	return unsafe.Add(base(r), header.FooterOffset)
}

//export bbf_reader_check_magic
func bbf_reader_check_magic(handle C.uintptr_t) C.int {
	header, err := reader(handle).Header()
	if err != nil || !header.MagicValid() {
		return 0
	}
	return 1
}

// tablePointer validates a table through the reader and converts its
// footer offset into a mapping pointer. Empty tables still get a
// (valid, zero-length) pointer, matching the reference behavior.
func tablePointer(r *bbf.Reader, load func() ([]byte, error), offset func(bbf.Footer) uint64) unsafe.Pointer {
	if _, err := load(); err != nil {
		return nil
	}
	footer, err := r.Footer()
	if err != nil {
		return nil
	}
	return unsafe.Add(base(r), offset(footer))
}

//export bbf_reader_asset_table
func bbf_reader_asset_table(handle C.uintptr_t) unsafe.Pointer {
	r := reader(handle)
	return tablePointer(r, r.AssetTable, func(f bbf.Footer) uint64 { return f.AssetOffset })
}

//export bbf_reader_page_table
func bbf_reader_page_table(handle C.uintptr_t) unsafe.Pointer {
	r := reader(handle)
	return tablePointer(r, r.PageTable, func(f bbf.Footer) uint64 { return f.PageOffset })
}

//export bbf_reader_section_table
func bbf_reader_section_table(handle C.uintptr_t) unsafe.Pointer {
	r := reader(handle)
	return tablePointer(r, r.SectionTable, func(f bbf.Footer) uint64 { return f.SectionOffset })
}

//export bbf_reader_meta_table
func bbf_reader_meta_table(handle C.uintptr_t) unsafe.Pointer {
	r := reader(handle)
	return tablePointer(r, r.MetaTable, func(f bbf.Footer) uint64 { return f.MetaOffset })
}

//export bbf_reader_expansion_table
func bbf_reader_expansion_table(handle C.uintptr_t) unsafe.Pointer {
	r := reader(handle)
	return tablePointer(r, r.ExpansionTable, func(f bbf.Footer) uint64 { return f.ExpansionOffset })
}

// entryPointer bounds-checks index against count and advances table by
// index records.
func entryPointer(table unsafe.Pointer, index C.int, count uint64, recordSize uintptr) unsafe.Pointer {
	if table == nil || index < 0 || uint64(index) >= count {
		return nil
	}
	return unsafe.Add(table, uintptr(index)*recordSize)
}

//export bbf_reader_asset_entry
func bbf_reader_asset_entry(handle C.uintptr_t, table unsafe.Pointer, index C.int) unsafe.Pointer {
	footer, err := reader(handle).Footer()
	if err != nil {
		return nil
	}
	return entryPointer(table, index, footer.AssetCount, assetRecordSize)
}

//export bbf_reader_page_entry
func bbf_reader_page_entry(handle C.uintptr_t, table unsafe.Pointer, index C.int) unsafe.Pointer {
	footer, err := reader(handle).Footer()
	if err != nil {
		return nil
	}
	return entryPointer(table, index, footer.PageCount, pageRecordSize)
}

//export bbf_reader_section_entry
func bbf_reader_section_entry(handle C.uintptr_t, table unsafe.Pointer, index C.int) unsafe.Pointer {
	footer, err := reader(handle).Footer()
	if err != nil {
		return nil
	}
	return entryPointer(table, index, footer.SectionCount, sectionRecordSize)
}

//export bbf_reader_meta_entry
func bbf_reader_meta_entry(handle C.uintptr_t, table unsafe.Pointer, index C.int) unsafe.Pointer {
	footer, err := reader(handle).Footer()
	if err != nil {
		return nil
	}
	return entryPointer(table, index, footer.MetaCount, metaRecordSize)
}

//export bbf_reader_expansion_entry
func bbf_reader_expansion_entry(handle C.uintptr_t, table unsafe.Pointer, index C.int) unsafe.Pointer {
	footer, err := reader(handle).Footer()
	if err != nil {
		return nil
	}
	return entryPointer(table, index, footer.ExpansionCount, expansionRecordSize)
}

//export bbf_reader_asset_data
func bbf_reader_asset_data(handle C.uintptr_t, fileOffset C.uint64_t) unsafe.Pointer {
	r := reader(handle)
	if uint64(fileOffset) > r.Size() {
		return nil
	}
	return unsafe.Add(base(r), uint64(fileOffset))
}

//export bbf_reader_string
func bbf_reader_string(handle C.uintptr_t, stringOffset C.uint64_t) *C.char {
	r := reader(handle)
	if _, err := r.StringBytes(uint64(stringOffset)); err != nil {
		return nil
	}
	footer, err := r.Footer()
	if err != nil {
		return nil
	}
	return (*C.char)(unsafe.Add(base(r), footer.StringPoolOffset+uint64(stringOffset)))
}

//export bbf_reader_compute_asset_hash
func bbf_reader_compute_asset_hash(handle C.uintptr_t, index C.int) C.bbf_hash128 {
	empty := C.bbf_hash128{low64: 0, high64: 0}
	if index < 0 {
		return empty
	}
	r := reader(handle)
	asset, err := r.Asset(uint64(index))
	if err != nil {
		return empty
	}
	hash, err := r.ComputeAssetHash(asset)
	if err != nil {
		return empty
	}
	return C.bbf_hash128{low64: C.uint64_t(hash.Lo), high64: C.uint64_t(hash.Hi)}
}

func main() {}
