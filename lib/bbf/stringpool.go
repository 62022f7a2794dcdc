// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import "github.com/zeebo/xxh3"

// String pool sizing. Both are powers of two so the probe mask is
// capacity-1.
const (
	initialPoolCapacity  = 4096 // bytes of string storage
	initialTableCapacity = 4096 // interning table slots
)

// poolSlot is one interning table entry: the XXH3-64 of a pooled
// string and its byte offset within the pool.
type poolSlot struct {
	hash   uint64
	offset uint64
}

// stringPool is an append-only buffer of NUL-terminated UTF-8 strings
// with offset-stable interning. Repeated interning of equal strings
// returns the same offset. Offsets are byte positions within the pool,
// not within the file.
//
// The interning table is open-addressed with linear probing, keyed by
// XXH3-64 with a byte-wise equality check on collision. A slot hash of
// zero means "empty"; a string whose real hash is zero therefore looks
// absent and gets re-appended on each intern. The equality fallback
// keeps lookups correct, so the quirk costs duplicate pool bytes in a
// case that does not occur in practice.
type stringPool struct {
	data  []byte
	table []poolSlot
	count int // occupied table slots
}

func newStringPool() *stringPool {
	return &stringPool{
		data:  make([]byte, 0, initialPoolCapacity),
		table: make([]poolSlot, initialTableCapacity),
	}
}

// intern returns the pool offset at which s (NUL-terminated) appears,
// appending it on first sight. The empty string interns to
// [AbsentOffset].
func (p *stringPool) intern(s string) uint64 {
	if s == "" {
		return AbsentOffset
	}

	// Grow before probing so the slot found below stays valid. The
	// trigger is a 75% load factor.
	if (p.count+1)*4 > len(p.table)*3 {
		p.growTable()
	}

	hash := xxh3.HashString(s)
	mask := uint64(len(p.table) - 1)
	slot := hash & mask

	for p.table[slot].hash != 0 {
		if p.table[slot].hash == hash {
			offset := p.table[slot].offset
			if p.stringAt(offset) == s {
				return offset
			}
		}
		slot = (slot + 1) & mask
	}

	offset := uint64(len(p.data))
	p.data = append(p.data, s...)
	p.data = append(p.data, 0)

	p.table[slot] = poolSlot{hash: hash, offset: offset}
	p.count++
	return offset
}

// stringAt returns the NUL-terminated string starting at offset. Only
// called with offsets the pool itself handed out.
func (p *stringPool) stringAt(offset uint64) string {
	end := offset
	for p.data[end] != 0 {
		end++
	}
	return string(p.data[offset:end])
}

// bytes returns the raw pool content for flushing to disk.
func (p *stringPool) bytes() []byte {
	return p.data
}

// size returns the used pool size in bytes.
func (p *stringPool) size() uint64 {
	return uint64(len(p.data))
}

// growTable doubles the interning table and rehashes every occupied
// slot.
func (p *stringPool) growTable() {
	old := p.table
	p.table = make([]poolSlot, len(old)*2)
	mask := uint64(len(p.table) - 1)

	for _, entry := range old {
		if entry.hash == 0 {
			continue
		}
		slot := entry.hash & mask
		for p.table[slot].hash != 0 {
			slot = (slot + 1) & mask
		}
		p.table[slot] = entry
	}
}
