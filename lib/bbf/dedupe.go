// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

// dedupeSlot is one entry in the asset dedup table. The occupied flag
// is explicit so that a payload whose genuine XXH3-128 digest is
// all-zero cannot be mistaken for an empty slot.
type dedupeSlot struct {
	hash     Hash128
	index    uint64
	occupied bool
}

// dedupeIndex maps 128-bit content hashes to asset table indexes. It
// is the builder's duplicate-detection structure: open-addressed,
// linear probing by the low hash half, no deletion.
type dedupeIndex struct {
	table []dedupeSlot
	count int
}

func newDedupeIndex() *dedupeIndex {
	return &dedupeIndex{table: make([]dedupeSlot, initialTableCapacity)}
}

// find returns the asset index recorded for hash, if any.
func (d *dedupeIndex) find(hash Hash128) (uint64, bool) {
	mask := uint64(len(d.table) - 1)
	slot := hash.Lo & mask

	for d.table[slot].occupied {
		if d.table[slot].hash == hash {
			return d.table[slot].index, true
		}
		slot = (slot + 1) & mask
	}
	return 0, false
}

// insert records hash → index. Callers probe with find first; insert
// does not check for duplicates. The table doubles at 70% load.
func (d *dedupeIndex) insert(hash Hash128, index uint64) {
	if d.count*10 > len(d.table)*7 {
		d.grow()
	}

	mask := uint64(len(d.table) - 1)
	slot := hash.Lo & mask
	for d.table[slot].occupied {
		slot = (slot + 1) & mask
	}

	d.table[slot] = dedupeSlot{hash: hash, index: index, occupied: true}
	d.count++
}

func (d *dedupeIndex) grow() {
	old := d.table
	d.table = make([]dedupeSlot, len(old)*2)
	mask := uint64(len(d.table) - 1)

	for _, entry := range old {
		if !entry.occupied {
			continue
		}
		slot := entry.hash.Lo & mask
		for d.table[slot].occupied {
			slot = (slot + 1) & mask
		}
		d.table[slot] = entry
	}
}
