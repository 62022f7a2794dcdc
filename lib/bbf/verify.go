// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// VerifyStructure checks the structural invariants of a finalized
// file: header magic and length, footer length and placement, every
// page's asset reference, every string offset, the string pool
// terminator, asset offset alignment, and content-hash uniqueness
// across assets. It stops at the first violation.
//
// Payload hashes are not recomputed here — use [Reader.VerifyAsset]
// per asset and [Reader.VerifyIndexHash] for the directory digest.
func (r *Reader) VerifyStructure() error {
	header, err := r.Header()
	if err != nil {
		return err
	}
	if !header.MagicValid() {
		return ErrBadMagic
	}
	if header.HeaderLen != HeaderSize {
		return fmt.Errorf("header length is %d, want %d", header.HeaderLen, HeaderSize)
	}

	footer, err := r.Footer()
	if err != nil {
		return err
	}

	if header.Petrified() {
		if header.FooterOffset != HeaderSize {
			return fmt.Errorf("petrified flag is set but footer is at offset %d, not %d", header.FooterOffset, HeaderSize)
		}
	} else if header.FooterOffset+FooterSize != r.size {
		return fmt.Errorf("footer at offset %d is not the last record of the %d-byte file", header.FooterOffset, r.size)
	}

	if footer.StringPoolSize > 0 {
		poolLast := footer.StringPoolOffset + footer.StringPoolSize - 1
		if !r.isSafe(poolLast, 1) {
			return fmt.Errorf("string pool end: %w", ErrOutOfBounds)
		}
		if r.data[poolLast] != 0 {
			return fmt.Errorf("string pool does not end with a NUL terminator")
		}
	}

	for i := uint64(0); i < footer.PageCount; i++ {
		page, err := r.Page(i)
		if err != nil {
			return err
		}
		if page.AssetIndex >= footer.AssetCount {
			return fmt.Errorf("page %d references asset %d, but the file has %d assets", i, page.AssetIndex, footer.AssetCount)
		}
	}

	// Petrification shifts payloads by the directory size, so the
	// alignment guarantee only holds for tail-directory files.
	checkAlignment := !header.Petrified()
	seen := make(map[Hash128]uint64, footer.AssetCount)

	for i := uint64(0); i < footer.AssetCount; i++ {
		asset, err := r.Asset(i)
		if err != nil {
			return err
		}
		if !r.isSafe(asset.FileOffset, asset.FileSize) {
			return fmt.Errorf("asset %d payload: %w", i, ErrOutOfBounds)
		}
		if previous, dup := seen[asset.Hash]; dup {
			return fmt.Errorf("assets %d and %d share content hash %s", previous, i, asset.Hash)
		}
		seen[asset.Hash] = i

		if checkAlignment {
			alignment := uint64(1) << header.Alignment
			if header.Flags&FlagVariableReam != 0 && asset.FileSize < uint64(1)<<header.ReamSize {
				alignment = 8
			}
			if asset.FileOffset%alignment != 0 {
				return fmt.Errorf("asset %d at offset %d is not aligned to %d bytes", i, asset.FileOffset, alignment)
			}
		}
	}

	for i := uint64(0); i < footer.SectionCount; i++ {
		section, err := r.Section(i)
		if err != nil {
			return err
		}
		if err := r.checkStringRef(section.TitleOffset, false); err != nil {
			return fmt.Errorf("section %d title: %w", i, err)
		}
		if err := r.checkStringRef(section.ParentOffset, true); err != nil {
			return fmt.Errorf("section %d parent: %w", i, err)
		}
		if section.StartPageIndex > footer.PageCount {
			return fmt.Errorf("section %d starts at page %d, beyond the %d-page book", i, section.StartPageIndex, footer.PageCount)
		}
	}

	for i := uint64(0); i < footer.MetaCount; i++ {
		meta, err := r.Meta(i)
		if err != nil {
			return err
		}
		if err := r.checkStringRef(meta.KeyOffset, false); err != nil {
			return fmt.Errorf("metadata %d key: %w", i, err)
		}
		if err := r.checkStringRef(meta.ValueOffset, false); err != nil {
			return fmt.Errorf("metadata %d value: %w", i, err)
		}
		if err := r.checkStringRef(meta.ParentOffset, true); err != nil {
			return fmt.Errorf("metadata %d parent: %w", i, err)
		}
	}

	return nil
}

// checkStringRef validates a string-pool offset field: the sentinel is
// accepted only where the field is optional, and anything else must
// fall strictly inside the pool.
func (r *Reader) checkStringRef(offset uint64, optional bool) error {
	if offset == AbsentOffset {
		if optional {
			return nil
		}
		return fmt.Errorf("required string offset is absent: %w", ErrBadString)
	}
	footer, err := r.Footer()
	if err != nil {
		return err
	}
	if offset >= footer.StringPoolSize {
		return fmt.Errorf("string offset %d is beyond the %d-byte pool: %w", offset, footer.StringPoolSize, ErrBadString)
	}
	return nil
}

// VerifyAsset recomputes the XXH3-128 digest of the asset at index and
// compares it against the stored hash.
func (r *Reader) VerifyAsset(index uint64) error {
	asset, err := r.Asset(index)
	if err != nil {
		return err
	}
	computed, err := r.ComputeAssetHash(asset)
	if err != nil {
		return err
	}
	if computed != asset.Hash {
		return fmt.Errorf("asset %d hash mismatch: stored %s, computed %s", index, asset.Hash, computed)
	}
	return nil
}

// VerifyIndexHash recomputes the XXH3-64 digest of the index region
// (all directory tables plus the string pool, in write order) and
// compares it against the footer's stored hash.
func (r *Reader) VerifyIndexHash() error {
	footer, err := r.Footer()
	if err != nil {
		return err
	}

	hasher := xxh3.New()
	for _, region := range []struct {
		offset uint64
		length uint64
	}{
		{footer.AssetOffset, footer.AssetCount * assetSize},
		{footer.PageOffset, footer.PageCount * pageSize},
		{footer.SectionOffset, footer.SectionCount * sectionSize},
		{footer.MetaOffset, footer.MetaCount * metaSize},
		{footer.ExpansionOffset, footer.ExpansionCount * expansionSize},
		{footer.StringPoolOffset, footer.StringPoolSize},
	} {
		if region.length == 0 {
			continue
		}
		if !r.isSafe(region.offset, region.length) {
			return fmt.Errorf("index region at offset %d: %w", region.offset, ErrOutOfBounds)
		}
		hasher.Write(r.data[region.offset : region.offset+region.length])
	}

	computed := hasher.Sum64()
	if computed != footer.FooterHash {
		return fmt.Errorf("index hash mismatch: stored %016x, computed %016x", footer.FooterHash, computed)
	}
	return nil
}

// Verify runs the full integrity check: structure, index hash, and
// every asset's content hash.
func (r *Reader) Verify() error {
	if err := r.VerifyStructure(); err != nil {
		return err
	}
	if err := r.VerifyIndexHash(); err != nil {
		return err
	}
	footer, err := r.Footer()
	if err != nil {
		return err
	}
	for i := uint64(0); i < footer.AssetCount; i++ {
		if err := r.VerifyAsset(i); err != nil {
			return err
		}
	}
	return nil
}
