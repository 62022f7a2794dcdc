// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// assetPatchBatch is how many asset records the petrification pass
// reads, patches, and writes back at a time.
const assetPatchBatch = 64

// PetrifyFile rewrites the BBF file at sourcePath into destPath with
// the directory (footer + index tables + string pool) relocated from
// the file tail to immediately after the header. The result is
// semantically identical — every page resolves to the same payload
// bytes — but a reader discovers the whole structure from the first
// mapped page. The petrified flag is set so the transform cannot be
// applied twice.
//
// The payload and directory bytes are copied verbatim; the absolute
// offsets inside the footer and the asset records are rewritten to the
// new layout, and the index hash is recomputed over the relocated
// directory so the result still verifies.
//
// The output is assembled in a temporary file next to destPath and
// moved into place atomically. The source must not be open for write.
func PetrifyFile(sourcePath, destPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening petrify source %s: %w", sourcePath, err)
	}
	defer source.Close()

	var headerRaw [HeaderSize]byte
	if _, err := io.ReadFull(source, headerRaw[:]); err != nil {
		return fmt.Errorf("reading header of %s: %w", sourcePath, err)
	}
	header := decodeHeader(headerRaw[:])

	if !header.MagicValid() {
		return fmt.Errorf("%s: %w", sourcePath, ErrBadMagic)
	}
	if header.Petrified() {
		return fmt.Errorf("%s is already petrified", sourcePath)
	}
	// A clear flag with the footer already at the head means some
	// other tool relocated the directory; rewriting offsets again
	// would corrupt it.
	if header.FooterOffset == HeaderSize {
		return fmt.Errorf("%s has its footer at the head but the petrified flag is clear", sourcePath)
	}

	var footerRaw [FooterSize]byte
	if _, err := source.ReadAt(footerRaw[:], int64(header.FooterOffset)); err != nil {
		return fmt.Errorf("reading footer of %s at offset %d: %w", sourcePath, header.FooterOffset, err)
	}
	footer := decodeFooter(footerRaw[:])
	if footer.FooterLen != FooterSize {
		return fmt.Errorf("%s: footer length is %d, want %d", sourcePath, footer.FooterLen, FooterSize)
	}

	indexStart := footer.AssetOffset
	if indexStart < HeaderSize || indexStart > header.FooterOffset {
		return fmt.Errorf("%s: directory start %d is inconsistent with footer offset %d", sourcePath, indexStart, header.FooterOffset)
	}

	indexSize := header.FooterOffset - indexStart // directory tables, excluding the footer
	dataSize := indexStart - HeaderSize           // payload region

	newIndexStart := uint64(HeaderSize + FooterSize)
	newDataStart := newIndexStart + indexSize
	shiftIndex := int64(newIndexStart) - int64(indexStart)
	shiftData := int64(newDataStart) - int64(HeaderSize)

	newHeader := header
	newHeader.Flags |= FlagPetrified
	newHeader.FooterOffset = HeaderSize

	newFooter := footer
	newFooter.AssetOffset = shiftOffset(footer.AssetOffset, shiftIndex)
	newFooter.PageOffset = shiftOffset(footer.PageOffset, shiftIndex)
	newFooter.SectionOffset = shiftOffset(footer.SectionOffset, shiftIndex)
	newFooter.MetaOffset = shiftOffset(footer.MetaOffset, shiftIndex)
	newFooter.StringPoolOffset = shiftOffset(footer.StringPoolOffset, shiftIndex)
	// Zero expansion offset means "no table"; preserve that.
	if footer.ExpansionOffset != 0 {
		newFooter.ExpansionOffset = shiftOffset(footer.ExpansionOffset, shiftIndex)
	}

	tmpPath := destPath + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary file %s: %w", tmpPath, err)
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	newHeaderRaw := newHeader.encode()
	if _, err := tmp.Write(newHeaderRaw[:]); err != nil {
		return fmt.Errorf("writing petrified header: %w", err)
	}
	newFooterRaw := newFooter.encode()
	if _, err := tmp.Write(newFooterRaw[:]); err != nil {
		return fmt.Errorf("writing petrified footer: %w", err)
	}

	// Directory tables + string pool, verbatim.
	if _, err := source.Seek(int64(indexStart), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to directory region: %w", err)
	}
	if _, err := io.CopyN(tmp, source, int64(indexSize)); err != nil {
		return fmt.Errorf("copying directory region (%d bytes): %w", indexSize, err)
	}

	// Payload region, verbatim.
	if _, err := source.Seek(HeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to payload region: %w", err)
	}
	if _, err := io.CopyN(tmp, source, int64(dataSize)); err != nil {
		return fmt.Errorf("copying payload region (%d bytes): %w", dataSize, err)
	}

	if err := patchAssetOffsets(tmp, newFooter.AssetOffset, newFooter.AssetCount, shiftData); err != nil {
		return err
	}

	// The asset-record patch changed directory bytes, so the stored
	// index hash no longer describes them. Recompute it over the
	// relocated region and rewrite the footer.
	newFooter.FooterHash, err = hashFileRange(tmp, newIndexStart, indexSize)
	if err != nil {
		return fmt.Errorf("recomputing index hash: %w", err)
	}
	newFooterRaw = newFooter.encode()
	if _, err := tmp.WriteAt(newFooterRaw[:], HeaderSize); err != nil {
		return fmt.Errorf("rewriting petrified footer: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		tmp = nil
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	tmp = nil

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving petrified file into place: %w", err)
	}
	return nil
}

// patchAssetOffsets adds shift to the FileOffset field of every asset
// record in file, in batches.
func patchAssetOffsets(file *os.File, tableOffset, count uint64, shift int64) error {
	buffer := make([]byte, assetPatchBatch*assetSize)

	for patched := uint64(0); patched < count; {
		batch := count - patched
		if batch > assetPatchBatch {
			batch = assetPatchBatch
		}
		raw := buffer[:batch*assetSize]
		position := int64(tableOffset + patched*assetSize)

		if _, err := file.ReadAt(raw, position); err != nil {
			return fmt.Errorf("reading asset records %d..%d: %w", patched, patched+batch, err)
		}
		// Only the FileOffset field (first 8 bytes of the record)
		// changes; everything else stays byte-identical.
		for i := uint64(0); i < batch; i++ {
			field := raw[i*assetSize : i*assetSize+8]
			offset := binary.LittleEndian.Uint64(field)
			binary.LittleEndian.PutUint64(field, shiftOffset(offset, shift))
		}
		if _, err := file.WriteAt(raw, position); err != nil {
			return fmt.Errorf("writing asset records %d..%d: %w", patched, patched+batch, err)
		}
		patched += batch
	}
	return nil
}

// hashFileRange computes the XXH3-64 digest of length bytes of file
// starting at offset.
func hashFileRange(file *os.File, offset, length uint64) (uint64, error) {
	hasher := xxh3.New()
	section := io.NewSectionReader(file, int64(offset), int64(length))
	buffer := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(hasher, section, buffer); err != nil {
		return 0, err
	}
	return hasher.Sum64(), nil
}

// shiftOffset applies a signed shift to an unsigned file offset.
func shiftOffset(offset uint64, shift int64) uint64 {
	return uint64(int64(offset) + shift)
}
