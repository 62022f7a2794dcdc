// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// corruptFile flips bytes of a built book at the given offset and
// returns the path of the corrupted copy.
func corruptFile(t *testing.T, path string, offset int64, replacement []byte) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	copy(raw[offset:], replacement)
	corrupted := path + ".corrupt"
	if err := os.WriteFile(corrupted, raw, 0o644); err != nil {
		t.Fatalf("writing corrupted copy: %v", err)
	}
	return corrupted
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := OpenReader(filepath.Join(t.TempDir(), "absent.bbf")); err == nil {
		t.Error("OpenReader should fail for a missing file")
	}
}

func TestReaderEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bbf")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Error("OpenReader should fail for an empty file")
	}
}

func TestReaderCorruptFooterOffset(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})

	// Point the header's footer offset past end-of-file.
	var bogus [8]byte
	binary.LittleEndian.PutUint64(bogus[:], 1<<40)
	corrupted := corruptFile(t, book, 16, bogus[:])

	reader, err := OpenReader(corrupted)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Footer(); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Footer on corrupt offset = %v, want ErrOutOfBounds", err)
	}
}

func TestReaderWrappingFooterOffset(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})

	// An offset near 2^64 must be rejected by the wrap check, not
	// wrap around into the mapping.
	var bogus [8]byte
	binary.LittleEndian.PutUint64(bogus[:], ^uint64(0)-7)
	corrupted := corruptFile(t, book, 16, bogus[:])

	reader, err := OpenReader(corrupted)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if _, err := reader.Footer(); err == nil {
		t.Error("Footer on a wrapping offset should fail")
	}
}

func TestReaderIndexBounds(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})
	reader, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if _, err := reader.Asset(3); err == nil {
		t.Error("Asset(3) should fail on a 3-asset book")
	}
	if _, err := reader.Page(3); err == nil {
		t.Error("Page(3) should fail on a 3-page book")
	}
	if _, err := reader.Section(0); err == nil {
		t.Error("Section(0) should fail on a book with no sections")
	}
	if _, err := reader.Meta(0); err == nil {
		t.Error("Meta(0) should fail on a book with no metadata")
	}
	if _, err := reader.Expansion(0); err == nil {
		t.Error("Expansion(0) should fail; writers emit no expansions")
	}
}

func TestReaderStringAccess(t *testing.T) {
	dir := t.TempDir()
	input := writePage(t, dir, "A.png", 'A', 256)
	output := filepath.Join(dir, "book.bbf")

	builder, err := NewBuilder(output, BuilderConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := builder.AddPage(input, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddMeta("language", "en", ""); err != nil {
		t.Fatal(err)
	}
	if err := builder.Finalize(); err != nil {
		t.Fatal(err)
	}

	reader, err := OpenReader(output)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	meta, err := reader.Meta(0)
	if err != nil {
		t.Fatal(err)
	}
	key, err := reader.String(meta.KeyOffset)
	if err != nil {
		t.Fatalf("String(key) failed: %v", err)
	}
	if key != "language" {
		t.Errorf("key = %q, want \"language\"", key)
	}
	value, err := reader.String(meta.ValueOffset)
	if err != nil {
		t.Fatalf("String(value) failed: %v", err)
	}
	if value != "en" {
		t.Errorf("value = %q, want \"en\"", value)
	}

	// The sentinel and out-of-pool offsets are rejected.
	if _, err := reader.String(AbsentOffset); !errors.Is(err, ErrBadString) {
		t.Errorf("String(sentinel) = %v, want ErrBadString", err)
	}
	footer, err := reader.Footer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reader.String(footer.StringPoolSize); !errors.Is(err, ErrBadString) {
		t.Errorf("String(poolSize) = %v, want ErrBadString", err)
	}
}

func TestReaderComputeAssetHash(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})
	reader, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	footer, err := reader.Footer()
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < footer.AssetCount; i++ {
		asset, err := reader.Asset(i)
		if err != nil {
			t.Fatal(err)
		}
		computed, err := reader.ComputeAssetHash(asset)
		if err != nil {
			t.Fatalf("ComputeAssetHash(%d) failed: %v", i, err)
		}
		if computed != asset.Hash {
			t.Errorf("asset %d: computed hash %s != stored %s", i, computed, asset.Hash)
		}
	}
}

func TestReaderArbitraryBytes(t *testing.T) {
	// No accessor may panic or return an out-of-mapping view for any
	// byte soup presented as a file. Deterministic seed so failures
	// reproduce.
	rng := rand.New(rand.NewSource(0x42424633))
	dir := t.TempDir()

	for trial := 0; trial < 64; trial++ {
		size := 1 + rng.Intn(8192)
		raw := make([]byte, size)
		rng.Read(raw)
		// Half the trials get a valid magic so deeper paths run.
		if trial%2 == 0 && size >= 4 {
			copy(raw, "BBF3")
		}

		path := filepath.Join(dir, "fuzz.bbf")
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			t.Fatal(err)
		}

		reader, err := OpenReader(path)
		if err != nil {
			continue
		}

		// Exercise every accessor; errors are fine, panics are not.
		reader.Header()
		if _, err := reader.Footer(); err == nil {
			reader.AssetTable()
			reader.PageTable()
			reader.SectionTable()
			reader.MetaTable()
			reader.ExpansionTable()
			for i := uint64(0); i < 4; i++ {
				if asset, err := reader.Asset(i); err == nil {
					if data, err := reader.AssetData(asset); err == nil {
						if uint64(len(data)) != asset.FileSize {
							t.Fatalf("trial %d: AssetData length %d != record size %d", trial, len(data), asset.FileSize)
						}
					}
					reader.ComputeAssetHash(asset)
				}
				reader.Page(i)
				reader.Section(i)
				reader.Meta(i)
			}
			reader.String(0)
			reader.String(1 << 20)
			reader.VerifyStructure()
			reader.VerifyIndexHash()
		}
		reader.Close()
	}
}

func TestReaderCloseInvalidatesViews(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})
	reader, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := reader.Header(); err == nil {
		t.Error("Header after Close should fail")
	}
	// Double close is harmless.
	if err := reader.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func BenchmarkReaderVerify(b *testing.B) {
	dir := b.TempDir()
	output := filepath.Join(dir, "book.bbf")
	builder, err := NewBuilder(output, BuilderConfig{})
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 16; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		payload := make([]byte, 64*1024)
		for j := range payload {
			payload[j] = byte((i + j) % 251)
		}
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			b.Fatal(err)
		}
		if err := builder.AddPage(path, 0, 0); err != nil {
			b.Fatal(err)
		}
	}
	if err := builder.Finalize(); err != nil {
		b.Fatal(err)
	}

	reader, err := OpenReader(output)
	if err != nil {
		b.Fatal(err)
	}
	defer reader.Close()

	b.SetBytes(16 * 64 * 1024)
	b.ReportAllocs()
	for b.Loop() {
		if err := reader.Verify(); err != nil {
			b.Fatal(err)
		}
	}
}
