// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// buildAnnotatedBook builds a book with metadata and sections for
// petrification equivalence checks.
func buildAnnotatedBook(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	inputs := []string{
		writePage(t, dir, "A.png", 'A', 2048),
		writePage(t, dir, "B.png", 'B', 1024),
		writePage(t, dir, "C.png", 'C', 512),
	}

	output := filepath.Join(dir, "book.bbf")
	builder, err := NewBuilder(output, BuilderConfig{})
	if err != nil {
		t.Fatal(err)
	}
	for _, input := range inputs {
		if err := builder.AddPage(input, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := builder.AddSection("Front Matter", 0, ""); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddSection("Plates", 1, "Front Matter"); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddMeta("title", "Atlas", ""); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddMeta("author", "Y", "title"); err != nil {
		t.Fatal(err)
	}
	if err := builder.Finalize(); err != nil {
		t.Fatal(err)
	}
	return output
}

func TestPetrifyLayout(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})
	petrified := book + ".petrified"

	if err := PetrifyFile(book, petrified); err != nil {
		t.Fatalf("PetrifyFile failed: %v", err)
	}

	reader, err := OpenReader(petrified)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	header, err := reader.Header()
	if err != nil {
		t.Fatal(err)
	}
	if !header.Petrified() {
		t.Error("petrified flag is not set")
	}
	if header.FooterOffset != HeaderSize {
		t.Errorf("footer offset = %d, want %d", header.FooterOffset, HeaderSize)
	}

	footer, err := reader.Footer()
	if err != nil {
		t.Fatal(err)
	}
	if footer.AssetOffset != HeaderSize+FooterSize {
		t.Errorf("asset table offset = %d, want %d", footer.AssetOffset, HeaderSize+FooterSize)
	}
}

func TestPetrifyRoundTrip(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})
	petrified := book + ".petrified"

	if err := PetrifyFile(book, petrified); err != nil {
		t.Fatalf("PetrifyFile failed: %v", err)
	}

	original, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	defer original.Close()
	relocated, err := OpenReader(petrified)
	if err != nil {
		t.Fatal(err)
	}
	defer relocated.Close()

	originalFooter, err := original.Footer()
	if err != nil {
		t.Fatal(err)
	}
	relocatedFooter, err := relocated.Footer()
	if err != nil {
		t.Fatal(err)
	}
	if originalFooter.PageCount != relocatedFooter.PageCount {
		t.Fatalf("page counts differ: %d vs %d", originalFooter.PageCount, relocatedFooter.PageCount)
	}

	// Every page must resolve to identical payload bytes, and the
	// stored hashes must still match the relocated payloads.
	for i := uint64(0); i < originalFooter.PageCount; i++ {
		originalPage, err := original.Page(i)
		if err != nil {
			t.Fatal(err)
		}
		relocatedPage, err := relocated.Page(i)
		if err != nil {
			t.Fatal(err)
		}
		originalAsset, err := original.Asset(originalPage.AssetIndex)
		if err != nil {
			t.Fatal(err)
		}
		relocatedAsset, err := relocated.Asset(relocatedPage.AssetIndex)
		if err != nil {
			t.Fatal(err)
		}

		originalData, err := original.AssetData(originalAsset)
		if err != nil {
			t.Fatal(err)
		}
		relocatedData, err := relocated.AssetData(relocatedAsset)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(originalData, relocatedData) {
			t.Errorf("page %d payload differs after petrification", i)
		}

		computed, err := relocated.ComputeAssetHash(relocatedAsset)
		if err != nil {
			t.Fatal(err)
		}
		if computed != relocatedAsset.Hash {
			t.Errorf("page %d: relocated payload hash %s != stored %s", i, computed, relocatedAsset.Hash)
		}
	}
}

func TestPetrifySemanticEquivalence(t *testing.T) {
	book := buildAnnotatedBook(t)
	petrified := book + ".petrified"

	if err := PetrifyFile(book, petrified); err != nil {
		t.Fatalf("PetrifyFile failed: %v", err)
	}

	original, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	defer original.Close()
	relocated, err := OpenReader(petrified)
	if err != nil {
		t.Fatal(err)
	}
	defer relocated.Close()

	footer, err := original.Footer()
	if err != nil {
		t.Fatal(err)
	}

	// Metadata triples survive as (key, value, parent) strings.
	for i := uint64(0); i < footer.MetaCount; i++ {
		originalMeta, err := original.Meta(i)
		if err != nil {
			t.Fatal(err)
		}
		relocatedMeta, err := relocated.Meta(i)
		if err != nil {
			t.Fatal(err)
		}
		for _, pair := range []struct {
			name                  string
			originalOff, movedOff uint64
		}{
			{"key", originalMeta.KeyOffset, relocatedMeta.KeyOffset},
			{"value", originalMeta.ValueOffset, relocatedMeta.ValueOffset},
			{"parent", originalMeta.ParentOffset, relocatedMeta.ParentOffset},
		} {
			if pair.originalOff == AbsentOffset || pair.movedOff == AbsentOffset {
				if pair.originalOff != pair.movedOff {
					t.Errorf("meta %d %s: absent flag differs", i, pair.name)
				}
				continue
			}
			want, err := original.String(pair.originalOff)
			if err != nil {
				t.Fatal(err)
			}
			got, err := relocated.String(pair.movedOff)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("meta %d %s = %q, want %q", i, pair.name, got, want)
			}
		}
	}

	// Sections survive as (title, startIndex, parent).
	for i := uint64(0); i < footer.SectionCount; i++ {
		originalSection, err := original.Section(i)
		if err != nil {
			t.Fatal(err)
		}
		relocatedSection, err := relocated.Section(i)
		if err != nil {
			t.Fatal(err)
		}
		if originalSection.StartPageIndex != relocatedSection.StartPageIndex {
			t.Errorf("section %d start index changed: %d vs %d", i, originalSection.StartPageIndex, relocatedSection.StartPageIndex)
		}
		want, err := original.String(originalSection.TitleOffset)
		if err != nil {
			t.Fatal(err)
		}
		got, err := relocated.String(relocatedSection.TitleOffset)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("section %d title = %q, want %q", i, got, want)
		}
	}
}

func TestPetrifyVerifies(t *testing.T) {
	// The index hash is recomputed after the asset-record patch, so a
	// petrified file passes the full integrity check.
	book := buildAnnotatedBook(t)
	petrified := book + ".petrified"

	if err := PetrifyFile(book, petrified); err != nil {
		t.Fatal(err)
	}

	reader, err := OpenReader(petrified)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if err := reader.Verify(); err != nil {
		t.Errorf("Verify on petrified file failed: %v", err)
	}
}

func TestPetrifyAlreadyPetrified(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})
	once := book + ".once"
	twice := book + ".twice"

	if err := PetrifyFile(book, once); err != nil {
		t.Fatal(err)
	}
	if err := PetrifyFile(once, twice); err == nil {
		t.Error("petrifying an already-petrified file should fail")
	}
}

func TestPetrifyRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-book.bbf")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x55}, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := PetrifyFile(path, filepath.Join(dir, "out.bbf")); err == nil {
		t.Error("petrifying a non-BBF file should fail")
	}
}

func TestPetrifyRejectsFooterAtHead(t *testing.T) {
	// A file whose directory already sits at the head (but with the
	// flag clear) was relocated by some other tool; rewriting its
	// offsets again would corrupt it.
	book := buildSimpleBook(t, BuilderConfig{})
	petrified := book + ".petrified"
	if err := PetrifyFile(book, petrified); err != nil {
		t.Fatal(err)
	}

	// Clear the petrified flag bit, leaving the footer at the head.
	raw, err := os.ReadFile(petrified)
	if err != nil {
		t.Fatal(err)
	}
	raw[8] &^= FlagPetrified
	cleared := petrified + ".cleared"
	if err := os.WriteFile(cleared, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := PetrifyFile(cleared, cleared+".out"); err == nil {
		t.Error("petrifying a head-directory file with a clear flag should fail")
	}
}

func TestPetrifyMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := PetrifyFile(filepath.Join(dir, "absent.bbf"), filepath.Join(dir, "out.bbf")); err == nil {
		t.Error("petrifying a missing source should fail")
	}
}

func TestPetrifyLeavesNoTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "truncated.bbf")
	// Valid magic but the file ends before the claimed footer.
	book := buildSimpleBook(t, BuilderConfig{})
	raw, err := os.ReadFile(book)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(source, raw[:HeaderSize+100], 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "out.bbf")
	if err := PetrifyFile(source, dest); err == nil {
		t.Fatal("petrifying a truncated file should fail")
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file was left behind after failure")
	}
}
