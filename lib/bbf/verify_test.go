// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import (
	"os"
	"testing"
)

func TestVerifyCleanBook(t *testing.T) {
	book := buildAnnotatedBook(t)
	reader, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if err := reader.Verify(); err != nil {
		t.Errorf("Verify on a clean book failed: %v", err)
	}
}

func TestVerifyDetectsPayloadCorruption(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})

	reader, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	asset, err := reader.Asset(0)
	if err != nil {
		t.Fatal(err)
	}
	payloadOffset := asset.FileOffset
	reader.Close()

	// Flip one byte inside the first payload.
	corrupted := corruptFile(t, book, int64(payloadOffset), []byte{0xFF})

	reader, err = OpenReader(corrupted)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if err := reader.VerifyAsset(0); err == nil {
		t.Error("VerifyAsset should detect a flipped payload byte")
	}
	// The directory itself is untouched.
	if err := reader.VerifyIndexHash(); err != nil {
		t.Errorf("VerifyIndexHash failed on an intact directory: %v", err)
	}
	if err := reader.VerifyStructure(); err != nil {
		t.Errorf("VerifyStructure failed on an intact directory: %v", err)
	}
}

func TestVerifyDetectsIndexCorruption(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})

	reader, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	footer, err := reader.Footer()
	if err != nil {
		t.Fatal(err)
	}
	// Flip a flag byte inside the first page record; the page still
	// decodes but the index hash no longer matches.
	pageFlagsOffset := int64(footer.PageOffset + 8)
	reader.Close()

	corrupted := corruptFile(t, book, pageFlagsOffset, []byte{0xAA})

	reader, err = OpenReader(corrupted)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if err := reader.VerifyIndexHash(); err == nil {
		t.Error("VerifyIndexHash should detect a patched page record")
	}
}

func TestVerifyDetectsDanglingPageReference(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})

	reader, err := OpenReader(book)
	if err != nil {
		t.Fatal(err)
	}
	footer, err := reader.Footer()
	if err != nil {
		t.Fatal(err)
	}
	pageOffset := int64(footer.PageOffset)
	reader.Close()

	// Point the first page at asset 200 of a 3-asset book.
	corrupted := corruptFile(t, book, pageOffset, []byte{200})

	reader, err = OpenReader(corrupted)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if err := reader.VerifyStructure(); err == nil {
		t.Error("VerifyStructure should detect a page referencing a missing asset")
	}
}

func TestVerifyDetectsTruncation(t *testing.T) {
	book := buildSimpleBook(t, BuilderConfig{})
	raw, err := os.ReadFile(book)
	if err != nil {
		t.Fatal(err)
	}
	truncated := book + ".short"
	if err := os.WriteFile(truncated, raw[:len(raw)-16], 0o644); err != nil {
		t.Fatal(err)
	}

	reader, err := OpenReader(truncated)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	// The footer range now runs past end-of-file.
	if _, err := reader.Footer(); err == nil {
		t.Error("Footer on a truncated file should fail")
	}
}
