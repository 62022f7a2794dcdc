// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/boundbook/bbf/lib/bbf"
)

func runExtract(args []string) error {
	flags := pflag.NewFlagSet("bbf extract", pflag.ContinueOnError)
	outDir := flags.String("outdir", "./extracted", "destination directory")
	sectionName := flags.String("section", "", "extract only the named section")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("extract: want exactly one .bbf input")
	}

	reader, err := bbf.OpenReader(flags.Arg(0))
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	defer reader.Close()

	footer, err := reader.Footer()
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	// Default to the whole book; a named section narrows the range to
	// [its start, the next section's start).
	start, end := uint64(0), footer.PageCount
	if *sectionName != "" {
		start, end, err = sectionRange(reader, footer, *sectionName)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("extract: creating %s: %w", *outDir, err)
	}

	for i := start; i < end; i++ {
		page, err := reader.Page(i)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		asset, err := reader.Asset(page.AssetIndex)
		if err != nil {
			return fmt.Errorf("extract: page %d: %w", i, err)
		}
		data, err := reader.AssetData(asset)
		if err != nil {
			return fmt.Errorf("extract: page %d: %w", i, err)
		}

		outPath := filepath.Join(*outDir, fmt.Sprintf("page_%d%s", i+1, asset.Type.Extension()))
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("extract: writing %s: %w", outPath, err)
		}
	}

	fmt.Printf("extracted %d pages to %s\n", end-start, *outDir)
	return nil
}

// sectionRange resolves a section name to its page range. The section
// runs from its start page to the next section's start page, or to the
// end of the book for the last section.
func sectionRange(reader *bbf.Reader, footer bbf.Footer, name string) (uint64, uint64, error) {
	for i := uint64(0); i < footer.SectionCount; i++ {
		section, err := reader.Section(i)
		if err != nil {
			return 0, 0, err
		}
		title, err := reader.String(section.TitleOffset)
		if err != nil {
			return 0, 0, fmt.Errorf("section %d title: %w", i, err)
		}
		if title != name {
			continue
		}

		start := section.StartPageIndex
		end := footer.PageCount
		if i+1 < footer.SectionCount {
			next, err := reader.Section(i + 1)
			if err != nil {
				return 0, 0, err
			}
			end = next.StartPageIndex
		}
		return start, end, nil
	}
	return 0, 0, fmt.Errorf("section %q not found", name)
}
