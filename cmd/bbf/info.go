// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/boundbook/bbf/lib/bbf"
)

func runInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info: want exactly one .bbf input")
	}

	reader, err := bbf.OpenReader(args[0])
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	defer reader.Close()

	header, err := reader.Header()
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	if !header.MagicValid() {
		return fmt.Errorf("info: %s is not a BBF file", args[0])
	}
	footer, err := reader.Footer()
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	fmt.Println("Bound Book Format (.bbf) Info")
	fmt.Println("------------------------------")
	fmt.Printf("BBF Version: %d\n", header.Version)
	fmt.Printf("Pages:       %d\n", footer.PageCount)
	fmt.Printf("Assets:      %d (deduplicated)\n", footer.AssetCount)
	fmt.Printf("Alignment:   %d bytes\n", uint64(1)<<header.Alignment)
	fmt.Printf("Petrified:   %v\n", header.Petrified())

	fmt.Println("\n[Sections]")
	if footer.SectionCount == 0 {
		fmt.Println(" No sections defined.")
	}
	for i := uint64(0); i < footer.SectionCount; i++ {
		section, err := reader.Section(i)
		if err != nil {
			return fmt.Errorf("info: %w", err)
		}
		title, err := reader.String(section.TitleOffset)
		if err != nil {
			return fmt.Errorf("info: section %d title: %w", i, err)
		}
		line := fmt.Sprintf(" - %-20s (starts page %d)", title, section.StartPageIndex+1)
		if section.ParentOffset != bbf.AbsentOffset {
			parent, err := reader.String(section.ParentOffset)
			if err != nil {
				return fmt.Errorf("info: section %d parent: %w", i, err)
			}
			line += fmt.Sprintf(" [in %s]", parent)
		}
		fmt.Println(line)
	}

	fmt.Println("\n[Metadata]")
	if footer.MetaCount == 0 {
		fmt.Println(" No metadata found.")
	}
	for i := uint64(0); i < footer.MetaCount; i++ {
		meta, err := reader.Meta(i)
		if err != nil {
			return fmt.Errorf("info: %w", err)
		}
		key, err := reader.String(meta.KeyOffset)
		if err != nil {
			return fmt.Errorf("info: metadata %d key: %w", i, err)
		}
		value, err := reader.String(meta.ValueOffset)
		if err != nil {
			return fmt.Errorf("info: metadata %d value: %w", i, err)
		}
		line := fmt.Sprintf(" - %-15s %s", key+":", value)
		if meta.ParentOffset != bbf.AbsentOffset {
			parent, err := reader.String(meta.ParentOffset)
			if err != nil {
				return fmt.Errorf("info: metadata %d parent: %w", i, err)
			}
			line += fmt.Sprintf(" [under %s]", parent)
		}
		fmt.Println(line)
	}

	return nil
}
