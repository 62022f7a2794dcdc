// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/boundbook/bbf/lib/bbf"
)

// sectionRequest is a parsed --section flag or manifest entry. Page is
// 1-based on the command line and converted when applied.
type sectionRequest struct {
	name   string
	page   uint64
	parent string
}

// metaRequest is a parsed --meta flag or manifest entry.
type metaRequest struct {
	key    string
	value  string
	parent string
}

func runBuild(args []string) error {
	flags := pflag.NewFlagSet("bbf build", pflag.ContinueOnError)
	output := flags.StringP("output", "o", "", "output .bbf path (required)")
	metaFlags := flags.StringArray("meta", nil, `metadata entry, "key:value"`)
	sectionFlags := flags.StringArray("section", nil, `section marker, "Name:page" (1-based)`)
	manifestPath := flags.String("manifest", "", "YAML manifest with metadata and sections")
	alignment := flags.Uint8("alignment", bbf.DefaultGuardAlignment, "payload alignment exponent")
	reamThreshold := flags.Uint8("ream-threshold", bbf.DefaultSmallReamThreshold, "small-asset threshold exponent")
	variableReam := flags.Bool("variable-ream", false, "pack small assets on 8-byte boundaries")

	if err := flags.Parse(args); err != nil {
		return err
	}
	inputs := flags.Args()
	if *output == "" {
		return fmt.Errorf("build: --output is required")
	}
	if len(inputs) == 0 {
		return fmt.Errorf("build: no inputs given")
	}

	sections := make([]sectionRequest, 0, len(*sectionFlags))
	for _, raw := range *sectionFlags {
		request, err := parseSectionFlag(raw)
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}
		sections = append(sections, request)
	}

	metas := make([]metaRequest, 0, len(*metaFlags))
	for _, raw := range *metaFlags {
		request, err := parseMetaFlag(raw)
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}
		metas = append(metas, request)
	}

	if *manifestPath != "" {
		manifest, err := loadManifest(*manifestPath)
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}
		manifestMetas, manifestSections := manifest.requests()
		metas = append(metas, manifestMetas...)
		sections = append(sections, manifestSections...)
	}

	pagePaths, err := collectInputs(inputs)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if len(pagePaths) == 0 {
		return fmt.Errorf("build: inputs contain no files")
	}

	var config bbf.BuilderConfig
	config.AlignmentExp = *alignment
	config.ReamSizeExp = *reamThreshold
	if *variableReam {
		config.Flags |= bbf.FlagVariableReam
	}

	builder, err := bbf.NewBuilder(*output, config)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer builder.Close()

	for _, path := range pagePaths {
		if err := builder.AddPage(path, 0, 0); err != nil {
			slog.Warn("skipping page", "path", path, "error", err)
		}
	}

	for _, section := range sections {
		if section.page == 0 {
			return fmt.Errorf("build: section %q: pages are numbered from 1", section.name)
		}
		if err := builder.AddSection(section.name, section.page-1, section.parent); err != nil {
			return fmt.Errorf("build: %w", err)
		}
	}
	for _, meta := range metas {
		if err := builder.AddMeta(meta.key, meta.value, meta.parent); err != nil {
			return fmt.Errorf("build: %w", err)
		}
	}

	if err := builder.Finalize(); err != nil {
		os.Remove(*output)
		return fmt.Errorf("build: %w", err)
	}

	fmt.Printf("created %s: %d pages, %d assets\n", *output, builder.PageCount(), builder.AssetCount())
	return nil
}

// collectInputs expands the input arguments into a flat, sorted list
// of page files. Directories contribute their immediate regular files.
func collectInputs(inputs []string) ([]string, error) {
	var paths []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input, err)
		}
		if !info.IsDir() {
			paths = append(paths, input)
			continue
		}

		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", input, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(input, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// parseSectionFlag parses "Name:page", splitting on the last colon so
// section names may contain colons.
func parseSectionFlag(raw string) (sectionRequest, error) {
	colon := strings.LastIndexByte(raw, ':')
	if colon < 0 {
		return sectionRequest{}, fmt.Errorf("section %q: want \"Name:page\"", raw)
	}
	page, err := strconv.ParseUint(raw[colon+1:], 10, 64)
	if err != nil {
		return sectionRequest{}, fmt.Errorf("section %q: bad page number: %w", raw, err)
	}
	return sectionRequest{name: raw[:colon], page: page}, nil
}

// parseMetaFlag parses "key:value", splitting on the first colon so
// values may contain colons.
func parseMetaFlag(raw string) (metaRequest, error) {
	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return metaRequest{}, fmt.Errorf("meta %q: want \"key:value\"", raw)
	}
	return metaRequest{key: raw[:colon], value: raw[colon+1:]}, nil
}
