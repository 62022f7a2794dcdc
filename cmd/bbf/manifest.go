// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifest is the YAML description of a book's metadata and sections,
// an alternative to repeating --meta/--section flags. Pages are
// 1-based, matching the flags.
//
//	title: The Voyage of the Beagle
//	meta:
//	  - key: author
//	    value: Charles Darwin
//	  - key: edition
//	    value: second
//	    parent: author
//	sections:
//	  - name: Chapter I
//	    page: 1
//	  - name: St. Jago
//	    page: 2
//	    parent: Chapter I
type manifest struct {
	Title    string            `yaml:"title"`
	Meta     []manifestMeta    `yaml:"meta"`
	Sections []manifestSection `yaml:"sections"`
}

type manifestMeta struct {
	Key    string `yaml:"key"`
	Value  string `yaml:"value"`
	Parent string `yaml:"parent"`
}

type manifestSection struct {
	Name   string `yaml:"name"`
	Page   uint64 `yaml:"page"`
	Parent string `yaml:"parent"`
}

// loadManifest reads and parses a manifest file.
func loadManifest(path string) (*manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// requests converts the manifest into the builder request lists. A
// non-empty title becomes a "title" metadata entry ahead of the rest.
func (m *manifest) requests() ([]metaRequest, []sectionRequest) {
	var metas []metaRequest
	if m.Title != "" {
		metas = append(metas, metaRequest{key: "title", value: m.Title})
	}
	for _, entry := range m.Meta {
		metas = append(metas, metaRequest{key: entry.Key, value: entry.Value, parent: entry.Parent})
	}

	var sections []sectionRequest
	for _, entry := range m.Sections {
		sections = append(sections, sectionRequest{name: entry.Name, page: entry.Page, parent: entry.Parent})
	}
	return metas, sections
}
