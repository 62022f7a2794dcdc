// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

// bbf is the Bound Book Format muxer: it packs page images into .bbf
// containers and inspects, verifies, extracts, and petrifies existing
// ones.
//
// Usage:
//
//	bbf build <inputs...> -o <output.bbf> [flags]
//	bbf info <input.bbf>
//	bbf verify <input.bbf>
//	bbf extract <input.bbf> [--outdir path] [--section name]
//	bbf petrify <input.bbf> <output.bbf>
//
// Inputs to build can be individual images or directories (scanned
// non-recursively, sorted by name).
package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "build":
		return runBuild(rest)
	case "info":
		return runInfo(rest)
	case "verify":
		return runVerify(rest)
	case "extract":
		return runExtract(rest)
	case "petrify":
		return runPetrify(rest)
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Bound Book Format muxer

Usage:
  bbf build <inputs...> -o <output.bbf> [flags]
      Pack images (or directories of images) into a container.
      --meta "key:value"         add a metadata entry (repeatable)
      --section "Name:page"      add a section marker, 1-based page (repeatable)
      --manifest <book.yaml>     metadata and sections from a manifest file
      --alignment <exp>          payload alignment exponent (default 12)
      --ream-threshold <exp>     small-asset threshold exponent (default 16)
      --variable-ream            pack small assets on 8-byte boundaries

  bbf info <input.bbf>           print header, section, and metadata summary
  bbf verify <input.bbf>         check structure, index hash, and asset hashes
  bbf extract <input.bbf>        write pages back out as image files
      --outdir <path>            destination directory (default ./extracted)
      --section <name>           extract only the named section
  bbf petrify <input.bbf> <output.bbf>
                                 move the directory to the head of the file
`)
}
