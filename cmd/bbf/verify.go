// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/boundbook/bbf/lib/bbf"
)

func runVerify(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("verify: want exactly one .bbf input")
	}

	reader, err := bbf.OpenReader(args[0])
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	defer reader.Close()

	if err := reader.VerifyStructure(); err != nil {
		return fmt.Errorf("verify: structure: %w", err)
	}
	if err := reader.VerifyIndexHash(); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	footer, err := reader.Footer()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	fmt.Printf("verifying %d assets...\n", footer.AssetCount)
	mismatches := 0
	for i := uint64(0); i < footer.AssetCount; i++ {
		if err := reader.VerifyAsset(i); err != nil {
			fmt.Printf(" FAIL %v\n", err)
			mismatches++
		}
	}
	if mismatches > 0 {
		return fmt.Errorf("verify: %d of %d assets failed the hash check", mismatches, footer.AssetCount)
	}

	fmt.Println("integrity check passed")
	return nil
}
