// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/boundbook/bbf/lib/bbf"
)

func runPetrify(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("petrify: want <input.bbf> <output.bbf>")
	}

	if err := bbf.PetrifyFile(args[0], args[1]); err != nil {
		return fmt.Errorf("petrify: %w", err)
	}

	fmt.Printf("petrified %s -> %s\n", args[0], args[1])
	return nil
}
