// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package bbf

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps size bytes of file read-only and returns the mapping
// together with its release function. The mapping is private and
// read-only; it is not a snapshot, so changes other writers make to the
// underlying file afterwards can show through in the mapped pages.
func mapFile(file *os.File, size int64) ([]byte, func() error, error) {
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("memory-mapping %d bytes: %w", size, err)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
