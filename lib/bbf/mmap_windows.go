// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package bbf

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mapFile maps size bytes of file read-only through a file-mapping
// object and returns the view together with its release function.
func mapFile(file *os.File, size int64) ([]byte, func() error, error) {
	mapping, err := windows.CreateFileMapping(windows.Handle(file.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating file mapping: %w", err)
	}

	view, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(mapping)
		return nil, nil, fmt.Errorf("mapping view of file: %w", err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(view)), size)
	release := func() error {
		unmapErr := windows.UnmapViewOfFile(view)
		closeErr := windows.CloseHandle(mapping)
		if unmapErr != nil {
			return unmapErr
		}
		return closeErr
	}
	return data, release, nil
}
