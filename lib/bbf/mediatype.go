// Copyright 2026 The Bound Book Authors
// SPDX-License-Identifier: Apache-2.0

package bbf

import "strings"

// MediaType identifies the image codec of an asset, detected from the
// input file's extension at build time. Readers treat it as advisory:
// payload bytes are stored verbatim regardless of type.
//
// The value 6 is intentionally unassigned.
type MediaType uint8

const (
	MediaUnknown MediaType = 0x00
	MediaAVIF    MediaType = 0x01
	MediaPNG     MediaType = 0x02
	MediaWEBP    MediaType = 0x03
	MediaJXL     MediaType = 0x04
	MediaBMP     MediaType = 0x05
	MediaGIF     MediaType = 0x07
	MediaTIFF    MediaType = 0x08
	MediaJPG     MediaType = 0x09
)

// Packed lowercased extensions. An extension of up to four bytes is
// packed little-endian into a uint32 and OR'd with 0x20202020, which
// lowercases ASCII letters in one operation.
const (
	packAVIF = uint32('a') | uint32('v')<<8 | uint32('i')<<16 | uint32('f')<<24
	packPNG  = uint32('p') | uint32('n')<<8 | uint32('g')<<16 | uint32(' ')<<24
	packWEBP = uint32('w') | uint32('e')<<8 | uint32('b')<<16 | uint32('p')<<24
	packJXL  = uint32('j') | uint32('x')<<8 | uint32('l')<<16 | uint32(' ')<<24
	packBMP  = uint32('b') | uint32('m')<<8 | uint32('p')<<16 | uint32(' ')<<24
	packGIF  = uint32('g') | uint32('i')<<8 | uint32('f')<<16 | uint32(' ')<<24
	packTIFF = uint32('t') | uint32('i')<<8 | uint32('f')<<16 | uint32('f')<<24
	packJPG  = uint32('j') | uint32('p')<<8 | uint32('g')<<16 | uint32(' ')<<24
	packJPEG = uint32('j') | uint32('p')<<8 | uint32('e')<<16 | uint32('g')<<24
)

const lowerMask = 0x20202020

// DetectMediaType maps the extension of path to a [MediaType]. Both
// "jpg" and "jpeg" collapse to [MediaJPG]; anything unrecognized,
// including a path with no extension, is [MediaUnknown]. Matching is
// case-insensitive.
func DetectMediaType(path string) MediaType {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot == len(path)-1 {
		return MediaUnknown
	}
	ext := path[dot+1:]

	var packed uint32
	for i := 0; i < 4 && i < len(ext); i++ {
		packed |= uint32(ext[i]) << (i * 8)
	}
	packed |= lowerMask

	switch packed {
	case packAVIF:
		return MediaAVIF
	case packPNG:
		return MediaPNG
	case packWEBP:
		return MediaWEBP
	case packJXL:
		return MediaJXL
	case packBMP:
		return MediaBMP
	case packGIF:
		return MediaGIF
	case packTIFF:
		return MediaTIFF
	case packJPG, packJPEG:
		return MediaJPG
	default:
		return MediaUnknown
	}
}

// Extension returns the canonical file extension for the media type,
// including the leading dot. Unknown types get ".bin".
func (t MediaType) Extension() string {
	switch t {
	case MediaAVIF:
		return ".avif"
	case MediaPNG:
		return ".png"
	case MediaWEBP:
		return ".webp"
	case MediaJXL:
		return ".jxl"
	case MediaBMP:
		return ".bmp"
	case MediaGIF:
		return ".gif"
	case MediaTIFF:
		return ".tiff"
	case MediaJPG:
		return ".jpg"
	default:
		return ".bin"
	}
}

// String returns the short lowercase name of the media type.
func (t MediaType) String() string {
	switch t {
	case MediaAVIF:
		return "avif"
	case MediaPNG:
		return "png"
	case MediaWEBP:
		return "webp"
	case MediaJXL:
		return "jxl"
	case MediaBMP:
		return "bmp"
	case MediaGIF:
		return "gif"
	case MediaTIFF:
		return "tiff"
	case MediaJPG:
		return "jpg"
	default:
		return "unknown"
	}
}
