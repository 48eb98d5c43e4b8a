// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pixel holds CPU-side pixel data for GPU textures.
package pixel

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Pixel store errors.
var (
	// ErrUnsupportedFormat is returned for texture formats without a CPU layout.
	ErrUnsupportedFormat = errors.New("pixel: unsupported texture format")

	// ErrInvalidSize is returned for non-positive dimensions.
	ErrInvalidSize = errors.New("pixel: invalid size")
)

// BytesPerPixel returns the size of one texel of format.
func BytesPerPixel(format gputypes.TextureFormat) (int, error) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatR32Float:
		return 4, nil
	case gputypes.TextureFormatR8Unorm:
		return 1, nil
	case gputypes.TextureFormatRG32Float:
		return 8, nil
	case gputypes.TextureFormatRGBA32Float:
		return 16, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
}

// Store is a contiguous, row-major pixel buffer. Its size is fixed by its
// format and dimensions.
//
// Store is not safe for concurrent use.
type Store struct {
	format gputypes.TextureFormat
	width  int
	height int
	bpp    int
	data   []byte
}

// New allocates a zeroed store.
func New(format gputypes.TextureFormat, width, height int) (*Store, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	bpp, err := BytesPerPixel(format)
	if err != nil {
		return nil, err
	}
	return &Store{
		format: format,
		width:  width,
		height: height,
		bpp:    bpp,
		data:   make([]byte, width*height*bpp),
	}, nil
}

// Format returns the texel format.
func (s *Store) Format() gputypes.TextureFormat {
	return s.format
}

// Width returns the width in pixels.
func (s *Store) Width() int {
	return s.width
}

// Height returns the height in pixels.
func (s *Store) Height() int {
	return s.height
}

// BytesPerPixel returns the texel size.
func (s *Store) BytesPerPixel() int {
	return s.bpp
}

// BytesPerRow returns the row stride.
func (s *Store) BytesPerRow() int {
	return s.width * s.bpp
}

// Size returns the total size in bytes.
func (s *Store) Size() int {
	return len(s.data)
}

// Ptr returns the backing bytes. Writes through the slice modify the store.
func (s *Store) Ptr() []byte {
	return s.data
}

// Fill sets every byte to b.
func (s *Store) Fill(b byte) {
	for i := range s.data {
		s.data[i] = b
	}
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	c := *s
	c.data = make([]byte, len(s.data))
	copy(c.data, s.data)
	return &c
}

// Extent returns the store dimensions as a single-layer extent.
func (s *Store) Extent() gputypes.Extent3D {
	return gputypes.Extent3D{
		Width:              uint32(s.width),
		Height:             uint32(s.height),
		DepthOrArrayLayers: 1,
	}
}
