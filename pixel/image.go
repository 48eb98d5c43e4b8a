// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pixel

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"
)

// FromImage converts img into a store of the given format and size. The
// image is scaled when its bounds differ from width x height.
func FromImage(img image.Image, format gputypes.TextureFormat, width, height int) (*Store, error) {
	s, err := New(format, width, height)
	if err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, width, height)
	if format == gputypes.TextureFormatR8Unorm {
		gray := &image.Gray{Pix: s.data, Stride: s.BytesPerRow(), Rect: rect}
		drawInto(gray, img)
		return s, nil
	}

	rgba := image.NewRGBA(rect)
	drawInto(rgba, img)

	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		copy(s.data, rgba.Pix)
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		copy(s.data, rgba.Pix)
		swapRB(s.data)
	default:
		writeFloats(s, rgba.Pix)
	}
	return s, nil
}

// drawInto copies src into dst, scaling with bilinear filtering when the
// sizes differ.
func drawInto(dst xdraw.Image, src image.Image) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		xdraw.Copy(dst, image.Point{}, src, src.Bounds(), xdraw.Src, nil)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}

// writeFloats stores 8-bit RGBA as normalized little-endian float32 texels,
// keeping as many leading channels as the format has.
func writeFloats(s *Store, rgba []byte) {
	channels := s.bpp / 4
	for px := 0; px < s.width*s.height; px++ {
		for c := 0; c < channels; c++ {
			v := float32(rgba[px*4+c]) / 255
			binary.LittleEndian.PutUint32(s.data[(px*channels+c)*4:], math.Float32bits(v))
		}
	}
}

// swapRB swaps the first and third byte of every 4-byte texel.
func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// ToImage returns an image of the store. RGBA8 and R8 stores are returned as
// views sharing the store's bytes; other 8-bit formats are converted.
func (s *Store) ToImage() (image.Image, error) {
	rect := image.Rect(0, 0, s.width, s.height)
	switch s.format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		return &image.RGBA{Pix: s.data, Stride: s.BytesPerRow(), Rect: rect}, nil
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		img := image.NewRGBA(rect)
		copy(img.Pix, s.data)
		swapRB(img.Pix)
		return img, nil
	case gputypes.TextureFormatR8Unorm:
		return &image.Gray{Pix: s.data, Stride: s.BytesPerRow(), Rect: rect}, nil
	default:
		return nil, fmt.Errorf("%w: %v has no 8-bit image form", ErrUnsupportedFormat, s.format)
	}
}

// SavePNG encodes the store to a PNG file.
func (s *Store) SavePNG(path string) error {
	img, err := s.ToImage()
	if err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
