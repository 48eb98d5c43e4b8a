// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/backend/memory"
	"github.com/gogpu/castor/pixel"
	"github.com/gogpu/castor/transfer"
)

func TestStreamKeepsImage(t *testing.T) {
	for _, frames := range []int{0, 1, 3, 4} {
		store, err := pixel.FromImage(checkerboard(16), gputypes.TextureFormatRGBA8Unorm, 16, 16)
		if err != nil {
			t.Fatal(err)
		}
		want := bytes.Clone(store.Ptr())

		if err := stream(memory.NewDevice(), store, transfer.SyncFence, frames); err != nil {
			t.Fatalf("frames=%d: %v", frames, err)
		}
		if !bytes.Equal(store.Ptr(), want) {
			t.Errorf("frames=%d: store changed, first texel %x want %x", frames, store.Ptr()[:4], want[:4])
		}
	}
}

func TestRunWritesImage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "demo.png")
	o := options{size: 16, frames: 4, sync: "fence", out: out, backend: "memory", workers: 2}
	if err := run(context.Background(), o); err != nil {
		t.Fatalf("run: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, a := img.At(0, 0).RGBA(); r>>8 != 0xE0 || g>>8 != 0xC0 || b>>8 != 0x40 || a>>8 != 0xFF {
		t.Errorf("pixel (0,0) = %d %d %d %d, want 224 192 64 255", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestOpenBackendUnknown(t *testing.T) {
	if _, err := openBackend("vulkan"); err == nil {
		t.Error("openBackend(vulkan) succeeded")
	}
}
