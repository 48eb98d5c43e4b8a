// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command castordemo streams an image through a double-buffered texture
// storage and prewarms a grid of forward-pass shader variants.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/noop"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/backend/memory"
	"github.com/gogpu/castor/backend/native"
	"github.com/gogpu/castor/gpuctx"
	"github.com/gogpu/castor/pixel"
	"github.com/gogpu/castor/shadercache"
	"github.com/gogpu/castor/shadergen"
	"github.com/gogpu/castor/transfer"
	"github.com/gogpu/castor/variant"
)

type options struct {
	image   string
	size    int
	frames  int
	sync    string
	out     string
	backend string
	workers int
	verbose bool
}

func main() {
	var o options
	flag.StringVar(&o.image, "image", "", "source image (png, jpeg, bmp, tiff); a checkerboard when empty")
	flag.IntVar(&o.size, "size", 256, "texture width and height")
	flag.IntVar(&o.frames, "frames", 4, "asynchronous upload/download cycles")
	flag.StringVar(&o.sync, "sync", "fence", "staging slot protection: fence or none")
	flag.StringVar(&o.out, "out", "castor.png", "output file")
	flag.StringVar(&o.backend, "backend", "memory", "device backend: memory or noop")
	flag.IntVar(&o.workers, "workers", 4, "shader prewarm goroutines")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	castor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o); err != nil {
		castor.Logger().Error("castordemo failed", "error", err)
		os.Exit(1)
	}
}

// backendSet bundles the devices one backend provides.
type backendSet struct {
	dev      transfer.Device
	programs shadercache.ProgramFactory
	name     string
	close    func()
}

func openBackend(name string) (*backendSet, error) {
	switch name {
	case "memory":
		dev := memory.NewDevice()
		return &backendSet{
			dev:      dev,
			programs: memory.NewProgramFactory(),
			name:     "memory",
			close:    func() {},
		}, nil
	case "noop":
		dev, info, err := native.Open(gputypes.BackendEmpty)
		if err != nil {
			return nil, err
		}
		return &backendSet{
			dev:      dev,
			programs: native.NewProgramFactory(dev.HAL()),
			name:     info.Name,
			close:    dev.Destroy,
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func run(ctx context.Context, o options) error {
	syncMode, err := transfer.ParseSyncMode(o.sync)
	if err != nil {
		return err
	}
	be, err := openBackend(o.backend)
	if err != nil {
		return err
	}
	defer be.close()

	size := o.size
	if o.backend != "memory" {
		// Copy rows must be CopyRowAlignment bytes wide: 64 RGBA texels.
		size = (size + 63) / 64 * 64
	}
	src, err := loadImage(o.image, size)
	if err != nil {
		return err
	}
	store, err := pixel.FromImage(src, gputypes.TextureFormatRGBA8Unorm, size, size)
	if err != nil {
		return err
	}

	if err := stream(be.dev, store, syncMode, o.frames); err != nil {
		return err
	}
	if err := store.SavePNG(o.out); err != nil {
		return err
	}
	castor.Logger().Info("texture saved", "path", o.out, "size", size)

	return prewarm(ctx, be, o.workers)
}

func loadImage(path string, size int) (image.Image, error) {
	if path == "" {
		return checkerboard(size), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	castor.Logger().Info("image loaded", "path", path, "format", format, "bounds", img.Bounds().String())
	return img, nil
}

func checkerboard(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := max(size/8, 1)
	for y := range size {
		for x := range size {
			c := color.RGBA{R: 0x20, G: 0x40, B: 0x80, A: 0xFF}
			if (x/cell+y/cell)%2 == 0 {
				c = color.RGBA{R: 0xE0, G: 0xC0, B: 0x40, A: 0xFF}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// stream seeds the texture from the store, runs frames asynchronous round
// trips, then flushes the store to the texture and reads it back
// synchronously.
func stream(dev transfer.Device, store *pixel.Store, mode transfer.SyncMode, frames int) error {
	s, err := transfer.NewStorage(dev, store, transfer.Config{
		Label:  "demo",
		Access: transfer.AccessCPURead | transfer.AccessCPUWrite | transfer.AccessGPURead,
		Sync:   mode,
	})
	if err != nil {
		return err
	}
	if err := s.Initialise(); err != nil {
		return err
	}
	defer s.Cleanup()

	if err := s.UploadSync(); err != nil {
		return err
	}
	for range frames {
		if err := s.UploadAsync(); err != nil {
			return err
		}
		if err := s.DownloadAsync(); err != nil {
			return err
		}
	}
	if err := s.UploadSync(); err != nil {
		return err
	}
	if err := s.DownloadSync(); err != nil {
		return err
	}

	st := s.Stats()
	castor.Logger().Info("transfer done",
		"uploads", st.Uploads, "downloads", st.Downloads, "fence_waits", st.FenceWaits)
	return nil
}

// variantGrid lists the flag combinations a typical forward pass needs.
func variantGrid() []variant.Flags {
	var grid []variant.Flags
	for _, program := range []variant.ProgramFlag{
		variant.ProgramLighting,
		variant.ProgramLighting | variant.ProgramPbrMetallicRoughness,
		variant.ProgramLighting | variant.ProgramPbrSpecularGlossiness,
		variant.ProgramLighting | variant.ProgramInstantiation,
		variant.ProgramBillboards | variant.ProgramSpherical,
	} {
		for _, texture := range []variant.TextureChannel{
			0,
			variant.TextureDiffuse,
			variant.TextureDiffuse | variant.TextureNormal,
			variant.TextureDiffuse | variant.TextureNormal | variant.TextureSpecular | variant.TextureGloss,
		} {
			grid = append(grid, variant.Flags{Texture: texture, Program: program, AlphaFunc: variant.AlphaAlways})
		}
	}
	return grid
}

func prewarm(ctx context.Context, be *backendSet, workers int) error {
	gpu := gpuctx.New(gpuctx.HeadlessProvider{Dev: be.dev, Name: be.name})
	cache, err := shadercache.New(be.programs, gpu)
	if err != nil {
		return err
	}
	pass := &shadergen.ForwardPass{}

	if err := cache.Prewarm(ctx, pass, variantGrid(), workers); err != nil {
		return err
	}
	// Failures are reported per program below.
	_ = gpu.Flush()

	var failed int
	for _, p := range cache.Programs() {
		if p.Err() != nil {
			failed++
			castor.Logger().Warn("program failed", "label", p.Label(), "error", p.Err())
		}
	}
	castor.Logger().Info("shaders prewarmed",
		"automatic", cache.AutomaticCount(), "billboard", cache.BillboardCount(),
		"generated", pass.Generated(), "failed", failed)

	cache.Cleanup()
	if err := gpu.Flush(); err != nil {
		return err
	}
	return cache.Clear()
}
