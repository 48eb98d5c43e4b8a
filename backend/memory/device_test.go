// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/shadercache"
	"github.com/gogpu/castor/transfer"
)

func layout4x2() transfer.Layout {
	return transfer.Layout{
		BytesPerRow: 16,
		Size:        gputypes.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 1},
	}
}

func TestDeviceRoundTrip(t *testing.T) {
	d := NewDevice()
	size := gputypes.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 1}
	tex, err := d.CreateTexture("tex", gputypes.TextureFormatRGBA8Unorm, size)
	if err != nil {
		t.Fatal(err)
	}
	up, _ := d.CreateBuffer("up", 32, gputypes.BufferUsageMapWrite|gputypes.BufferUsageCopySrc)
	down, _ := d.CreateBuffer("down", 32, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)

	src := bytes.Repeat([]byte{0xAB}, 32)
	if err := d.WriteBuffer(up, src); err != nil {
		t.Fatal(err)
	}
	if err := d.CopyBufferToTexture(up, tex, layout4x2()); err != nil {
		t.Fatal(err)
	}
	if err := d.CopyTextureToBuffer(tex, down, layout4x2()); err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 32)
	if err := d.ReadBuffer(down, dst); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("round trip = %x", dst)
	}

	st := d.Stats()
	if st.TexturesCreated != 1 || st.BuffersCreated != 2 || st.LiveBuffers != 2 {
		t.Errorf("Stats() = %+v", st)
	}
	d.DestroyBuffer(up)
	d.DestroyBuffer(up)
	if d.Stats().LiveBuffers != 1 {
		t.Errorf("LiveBuffers = %d, want 1", d.Stats().LiveBuffers)
	}
}

func TestDeviceUsageChecks(t *testing.T) {
	d := NewDevice()
	down, _ := d.CreateBuffer("down", 8, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err := d.WriteBuffer(down, make([]byte, 8)); !errors.Is(err, ErrUsage) {
		t.Errorf("WriteBuffer on read buffer = %v, want ErrUsage", err)
	}
	if err := d.ReadBuffer(transfer.BufferID(99), nil); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("ReadBuffer unknown = %v, want ErrUnknownResource", err)
	}
	if _, err := d.CreateTexture("bad", gputypes.TextureFormatUndefined, gputypes.Extent3D{Width: 1, Height: 1}); err == nil {
		t.Error("CreateTexture with undefined format should fail")
	}
}

func TestDeviceFences(t *testing.T) {
	d := NewDevice(WithDeferredCompletion())
	f1, _ := d.Submit()
	f2, _ := d.Submit()

	if done, _ := d.FenceStatus(f1); done {
		t.Error("deferred fence signaled on submit")
	}
	if done, _ := d.FenceStatus(0); !done {
		t.Error("zero fence should always be signaled")
	}

	ok, err := d.Wait(f1, 0)
	if err != nil || !ok {
		t.Fatalf("Wait(f1) = %v, %v", ok, err)
	}
	if done, _ := d.FenceStatus(f2); done {
		t.Error("Wait(f1) signaled f2")
	}

	d.SetStalled(true)
	if ok, _ := d.Wait(f2, 0); ok {
		t.Error("stalled Wait returned true")
	}
	d.SetStalled(false)
	d.Complete()
	if done, _ := d.FenceStatus(f2); !done {
		t.Error("Complete did not signal f2")
	}
	if w := d.Stats().Waits; w != 2 {
		t.Errorf("Waits = %d, want 2", w)
	}
}

func TestDeviceBufferLimit(t *testing.T) {
	d := NewDevice(WithBufferLimit(1))
	if _, err := d.CreateBuffer("a", 4, gputypes.BufferUsageMapWrite); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateBuffer("b", 4, gputypes.BufferUsageMapWrite); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("CreateBuffer over limit = %v, want ErrOutOfMemory", err)
	}
}

func TestProgramFactory(t *testing.T) {
	f := NewProgramFactory()
	sp := f.CreateShaderProgram("p")
	if sp == nil {
		t.Fatal("ready factory returned nil")
	}
	p := sp.(*Program)

	if err := p.Initialise(); !errors.Is(err, ErrMissingStage) {
		t.Errorf("Initialise without sources = %v, want ErrMissingStage", err)
	}
	p.SetSource(shadercache.StageVertex, shadercache.Source{Entry: "vs_main", Code: "v"})
	p.SetSource(shadercache.StagePixel, shadercache.Source{Entry: "fs_main", Code: "f"})
	p.CreateSampler("c3d_mapNormal", shadercache.StagePixel, 0)
	if err := p.Initialise(); err != nil {
		t.Errorf("Initialise = %v", err)
	}
	p.Cleanup()

	if inits, cleanups := p.Counts(); inits != 2 || cleanups != 1 {
		t.Errorf("Counts() = %d, %d", inits, cleanups)
	}
	if s := p.Samplers(); len(s) != 1 || s[0].Name != "c3d_mapNormal" {
		t.Errorf("Samplers() = %+v", s)
	}

	f.SetReady(false)
	if f.CreateShaderProgram("q") != nil {
		t.Error("unready factory returned a program")
	}
	if len(f.Programs()) != 1 {
		t.Errorf("Programs() = %d, want 1", len(f.Programs()))
	}
}
