// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native provides GPU backends on top of the gogpu/wgpu HAL.
//
// Device implements transfer.Device with a HAL device and queue: copies are
// recorded into a command encoder, Submit ends and submits it, and the
// returned submission index serves as the fence. ProgramFactory compiles WGSL
// stages with naga and creates HAL shader modules for them.
package native

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/transfer"
)

// CopyRowAlignment is the row pitch granularity of buffer-texture copies.
const CopyRowAlignment = 256

// fencePollInterval is the sleep between completion polls in Wait.
const fencePollInterval = 100 * time.Microsecond

type texture struct {
	raw    hal.Texture
	label  string
	format gputypes.TextureFormat
	size   gputypes.Extent3D
}

type buffer struct {
	raw   hal.Buffer
	label string
	size  uint64
	usage gputypes.BufferUsage
}

// inflight is a submitted command buffer awaiting completion.
type inflight struct {
	index   uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
}

// Device is a [transfer.Device] backed by a HAL device and queue.
//
// Device is safe for concurrent use.
type Device struct {
	dev   hal.Device
	queue hal.Queue

	mu       sync.Mutex
	nextID   uint64
	textures map[transfer.TextureID]*texture
	buffers  map[transfer.BufferID]*buffer
	encoder  hal.CommandEncoder
	inflight []inflight
}

// NewDevice wraps an opened HAL device.
func NewDevice(dev hal.Device, queue hal.Queue) (*Device, error) {
	if dev == nil {
		return nil, ErrNilHALDevice
	}
	if queue == nil {
		return nil, ErrNilHALQueue
	}
	return &Device{
		dev:      dev,
		queue:    queue,
		textures: make(map[transfer.TextureID]*texture),
		buffers:  make(map[transfer.BufferID]*buffer),
	}, nil
}

// Open creates an instance of the registered backend variant, picks the
// first discrete or integrated adapter (or the first adapter) and opens it.
func Open(variant gputypes.Backend) (*Device, gputypes.AdapterInfo, error) {
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, gputypes.AdapterInfo{}, fmt.Errorf("native: backend %s not registered", variant)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, gputypes.AdapterInfo{}, fmt.Errorf("native: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, gputypes.AdapterInfo{}, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	opened, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, gputypes.AdapterInfo{}, fmt.Errorf("native: open device: %w", err)
	}
	d, err := NewDevice(opened.Device, opened.Queue)
	if err != nil {
		return nil, gputypes.AdapterInfo{}, err
	}
	castor.Logger().Info("native: device opened", "adapter", selected.Info.Name, "backend", variant.String())
	return d, selected.Info, nil
}

// HAL returns the wrapped HAL device.
func (d *Device) HAL() hal.Device { return d.dev }

// Queue returns the wrapped HAL queue.
func (d *Device) Queue() hal.Queue { return d.queue }

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

// CreateTexture creates a sampled 2D texture that can be copied to and from.
func (d *Device) CreateTexture(label string, format gputypes.TextureFormat, size gputypes.Extent3D) (transfer.TextureID, error) {
	size.DepthOrArrayLayers = max(size.DepthOrArrayLayers, 1)
	raw, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: size.Width, Height: size.Height, DepthOrArrayLayers: size.DepthOrArrayLayers},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return transfer.InvalidID, fmt.Errorf("native: create texture %s: %w", label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := transfer.TextureID(d.id())
	d.textures[id] = &texture{raw: raw, label: label, format: format, size: size}
	return id, nil
}

// DestroyTexture destroys a texture. Unknown IDs are ignored.
func (d *Device) DestroyTexture(id transfer.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok {
		d.dev.DestroyTexture(t.raw)
	}
}

// CreateBuffer creates a buffer with the given usage.
func (d *Device) CreateBuffer(label string, size uint64, usage gputypes.BufferUsage) (transfer.BufferID, error) {
	raw, err := d.dev.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return transfer.InvalidID, fmt.Errorf("native: create buffer %s: %w", label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := transfer.BufferID(d.id())
	d.buffers[id] = &buffer{raw: raw, label: label, size: size, usage: usage}
	return id, nil
}

// DestroyBuffer destroys a buffer. Unknown IDs are ignored.
func (d *Device) DestroyBuffer(id transfer.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.dev.DestroyBuffer(b.raw)
	}
}

// WriteBuffer maps a buffer and copies data into it.
func (d *Device) WriteBuffer(id transfer.BufferID, data []byte) error {
	b, err := d.lookupBuffer(id)
	if err != nil {
		return err
	}
	return d.mapped(b, uint64(len(data)), func(mem []byte) { copy(mem, data) })
}

// ReadBuffer maps a buffer and copies it into dst.
func (d *Device) ReadBuffer(id transfer.BufferID, dst []byte) error {
	b, err := d.lookupBuffer(id)
	if err != nil {
		return err
	}
	return d.mapped(b, uint64(len(dst)), func(mem []byte) { copy(dst, mem) })
}

// mapped runs fn over the first n bytes of b's host mapping.
func (d *Device) mapped(b *buffer, n uint64, fn func([]byte)) error {
	if n == 0 {
		return nil
	}
	m, err := d.dev.MapBuffer(b.raw, 0, n)
	if err != nil {
		return fmt.Errorf("native: map %s: %w", b.label, err)
	}
	fn(unsafe.Slice((*byte)(m.Ptr), n))
	if err := d.dev.UnmapBuffer(b.raw); err != nil {
		return fmt.Errorf("native: unmap %s: %w", b.label, err)
	}
	return nil
}

// CopyBufferToTexture records a buffer to texture copy.
func (d *Device) CopyBufferToTexture(src transfer.BufferID, dst transfer.TextureID, layout transfer.Layout) error {
	region, err := copyRegion(layout)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b, t, err := d.pairLocked(src, dst)
	if err != nil {
		return err
	}
	region.TextureBase.Texture = t.raw
	enc, err := d.encoderLocked()
	if err != nil {
		return err
	}
	enc.CopyBufferToTexture(b.raw, t.raw, []hal.BufferTextureCopy{region})
	return nil
}

// CopyTextureToBuffer records a texture to buffer copy.
func (d *Device) CopyTextureToBuffer(src transfer.TextureID, dst transfer.BufferID, layout transfer.Layout) error {
	region, err := copyRegion(layout)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b, t, err := d.pairLocked(dst, src)
	if err != nil {
		return err
	}
	region.TextureBase.Texture = t.raw
	enc, err := d.encoderLocked()
	if err != nil {
		return err
	}
	enc.CopyTextureToBuffer(t.raw, b.raw, []hal.BufferTextureCopy{region})
	return nil
}

// WriteTexture writes data into a texture through the queue.
func (d *Device) WriteTexture(id transfer.TextureID, data []byte, layout transfer.Layout) error {
	t, err := d.lookupTexture(id)
	if err != nil {
		return err
	}
	size := extent(layout.Size)
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: layout.BytesPerRow, RowsPerImage: layout.Size.Height},
		&size,
	)
	if err != nil {
		return fmt.Errorf("native: write texture %s: %w", t.label, err)
	}
	return nil
}

// ReadTexture copies a texture into dst through a temporary readback buffer
// and waits for the copy to complete.
func (d *Device) ReadTexture(id transfer.TextureID, dst []byte, layout transfer.Layout) error {
	t, err := d.lookupTexture(id)
	if err != nil {
		return err
	}
	staging, err := d.CreateBuffer(t.label+"_readback", uint64(len(dst)),
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer d.DestroyBuffer(staging)

	if err := d.CopyTextureToBuffer(id, staging, layout); err != nil {
		return err
	}
	fence, err := d.Submit()
	if err != nil {
		return err
	}
	ok, err := d.Wait(fence, transfer.DefaultFenceTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("native: read texture %s: %w", t.label, hal.ErrTimeout)
	}
	return d.ReadBuffer(staging, dst)
}

// Submit ends the current encoder, if any, and submits it. The returned
// fence is the queue's submission index.
func (d *Device) Submit() (transfer.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var cmds []hal.CommandBuffer
	enc := d.encoder
	d.encoder = nil
	if enc != nil {
		cmd, err := enc.EndEncoding()
		if err != nil {
			enc.Destroy()
			return 0, fmt.Errorf("native: end encoding: %w", err)
		}
		cmds = append(cmds, cmd)
	}

	index, err := d.queue.Submit(cmds)
	if err != nil {
		for _, cmd := range cmds {
			d.dev.FreeCommandBuffer(cmd)
		}
		if enc != nil {
			enc.Destroy()
		}
		return 0, fmt.Errorf("native: submit: %w", err)
	}
	if enc != nil {
		d.inflight = append(d.inflight, inflight{index: index, encoder: enc, cmd: cmds[0]})
	}
	d.reclaimLocked(d.queue.PollCompleted())
	return transfer.Fence(index), nil
}

// FenceStatus reports whether the submission has completed.
func (d *Device) FenceStatus(f transfer.Fence) (bool, error) {
	completed := d.queue.PollCompleted()
	d.mu.Lock()
	d.reclaimLocked(completed)
	d.mu.Unlock()
	return uint64(f) <= completed, nil
}

// Wait polls the queue until the submission completes or timeout elapses.
func (d *Device) Wait(f transfer.Fence, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if done, err := d.FenceStatus(f); err != nil || done {
			return done, err
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(fencePollInterval)
	}
}

// Destroy waits for the device to go idle and releases every resource.
func (d *Device) Destroy() {
	if err := d.dev.WaitIdle(); err != nil {
		castor.Logger().Warn("native: wait idle failed", "error", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.encoder != nil {
		d.encoder.DiscardEncoding()
		d.encoder.Destroy()
		d.encoder = nil
	}
	d.reclaimLocked(^uint64(0))
	for id, b := range d.buffers {
		d.dev.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
	for id, t := range d.textures {
		d.dev.DestroyTexture(t.raw)
		delete(d.textures, id)
	}
}

// reclaimLocked frees command buffers whose submission has completed.
func (d *Device) reclaimLocked(completed uint64) {
	kept := d.inflight[:0]
	for _, f := range d.inflight {
		if f.index > completed {
			kept = append(kept, f)
			continue
		}
		f.encoder.ResetAll([]hal.CommandBuffer{f.cmd})
		d.dev.FreeCommandBuffer(f.cmd)
		f.encoder.Destroy()
	}
	d.inflight = kept
}

func (d *Device) encoderLocked() (hal.CommandEncoder, error) {
	if d.encoder != nil {
		return d.encoder, nil
	}
	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "castor_transfer"})
	if err != nil {
		return nil, fmt.Errorf("native: create encoder: %w", err)
	}
	if err := enc.BeginEncoding("castor_transfer"); err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	d.encoder = enc
	return enc, nil
}

func (d *Device) lookupBuffer(id transfer.BufferID) (*buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	return b, nil
}

func (d *Device) lookupTexture(id transfer.TextureID) (*texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrUnknownResource, id)
	}
	return t, nil
}

func (d *Device) pairLocked(bid transfer.BufferID, tid transfer.TextureID) (*buffer, *texture, error) {
	b, ok := d.buffers[bid]
	if !ok {
		return nil, nil, fmt.Errorf("%w: buffer %d", ErrUnknownResource, bid)
	}
	t, ok := d.textures[tid]
	if !ok {
		return nil, nil, fmt.Errorf("%w: texture %d", ErrUnknownResource, tid)
	}
	return b, t, nil
}

func copyRegion(layout transfer.Layout) (hal.BufferTextureCopy, error) {
	if layout.BytesPerRow%CopyRowAlignment != 0 {
		return hal.BufferTextureCopy{}, fmt.Errorf("%w: %d", ErrRowAlignment, layout.BytesPerRow)
	}
	return hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{
			BytesPerRow:  layout.BytesPerRow,
			RowsPerImage: layout.Size.Height,
		},
		TextureBase: hal.ImageCopyTexture{Aspect: gputypes.TextureAspectAll},
		Size:        extent(layout.Size),
	}, nil
}

func extent(e gputypes.Extent3D) hal.Extent3D {
	return hal.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: max(e.DepthOrArrayLayers, 1)}
}

var _ transfer.Device = (*Device)(nil)
