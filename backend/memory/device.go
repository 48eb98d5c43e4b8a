// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package memory provides headless, in-memory GPU backends.
//
// Textures and buffers are byte slices and copies execute when recorded.
// Fences signal on Submit unless the device was created with
// WithDeferredCompletion, in which case they signal on Complete or when
// waited on. The device counts allocations, submissions and waits so tests
// can observe what a caller did.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/pixel"
	"github.com/gogpu/castor/transfer"
)

// Memory device errors.
var (
	// ErrUnknownResource is returned for IDs the device never issued or
	// already destroyed.
	ErrUnknownResource = errors.New("memory: unknown resource")

	// ErrUsage is returned when a buffer is used in a way its usage flags
	// do not allow.
	ErrUsage = errors.New("memory: buffer usage does not allow operation")

	// ErrOutOfRange is returned when a copy does not fit its source or
	// destination.
	ErrOutOfRange = errors.New("memory: copy out of range")

	// ErrOutOfMemory is returned when the buffer limit is reached.
	ErrOutOfMemory = errors.New("memory: buffer limit reached")
)

// DeviceStats counts device activity.
type DeviceStats struct {
	TexturesCreated int
	BuffersCreated  int
	LiveTextures    int
	LiveBuffers     int
	Submits         int
	Waits           int
}

type texture struct {
	label  string
	format gputypes.TextureFormat
	size   gputypes.Extent3D
	data   []byte
}

type buffer struct {
	label string
	usage gputypes.BufferUsage
	data  []byte
}

// Option configures a Device.
type Option func(*Device)

// WithDeferredCompletion keeps submitted fences unsignaled until Complete
// or Wait is called.
func WithDeferredCompletion() Option {
	return func(d *Device) {
		d.deferred = true
	}
}

// WithBufferLimit makes CreateBuffer fail once n buffers are live.
func WithBufferLimit(n int) Option {
	return func(d *Device) {
		d.bufferLimit = n
	}
}

// Device is an in-memory [transfer.Device].
//
// Device is safe for concurrent use.
type Device struct {
	mu          sync.Mutex
	nextID      uint64
	textures    map[transfer.TextureID]*texture
	buffers     map[transfer.BufferID]*buffer
	deferred    bool
	stalled     bool
	bufferLimit int
	submitted   transfer.Fence
	completed   transfer.Fence
	stats       DeviceStats
}

// NewDevice returns an empty device.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		textures: make(map[transfer.TextureID]*texture),
		buffers:  make(map[transfer.BufferID]*buffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

// CreateTexture allocates a zeroed texture.
func (d *Device) CreateTexture(label string, format gputypes.TextureFormat, size gputypes.Extent3D) (transfer.TextureID, error) {
	bpp, err := pixel.BytesPerPixel(format)
	if err != nil {
		return transfer.InvalidID, err
	}
	layers := max(size.DepthOrArrayLayers, 1)
	n := int(size.Width) * int(size.Height) * int(layers) * bpp

	d.mu.Lock()
	defer d.mu.Unlock()
	id := transfer.TextureID(d.id())
	d.textures[id] = &texture{label: label, format: format, size: size, data: make([]byte, n)}
	d.stats.TexturesCreated++
	d.stats.LiveTextures++
	return id, nil
}

// DestroyTexture frees a texture. Unknown IDs are ignored.
func (d *Device) DestroyTexture(id transfer.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.stats.LiveTextures--
	}
}

// CreateBuffer allocates a zeroed buffer.
func (d *Device) CreateBuffer(label string, size uint64, usage gputypes.BufferUsage) (transfer.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bufferLimit > 0 && d.stats.LiveBuffers >= d.bufferLimit {
		return transfer.InvalidID, fmt.Errorf("%w: %s", ErrOutOfMemory, label)
	}
	id := transfer.BufferID(d.id())
	d.buffers[id] = &buffer{label: label, usage: usage, data: make([]byte, size)}
	d.stats.BuffersCreated++
	d.stats.LiveBuffers++
	return id, nil
}

// DestroyBuffer frees a buffer. Unknown IDs are ignored.
func (d *Device) DestroyBuffer(id transfer.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[id]; ok {
		delete(d.buffers, id)
		d.stats.LiveBuffers--
	}
}

// WriteBuffer copies data into a MapWrite buffer.
func (d *Device) WriteBuffer(id transfer.BufferID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.buffer(id, gputypes.BufferUsageMapWrite)
	if err != nil {
		return err
	}
	if len(data) > len(b.data) {
		return fmt.Errorf("%w: write %d bytes into %s (%d)", ErrOutOfRange, len(data), b.label, len(b.data))
	}
	copy(b.data, data)
	return nil
}

// ReadBuffer copies a MapRead buffer into dst.
func (d *Device) ReadBuffer(id transfer.BufferID, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.buffer(id, gputypes.BufferUsageMapRead)
	if err != nil {
		return err
	}
	if len(dst) > len(b.data) {
		return fmt.Errorf("%w: read %d bytes from %s (%d)", ErrOutOfRange, len(dst), b.label, len(b.data))
	}
	copy(dst, b.data)
	return nil
}

// CopyBufferToTexture copies a CopySrc buffer into a texture.
func (d *Device) CopyBufferToTexture(src transfer.BufferID, dst transfer.TextureID, layout transfer.Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.buffer(src, gputypes.BufferUsageCopySrc)
	if err != nil {
		return err
	}
	t, err := d.texture(dst)
	if err != nil {
		return err
	}
	return copyRows(t.data, b.data, layout)
}

// CopyTextureToBuffer copies a texture into a CopyDst buffer.
func (d *Device) CopyTextureToBuffer(src transfer.TextureID, dst transfer.BufferID, layout transfer.Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.texture(src)
	if err != nil {
		return err
	}
	b, err := d.buffer(dst, gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	return copyRows(b.data, t.data, layout)
}

// WriteTexture copies data into a texture.
func (d *Device) WriteTexture(id transfer.TextureID, data []byte, layout transfer.Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.texture(id)
	if err != nil {
		return err
	}
	return copyRows(t.data, data, layout)
}

// ReadTexture copies a texture into dst.
func (d *Device) ReadTexture(id transfer.TextureID, dst []byte, layout transfer.Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.texture(id)
	if err != nil {
		return err
	}
	return copyRows(dst, t.data, layout)
}

// copyRows copies a tightly packed region described by layout.
func copyRows(dst, src []byte, layout transfer.Layout) error {
	n := int(layout.BytesPerRow) * int(layout.Size.Height) * int(max(layout.Size.DepthOrArrayLayers, 1))
	if n > len(dst) || n > len(src) {
		return fmt.Errorf("%w: %d bytes, src %d, dst %d", ErrOutOfRange, n, len(src), len(dst))
	}
	copy(dst[:n], src[:n])
	return nil
}

// Submit returns the fence of every copy recorded so far.
func (d *Device) Submit() (transfer.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted++
	if !d.deferred {
		d.completed = d.submitted
	}
	d.stats.Submits++
	return d.submitted, nil
}

// FenceStatus reports whether f has signaled.
func (d *Device) FenceStatus(f transfer.Fence) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return f <= d.completed, nil
}

// Wait signals every fence up to f and returns true, or returns false when
// the device is stalled.
func (d *Device) Wait(f transfer.Fence, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Waits++
	if f <= d.completed {
		return true, nil
	}
	if d.stalled {
		return false, nil
	}
	d.completed = min(f, d.submitted)
	return f <= d.completed, nil
}

// Complete signals every submitted fence.
func (d *Device) Complete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = d.submitted
}

// SetStalled makes Wait time out while stalled is true.
func (d *Device) SetStalled(stalled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stalled = stalled
}

// Stats returns the activity counters.
func (d *Device) Stats() DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// TextureData returns a copy of a texture's bytes.
func (d *Device) TextureData(id transfer.TextureID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.texture(id)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out, nil
}

// SetTextureData overwrites a texture's bytes, as a GPU render would.
func (d *Device) SetTextureData(id transfer.TextureID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.texture(id)
	if err != nil {
		return err
	}
	if len(data) != len(t.data) {
		return fmt.Errorf("%w: %d bytes into %s (%d)", ErrOutOfRange, len(data), t.label, len(t.data))
	}
	copy(t.data, data)
	return nil
}

// Poll is a no-op; it lets the device serve as a gpucontext device token.
func (d *Device) Poll(bool) {}

func (d *Device) texture(id transfer.TextureID) (*texture, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrUnknownResource, id)
	}
	return t, nil
}

func (d *Device) buffer(id transfer.BufferID, need gputypes.BufferUsage) (*buffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	if b.usage&need != need {
		return nil, fmt.Errorf("%w: %s", ErrUsage, b.label)
	}
	return b, nil
}

var _ transfer.Device = (*Device)(nil)
