// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transfer

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/pixel"
)

// Role is the direction a staging buffer serves.
type Role uint8

// Buffer roles.
const (
	RoleUpload Role = iota
	RoleDownload
)

// String implements fmt.Stringer.
func (r Role) String() string {
	if r == RoleDownload {
		return "download"
	}
	return "upload"
}

func (r Role) usage() gputypes.BufferUsage {
	if r == RoleDownload {
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	}
	return gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc
}

// Buffer is a staging buffer between a pixel store and a texture. Its size
// is fixed at creation.
type Buffer struct {
	dev   Device
	id    BufferID
	label string
	role  Role
	slot  int
	size  int

	// fence is the last submission that copied to or from this buffer.
	fence Fence

	// written is set once the buffer holds data: filled from the store for
	// uploads, copied into by the GPU for downloads.
	written bool
}

func newBuffer(dev Device, label string, role Role, slot, size int) (*Buffer, error) {
	id, err := dev.CreateBuffer(label, uint64(size), role.usage())
	if err != nil {
		return nil, fmt.Errorf("transfer: create %s buffer %d: %w", role, slot, err)
	}
	return &Buffer{dev: dev, id: id, label: label, role: role, slot: slot, size: size}, nil
}

// ID returns the device buffer ID.
func (b *Buffer) ID() BufferID { return b.id }

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Role returns the buffer direction.
func (b *Buffer) Role() Role { return b.role }

// Slot returns the rotation slot, 0 or 1.
func (b *Buffer) Slot() int { return b.slot }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return b.size }

// Fence returns the fence of the last GPU copy touching the buffer.
func (b *Buffer) Fence() Fence { return b.fence }

// Fill copies the pixel store into the buffer.
func (b *Buffer) Fill(store *pixel.Store) error {
	if store.Size() != b.size {
		return fmt.Errorf("%w: %s has %d bytes, store has %d", ErrSizeMismatch, b.label, b.size, store.Size())
	}
	if err := b.dev.WriteBuffer(b.id, store.Ptr()); err != nil {
		return err
	}
	b.written = true
	return nil
}

// Written reports whether the buffer has ever received data.
func (b *Buffer) Written() bool { return b.written }

// Read copies the buffer into the pixel store.
func (b *Buffer) Read(store *pixel.Store) error {
	if store.Size() != b.size {
		return fmt.Errorf("%w: %s has %d bytes, store has %d", ErrSizeMismatch, b.label, b.size, store.Size())
	}
	return b.dev.ReadBuffer(b.id, store.Ptr())
}

// Destroy releases the device buffer.
func (b *Buffer) Destroy() {
	if b.id != InvalidID {
		b.dev.DestroyBuffer(b.id)
		b.id = InvalidID
	}
}

// rotation is a pair of staging buffers used in alternation.
type rotation struct {
	bufs    [2]*Buffer
	current int
}

func newRotation(dev Device, label string, role Role, size int) (*rotation, error) {
	r := &rotation{}
	for i := range r.bufs {
		b, err := newBuffer(dev, fmt.Sprintf("%s_%s_%d", label, role, i), role, i, size)
		if err != nil {
			r.destroy()
			return nil, err
		}
		r.bufs[i] = b
	}
	return r, nil
}

// advance moves to the next slot and returns it.
func (r *rotation) advance() *Buffer {
	r.current = (r.current + 1) % len(r.bufs)
	return r.bufs[r.current]
}

// other returns the slot that is not current.
func (r *rotation) other() *Buffer {
	return r.bufs[(r.current+1)%len(r.bufs)]
}

func (r *rotation) destroy() {
	for _, b := range r.bufs {
		if b != nil {
			b.Destroy()
		}
	}
}
