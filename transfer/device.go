// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transfer

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Resource IDs
//
// These opaque IDs name GPU resources owned by a Device. Each Device keeps
// its own mapping between IDs and backend objects.

// BufferID is an opaque handle to a staging buffer.
type BufferID uint64

// TextureID is an opaque handle to a texture.
type TextureID uint64

// InvalidID is the zero value, representing a null resource.
const InvalidID = 0

// Fence is a point on a device's submission timeline. The zero Fence is
// always signaled.
type Fence uint64

// Layout describes the pixel layout of a copy.
type Layout struct {
	// BytesPerRow is the stride between rows in the buffer or data slice.
	BytesPerRow uint32

	// Size is the copied extent.
	Size gputypes.Extent3D
}

// Device is the subset of a GPU context that texture transfers need.
//
// Copy methods record GPU work; nothing runs until Submit, which returns the
// fence that signals when every copy recorded before it has completed.
type Device interface {
	CreateTexture(label string, format gputypes.TextureFormat, size gputypes.Extent3D) (TextureID, error)
	DestroyTexture(id TextureID)

	CreateBuffer(label string, size uint64, usage gputypes.BufferUsage) (BufferID, error)
	DestroyBuffer(id BufferID)

	// WriteBuffer fills a CPU-writable buffer from data.
	WriteBuffer(id BufferID, data []byte) error

	// ReadBuffer copies a CPU-readable buffer into dst.
	ReadBuffer(id BufferID, dst []byte) error

	CopyBufferToTexture(src BufferID, dst TextureID, layout Layout) error
	CopyTextureToBuffer(src TextureID, dst BufferID, layout Layout) error

	// WriteTexture and ReadTexture transfer synchronously, bypassing
	// staging buffers.
	WriteTexture(id TextureID, data []byte, layout Layout) error
	ReadTexture(id TextureID, dst []byte, layout Layout) error

	Submit() (Fence, error)

	// FenceStatus reports whether f has signaled without blocking.
	FenceStatus(f Fence) (bool, error)

	// Wait blocks until f signals or timeout elapses. It returns false on
	// timeout.
	Wait(f Fence, timeout time.Duration) (bool, error)
}
