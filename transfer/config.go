// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transfer

import (
	"errors"
	"strings"
	"time"
)

// Transfer errors.
var (
	// ErrNilDevice is returned when creating a storage without a device.
	ErrNilDevice = errors.New("transfer: device is nil")

	// ErrNilStore is returned when creating a storage without a pixel store.
	ErrNilStore = errors.New("transfer: pixel store is nil")

	// ErrSizeMismatch is returned when a staging buffer and the pixel store
	// differ in size. Nothing is transferred.
	ErrSizeMismatch = errors.New("transfer: staging buffer size does not match pixel store")

	// ErrNotInitialised is returned when transferring before Initialise.
	ErrNotInitialised = errors.New("transfer: storage not initialised")

	// ErrNotLocked is returned by Unlock without a matching Lock.
	ErrNotLocked = errors.New("transfer: storage not locked")

	// ErrAlreadyLocked is returned by Lock while the storage is locked.
	ErrAlreadyLocked = errors.New("transfer: storage already locked")

	// ErrFenceTimeout is returned when a staging slot's fence does not signal
	// in time.
	ErrFenceTimeout = errors.New("transfer: fence wait timed out")
)

// Access is a bitmask of the access a texture storage needs.
type Access uint8

// Access flags.
const (
	AccessCPURead Access = 1 << iota
	AccessCPUWrite
	AccessGPURead
	AccessGPUWrite
)

// Has reports whether every bit of want is set.
func (a Access) Has(want Access) bool {
	return a&want == want
}

// String returns the set flags joined by '|'.
func (a Access) String() string {
	if a == 0 {
		return "None"
	}
	var parts []string
	for i, name := range [...]string{"CPURead", "CPUWrite", "GPURead", "GPUWrite"} {
		if a&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// SyncMode selects how a staging slot is protected before the CPU reuses it.
type SyncMode uint8

const (
	// SyncFence waits on the slot's fence when it has not yet signaled.
	SyncFence SyncMode = iota

	// SyncNone assumes one full rotation is enough for the GPU to finish
	// with a slot and never waits.
	SyncNone
)

// String implements fmt.Stringer.
func (m SyncMode) String() string {
	if m == SyncNone {
		return "none"
	}
	return "fence"
}

// ParseSyncMode parses "fence" or "none".
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(s) {
	case "", "fence":
		return SyncFence, nil
	case "none":
		return SyncNone, nil
	default:
		return SyncFence, errors.New("transfer: unknown sync mode " + s)
	}
}

// DefaultFenceTimeout bounds a single staging slot wait.
const DefaultFenceTimeout = time.Second

// Config describes a texture storage.
type Config struct {
	// Label prefixes the texture and buffer labels.
	Label string

	// Access decides which staging pairs exist. Without AccessCPUWrite no
	// upload buffers are created; without AccessCPURead no download buffers.
	Access Access

	// Sync selects slot protection. The zero value is SyncFence.
	Sync SyncMode

	// FenceTimeout bounds each fence wait. Zero means DefaultFenceTimeout.
	FenceTimeout time.Duration
}

func (c Config) fenceTimeout() time.Duration {
	if c.FenceTimeout <= 0 {
		return DefaultFenceTimeout
	}
	return c.FenceTimeout
}

func (c Config) label() string {
	if c.Label == "" {
		return "texture"
	}
	return c.Label
}
