// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors for the wgpu HAL backend.
var (
	// ErrNilHALDevice is returned when creating a device without a HAL device.
	ErrNilHALDevice = errors.New("native: HAL device is nil")

	// ErrNilHALQueue is returned when creating a device without a HAL queue.
	ErrNilHALQueue = errors.New("native: HAL queue is nil")

	// ErrUnknownResource is returned for IDs the device never issued or
	// already destroyed.
	ErrUnknownResource = errors.New("native: unknown resource")

	// ErrRowAlignment is returned when a buffer-texture copy has a row pitch
	// that is not a multiple of CopyRowAlignment.
	ErrRowAlignment = errors.New("native: bytes per row not aligned for texture copy")

	// ErrNoAdapter is returned when a HAL instance exposes no adapters.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrShaderCompile is returned when a stage fails to compile.
	ErrShaderCompile = errors.New("native: shader compilation failed")
)
