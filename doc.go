// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package castor is the root of the castor rendering core: a shader-variant
// cache and an asynchronous CPU/GPU texture transfer pipeline.
//
// # Overview
//
// Two loosely coupled components make up the core:
//
//   - [github.com/gogpu/castor/shadercache] deduplicates generated shader
//     programs by a packed 64-bit variant key, so that identical render
//     configurations share one program.
//   - [github.com/gogpu/castor/transfer] moves pixel data between a CPU pixel
//     store and GPU texture memory through two rotating staging buffers per
//     direction, so the caller never waits on the GPU in the common path.
//
// Supporting packages:
//
//   - variant: flag enumerations, key packing, sampler channel order
//   - pixel: CPU-side pixel stores and image conversion
//   - event, gpuctx: deferred GPU-thread work and context currency
//   - shadergen: a WGSL render pass that generates variant sources
//   - backend/memory, backend/native: headless and gogpu/wgpu HAL backends
//
// # Logging
//
// castor is silent by default. Use [SetLogger] to route diagnostics from every
// sub-package to a [log/slog] logger.
package castor
