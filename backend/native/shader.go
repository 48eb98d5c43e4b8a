// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileSPIRV compiles WGSL source to SPIR-V words.
func CompileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V length %d is not word aligned", ErrShaderCompile, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// createShaderModule compiles WGSL and creates a HAL shader module from it.
func createShaderModule(dev hal.Device, label, wgsl string) (hal.ShaderModule, error) {
	words, err := CompileSPIRV(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	module, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create shader module %s: %w", label, err)
	}
	return module, nil
}
