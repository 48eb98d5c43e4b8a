// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadergen

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"

	"github.com/gogpu/castor/shadercache"
)

// ErrEmptySource is returned when compiling an absent stage.
var ErrEmptySource = errors.New("shadergen: empty shader source")

// Compile validates a stage and returns its SPIR-V binary.
func Compile(src shadercache.Source) ([]byte, error) {
	if src.IsEmpty() {
		return nil, ErrEmptySource
	}
	opts := naga.DefaultOptions()
	opts.Validate = true
	spirv, err := naga.CompileWithOptions(src.Code, opts)
	if err != nil {
		return nil, fmt.Errorf("shadergen: compile %s: %w", src.Entry, err)
	}
	return spirv, nil
}

// GLSL is a stage translated for OpenGL-style backends.
type GLSL struct {
	// Code is the GLSL source.
	Code string

	// Entry is the generated name of the entry point.
	Entry string

	// Version is the GLSL version the code requires.
	Version glsl.Version

	// TextureSamplerPairs lists the combined sampler uniforms, sorted.
	TextureSamplerPairs []string
}

// TranslateGLSL translates a stage's entry point to GLSL of the given
// version. Separate WGSL textures and samplers become combined sampler
// uniforms named after the texture's group and binding, such as
// "_group_1_binding_1_fs".
func TranslateGLSL(src shadercache.Source, version glsl.Version) (GLSL, error) {
	if src.IsEmpty() {
		return GLSL{}, ErrEmptySource
	}
	ast, err := naga.Parse(src.Code)
	if err != nil {
		return GLSL{}, fmt.Errorf("shadergen: parse %s: %w", src.Entry, err)
	}
	module, err := naga.LowerWithSource(ast, src.Code)
	if err != nil {
		return GLSL{}, fmt.Errorf("shadergen: lower %s: %w", src.Entry, err)
	}

	opts := glsl.DefaultOptions()
	opts.LangVersion = version
	opts.EntryPoint = src.Entry
	code, info, err := glsl.Compile(module, opts)
	if err != nil {
		return GLSL{}, fmt.Errorf("shadergen: translate %s: %w", src.Entry, err)
	}

	pairs := append([]string(nil), info.TextureSamplerPairs...)
	sort.Strings(pairs)
	entry := src.Entry
	if name, ok := info.EntryPointNames[src.Entry]; ok {
		entry = name
	}
	return GLSL{
		Code:                code,
		Entry:               entry,
		Version:             info.RequiredVersion,
		TextureSamplerPairs: pairs,
	}, nil
}
