// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import "github.com/gogpu/castor/variant"

// Stage identifies a programmable pipeline stage.
type Stage uint8

// Pipeline stages.
const (
	StageVertex Stage = iota
	StageGeometry
	StagePixel

	stageCount
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StagePixel:
		return "pixel"
	default:
		return "unknown"
	}
}

// Source is generated shader text for one stage.
type Source struct {
	// Entry is the entry point function name.
	Entry string

	// Code is the shader text. Empty means the stage is absent.
	Code string
}

// IsEmpty reports whether the stage is absent.
func (s Source) IsEmpty() bool {
	return s.Code == ""
}

// ShaderProgram is a backend program object.
type ShaderProgram interface {
	// SetSource attaches generated text to a stage.
	SetSource(stage Stage, src Source)

	// CreateSampler registers a named sampler binding at index for stage.
	CreateSampler(name string, stage Stage, index uint32)

	// Initialise compiles and links the program. Must run with the GPU
	// context current.
	Initialise() error

	// Cleanup releases GPU-side resources.
	Cleanup()
}

// ProgramFactory creates backend programs. CreateShaderProgram returns nil
// when the backend is not ready.
type ProgramFactory interface {
	CreateShaderProgram(label string) ShaderProgram
}

// SourceGenerator produces the per-stage shader text for a flag combination.
// Implementations are typically render passes.
//
// Generators must not request a program with the same flags from the cache
// that is calling them.
type SourceGenerator interface {
	VertexShaderSource(flags variant.Flags) Source
	PixelShaderSource(flags variant.Flags) Source

	// GeometryShaderSource may return an empty Source.
	GeometryShaderSource(flags variant.Flags) Source
}

// BillboardSourceGenerator is implemented by generators that have a
// dedicated billboard vertex template. Generators without one use
// VertexShaderSource for billboards too.
type BillboardSourceGenerator interface {
	SourceGenerator
	BillboardVertexShaderSource(flags variant.Flags) Source
}

// GPUContext reports whether the GPU context is current on the calling
// goroutine and defers program work to the GPU thread otherwise.
type GPUContext interface {
	IsContextCurrent() bool
	PostInitEvent(p *Program)
	PostCleanupEvent(p *Program)
}
