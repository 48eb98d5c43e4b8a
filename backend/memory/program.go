// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memory

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/castor/shadercache"
)

// ErrMissingStage is returned when a program is initialised without a vertex
// or pixel source.
var ErrMissingStage = errors.New("memory: program is missing a required stage")

// Sampler is a sampler binding recorded on a Program.
type Sampler struct {
	Name  string
	Stage shadercache.Stage
	Index uint32
}

// Program is an in-memory [shadercache.ShaderProgram] that records what the
// cache did to it.
type Program struct {
	label string

	mu       sync.Mutex
	sources  map[shadercache.Stage]shadercache.Source
	samplers []Sampler
	inits    int
	cleanups int
}

// Label returns the label the factory was given.
func (p *Program) Label() string { return p.label }

// SetSource implements shadercache.ShaderProgram.
func (p *Program) SetSource(stage shadercache.Stage, src shadercache.Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[stage] = src
}

// CreateSampler implements shadercache.ShaderProgram.
func (p *Program) CreateSampler(name string, stage shadercache.Stage, index uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samplers = append(p.samplers, Sampler{Name: name, Stage: stage, Index: index})
}

// Initialise checks that the vertex and pixel stages are present.
func (p *Program) Initialise() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inits++
	for _, stage := range []shadercache.Stage{shadercache.StageVertex, shadercache.StagePixel} {
		if p.sources[stage].IsEmpty() {
			return ErrMissingStage
		}
	}
	return nil
}

// Cleanup implements shadercache.ShaderProgram.
func (p *Program) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanups++
}

// Source returns the source attached to stage.
func (p *Program) Source(stage shadercache.Stage) shadercache.Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sources[stage]
}

// Samplers returns the recorded sampler bindings in registration order.
func (p *Program) Samplers() []Sampler {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Sampler, len(p.samplers))
	copy(out, p.samplers)
	return out
}

// Counts returns how often Initialise and Cleanup ran.
func (p *Program) Counts() (inits, cleanups int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inits, p.cleanups
}

// ProgramFactory is an in-memory [shadercache.ProgramFactory].
type ProgramFactory struct {
	notReady atomic.Bool

	mu       sync.Mutex
	programs []*Program
}

// NewProgramFactory returns a ready factory.
func NewProgramFactory() *ProgramFactory {
	return &ProgramFactory{}
}

// SetReady controls whether CreateShaderProgram succeeds.
func (f *ProgramFactory) SetReady(ready bool) {
	f.notReady.Store(!ready)
}

// CreateShaderProgram returns a new Program, or nil when not ready.
func (f *ProgramFactory) CreateShaderProgram(label string) shadercache.ShaderProgram {
	if f.notReady.Load() {
		return nil
	}
	p := &Program{label: label, sources: make(map[shadercache.Stage]shadercache.Source)}
	f.mu.Lock()
	f.programs = append(f.programs, p)
	f.mu.Unlock()
	return p
}

// Programs returns every program created so far.
func (f *ProgramFactory) Programs() []*Program {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Program, len(f.programs))
	copy(out, f.programs)
	return out
}

var _ shadercache.ProgramFactory = (*ProgramFactory)(nil)
