// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/shadercache"
)

// stages lists the stages a program may carry, in compile order.
var stages = [...]shadercache.Stage{
	shadercache.StageVertex,
	shadercache.StageGeometry,
	shadercache.StagePixel,
}

type samplerSlot struct {
	name  string
	stage shadercache.Stage
	index uint32
}

// Program is a [shadercache.ShaderProgram] that compiles each stage to a HAL
// shader module and describes its texture bindings with a bind group layout.
//
// The bind group layout puts one filtering sampler at binding 0 and the
// texture for sampler index i at binding i+1.
type Program struct {
	dev   hal.Device
	label string

	mu       sync.Mutex
	sources  map[shadercache.Stage]shadercache.Source
	samplers []samplerSlot
	modules  map[shadercache.Stage]hal.ShaderModule
	layout   hal.BindGroupLayout
}

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
	p.samplers = append(p.samplers, samplerSlot{name: name, stage: stage, index: index})
}

// Initialise compiles every non-empty stage and creates the bind group
// layout. On failure everything created so far is destroyed.
func (p *Program) Initialise() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, stage := range stages {
		src := p.sources[stage]
		if src.IsEmpty() {
			continue
		}
		module, err := createShaderModule(p.dev, p.label+"_"+stage.String(), src.Code)
		if err != nil {
			p.cleanupLocked()
			return err
		}
		p.modules[stage] = module
	}
	if p.modules[shadercache.StageVertex] == nil || p.modules[shadercache.StagePixel] == nil {
		p.cleanupLocked()
		return fmt.Errorf("%w: %s needs vertex and pixel stages", ErrShaderCompile, p.label)
	}

	if len(p.samplers) > 0 {
		layout, err := p.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   p.label + "_textures",
			Entries: p.layoutEntries(),
		})
		if err != nil {
			p.cleanupLocked()
			return fmt.Errorf("native: create bind group layout %s: %w", p.label, err)
		}
		p.layout = layout
	}

	castor.Logger().Debug("native: program initialised",
		"label", p.label, "modules", len(p.modules), "samplers", len(p.samplers))
	return nil
}

func (p *Program) layoutEntries() []gputypes.BindGroupLayoutEntry {
	slots := make([]samplerSlot, len(p.samplers))
	copy(slots, p.samplers)
	sort.Slice(slots, func(i, j int) bool { return slots[i].index < slots[j].index })

	var visibility gputypes.ShaderStages
	for _, s := range slots {
		visibility |= stageVisibility(s.stage)
	}
	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: visibility,
		Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
	}}
	for _, s := range slots {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    s.index + 1,
			Visibility: stageVisibility(s.stage),
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	return entries
}

func stageVisibility(stage shadercache.Stage) gputypes.ShaderStages {
	if stage == shadercache.StagePixel {
		return gputypes.ShaderStageFragment
	}
	return gputypes.ShaderStageVertex
}

// Cleanup destroys the shader modules and the bind group layout.
func (p *Program) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanupLocked()
}

func (p *Program) cleanupLocked() {
	for stage, module := range p.modules {
		p.dev.DestroyShaderModule(module)
		delete(p.modules, stage)
	}
	if p.layout != nil {
		p.dev.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
}

// Module returns the shader module of stage, or nil.
func (p *Program) Module(stage shadercache.Stage) hal.ShaderModule {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modules[stage]
}

// BindGroupLayout returns the texture bind group layout, or nil when the
// program samples no textures.
func (p *Program) BindGroupLayout() hal.BindGroupLayout {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layout
}

// ProgramFactory creates Programs on a HAL device.
type ProgramFactory struct {
	mu  sync.RWMutex
	dev hal.Device
}

// NewProgramFactory returns a factory for dev. A nil device yields a factory
// that is not ready until SetDevice is called.
func NewProgramFactory(dev hal.Device) *ProgramFactory {
	return &ProgramFactory{dev: dev}
}

// SetDevice replaces the device new programs are created on.
func (f *ProgramFactory) SetDevice(dev hal.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dev = dev
}

// CreateShaderProgram returns a new Program, or nil when no device is set.
func (f *ProgramFactory) CreateShaderProgram(label string) shadercache.ShaderProgram {
	f.mu.RLock()
	dev := f.dev
	f.mu.RUnlock()
	if dev == nil {
		return nil
	}
	return &Program{
		dev:     dev,
		label:   label,
		sources: make(map[shadercache.Stage]shadercache.Source),
		modules: make(map[shadercache.Stage]hal.ShaderModule),
	}
}

var _ shadercache.ProgramFactory = (*ProgramFactory)(nil)
