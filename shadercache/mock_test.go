// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/castor/variant"
)

// =============================================================================
// Test Helpers
// =============================================================================

type samplerCall struct {
	name  string
	stage Stage
	index uint32
}

type mockShader struct {
	label string

	mu       sync.Mutex
	sources  map[Stage]Source
	samplers []samplerCall
	inits    int
	cleanups int
	initErr  error
}

func (s *mockShader) SetSource(stage Stage, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sources == nil {
		s.sources = make(map[Stage]Source)
	}
	s.sources[stage] = src
}

func (s *mockShader) CreateSampler(name string, stage Stage, index uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplers = append(s.samplers, samplerCall{name, stage, index})
}

func (s *mockShader) Initialise() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	return s.initErr
}

func (s *mockShader) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups++
}

func (s *mockShader) counts() (inits, cleanups int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits, s.cleanups
}

type mockFactory struct {
	notReady atomic.Bool
	created  atomic.Int32
	initErr  error

	mu      sync.Mutex
	shaders []*mockShader
}

func (f *mockFactory) CreateShaderProgram(label string) ShaderProgram {
	if f.notReady.Load() {
		return nil
	}
	f.created.Add(1)
	s := &mockShader{label: label, initErr: f.initErr}
	f.mu.Lock()
	f.shaders = append(f.shaders, s)
	f.mu.Unlock()
	return s
}

// mockPass counts generator calls per stage.
type mockPass struct {
	delay time.Duration

	vertex    atomic.Int32
	pixel     atomic.Int32
	geometry  atomic.Int32
	billboard atomic.Int32
}

func (p *mockPass) VertexShaderSource(flags variant.Flags) Source {
	p.vertex.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return Source{Entry: "vs_main", Code: "vertex " + flags.String()}
}

func (p *mockPass) PixelShaderSource(flags variant.Flags) Source {
	p.pixel.Add(1)
	return Source{Entry: "fs_main", Code: "pixel " + flags.String()}
}

func (p *mockPass) GeometryShaderSource(variant.Flags) Source {
	p.geometry.Add(1)
	return Source{}
}

// mockBillboardPass adds a billboard vertex template.
type mockBillboardPass struct {
	mockPass
}

func (p *mockBillboardPass) BillboardVertexShaderSource(flags variant.Flags) Source {
	p.billboard.Add(1)
	return Source{Entry: "vs_billboard", Code: "billboard " + flags.String()}
}

type mockContext struct {
	current atomic.Bool

	mu       sync.Mutex
	inits    []*Program
	cleanups []*Program
}

func (c *mockContext) IsContextCurrent() bool { return c.current.Load() }

func (c *mockContext) PostInitEvent(p *Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inits = append(c.inits, p)
}

func (c *mockContext) PostCleanupEvent(p *Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, p)
}

// fire runs and drains the posted events the way the GPU thread would.
func (c *mockContext) fire() error {
	c.mu.Lock()
	inits, cleanups := c.inits, c.cleanups
	c.inits, c.cleanups = nil, nil
	c.mu.Unlock()

	var errs []error
	for _, p := range inits {
		errs = append(errs, p.Initialise())
	}
	for _, p := range cleanups {
		p.Cleanup()
	}
	return errors.Join(errs...)
}

func (c *mockContext) posted() (inits, cleanups int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inits), len(c.cleanups)
}

func shaderOf(p *Program) *mockShader {
	return p.Shader().(*mockShader)
}
