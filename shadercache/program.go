// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/internal/arena"
	"github.com/gogpu/castor/variant"
)

// State is the lifecycle state of a Program.
type State int32

// Program states.
const (
	StateCreated State = iota
	StateInitialised
	StateCleanedUp
	StateDestroyed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialised:
		return "initialised"
	case StateCleanedUp:
		return "cleaned-up"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// TextureBinding is one sampler registered on a program.
type TextureBinding struct {
	Channel variant.TextureChannel
	Name    string
	Stage   Stage
	Index   uint32
}

// Program is a cached shader program variant.
type Program struct {
	key       variant.Key
	flags     variant.Flags
	billboard bool
	label     string
	shader    ShaderProgram
	sources   [stageCount]Source
	bindings  []TextureBinding

	// handle is the arena slot the cache filed this program under.
	// Guarded by the owning cache's lock.
	handle arena.Handle

	mu       sync.Mutex
	state    State
	initDone bool
	initErr  error

	cleanupQueued atomic.Bool
}

func newProgram(key variant.Key, flags variant.Flags, billboard bool, label string, shader ShaderProgram) *Program {
	return &Program{
		key:       key,
		flags:     flags,
		billboard: billboard,
		label:     label,
		shader:    shader,
	}
}

// Key returns the key the program is cached under.
func (p *Program) Key() variant.Key { return p.key }

// Flags returns the flag combination the program was generated for.
func (p *Program) Flags() variant.Flags { return p.flags }

// IsBillboard reports whether the program lives in the billboard table.
func (p *Program) IsBillboard() bool { return p.billboard }

// Label returns the debug label given to the factory.
func (p *Program) Label() string { return p.label }

// Shader returns the backend program.
func (p *Program) Shader() ShaderProgram { return p.shader }

// Source returns the generated text for a stage.
func (p *Program) Source(stage Stage) Source {
	if stage >= stageCount {
		return Source{}
	}
	return p.sources[stage]
}

// Bindings returns the sampler bindings in registration order.
func (p *Program) Bindings() []TextureBinding {
	out := make([]TextureBinding, len(p.bindings))
	copy(out, p.bindings)
	return out
}

// State returns the current lifecycle state.
func (p *Program) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error of the initialisation attempt, if any.
func (p *Program) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initErr
}

// Alive reports whether the program has not been destroyed.
func (p *Program) Alive() bool {
	return p.State() != StateDestroyed
}

// CleanupDone reports whether the program no longer holds GPU resources.
func (p *Program) CleanupDone() bool {
	s := p.State()
	return s == StateCleanedUp || s == StateDestroyed
}

func (p *Program) setSource(stage Stage, src Source) {
	p.sources[stage] = src
	if !src.IsEmpty() {
		p.shader.SetSource(stage, src)
	}
}

// Initialise compiles the program. It runs the backend initialisation at
// most once; later calls return the first result.
func (p *Program) Initialise() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDestroyed {
		return ErrProgramDestroyed
	}
	if p.initDone {
		return p.initErr
	}
	p.initDone = true

	if err := p.shader.Initialise(); err != nil {
		p.initErr = fmt.Errorf("shadercache: initialise %s: %w", p.label, err)
		castor.Logger().Warn("shadercache: program initialisation failed",
			"label", p.label, "key", p.key.String(), "error", err)
		return p.initErr
	}
	p.state = StateInitialised
	castor.Logger().Debug("shadercache: program initialised", "label", p.label)
	return nil
}

// Cleanup releases the program's GPU resources. It runs at most once.
func (p *Program) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateCleanedUp || p.state == StateDestroyed {
		return
	}
	p.shader.Cleanup()
	p.state = StateCleanedUp
}

// Destroy releases the program outside of the cache. Handles the cache holds
// stop resolving and the next request for the same flags regenerates it.
func (p *Program) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDestroyed {
		return
	}
	if p.state != StateCleanedUp {
		p.shader.Cleanup()
	}
	p.state = StateDestroyed
}
