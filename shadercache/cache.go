// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shadercache deduplicates generated shader programs.
//
// Every distinct combination of render-state flags maps to exactly one
// program. Programs live in two tables, one for regular geometry and one for
// billboards, keyed by [variant.Key]. The tables hold non-owning handles; a
// flat list owns the programs and drives cleanup.
package shadercache

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/internal/arena"
	"github.com/gogpu/castor/variant"
)

// table selects the automatic or billboard map.
type table uint8

const (
	tableAutomatic table = iota
	tableBillboard
)

func (t table) String() string {
	if t == tableBillboard {
		return "billboard"
	}
	return "automatic"
}

// Cache maps flag combinations to shader programs.
//
// Thread Safety:
// Cache is safe for concurrent use. Table lookups and inserts happen under a
// mutex. Source generation runs outside it and is de-duplicated per key, so
// concurrent requests for one key share a single generation and creation.
// WithStrictSerialization moves generation under the mutex instead.
type Cache struct {
	factory ProgramFactory
	ctx     GPUContext
	opts    options

	// mu protects the tables, the arena and the program list.
	mu        sync.Mutex
	automatic map[variant.Key]arena.Handle
	billboard map[variant.Key]arena.Handle
	handles   *arena.Arena[*Program]
	programs  []*Program

	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an empty cache.
func New(factory ProgramFactory, ctx GPUContext, opts ...Option) (*Cache, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	if ctx == nil {
		return nil, ErrNilContext
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{
		factory:   factory,
		ctx:       ctx,
		opts:      o,
		automatic: make(map[variant.Key]arena.Handle, o.capacity),
		billboard: make(map[variant.Key]arena.Handle, o.capacity),
		handles:   arena.New[*Program](o.capacity),
	}, nil
}

// GetAutomaticProgram returns the program for flags, generating it on a miss.
//
// Flags with ProgramBillboards set go to the billboard table under
// Flags.BillboardKey; everything else goes to the automatic table under
// Flags.Key. A newly created program is initialised immediately when the GPU
// context is current, otherwise its initialisation is posted to the GPU
// thread.
//
// Returns ErrProgramUnavailable if the factory is not ready; nothing is
// cached in that case and a later call retries.
func (c *Cache) GetAutomaticProgram(pass SourceGenerator, flags variant.Flags) (*Program, error) {
	if pass == nil {
		return nil, ErrNilPass
	}
	if err := flags.Validate(); err != nil {
		return nil, fmt.Errorf("shadercache: %w", err)
	}

	t, key := tableAutomatic, flags.Key()
	if flags.IsBillboard() {
		t, key = tableBillboard, flags.BillboardKey()
	}

	if c.opts.strict {
		return c.getStrict(pass, flags, t, key)
	}

	// Fast path
	c.mu.Lock()
	p := c.lookupLocked(t, key)
	c.mu.Unlock()
	if p != nil {
		c.hits.Add(1)
		return p, nil
	}

	// Slow path: one generation per key, insert re-checked under the lock.
	// Only the caller whose flight inserted the program counts a miss;
	// callers that joined it or found an existing entry count a hit.
	var inserted bool
	v, err, _ := c.group.Do(flightKey(t, key), func() (any, error) {
		c.mu.Lock()
		if existing := c.lookupLocked(t, key); existing != nil {
			c.mu.Unlock()
			return existing, nil
		}
		c.mu.Unlock()

		created, err := c.build(pass, flags, t, key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if existing := c.lookupLocked(t, key); existing != nil {
			c.mu.Unlock()
			created.Destroy()
			return existing, nil
		}
		c.insertLocked(t, key, created)
		c.mu.Unlock()

		inserted = true
		c.misses.Add(1)
		c.activate(created)
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		c.hits.Add(1)
	}
	return v.(*Program), nil
}

func (c *Cache) getStrict(pass SourceGenerator, flags variant.Flags, t table, key variant.Key) (*Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.lookupLocked(t, key); p != nil {
		c.hits.Add(1)
		return p, nil
	}

	p, err := c.build(pass, flags, t, key)
	if err != nil {
		return nil, err
	}
	c.insertLocked(t, key, p)
	c.misses.Add(1)
	c.activate(p)
	return p, nil
}

// build generates sources and creates the backend program. It does not touch
// the tables.
func (c *Cache) build(pass SourceGenerator, flags variant.Flags, t table, key variant.Key) (*Program, error) {
	var vertex Source
	if bb, ok := pass.(BillboardSourceGenerator); ok && t == tableBillboard {
		vertex = bb.BillboardVertexShaderSource(flags)
	} else {
		vertex = pass.VertexShaderSource(flags)
	}
	pixel := pass.PixelShaderSource(flags)
	geometry := pass.GeometryShaderSource(flags)

	label := t.String() + "_" + key.String()
	shader := c.factory.CreateShaderProgram(label)
	if shader == nil {
		castor.Logger().Warn("shadercache: program factory not ready",
			"table", t.String(), "key", key.String())
		return nil, ErrProgramUnavailable
	}

	p := newProgram(key, flags, t == tableBillboard, label, shader)
	p.setSource(StageVertex, vertex)
	p.setSource(StagePixel, pixel)
	p.setSource(StageGeometry, geometry)
	c.CreateTextureVariables(p, flags.Texture, flags.Program)

	castor.Logger().Debug("shadercache: program created",
		"table", t.String(), "key", key.String(), "flags", flags.String(),
		"samplers", len(p.bindings))
	return p, nil
}

// activate initialises p now or defers it to the GPU thread.
func (c *Cache) activate(p *Program) {
	if c.ctx.IsContextCurrent() {
		// A failure is logged and kept on p for Err.
		_ = p.Initialise()
		return
	}
	c.ctx.PostInitEvent(p)
}

// CreateTextureVariables registers one pixel-stage sampler per texture
// channel, in variant.SamplerChannels order with indices 0..n-1. It must be
// called before the program is initialised.
func (c *Cache) CreateTextureVariables(p *Program, texture variant.TextureChannel, program variant.ProgramFlag) {
	model := variant.ShadingModelOf(program)
	channels := variant.SamplerChannels(texture, program)
	p.bindings = make([]TextureBinding, 0, len(channels))
	for i, ch := range channels {
		b := TextureBinding{
			Channel: ch,
			Name:    variant.SamplerName(ch, model),
			Stage:   StagePixel,
			Index:   uint32(i),
		}
		p.shader.CreateSampler(b.Name, b.Stage, b.Index)
		p.bindings = append(p.bindings, b)
	}
}

// Cleanup posts a cleanup event for every program that still holds GPU
// resources. Programs already queued are not posted again.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	programs := slices.Clone(c.programs)
	c.mu.Unlock()

	posted := 0
	for _, p := range programs {
		if p.CleanupDone() || !p.cleanupQueued.CompareAndSwap(false, true) {
			continue
		}
		c.ctx.PostCleanupEvent(p)
		posted++
	}
	castor.Logger().Debug("shadercache: cleanup posted", "programs", posted)
}

// Clear drops every program, handle and table entry.
//
// Clear refuses with ErrCleanupPending, leaving the cache untouched, while any
// program has not completed cleanup. Call Cleanup and let the GPU thread run
// the posted events first.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := 0
	for _, p := range c.programs {
		if !p.CleanupDone() {
			pending++
		}
	}
	if pending > 0 {
		castor.Logger().Warn("shadercache: clear refused", "pending", pending)
		return fmt.Errorf("%w: %d of %d", ErrCleanupPending, pending, len(c.programs))
	}

	n := len(c.programs)
	clear(c.automatic)
	clear(c.billboard)
	c.handles.Clear()
	c.programs = nil
	c.hits.Store(0)
	c.misses.Store(0)

	castor.Logger().Info("shadercache: cleared", "programs", n)
	return nil
}

// Release destroys p and forgets it. The next request for its flags
// generates a new program.
func (c *Cache) Release(p *Program) {
	if p == nil {
		return
	}
	c.mu.Lock()
	c.forgetLocked(p)
	c.mu.Unlock()
	p.Destroy()
}

// Stats returns the number of cache hits and misses.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 with no requests.
func (c *Cache) HitRate() float64 {
	hits, misses := c.Stats()
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// Len returns the number of owned programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}

// AutomaticCount returns the number of automatic table entries.
func (c *Cache) AutomaticCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.automatic)
}

// BillboardCount returns the number of billboard table entries.
func (c *Cache) BillboardCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.billboard)
}

// Programs returns a snapshot of the owned programs in creation order.
func (c *Cache) Programs() []*Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.programs)
}

// =============================================================================
// Table helpers (caller holds c.mu)
// =============================================================================

func (c *Cache) tableMap(t table) map[variant.Key]arena.Handle {
	if t == tableBillboard {
		return c.billboard
	}
	return c.automatic
}

// lookupLocked returns the usable program under key, or nil. An entry whose
// handle no longer resolves, or whose program was cleaned up or destroyed,
// is dropped so the caller regenerates it. A program whose cleanup is only
// queued is still returned.
func (c *Cache) lookupLocked(t table, key variant.Key) *Program {
	m := c.tableMap(t)
	h, ok := m[key]
	if !ok {
		return nil
	}
	p, ok := c.handles.Get(h)
	if ok && !p.CleanupDone() {
		return p
	}

	castor.Logger().Debug("shadercache: expired handle", "table", t.String(), "key", key.String())
	delete(m, key)
	if ok {
		c.forgetLocked(p)
	}
	return nil
}

func (c *Cache) insertLocked(t table, key variant.Key, p *Program) {
	p.handle = c.handles.Insert(p)
	c.tableMap(t)[key] = p.handle
	c.programs = append(c.programs, p)
}

// forgetLocked removes p from the arena, its table and the program list.
func (c *Cache) forgetLocked(p *Program) {
	if c.handles.Remove(p.handle) {
		t := tableAutomatic
		if p.billboard {
			t = tableBillboard
		}
		m := c.tableMap(t)
		if h, ok := m[p.key]; ok && h == p.handle {
			delete(m, p.key)
		}
	}
	if i := slices.Index(c.programs, p); i >= 0 {
		c.programs = slices.Delete(c.programs, i, i+1)
	}
}

func flightKey(t table, key variant.Key) string {
	return strconv.FormatUint(uint64(t), 10) + ":" + strconv.FormatUint(uint64(key), 16)
}
