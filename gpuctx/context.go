// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpuctx tracks whether the GPU context is current and defers
// program work to the GPU thread when it is not.
package gpuctx

import (
	"errors"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/event"
	"github.com/gogpu/castor/shadercache"
)

// ErrNoDevice is returned by MakeCurrent when the provider has no device.
var ErrNoDevice = errors.New("gpuctx: provider has no device")

// poller is implemented by devices that process completed GPU work on demand.
type poller interface {
	Poll(wait bool)
}

// Context implements [shadercache.GPUContext] over a device provider.
//
// The context is current between MakeCurrent and EndCurrent, which the GPU
// thread calls around its frame. Currency is process-wide: only the GPU
// thread should bracket work with MakeCurrent.
type Context struct {
	provider gpucontext.DeviceProvider
	queue    event.Queue
	current  atomic.Bool
}

// New returns a context over provider. A nil provider behaves like one
// without a device.
func New(provider gpucontext.DeviceProvider) *Context {
	if provider == nil {
		provider = HeadlessProvider{}
	}
	info := provider.AdapterInfo()
	castor.Logger().Info("gpuctx: context created",
		"adapter", info.Name, "type", info.Type.String())
	return &Context{provider: provider}
}

// Provider returns the device provider.
func (c *Context) Provider() gpucontext.DeviceProvider {
	return c.provider
}

// MakeCurrent marks the context current.
func (c *Context) MakeCurrent() error {
	if c.provider.Device() == nil {
		return ErrNoDevice
	}
	c.current.Store(true)
	return nil
}

// EndCurrent marks the context not current.
func (c *Context) EndCurrent() {
	c.current.Store(false)
}

// IsContextCurrent reports whether GPU work may run immediately.
func (c *Context) IsContextCurrent() bool {
	return c.current.Load()
}

// PostInitEvent queues p's initialisation for the next Flush.
func (c *Context) PostInitEvent(p *shadercache.Program) {
	c.queue.Post("initialise "+p.Label(), p.Initialise)
}

// PostCleanupEvent queues p's cleanup for the next Flush.
func (c *Context) PostCleanupEvent(p *shadercache.Program) {
	c.queue.Post("cleanup "+p.Label(), func() error {
		p.Cleanup()
		return nil
	})
}

// Post queues arbitrary GPU-thread work.
func (c *Context) Post(label string, run func() error) {
	c.queue.Post(label, run)
}

// Pending returns the number of queued events.
func (c *Context) Pending() int {
	return c.queue.Len()
}

// Flush runs the queued events with the context current, then lets the
// device process completed work. It returns the joined event errors.
func (c *Context) Flush() error {
	if err := c.MakeCurrent(); err != nil {
		return err
	}
	defer c.EndCurrent()

	err := c.queue.Fire()
	if p, ok := c.provider.Device().(poller); ok {
		p.Poll(false)
	}
	return err
}

// HeadlessProvider is a [gpucontext.DeviceProvider] without a surface. With
// a nil Dev the context never becomes current.
type HeadlessProvider struct {
	Dev  gpucontext.Device
	Q    gpucontext.Queue
	Name string
}

// Device returns Dev.
func (h HeadlessProvider) Device() gpucontext.Device { return h.Dev }

// Queue returns Q.
func (h HeadlessProvider) Queue() gpucontext.Queue { return h.Q }

// Adapter returns nil.
func (HeadlessProvider) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns TextureFormatUndefined.
func (HeadlessProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo reports a software adapter named Name.
func (h HeadlessProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: h.Name, Type: gpucontext.AdapterTypeSoftware}
}

var (
	_ shadercache.GPUContext    = (*Context)(nil)
	_ gpucontext.DeviceProvider = HeadlessProvider{}
)
