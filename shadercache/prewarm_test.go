// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/castor/variant"
)

func TestPrewarm(t *testing.T) {
	c, factory, _ := newTestCache(t)
	pass := &mockPass{}

	flags := []variant.Flags{
		litFlags,
		{Texture: variant.TextureNormal},
		litFlags,
		{Program: variant.ProgramBillboards},
		{Texture: variant.TextureNormal},
	}
	if err := c.Prewarm(context.Background(), pass, flags, 4); err != nil {
		t.Fatalf("Prewarm() = %v", err)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	if n := factory.created.Load(); n != 3 {
		t.Errorf("factory created %d programs, want 3", n)
	}

	before := pass.vertex.Load()
	if _, err := c.GetAutomaticProgram(pass, litFlags); err != nil {
		t.Fatal(err)
	}
	if pass.vertex.Load() != before {
		t.Error("lookup after prewarm regenerated the program")
	}
}

func TestPrewarmDeferred(t *testing.T) {
	c, _, ctx := newTestCache(t)
	ctx.current.Store(false)

	flags := []variant.Flags{litFlags, {Texture: variant.TextureNormal}}
	if err := c.Prewarm(context.Background(), &mockPass{}, flags, 2); err != nil {
		t.Fatal(err)
	}
	if inits, _ := ctx.posted(); inits != 2 {
		t.Errorf("posted %d init events, want 2", inits)
	}
	if err := ctx.fire(); err != nil {
		t.Fatal(err)
	}
	for _, p := range c.Programs() {
		if p.State() != StateInitialised {
			t.Errorf("%s: State() = %s", p.Label(), p.State())
		}
	}
}

func TestPrewarmErrors(t *testing.T) {
	c, factory, _ := newTestCache(t)

	if err := c.Prewarm(context.Background(), nil, []variant.Flags{litFlags}, 1); !errors.Is(err, ErrNilPass) {
		t.Errorf("Prewarm(nil pass) = %v", err)
	}
	if err := c.Prewarm(context.Background(), &mockPass{}, nil, 1); err != nil {
		t.Errorf("Prewarm(no flags) = %v", err)
	}

	factory.notReady.Store(true)
	err := c.Prewarm(context.Background(), &mockPass{}, []variant.Flags{litFlags}, 0)
	if !errors.Is(err, ErrProgramUnavailable) {
		t.Errorf("Prewarm() with factory not ready = %v", err)
	}

	factory.notReady.Store(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Prewarm(ctx, &mockPass{}, []variant.Flags{litFlags}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Prewarm(canceled) = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed prewarms, want 0", c.Len())
	}
}
