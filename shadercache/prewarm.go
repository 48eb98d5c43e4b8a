// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import (
	"context"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/internal/parallel"
	"github.com/gogpu/castor/variant"
)

// Prewarm requests every flag combination on up to workers goroutines so
// later lookups hit. Duplicate flags are built once. Programs created while
// the context is not current are initialised on the next GPU-thread flush.
//
// The context is checked from each worker goroutine. A prewarm that overlaps
// a window where the context reports current, such as a gpuctx Flush on
// another goroutine, initialises the programs it creates there on the
// worker, off the GPU thread. Run Prewarm while the context is not current
// when the backend requires GPU-thread initialisation.
//
// The returned error joins the per-variant failures; variants that
// succeeded stay cached.
func (c *Cache) Prewarm(ctx context.Context, pass SourceGenerator, flags []variant.Flags, workers int) error {
	if pass == nil {
		return ErrNilPass
	}
	if len(flags) == 0 {
		return nil
	}

	pool := parallel.NewPool(min(max(workers, 1), len(flags)))
	defer pool.Close()

	tasks := make([]parallel.Task, len(flags))
	for i, f := range flags {
		tasks[i] = func(context.Context) error {
			_, err := c.GetAutomaticProgram(pass, f)
			return err
		}
	}
	err := pool.Run(ctx, tasks)

	castor.Logger().Info("shadercache: prewarm done",
		"requested", len(flags), "programs", c.Len(), "workers", pool.Workers(),
		"failed", err != nil)
	return err
}
